// Package metrics holds curator's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "curator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Jobs
	JobTransitions *prometheus.CounterVec
	JobsRunning    prometheus.Gauge

	// Fetcher
	FetchOutcomes *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Pipeline
	ContentUpserts *prometheus.CounterVec
	ContentPurged  prometheus.Counter
	ScoreHistogram prometheus.Histogram
}

// New creates and registers all metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}
	m.initJobMetrics(factory)
	m.initFetchMetrics(factory)
	m.initContentMetrics(factory)
	return m
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "transitions_total",
			Help:      "Job lifecycle transitions by target status",
		},
		[]string{"type", "status"},
	)

	m.JobsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Number of job runners currently executing",
		},
	)
}

func (m *Metrics) initFetchMetrics(factory promauto.Factory) {
	m.FetchOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "outcomes_total",
			Help:      "Per-URL fetch outcomes by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	m.FetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetcher",
			Name:      "fetch_duration_seconds",
			Help:      "HTTP fetch latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"content_kind"},
	)
}

func (m *Metrics) initContentMetrics(factory promauto.Factory) {
	m.ContentUpserts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "upserts_total",
			Help:      "Content upserts by result and valuable flag",
		},
		[]string{"result", "valuable"},
	)

	m.ContentPurged = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "purged_total",
			Help:      "Content items removed by purge",
		},
	)

	m.ScoreHistogram = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "quality_score",
			Help:      "Distribution of quality scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)
}

// JobTransition records a job reaching status.
func (m *Metrics) JobTransition(jobType, status string) {
	if m == nil {
		return
	}
	m.JobTransitions.WithLabelValues(jobType, status).Inc()
}

// RunnerStarted increments the running gauge.
func (m *Metrics) RunnerStarted() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

// RunnerFinished decrements the running gauge.
func (m *Metrics) RunnerFinished() {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
}

// FetchOutcome records one reported outcome.
func (m *Metrics) FetchOutcome(kind, reason string) {
	if m == nil {
		return
	}
	m.FetchOutcomes.WithLabelValues(kind, reason).Inc()
}

// ObserveFetch records fetch latency.
func (m *Metrics) ObserveFetch(contentKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(contentKind).Observe(d.Seconds())
}

// ContentUpserted records an upsert.
func (m *Metrics) ContentUpserted(inserted, valuable bool, quality int) {
	if m == nil {
		return
	}
	result := "updated"
	if inserted {
		result = "inserted"
	}
	v := "false"
	if valuable {
		v = "true"
	}
	m.ContentUpserts.WithLabelValues(result, v).Inc()
	m.ScoreHistogram.Observe(float64(quality))
}

// Purged records removed items.
func (m *Metrics) Purged(n int64) {
	if m == nil {
		return
	}
	m.ContentPurged.Add(float64(n))
}
