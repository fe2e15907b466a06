// Package domain defines curator's core records and the error taxonomy shared
// by every layer.
package domain

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a job attempt.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

// IsTerminal reports whether the current attempt has ended.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusStopped
}

// IsActive reports whether a runner may still be working on the job.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusPaused
}

// ParseJobStatus validates a status filter from the API edge.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(raw)
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", raw)}
}

// CanRetry derives the retry capability from the terminal state. Completed
// jobs are retryable only with the operator override.
func CanRetry(status JobStatus, completedOverride bool) bool {
	switch status {
	case JobStatusFailed, JobStatusStopped:
		return true
	case JobStatusCompleted:
		return completedOverride
	default:
		return false
	}
}

// JobType is the closed set of crawl strategies.
type JobType string

const (
	JobTypeBulkScrape        JobType = "bulk_scrape"
	JobTypeScheduledScrape   JobType = "scheduled_scrape"
	JobTypeDeepCrawl         JobType = "deep_crawl"
	JobTypeIntelligentScrape JobType = "intelligent_scrape"
)

// ParseJobType rejects job types outside the closed set.
func ParseJobType(raw string) (JobType, error) {
	t := JobType(raw)
	switch t {
	case JobTypeBulkScrape, JobTypeScheduledScrape, JobTypeDeepCrawl, JobTypeIntelligentScrape:
		return t, nil
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown job type %q", raw)}
}

// Job is one scraping job. Values published by the job manager are treated as
// immutable snapshots; callers must Clone before modifying.
type Job struct {
	ID                 string      `db:"id"                  json:"id"`
	Name               string      `db:"name"                json:"name"`
	Type               JobType     `db:"type"                json:"type"`
	Status             JobStatus   `db:"status"              json:"status"`
	SourceID           *string     `db:"source_id"           json:"source_id,omitempty"`
	ConfigID           *string     `db:"config_id"           json:"config_id,omitempty"`
	TargetURLs         StringArray `db:"target_urls"         json:"target_urls"`
	ScrapingDepth      int         `db:"scraping_depth"      json:"scraping_depth"`
	ContentTypeFilters StringArray `db:"content_type_filters" json:"content_type_filters"`
	Options            JobOptions  `db:"options"             json:"options"`
	Priority           int         `db:"priority"            json:"priority"`
	Attempt            int         `db:"attempt"             json:"attempt"`
	ProgressPercentage float64     `db:"progress_percentage" json:"progress_percentage"`
	ItemsFound         int         `db:"items_found"         json:"items_found"`
	ItemsProcessed     int         `db:"items_processed"     json:"items_processed"`
	ItemsSuccessful    int         `db:"items_successful"    json:"items_successful"`
	ItemsFailed        int         `db:"items_failed"        json:"items_failed"`
	StartedAt          *time.Time  `db:"started_at"          json:"started_at,omitempty"`
	CompletedAt        *time.Time  `db:"completed_at"        json:"completed_at,omitempty"`
	ErrorSummary       *string     `db:"error_summary"       json:"error_summary,omitempty"`
	CanRetry           bool        `db:"can_retry"           json:"can_retry"`
	CompletedOverride  bool        `db:"completed_override"  json:"completed_override"`
	CreatedAt          time.Time   `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"          json:"updated_at"`
}

// Clone returns a deep copy suitable for mutation.
func (j *Job) Clone() *Job {
	c := *j
	c.TargetURLs = append(StringArray(nil), j.TargetURLs...)
	c.ContentTypeFilters = append(StringArray(nil), j.ContentTypeFilters...)
	if j.Options.ExtraHeaders != nil {
		c.Options.ExtraHeaders = make(map[string]string, len(j.Options.ExtraHeaders))
		for k, v := range j.Options.ExtraHeaders {
			c.Options.ExtraHeaders[k] = v
		}
	}
	return &c
}

// RecomputeProgress sets ProgressPercentage from the counters.
func (j *Job) RecomputeProgress() {
	found := j.ItemsFound
	if found < 1 {
		found = 1
	}
	p := float64(j.ItemsProcessed) / float64(found) * 100
	if p > 100 {
		p = 100
	}
	j.ProgressPercentage = p
}

// CheckCounters verifies the counter invariants.
func (j *Job) CheckCounters() error {
	if j.ItemsProcessed > j.ItemsFound {
		return fmt.Errorf("job %s: items_processed %d > items_found %d", j.ID, j.ItemsProcessed, j.ItemsFound)
	}
	if j.ItemsSuccessful+j.ItemsFailed > j.ItemsProcessed {
		return fmt.Errorf("job %s: successful+failed %d > processed %d",
			j.ID, j.ItemsSuccessful+j.ItemsFailed, j.ItemsProcessed)
	}
	return nil
}

// JobOptions carries per-job crawl overrides. It arrives as a loose map at the
// API edge and is decoded into this struct.
type JobOptions struct {
	PolitenessDelayMS int               `json:"politeness_delay_ms,omitempty" mapstructure:"politeness_delay_ms"`
	MaxConcurrency    int               `json:"max_concurrency,omitempty"     mapstructure:"max_concurrency"`
	SameHostOnly      *bool             `json:"same_host_only,omitempty"      mapstructure:"same_host_only"`
	MaxPages          int               `json:"max_pages,omitempty"           mapstructure:"max_pages"`
	ExtraHeaders      map[string]string `json:"extra_headers,omitempty"       mapstructure:"extra_headers"`
}

// SameHost reports whether discovery is restricted to each seed's host. Defaults to true.
func (o JobOptions) SameHost() bool {
	return o.SameHostOnly == nil || *o.SameHostOnly
}

// PolitenessDelay converts the millisecond override.
func (o JobOptions) PolitenessDelay() time.Duration {
	return time.Duration(o.PolitenessDelayMS) * time.Millisecond
}
