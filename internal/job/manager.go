// Package job owns the job lifecycle: the state machine, per-URL outcome
// accounting, failure escalation and the runners that drive the crawler.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

const defaultMaxJobs = 8

// ErrShuttingDown rejects lifecycle actions once Shutdown has begun.
var ErrShuttingDown = errors.New("job manager is shutting down")

// Crawler executes one attempt of a job.
type Crawler interface {
	Run(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error)
}

// StatusPublisher is told about every job status change.
type StatusPublisher interface {
	PublishJobStatus(ctx context.Context, job *domain.Job) error
}

var _ fetcher.Reporter = (*Manager)(nil)

// Deps are the collaborators of a Manager. Metrics and Events may be nil.
type Deps struct {
	Jobs    database.JobRepositoryInterface
	Logs    database.JobLogRepositoryInterface
	Sources database.SourceRepositoryInterface
	Configs database.ConfigRepositoryInterface
	Crawler Crawler
	Metrics *metrics.Metrics
	Events  StatusPublisher
	Logger  logger.Logger
}

// Config tunes a Manager.
type Config struct {
	// MaxJobs caps how many runners crawl at once; others wait for a slot.
	MaxJobs int
	Policy  FailurePolicy
}

// Manager is the single writer of job state. Readers get immutable
// snapshots, so a poll never observes a half-applied update.
type Manager struct {
	jobs    database.JobRepositoryInterface
	logs    database.JobLogRepositoryInterface
	sources database.SourceRepositoryInterface
	configs database.ConfigRepositoryInterface
	crawler Crawler
	metrics *metrics.Metrics
	events  StatusPublisher
	log     logger.Logger
	policy  FailurePolicy
	slots   chan struct{}

	mu          sync.Mutex
	entries     map[string]*entry
	sourceLocks keyedMutex

	ctx     context.Context
	cancel  context.CancelFunc
	closing atomic.Bool
	wg      sync.WaitGroup
}

// entry is the in-memory state of one job. snap is replaced, never mutated.
type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Job]

	// Guarded by mu. ctl and done are set while a runner is attached.
	ctl         *fetcher.Control
	done        chan struct{}
	consecutive int
	files       int

	// High-water marks of what has been added to the source counters.
	// Retries re-crawl the same urls, so only growth past them is added.
	countedItems int
	countedFiles int
}

// NewManager creates a job manager.
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = defaultMaxJobs
	}
	if cfg.Policy == (FailurePolicy{}) {
		cfg.Policy = DefaultFailurePolicy
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:    deps.Jobs,
		logs:    deps.Logs,
		sources: deps.Sources,
		configs: deps.Configs,
		crawler: deps.Crawler,
		metrics: deps.Metrics,
		events:  deps.Events,
		log:     deps.Logger,
		policy:  cfg.Policy,
		slots:   make(chan struct{}, cfg.MaxJobs),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Recover pauses jobs a previous process left running so an operator can
// resume them. Call once at boot before serving requests.
func (m *Manager) Recover(ctx context.Context) error {
	n, err := m.jobs.MarkInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.Warn("Paused jobs interrupted by restart", logger.Int64("count", n))
	}
	return nil
}

// Create validates req and stores a pending job.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	job, err := m.buildJob(ctx, req)
	if err != nil {
		return nil, err
	}
	job.ID = uuid.NewString()

	if createErr := m.jobs.Create(ctx, job); createErr != nil {
		return nil, fmt.Errorf("create job: %w", createErr)
	}

	e := &entry{}
	e.snap.Store(job)
	m.mu.Lock()
	m.entries[job.ID] = e
	m.mu.Unlock()

	m.log.Info("Job created",
		logger.JobID(job.ID),
		logger.String("type", string(job.Type)),
		logger.Strings("target_urls", job.TargetURLs),
		logger.Int("depth", job.ScrapingDepth),
	)
	m.transitioned(ctx, job)
	return job.Clone(), nil
}

// Get returns the latest snapshot of a job.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Job, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.snap.Load().Clone(), nil
}

// List returns a page of jobs, newest first.
func (m *Manager) List(ctx context.Context, f ListFilter) (domain.Page[*domain.Job], error) {
	if f.Status != "" {
		if _, err := domain.ParseJobStatus(f.Status); err != nil {
			return domain.Page[*domain.Job]{}, err
		}
	}
	if f.Type != "" {
		if _, err := domain.ParseJobType(f.Type); err != nil {
			return domain.Page[*domain.Job]{}, err
		}
	}

	page, limit := domain.NormalizePage(f.Page, f.Limit)
	filter := database.JobFilter{Status: f.Status, Type: f.Type, SourceID: f.SourceID, Page: page, Limit: limit}

	jobs, err := m.jobs.List(ctx, filter)
	if err != nil {
		return domain.Page[*domain.Job]{}, err
	}
	total, err := m.jobs.Count(ctx, filter)
	if err != nil {
		return domain.Page[*domain.Job]{}, err
	}

	// In-memory snapshots are never older than the stored rows.
	m.mu.Lock()
	for i, j := range jobs {
		if e, ok := m.entries[j.ID]; ok {
			jobs[i] = e.snap.Load().Clone()
		}
	}
	m.mu.Unlock()

	return domain.NewPage(jobs, total, page, limit), nil
}

// Logs returns a page of a job's per-URL log across all attempts.
func (m *Manager) Logs(ctx context.Context, id string, page, limit int) (domain.Page[*domain.JobLogEntry], error) {
	if _, err := m.load(ctx, id); err != nil {
		return domain.Page[*domain.JobLogEntry]{}, err
	}

	page, limit = domain.NormalizePage(page, limit)
	entries, err := m.logs.ListByJob(ctx, id, page, limit)
	if err != nil {
		return domain.Page[*domain.JobLogEntry]{}, err
	}
	total, err := m.logs.CountByJob(ctx, id)
	if err != nil {
		return domain.Page[*domain.JobLogEntry]{}, err
	}
	return domain.NewPage(entries, total, page, limit), nil
}

// ActiveForSource reports whether a pending, running or paused job crawls the source.
func (m *Manager) ActiveForSource(ctx context.Context, sourceID string) (bool, error) {
	return m.jobs.HasActiveForSource(ctx, sourceID)
}

// Start runs a pending job, or resumes a paused one.
func (m *Manager) Start(ctx context.Context, id string) (*domain.Job, error) {
	if m.closing.Load() {
		return nil, ErrShuttingDown
	}
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	switch cur.Status {
	case domain.JobStatusPending:
		next := cur.Clone()
		next.Status = domain.JobStatusRunning
		now := time.Now().UTC()
		next.StartedAt = &now
		if commitErr := m.commit(ctx, e, next, true); commitErr != nil {
			return nil, commitErr
		}
		m.launch(e, next, nil, false)
		return next.Clone(), nil

	case domain.JobStatusPaused:
		// Without an attached runner the process restarted since the pause;
		// what this attempt already fetched is recovered from the log.
		var visited []string
		if e.ctl == nil {
			visited, err = m.logs.VisitedURLs(ctx, id, cur.Attempt)
			if err != nil {
				return nil, err
			}
		}

		next := cur.Clone()
		next.Status = domain.JobStatusRunning
		if commitErr := m.commit(ctx, e, next, true); commitErr != nil {
			return nil, commitErr
		}
		if e.ctl != nil {
			e.ctl.Resume()
		} else {
			m.launch(e, next, visited, true)
		}
		return next.Clone(), nil

	default:
		return nil, &domain.InvalidStateError{JobID: id, From: cur.Status, Action: "start"}
	}
}

// Pause parks a running job before its next fetch. In-flight fetches finish
// and are still counted.
func (m *Manager) Pause(ctx context.Context, id string) (*domain.Job, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if cur.Status != domain.JobStatusRunning {
		return nil, &domain.InvalidStateError{JobID: id, From: cur.Status, Action: "pause"}
	}

	next := cur.Clone()
	next.Status = domain.JobStatusPaused
	if commitErr := m.commit(ctx, e, next, true); commitErr != nil {
		return nil, commitErr
	}
	if e.ctl != nil {
		e.ctl.Pause()
	}
	return next.Clone(), nil
}

// Stop ends the current attempt of a running or paused job.
func (m *Manager) Stop(ctx context.Context, id string) (*domain.Job, error) {
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if cur.Status != domain.JobStatusRunning && cur.Status != domain.JobStatusPaused {
		return nil, &domain.InvalidStateError{JobID: id, From: cur.Status, Action: "stop"}
	}

	next := cur.Clone()
	endAttempt(next, domain.JobStatusStopped, "")
	if commitErr := m.commit(ctx, e, next, true); commitErr != nil {
		return nil, commitErr
	}

	if e.ctl != nil {
		e.ctl.Stop()
	} else {
		m.applySourceStats(ctx, e, next)
	}
	return next.Clone(), nil
}

// Retry starts a new attempt of a failed or stopped job. A completed job is
// retried only with override. Counters reset except items_found, which
// carries over with the discovered frontier. Retrying a running job returns
// it unchanged.
func (m *Manager) Retry(ctx context.Context, id string, override bool) (*domain.Job, error) {
	if m.closing.Load() {
		return nil, ErrShuttingDown
	}
	e, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	cur, err := m.lockIdle(ctx, e, override)
	if err != nil {
		return nil, err
	}
	if cur.Status == domain.JobStatusRunning {
		e.mu.Unlock()
		return cur.Clone(), nil
	}
	defer e.mu.Unlock()

	next := cur.Clone()
	next.Attempt++
	next.ItemsProcessed = 0
	next.ItemsSuccessful = 0
	next.ItemsFailed = 0
	next.RecomputeProgress()
	next.Status = domain.JobStatusRunning
	now := time.Now().UTC()
	next.StartedAt = &now
	next.CompletedAt = nil
	next.ErrorSummary = nil
	next.CanRetry = false
	if override {
		next.CompletedOverride = true
	}

	if commitErr := m.commit(ctx, e, next, true); commitErr != nil {
		return nil, commitErr
	}
	m.log.Info("Job retried", logger.JobID(id), logger.Int("attempt", next.Attempt))
	m.launch(e, next, nil, false)
	return next.Clone(), nil
}

// lockIdle locks e once the job is retryable and no runner of the previous
// attempt is still draining. A running job is returned locked as-is.
func (m *Manager) lockIdle(ctx context.Context, e *entry, override bool) (*domain.Job, error) {
	for {
		e.mu.Lock()
		cur := e.snap.Load()
		if cur.Status == domain.JobStatusRunning {
			return cur, nil
		}

		retryable := cur.CanRetry || domain.CanRetry(cur.Status, override)
		if !retryable {
			e.mu.Unlock()
			return nil, &domain.NotRetryableError{JobID: cur.ID, Status: cur.Status}
		}
		if e.done == nil {
			return cur, nil
		}

		done := e.done
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReportDiscovered adds newly discovered item URLs to items_found.
func (m *Manager) ReportDiscovered(ctx context.Context, id string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	e, err := m.load(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if e.ctl == nil {
		return &domain.InvalidStateError{JobID: id, From: cur.Status, Action: "report discovered"}
	}

	next := cur.Clone()
	next.ItemsFound += len(urls)
	m.updateProgress(cur, next)
	return m.commit(ctx, e, next, false)
}

// ReportOutcome records the terminal outcome of one URL: a log entry, the
// counters, progress, and failure escalation, as one update.
func (m *Manager) ReportOutcome(ctx context.Context, id, pageURL string, outcome domain.Outcome) error {
	e, err := m.load(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if e.ctl == nil {
		return &domain.InvalidStateError{JobID: id, From: cur.Status, Action: "report outcome"}
	}

	logEntry := newLogEntry(cur, pageURL, outcome)
	if appendErr := m.logs.Append(context.WithoutCancel(ctx), logEntry); appendErr != nil {
		return fmt.Errorf("append log for job %s: %w", id, appendErr)
	}

	next := cur.Clone()
	if outcome.Counted() {
		next.ItemsProcessed++
		if next.ItemsProcessed > next.ItemsFound {
			m.log.Warn("Outcome for an undiscovered url", logger.JobID(id), logger.URL(pageURL))
			next.ItemsFound = next.ItemsProcessed
		}
		switch outcome.Kind {
		case domain.OutcomeSuccess:
			next.ItemsSuccessful++
			e.consecutive = 0
			if outcome.ContentType != string(domain.ContentKindHTML) {
				e.files++
			}
		case domain.OutcomeFailure:
			next.ItemsFailed++
			e.consecutive++
		case domain.OutcomeSkipped:
		}
	}
	m.updateProgress(cur, next)

	escalated := false
	if !next.Status.IsTerminal() {
		if summary, failed := m.policy.Exceeded(next, e.consecutive); failed {
			endAttempt(next, domain.JobStatusFailed, summary)
			e.ctl.Stop()
			escalated = true
			m.log.Warn("Job failed by failure policy", logger.JobID(id), logger.String("summary", summary))
		}
	}

	return m.commit(ctx, e, next, escalated)
}

// Shutdown pauses every attached runner, waits for in-flight fetches to be
// reported and leaves those jobs paused for resumption.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closing.Store(true)

	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.ctl != nil {
			e.ctl.Pause()
			if cur := e.snap.Load(); cur.Status == domain.JobStatusRunning {
				next := cur.Clone()
				next.Status = domain.JobStatusPaused
				if err := m.commit(ctx, e, next, true); err != nil {
					m.log.Error("Failed to pause job on shutdown", logger.JobID(cur.ID), logger.Error(err))
				}
			}
		}
		e.mu.Unlock()
	}

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for job runners: %w", ctx.Err())
	}
}

func (m *Manager) load(ctx context.Context, id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if ok {
		return e, nil
	}

	job, err := m.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, found := m.entries[id]; found {
		return existing, nil
	}
	e = &entry{}
	if job.Status.IsTerminal() {
		e.countedItems = job.ItemsSuccessful
	}
	e.snap.Store(job)
	m.entries[id] = e
	return e, nil
}

// commit persists next and publishes it as the current snapshot. The write
// is not tied to the caller's cancellation.
func (m *Manager) commit(ctx context.Context, e *entry, next *domain.Job, statusChanged bool) error {
	next.UpdatedAt = time.Now().UTC()
	if err := m.jobs.Save(context.WithoutCancel(ctx), next); err != nil {
		return fmt.Errorf("save job %s: %w", next.ID, err)
	}
	e.snap.Store(next)
	if statusChanged {
		m.transitioned(ctx, next)
	}
	return nil
}

func (m *Manager) transitioned(ctx context.Context, job *domain.Job) {
	m.metrics.JobTransition(string(job.Type), string(job.Status))
	if m.events == nil {
		return
	}
	if err := m.events.PublishJobStatus(context.WithoutCancel(ctx), job); err != nil {
		m.log.Warn("Failed to publish job status", logger.JobID(job.ID), logger.Error(err))
	}
}

// updateProgress recomputes next's progress, never moving backwards within
// an attempt.
func (m *Manager) updateProgress(cur, next *domain.Job) {
	next.RecomputeProgress()
	if next.Attempt == cur.Attempt && next.ProgressPercentage < cur.ProgressPercentage {
		next.ProgressPercentage = cur.ProgressPercentage
	}
}

// applySourceStats adds a settled attempt's growth to its source counters.
// Must be called with e.mu held.
func (m *Manager) applySourceStats(ctx context.Context, e *entry, job *domain.Job) {
	ctx = context.WithoutCancel(ctx)
	sourceID, ok := m.sourceFor(ctx, job)
	if !ok {
		return
	}
	unlock := m.sourceLocks.lock(sourceID)
	defer unlock()

	stats := domain.SourceCrawlStats{
		ContentFound:    max(0, job.ItemsSuccessful-e.countedItems),
		FilesDownloaded: max(0, e.files-e.countedFiles),
		CrawledAt:       time.Now().UTC(),
	}
	if err := m.sources.ApplyCrawlStats(ctx, sourceID, stats); err != nil {
		m.log.Warn("Failed to update source stats",
			logger.JobID(job.ID),
			logger.String("source_id", sourceID),
			logger.Error(err),
		)
		return
	}
	e.countedItems = max(e.countedItems, job.ItemsSuccessful)
	e.countedFiles = max(e.countedFiles, e.files)
}

// sourceFor resolves the source a job crawls: its source_id, or else the
// registered source matching the earliest of its target urls.
func (m *Manager) sourceFor(ctx context.Context, job *domain.Job) (string, bool) {
	if job.SourceID != nil {
		return *job.SourceID, true
	}
	if len(job.TargetURLs) == 0 {
		return "", false
	}

	sources, err := m.sources.ListByURLs(ctx, job.TargetURLs)
	if err != nil {
		m.log.Warn("Failed to resolve job source", logger.JobID(job.ID), logger.Error(err))
		return "", false
	}
	byURL := make(map[string]string, len(sources))
	for _, s := range sources {
		byURL[s.URL] = s.ID
	}
	for _, u := range job.TargetURLs {
		if id, found := byURL[u]; found {
			return id, true
		}
	}
	return "", false
}

// endAttempt moves job to a terminal status.
func endAttempt(job *domain.Job, status domain.JobStatus, summary string) {
	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now
	job.CanRetry = domain.CanRetry(status, job.CompletedOverride)
	if summary != "" {
		job.ErrorSummary = &summary
	}
}

func newLogEntry(job *domain.Job, pageURL string, o domain.Outcome) *domain.JobLogEntry {
	e := &domain.JobLogEntry{
		JobID:        job.ID,
		Attempt:      job.Attempt,
		URL:          pageURL,
		ContentType:  o.ContentType,
		SizeBytes:    o.SizeBytes,
		QualityScore: o.QualityScore,
		Errors:       domain.ErrorList{},
		Timestamp:    time.Now().UTC(),
	}
	if o.Title != "" {
		title := o.Title
		e.Title = &title
	}

	switch o.Kind {
	case domain.OutcomeSuccess:
		e.Status = domain.LogStatusCompleted
	case domain.OutcomeFailure:
		e.Status = domain.LogStatusFailed
	case domain.OutcomeSkipped:
		e.Status = domain.LogStatusSkipped
		e.Errors = append(e.Errors, "skipped: "+o.Reason)
	}
	if o.Err != nil {
		e.Errors = append(e.Errors, o.Err.Error())
	}
	return e
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
