package job_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
)

type crawlerFunc func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error)

func (f crawlerFunc) Run(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
	return f(ctx, p)
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemJobs() *memJobs { return &memJobs{jobs: make(map[string]*domain.Job)} }

func (r *memJobs) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return j.Clone(), nil
}

func (r *memJobs) Save(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, domain.ErrNotFound)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memJobs) List(_ context.Context, f database.JobFilter) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0)
	for _, j := range r.jobs {
		if f.Status == "" || string(j.Status) == f.Status {
			out = append(out, j.Clone())
		}
	}
	return out, nil
}

func (r *memJobs) Count(ctx context.Context, f database.JobFilter) (int, error) {
	jobs, err := r.List(ctx, f)
	return len(jobs), err
}

func (r *memJobs) MarkInterrupted(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, j := range r.jobs {
		if j.Status == domain.JobStatusRunning {
			j.Status = domain.JobStatusPaused
			n++
		}
	}
	return n, nil
}

func (r *memJobs) HasActiveForSource(_ context.Context, sourceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.SourceID != nil && *j.SourceID == sourceID && j.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memJobs) stored(id string) *domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].Clone()
}

type memLogs struct {
	mu      sync.Mutex
	entries []*domain.JobLogEntry
}

func (r *memLogs) Append(_ context.Context, e *domain.JobLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return nil
}

func (r *memLogs) byJob(jobID string) []*domain.JobLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.JobLogEntry, 0)
	for _, e := range r.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out
}

func (r *memLogs) ListByJob(_ context.Context, jobID string, page, limit int) ([]*domain.JobLogEntry, error) {
	all := r.byJob(jobID)
	start := (page - 1) * limit
	if start >= len(all) {
		return []*domain.JobLogEntry{}, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func (r *memLogs) CountByJob(_ context.Context, jobID string) (int, error) {
	return len(r.byJob(jobID)), nil
}

func (r *memLogs) VisitedURLs(_ context.Context, jobID string, attempt int) ([]string, error) {
	out := make([]string, 0)
	for _, e := range r.byJob(jobID) {
		if e.Attempt == attempt {
			out = append(out, e.URL)
		}
	}
	return out, nil
}

type memSources struct {
	mu      sync.Mutex
	sources map[string]*domain.Source
	applied []sourceStats
}

type sourceStats struct {
	sourceID string
	domain.SourceCrawlStats
}

func newMemSources(sources ...*domain.Source) *memSources {
	r := &memSources{sources: make(map[string]*domain.Source)}
	for _, s := range sources {
		r.sources[s.ID] = s
	}
	return r
}

func (r *memSources) Create(_ context.Context, s *domain.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID] = s
	return nil
}

func (r *memSources) GetByID(_ context.Context, id string) (*domain.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (r *memSources) List(context.Context, database.SourceFilter) ([]*domain.Source, error) {
	return nil, nil
}

func (r *memSources) Count(context.Context, database.SourceFilter) (int, error) { return 0, nil }

func (r *memSources) Update(context.Context, *domain.Source) error { return nil }

func (r *memSources) Delete(context.Context, string, bool) error { return nil }

func (r *memSources) ApplyCrawlStats(_ context.Context, id string, stats domain.SourceCrawlStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, sourceStats{sourceID: id, SourceCrawlStats: stats})
	return nil
}

func (r *memSources) ListByURLs(_ context.Context, urls []string) ([]*domain.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Source, 0)
	for _, s := range r.sources {
		if slices.Contains(urls, s.URL) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSources) ListAutoCrawl(context.Context) ([]*domain.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Source, 0)
	for _, s := range r.sources {
		if s.AutoCrawl {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSources) UpsertByURL(context.Context, []*domain.Source) (int, int, error) {
	return 0, 0, nil
}

func (r *memSources) appliedStats() []sourceStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sourceStats(nil), r.applied...)
}

// totals sums what has been added to one source's counters.
func (r *memSources) totals(id string) (content, files int) {
	for _, a := range r.appliedStats() {
		if a.sourceID == id {
			content += a.ContentFound
			files += a.FilesDownloaded
		}
	}
	return content, files
}

type memConfigs struct {
	configs map[string]*domain.ScrapingConfig
}

func (r *memConfigs) Create(context.Context, *domain.ScrapingConfig) error { return nil }

func (r *memConfigs) GetByID(_ context.Context, id string) (*domain.ScrapingConfig, error) {
	c, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("scraping config %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (r *memConfigs) List(context.Context) ([]*domain.ScrapingConfig, error) { return nil, nil }

func (r *memConfigs) Update(context.Context, *domain.ScrapingConfig) error { return nil }

func (r *memConfigs) Delete(context.Context, string) error { return nil }

type statusRecorder struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
}

func (r *statusRecorder) PublishJobStatus(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, job.Status)
	return nil
}

func (r *statusRecorder) seen() []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.JobStatus(nil), r.statuses...)
}
