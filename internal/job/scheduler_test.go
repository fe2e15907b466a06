package job_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

type fakeLauncher struct {
	mu      sync.Mutex
	active  bool
	created []job.CreateRequest
	started []string
}

func (l *fakeLauncher) Create(_ context.Context, req job.CreateRequest) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, req)
	return &domain.Job{ID: "job-scheduled"}, nil
}

func (l *fakeLauncher) Start(_ context.Context, id string) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, id)
	return &domain.Job{ID: id, Status: domain.JobStatusRunning}, nil
}

func (l *fakeLauncher) ActiveForSource(context.Context, string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, nil
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	assert.NoError(t, job.ValidateSchedule(""))
	assert.NoError(t, job.ValidateSchedule("@daily"))
	assert.NoError(t, job.ValidateSchedule("30 2 * * 1-5"))
	assert.True(t, domain.IsValidation(job.ValidateSchedule("every tuesday")))
}

func TestAutoCrawlScheduler_ReloadSkipsInvalid(t *testing.T) {
	t.Parallel()

	sources := newMemSources(
		&domain.Source{ID: "a", URL: "https://a.example/", AutoCrawl: true},
		&domain.Source{ID: "b", URL: "https://b.example/", AutoCrawl: true, CrawlSchedule: "0 3 * * *"},
		&domain.Source{ID: "c", URL: "https://c.example/", AutoCrawl: true, CrawlSchedule: "not a schedule"},
		&domain.Source{ID: "d", URL: "https://d.example/"},
	)
	s := job.NewAutoCrawlScheduler(sources, &fakeLauncher{}, job.SchedulerOptions{}, logger.NewNop())

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2, s.Scheduled())

	// Reload replaces rather than accumulates.
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2, s.Scheduled())
}

func TestAutoCrawlScheduler_TriggerCreatesAndStarts(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	s := job.NewAutoCrawlScheduler(newMemSources(), launcher, job.SchedulerOptions{
		Depth:   2,
		Filters: []string{"pdf"},
	}, logger.NewNop())

	s.Trigger(context.Background(), &domain.Source{ID: "src-9", Name: "Exam Board", URL: "https://exams.example/", Priority: 7})

	require.Len(t, launcher.created, 1)
	req := launcher.created[0]
	assert.Equal(t, string(domain.JobTypeScheduledScrape), req.Type)
	assert.Equal(t, []string{"https://exams.example/"}, req.TargetURLs)
	assert.Equal(t, "src-9", *req.SourceID)
	assert.Equal(t, 2, *req.ScrapingDepth)
	assert.Equal(t, 7, req.Priority)
	assert.Equal(t, []string{"job-scheduled"}, launcher.started)
}

func TestAutoCrawlScheduler_TriggerSkipsActiveSource(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{active: true}
	s := job.NewAutoCrawlScheduler(newMemSources(), launcher, job.SchedulerOptions{}, logger.NewNop())

	s.Trigger(context.Background(), &domain.Source{ID: "src-9", URL: "https://exams.example/"})

	assert.Empty(t, launcher.created)
	assert.Empty(t, launcher.started)
}
