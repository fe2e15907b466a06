package job_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/curator/internal/frontier"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

type harness struct {
	manager *job.Manager
	jobs    *memJobs
	logs    *memLogs
	sources *memSources
	events  *statusRecorder
}

func newHarness(t *testing.T, c job.Crawler) *harness {
	t.Helper()
	return newHarnessWithConfig(t, c, job.Config{})
}

func newHarnessWithConfig(t *testing.T, c job.Crawler, cfg job.Config) *harness {
	t.Helper()

	h := &harness{
		jobs:    newMemJobs(),
		logs:    &memLogs{},
		sources: newMemSources(&domain.Source{ID: "src-1", URL: "https://example.edu/", Name: "Example"}),
		events:  &statusRecorder{},
	}
	configs := &memConfigs{configs: map[string]*domain.ScrapingConfig{
		"cfg-1": {
			ID:                 "cfg-1",
			Name:               "pdf deep",
			ScrapingDepth:      3,
			ContentTypeFilters: domain.StringArray{"pdf"},
			PolitenessDelayMS:  250,
			MaxConcurrency:     2,
		},
	}}
	h.manager = job.NewManager(job.Deps{
		Jobs:    h.jobs,
		Logs:    h.logs,
		Sources: h.sources,
		Configs: configs,
		Crawler: c,
		Events:  h.events,
		Logger:  logger.NewNop(),
	}, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.manager.Shutdown(ctx)
	})
	return h
}

func (h *harness) waitStatus(t *testing.T, id string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var last *domain.Job
	require.Eventually(t, func() bool {
		j, err := h.manager.Get(context.Background(), id)
		require.NoError(t, err)
		last = j
		return j.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job never reached %s", want)
	return last
}

func pdfURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.edu/doc-%d.pdf", i)
	}
	return urls
}

// scriptedCrawler reports urls as found and then one outcome per url from
// outcomeFor, honouring the control gate between urls.
func scriptedCrawler(urls []string, outcomeFor func(i int) domain.Outcome, hook func(i int)) job.Crawler {
	return crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		if err := p.Reporter.ReportDiscovered(ctx, p.Job.ID, urls); err != nil {
			return nil, err
		}
		res := &fetcher.Result{Seeds: len(urls)}
		for i, u := range urls {
			if !p.Control.Proceed(ctx) {
				res.Stopped = true
				return res, nil
			}
			o := outcomeFor(i)
			if o.Kind == domain.OutcomeFailure {
				res.SeedFailures++
			}
			if err := p.Reporter.ReportOutcome(ctx, p.Job.ID, u, o); err != nil {
				return res, err
			}
			if hook != nil {
				hook(i)
			}
		}
		return res, nil
	})
}

func success(int) domain.Outcome { return domain.Success([]byte("%PDF-1.4"), "pdf") }

func failure(int) domain.Outcome {
	return domain.Failure(&domain.FetchError{Kind: domain.FetchErrorHTTPStatus, StatusCode: http.StatusNotFound})
}

func TestManager_CreateValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scriptedCrawler(nil, success, nil))
	ctx := context.Background()
	neg := -1

	tests := []struct {
		name  string
		req   job.CreateRequest
		field string
	}{
		{"empty targets", job.CreateRequest{}, "target_urls"},
		{"relative url", job.CreateRequest{TargetURLs: []string{"/docs"}}, "target_urls"},
		{"ftp url", job.CreateRequest{TargetURLs: []string{"ftp://example.edu/a"}}, "target_urls"},
		{"unknown type", job.CreateRequest{Type: "mirror", TargetURLs: []string{"https://example.edu"}}, "type"},
		{"negative depth", job.CreateRequest{TargetURLs: []string{"https://example.edu"}, ScrapingDepth: &neg}, "scraping_depth"},
		{"unknown filter", job.CreateRequest{TargetURLs: []string{"https://example.edu"}, ContentTypeFilters: []string{"mp4"}}, "content_type_filters"},
		{"unknown option", job.CreateRequest{TargetURLs: []string{"https://example.edu"}, Options: map[string]any{"turbo": true}}, "options"},
		{"missing config", job.CreateRequest{TargetURLs: []string{"https://example.edu"}, ConfigID: ptr("nope")}, "config_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.manager.Create(ctx, tt.req)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestManager_CreateFillsFromConfigAndSource(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scriptedCrawler(nil, success, nil))
	j, err := h.manager.Create(context.Background(), job.CreateRequest{
		Type:     "deep_crawl",
		SourceID: ptr("src-1"),
		ConfigID: ptr("cfg-1"),
		Options:  map[string]any{"max_pages": "40", "same_host_only": false},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPending, j.Status)
	assert.Equal(t, domain.StringArray{"https://example.edu/"}, j.TargetURLs)
	assert.Equal(t, 3, j.ScrapingDepth)
	assert.Equal(t, domain.StringArray{"pdf"}, j.ContentTypeFilters)
	assert.Equal(t, 250, j.Options.PolitenessDelayMS)
	assert.Equal(t, 2, j.Options.MaxConcurrency)
	assert.Equal(t, 40, j.Options.MaxPages)
	assert.False(t, j.Options.SameHost())
	assert.Equal(t, 1, j.Attempt)
	assert.False(t, j.CanRetry)
}

func TestManager_InvalidTransitions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scriptedCrawler(nil, success, nil))
	ctx := context.Background()
	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://example.edu/a.pdf"}})
	require.NoError(t, err)

	var ise *domain.InvalidStateError
	_, err = h.manager.Pause(ctx, j.ID)
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, domain.JobStatusPending, ise.From)

	_, err = h.manager.Stop(ctx, j.ID)
	require.ErrorAs(t, err, &ise)

	_, err = h.manager.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_ThreeSeedsOne404(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.pdf", "/b.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 body"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	crawler := fetcher.NewCrawler(
		fetcher.NewHTTPFetcher(server.Client(), "CuratorTest/1.0"),
		nil,
		frontier.NewMemoryStore(),
		nil,
		nil,
		logger.NewNop(),
		fetcher.CrawlerConfig{},
	)
	h := newHarness(t, crawler)
	ctx := context.Background()

	depth := 1
	j, err := h.manager.Create(ctx, job.CreateRequest{
		Type:               "bulk_scrape",
		TargetURLs:         []string{server.URL + "/a.pdf", server.URL + "/b.pdf", server.URL + "/c.pdf"},
		ScrapingDepth:      &depth,
		ContentTypeFilters: []string{"pdf"},
	})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	done := h.waitStatus(t, j.ID, domain.JobStatusCompleted)
	assert.Equal(t, 3, done.ItemsFound)
	assert.Equal(t, 3, done.ItemsProcessed)
	assert.Equal(t, 2, done.ItemsSuccessful)
	assert.Equal(t, 1, done.ItemsFailed)
	assert.InDelta(t, 100.0, done.ProgressPercentage, 0.001)
	assert.NotNil(t, done.CompletedAt)
	assert.False(t, done.CanRetry)

	logs := h.logs.byJob(j.ID)
	require.Len(t, logs, 3)
	failed := 0
	for _, l := range logs {
		if l.Status == domain.LogStatusFailed {
			failed++
			assert.Equal(t, server.URL+"/c.pdf", l.URL)
			assert.NotEmpty(t, l.Errors)
		}
	}
	assert.Equal(t, 1, failed)

	stored := h.jobs.stored(j.ID)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	require.Eventually(t, func() bool { return len(h.events.seen()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.JobStatus{
		domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusCompleted,
	}, h.events.seen())
}

func TestManager_PauseResume(t *testing.T) {
	t.Parallel()

	step := make(chan struct{})
	urls := pdfURLs(3)
	h := newHarness(t, scriptedCrawler(urls, success, func(i int) {
		if i == 0 {
			<-step
		}
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, _ := h.manager.Get(ctx, j.ID)
		return cur.ItemsProcessed == 1
	}, 5*time.Second, 5*time.Millisecond)

	paused, err := h.manager.Pause(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPaused, paused.Status)
	close(step)

	time.Sleep(50 * time.Millisecond)
	cur, err := h.manager.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.ItemsProcessed, "paused runner must not continue")

	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	done := h.waitStatus(t, j.ID, domain.JobStatusCompleted)
	assert.Equal(t, 3, done.ItemsProcessed)
	assert.Len(t, h.logs.byJob(j.ID), 3)
}

func TestManager_PausedJobFreesRunnerSlot(t *testing.T) {
	t.Parallel()

	aURLs := pdfURLs(3)
	bURLs := []string{"https://example.edu/other.pdf"}
	step := make(chan struct{})
	var aID string

	h := newHarnessWithConfig(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		urls := bURLs
		if p.Job.ID == aID {
			urls = aURLs
		}
		if err := p.Reporter.ReportDiscovered(ctx, p.Job.ID, urls); err != nil {
			return nil, err
		}
		res := &fetcher.Result{Seeds: len(urls)}
		for i, u := range urls {
			if !p.Control.Proceed(ctx) {
				res.Stopped = true
				return res, nil
			}
			if err := p.Reporter.ReportOutcome(ctx, p.Job.ID, u, success(i)); err != nil {
				return res, err
			}
			if p.Job.ID == aID && i == 0 {
				<-step
			}
		}
		return res, nil
	}), job.Config{MaxJobs: 1})
	ctx := context.Background()

	a, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: aURLs})
	require.NoError(t, err)
	aID = a.ID
	b, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: bURLs})
	require.NoError(t, err)

	_, err = h.manager.Start(ctx, a.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		cur, _ := h.manager.Get(ctx, a.ID)
		return cur.ItemsProcessed == 1
	}, 5*time.Second, 5*time.Millisecond)

	_, err = h.manager.Pause(ctx, a.ID)
	require.NoError(t, err)
	close(step)

	_, err = h.manager.Start(ctx, b.ID)
	require.NoError(t, err)
	doneB := h.waitStatus(t, b.ID, domain.JobStatusCompleted)
	assert.Equal(t, 1, doneB.ItemsProcessed)

	cur, err := h.manager.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPaused, cur.Status)
	assert.Equal(t, 1, cur.ItemsProcessed)

	_, err = h.manager.Start(ctx, a.ID)
	require.NoError(t, err)
	doneA := h.waitStatus(t, a.ID, domain.JobStatusCompleted)
	assert.Equal(t, 3, doneA.ItemsProcessed)
}

func TestManager_StopThenRetry(t *testing.T) {
	t.Parallel()

	step := make(chan struct{})
	var attempts atomic.Int32
	urls := pdfURLs(4)
	h := newHarness(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		n := attempts.Add(1)
		if n == 1 {
			if err := p.Reporter.ReportDiscovered(ctx, p.Job.ID, urls); err != nil {
				return nil, err
			}
		}
		res := &fetcher.Result{Seeds: len(urls)}
		for i, u := range urls {
			if !p.Control.Proceed(ctx) {
				res.Stopped = true
				return res, nil
			}
			if err := p.Reporter.ReportOutcome(ctx, p.Job.ID, u, success(i)); err != nil {
				return res, err
			}
			if n == 1 && i == 1 {
				<-step
			}
		}
		return res, nil
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls, SourceID: ptr("src-1")})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, _ := h.manager.Get(ctx, j.ID)
		return cur.ItemsProcessed == 2
	}, 5*time.Second, 5*time.Millisecond)

	stopped, err := h.manager.Stop(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusStopped, stopped.Status)
	assert.True(t, stopped.CanRetry)
	close(step)

	var ise *domain.InvalidStateError
	_, err = h.manager.Start(ctx, j.ID)
	require.ErrorAs(t, err, &ise)

	retried, err := h.manager.Retry(ctx, j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Attempt)
	assert.Equal(t, 4, retried.ItemsFound, "found carries over")
	assert.Equal(t, 0, retried.ItemsProcessed)
	assert.False(t, retried.CanRetry)

	done := h.waitStatus(t, j.ID, domain.JobStatusCompleted)
	assert.Equal(t, 4, done.ItemsFound)
	assert.Equal(t, 4, done.ItemsProcessed)
	assert.Equal(t, 4, done.ItemsSuccessful)

	// Logs are appended across attempts, never replaced.
	assert.Len(t, h.logs.byJob(j.ID), 6)

	// One stats update per finished attempt, adding only what the retry
	// found beyond the first attempt.
	require.Eventually(t, func() bool { return len(h.sources.appliedStats()) == 2 }, time.Second, 5*time.Millisecond)
	content, files := h.sources.totals("src-1")
	assert.Equal(t, 4, content)
	assert.Equal(t, 4, files)
}

func TestManager_SourceStatsByTargetURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		return scriptedCrawler(p.Job.TargetURLs, success, nil).Run(ctx, p)
	}))
	ctx := context.Background()

	other, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://unregistered.example.org/a.pdf"}})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, other.ID)
	require.NoError(t, err)
	h.waitStatus(t, other.ID, domain.JobStatusCompleted)

	j, err := h.manager.Create(ctx, job.CreateRequest{
		TargetURLs: []string{"https://example.edu/unlisted.pdf", "https://example.edu/"},
	})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)
	h.waitStatus(t, j.ID, domain.JobStatusCompleted)

	require.Eventually(t, func() bool { return len(h.sources.appliedStats()) == 1 }, time.Second, 5*time.Millisecond)
	applied := h.sources.appliedStats()[0]
	assert.Equal(t, "src-1", applied.sourceID)
	assert.Equal(t, 2, applied.ContentFound)

	// A completed retry re-crawls the same urls and adds nothing new.
	_, err = h.manager.Retry(ctx, j.ID, true)
	require.NoError(t, err)
	h.waitStatus(t, j.ID, domain.JobStatusCompleted)
	require.Eventually(t, func() bool { return len(h.sources.appliedStats()) == 2 }, time.Second, 5*time.Millisecond)
	content, _ := h.sources.totals("src-1")
	assert.Equal(t, 2, content)
}

func TestManager_RetryNotRetryable(t *testing.T) {
	t.Parallel()

	urls := pdfURLs(2)
	h := newHarness(t, scriptedCrawler(urls, success, nil))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)

	var nre *domain.NotRetryableError
	_, err = h.manager.Retry(ctx, j.ID, false)
	require.ErrorAs(t, err, &nre)
	assert.Equal(t, domain.JobStatusPending, nre.Status)

	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)
	done := h.waitStatus(t, j.ID, domain.JobStatusCompleted)

	_, err = h.manager.Retry(ctx, j.ID, false)
	require.ErrorAs(t, err, &nre)

	after, err := h.manager.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, done.ItemsProcessed, after.ItemsProcessed)
	assert.Equal(t, done.ItemsSuccessful, after.ItemsSuccessful)
	assert.Equal(t, done.Attempt, after.Attempt)

	retried, err := h.manager.Retry(ctx, j.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Attempt)
	assert.True(t, retried.CompletedOverride)
	h.waitStatus(t, j.ID, domain.JobStatusCompleted)
}

func TestManager_RetryWhileRunningIsNoop(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := newHarness(t, crawlerFunc(func(context.Context, fetcher.RunParams) (*fetcher.Result, error) {
		<-release
		return &fetcher.Result{}, nil
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://example.edu/a.pdf"}})
	require.NoError(t, err)
	running, err := h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	again, err := h.manager.Retry(ctx, j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, running.Attempt, again.Attempt)
	assert.Equal(t, domain.JobStatusRunning, again.Status)

	close(release)
	h.waitStatus(t, j.ID, domain.JobStatusCompleted)
}

func TestManager_FailureRateEscalates(t *testing.T) {
	t.Parallel()

	urls := pdfURLs(20)
	var stoppedSeen atomic.Bool
	inner := scriptedCrawler(urls, failure, nil)
	h := newHarness(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		res, err := inner.Run(ctx, p)
		stoppedSeen.Store(p.Control.Stopped())
		return res, err
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	failed := h.waitStatus(t, j.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.ErrorSummary)
	assert.Contains(t, *failed.ErrorSummary, "failure rate")
	assert.Equal(t, 5, failed.ItemsProcessed, "escalates at the fifth processed item")
	assert.True(t, failed.CanRetry)

	require.Eventually(t, stoppedSeen.Load, time.Second, 5*time.Millisecond)
}

func TestManager_AllSeedsUnreachable(t *testing.T) {
	t.Parallel()

	urls := pdfURLs(2)
	h := newHarness(t, scriptedCrawler(urls, failure, nil))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	failed := h.waitStatus(t, j.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.ErrorSummary)
	assert.Equal(t, "all seeds unreachable", *failed.ErrorSummary)
}

func TestManager_CrawlerErrorFailsJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t, crawlerFunc(func(context.Context, fetcher.RunParams) (*fetcher.Result, error) {
		return nil, errors.New("frontier store unavailable")
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://example.edu/"}})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	failed := h.waitStatus(t, j.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.ErrorSummary)
	assert.Contains(t, *failed.ErrorSummary, "frontier store unavailable")
}

func TestManager_ConcurrentOutcomesKeepInvariants(t *testing.T) {
	t.Parallel()

	const (
		workers   = 10
		perWorker = 10
	)
	urls := pdfURLs(workers * perWorker)

	h := newHarness(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		if err := p.Reporter.ReportDiscovered(ctx, p.Job.ID, urls); err != nil {
			return nil, err
		}
		var wg sync.WaitGroup
		errs := make(chan error, len(urls))
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWorker {
					idx := w*perWorker + i
					o := success(idx)
					if i%5 == 4 {
						o = failure(idx)
					}
					if err := p.Reporter.ReportOutcome(ctx, p.Job.ID, urls[idx], o); err != nil {
						errs <- err
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			return nil, err
		}
		return &fetcher.Result{Seeds: len(urls)}, nil
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	var (
		violations []string
		last       float64
	)
	for {
		cur, getErr := h.manager.Get(ctx, j.ID)
		require.NoError(t, getErr)
		if cur.Status == domain.JobStatusRunning || cur.Status == domain.JobStatusCompleted {
			if checkErr := cur.CheckCounters(); checkErr != nil {
				violations = append(violations, checkErr.Error())
			}
			if cur.ProgressPercentage < last {
				violations = append(violations, fmt.Sprintf("progress went back from %.2f to %.2f", last, cur.ProgressPercentage))
			}
			last = cur.ProgressPercentage
		}
		if cur.Status.IsTerminal() {
			assert.Equal(t, domain.JobStatusCompleted, cur.Status)
			assert.Equal(t, len(urls), cur.ItemsProcessed)
			assert.Equal(t, 80, cur.ItemsSuccessful)
			assert.Equal(t, 20, cur.ItemsFailed)
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Empty(t, violations)
}

func TestManager_ReportWithoutRunnerRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scriptedCrawler(nil, success, nil))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://example.edu/a.pdf"}})
	require.NoError(t, err)

	var ise *domain.InvalidStateError
	err = h.manager.ReportOutcome(ctx, j.ID, "https://example.edu/a.pdf", success(0))
	require.ErrorAs(t, err, &ise)
	err = h.manager.ReportDiscovered(ctx, j.ID, []string{"https://example.edu/a.pdf"})
	require.ErrorAs(t, err, &ise)
}

func TestManager_ShutdownLeavesJobsPaused(t *testing.T) {
	t.Parallel()

	urls := pdfURLs(3)
	gate := make(chan struct{})
	h := newHarness(t, scriptedCrawler(urls, success, func(i int) {
		if i == 0 {
			<-gate
		}
	}))
	ctx := context.Background()

	j, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: urls})
	require.NoError(t, err)
	_, err = h.manager.Start(ctx, j.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, _ := h.manager.Get(ctx, j.ID)
		return cur.ItemsProcessed == 1
	}, 5*time.Second, 5*time.Millisecond)

	shutdownDone := make(chan error, 1)
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownDone <- h.manager.Shutdown(sctx)
	}()

	require.Eventually(t, func() bool {
		return h.jobs.stored(j.ID).Status == domain.JobStatusPaused
	}, 5*time.Second, 5*time.Millisecond)
	close(gate)
	require.NoError(t, <-shutdownDone)

	stored := h.jobs.stored(j.ID)
	assert.Equal(t, domain.JobStatusPaused, stored.Status)
	assert.Equal(t, 1, stored.ItemsProcessed)

	_, err = h.manager.Start(ctx, j.ID)
	require.ErrorIs(t, err, job.ErrShuttingDown)
}

func TestManager_ResumeAfterRestartSkipsVisited(t *testing.T) {
	t.Parallel()

	urls := pdfURLs(3)
	var restored atomic.Int32
	h := newHarness(t, crawlerFunc(func(ctx context.Context, p fetcher.RunParams) (*fetcher.Result, error) {
		restored.Store(int32(len(p.Visited)))
		return &fetcher.Result{}, nil
	}))
	ctx := context.Background()

	// A job a previous process left running after logging one url.
	now := time.Now().UTC()
	require.NoError(t, h.jobs.Create(ctx, &domain.Job{
		ID:             "job-restart",
		Type:           domain.JobTypeBulkScrape,
		Status:         domain.JobStatusRunning,
		TargetURLs:     urls,
		Attempt:        1,
		ItemsFound:     3,
		ItemsProcessed: 1,
		StartedAt:      &now,
	}))
	require.NoError(t, h.logs.Append(ctx, &domain.JobLogEntry{JobID: "job-restart", Attempt: 1, URL: urls[0]}))

	require.NoError(t, h.manager.Recover(ctx))
	assert.Equal(t, domain.JobStatusPaused, h.jobs.stored("job-restart").Status)

	_, err := h.manager.Start(ctx, "job-restart")
	require.NoError(t, err)
	h.waitStatus(t, "job-restart", domain.JobStatusCompleted)
	assert.Equal(t, int32(1), restored.Load())
}

func TestManager_List(t *testing.T) {
	t.Parallel()

	h := newHarness(t, scriptedCrawler(nil, success, nil))
	ctx := context.Background()
	for range 3 {
		_, err := h.manager.Create(ctx, job.CreateRequest{TargetURLs: []string{"https://example.edu/"}})
		require.NoError(t, err)
	}

	page, err := h.manager.List(ctx, job.ListFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, 20, page.Limit)

	_, err = h.manager.List(ctx, job.ListFilter{Status: "sleeping"})
	assert.True(t, domain.IsValidation(err))
}

func ptr[T any](v T) *T { return &v }
