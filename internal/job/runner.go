package job

import (
	"context"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// launch attaches a new runner to e. Must be called with e.mu held.
// resume keeps the per-attempt file tally of a runner lost to a restart.
func (m *Manager) launch(e *entry, job *domain.Job, visited []string, resume bool) {
	ctl := fetcher.NewControl()
	done := make(chan struct{})
	e.ctl = ctl
	e.done = done
	e.consecutive = 0
	if !resume {
		e.files = 0
	}

	m.wg.Add(1)
	go m.run(e, job.Clone(), ctl, done, visited)
}

func (m *Manager) run(e *entry, job *domain.Job, ctl *fetcher.Control, done chan struct{}, visited []string) {
	defer m.wg.Done()
	defer close(done)

	log := m.log.With(logger.JobID(job.ID), logger.Int("attempt", job.Attempt))

	select {
	case m.slots <- struct{}{}:
	case <-ctl.Done():
		m.finish(e, nil, nil, log)
		return
	case <-m.ctx.Done():
		m.finish(e, nil, m.ctx.Err(), log)
		return
	}
	// A paused runner hands its slot to other jobs while parked.
	ctl.SetSlotHooks(
		func() { <-m.slots },
		func(ctx context.Context) bool {
			select {
			case m.slots <- struct{}{}:
				return true
			case <-ctl.Done():
				return false
			case <-ctx.Done():
				return false
			}
		},
	)
	defer func() {
		if !ctl.SlotReleased() {
			<-m.slots
		}
	}()

	m.metrics.RunnerStarted()
	defer m.metrics.RunnerFinished()

	log.Info("Job runner started",
		logger.Int("seeds", len(job.TargetURLs)),
		logger.Int("depth", job.ScrapingDepth),
		logger.Int("restored_visited", len(visited)),
	)

	res, err := m.crawler.Run(m.ctx, fetcher.RunParams{
		Job:      job,
		Control:  ctl,
		Reporter: m,
		Visited:  visited,
	})
	m.finish(e, res, err, log)
}

// finish detaches the runner and settles the attempt. Jobs already stopped
// or failed keep their status; the rest complete, or fail when the crawler
// broke or no seed could be fetched.
func (m *Manager) finish(e *entry, res *fetcher.Result, runErr error, log logger.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctl = nil
	e.done = nil

	if m.closing.Load() {
		log.Info("Job runner parked for shutdown")
		return
	}

	ctx := context.Background()
	cur := e.snap.Load()
	if cur.Status.IsTerminal() {
		m.applySourceStats(ctx, e, cur)
		log.Info("Job runner finished", logger.String("status", string(cur.Status)))
		return
	}

	next := cur.Clone()
	switch {
	case runErr != nil:
		endAttempt(next, domain.JobStatusFailed, runErr.Error())
	case res != nil && res.Seeds > 0 && res.SeedFailures == res.Seeds && next.ItemsSuccessful == 0:
		endAttempt(next, domain.JobStatusFailed, summaryAllSeedsUnreachable)
	default:
		endAttempt(next, domain.JobStatusCompleted, "")
	}

	if err := m.commit(ctx, e, next, true); err != nil {
		log.Error("Failed to persist finished job", logger.Error(err))
		e.snap.Store(next)
	}
	m.applySourceStats(ctx, e, next)

	log.Info("Job runner finished",
		logger.String("status", string(next.Status)),
		logger.Int("items_found", next.ItemsFound),
		logger.Int("items_processed", next.ItemsProcessed),
		logger.Int("items_successful", next.ItemsSuccessful),
		logger.Int("items_failed", next.ItemsFailed),
	)
}
