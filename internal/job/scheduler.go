package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const defaultScheduleSpec = "@daily"

// AutoCrawlSources lists the sources flagged for scheduled crawling.
type AutoCrawlSources interface {
	ListAutoCrawl(ctx context.Context) ([]*domain.Source, error)
}

// Launcher creates and starts jobs.
type Launcher interface {
	Create(ctx context.Context, req CreateRequest) (*domain.Job, error)
	Start(ctx context.Context, id string) (*domain.Job, error)
	ActiveForSource(ctx context.Context, sourceID string) (bool, error)
}

// SchedulerOptions configures an AutoCrawlScheduler.
type SchedulerOptions struct {
	// DefaultSpec is used for sources without a crawl_schedule.
	DefaultSpec string
	Depth       int
	Filters     []string
}

// AutoCrawlScheduler creates and starts a scheduled_scrape job per
// auto-crawl source on that source's cron schedule.
type AutoCrawlScheduler struct {
	sources  AutoCrawlSources
	launcher Launcher
	opts     SchedulerOptions
	log      logger.Logger

	cron   *cron.Cron
	parser cron.Parser

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewAutoCrawlScheduler creates a stopped scheduler.
func NewAutoCrawlScheduler(
	sources AutoCrawlSources,
	launcher Launcher,
	opts SchedulerOptions,
	log logger.Logger,
) *AutoCrawlScheduler {
	if opts.DefaultSpec == "" {
		opts.DefaultSpec = defaultScheduleSpec
	}
	parser := newScheduleParser()
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoCrawlScheduler{
		sources:  sources,
		launcher: launcher,
		opts:     opts,
		log:      log,
		cron:     cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		parser:   parser,
		entries:  make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func newScheduleParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSchedule reports whether spec is a usable crawl_schedule.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := newScheduleParser().Parse(spec); err != nil {
		return &domain.ValidationError{Field: "crawl_schedule", Message: err.Error()}
	}
	return nil
}

// Start loads the schedules and starts the cron loop.
func (s *AutoCrawlScheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Auto-crawl scheduler started", logger.Int("sources", s.Scheduled()))
	return nil
}

// Stop halts the cron loop and waits for a running trigger to return.
func (s *AutoCrawlScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Auto-crawl scheduler stopped")
}

// Reload replaces every schedule with the current auto-crawl sources.
// Sources with an invalid schedule are logged and skipped.
func (s *AutoCrawlScheduler) Reload(ctx context.Context) error {
	sources, err := s.sources.ListAutoCrawl(ctx)
	if err != nil {
		return fmt.Errorf("reload auto-crawl schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	for _, src := range sources {
		spec := src.CrawlSchedule
		if spec == "" {
			spec = s.opts.DefaultSpec
		}
		if _, parseErr := s.parser.Parse(spec); parseErr != nil {
			s.log.Error("Invalid crawl schedule",
				logger.String("source_id", src.ID),
				logger.String("schedule", spec),
				logger.Error(parseErr),
			)
			continue
		}

		source := src
		entryID, addErr := s.cron.AddFunc(spec, func() { s.trigger(s.ctx, source) })
		if addErr != nil {
			s.log.Error("Failed to schedule source", logger.String("source_id", src.ID), logger.Error(addErr))
			continue
		}
		s.entries[src.ID] = entryID
	}
	return nil
}

// Scheduled returns how many sources have a schedule.
func (s *AutoCrawlScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// trigger starts a crawl of source unless one is already active.
func (s *AutoCrawlScheduler) trigger(ctx context.Context, source *domain.Source) {
	log := s.log.With(logger.String("source_id", source.ID), logger.URL(source.URL))

	active, err := s.launcher.ActiveForSource(ctx, source.ID)
	if err != nil {
		log.Error("Failed to check active jobs", logger.Error(err))
		return
	}
	if active {
		log.Info("Skipping scheduled crawl, a job is already active")
		return
	}

	depth := s.opts.Depth
	sourceID := source.ID
	job, err := s.launcher.Create(ctx, CreateRequest{
		Name:               "Scheduled crawl: " + source.Name,
		Type:               string(domain.JobTypeScheduledScrape),
		SourceID:           &sourceID,
		TargetURLs:         []string{source.URL},
		ScrapingDepth:      &depth,
		ContentTypeFilters: s.opts.Filters,
		Priority:           source.Priority,
	})
	if err != nil {
		log.Error("Failed to create scheduled job", logger.Error(err))
		return
	}
	if _, startErr := s.launcher.Start(ctx, job.ID); startErr != nil {
		log.Error("Failed to start scheduled job", logger.JobID(job.ID), logger.Error(startErr))
		return
	}
	log.Info("Scheduled crawl started", logger.JobID(job.ID))
}
