package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/events"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/curator/internal/importer"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
	"github.com/jonesrussell/north-cloud/curator/internal/pipeline"
	"github.com/jonesrussell/north-cloud/curator/internal/query"
	"github.com/jonesrussell/north-cloud/curator/internal/search"
)

const recoverTimeout = 30 * time.Second

// InfraComponents are the optional external integrations.
type InfraComponents struct {
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Redis     *redis.Client
	Publisher *events.Publisher
	// Indexer is nil when the Elasticsearch mirror is disabled.
	Indexer *search.Indexer
}

// SetupInfrastructure builds the metrics registry and connects to Redis and
// Elasticsearch when enabled. A disabled or unreachable integration is logged
// and skipped; the service runs without it.
func SetupInfrastructure(ctx context.Context, cfg *config.Config, log logger.Logger) *InfraComponents {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra := &InfraComponents{
		Registry: reg,
		Metrics:  metrics.New(reg),
	}

	if cfg.Redis.Enabled {
		client, err := events.NewClient(events.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, events disabled", logger.Error(err))
		} else {
			infra.Redis = client
			infra.Publisher = events.NewPublisher(client, cfg.Redis.Stream, log)
			log.Info("Redis events enabled",
				logger.String("address", cfg.Redis.Address),
				logger.String("stream", cfg.Redis.Stream),
			)
		}
	}

	if cfg.Elasticsearch.Enabled {
		infra.Indexer = setupIndexer(ctx, cfg.Elasticsearch, log)
	}

	return infra
}

func setupIndexer(ctx context.Context, cfg config.ElasticsearchConfig, log logger.Logger) *search.Indexer {
	client, err := search.NewClient(search.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		Index:    cfg.Index,
	})
	if err != nil {
		log.Warn("Elasticsearch client failed, search mirror disabled", logger.Error(err))
		return nil
	}

	indexer := search.NewIndexer(client, cfg.Index, log)
	if ensureErr := indexer.EnsureIndex(ctx); ensureErr != nil {
		log.Warn("Failed to ensure content index, will retry on first write",
			logger.String("index", cfg.Index),
			logger.Error(ensureErr),
		)
	}
	log.Info("Elasticsearch mirror enabled", logger.String("index", cfg.Index))
	return indexer
}

// ServiceComponents are the application services.
type ServiceComponents struct {
	Pipeline  *pipeline.Pipeline
	Crawler   *fetcher.Crawler
	Jobs      *job.Manager
	Scheduler *job.AutoCrawlScheduler
	Query     *query.Engine
	Importer  *importer.Importer
}

// SetupServices builds the content pipeline, crawler and job manager, then
// pauses jobs a previous process left running and starts the auto-crawl
// scheduler when enabled.
func SetupServices(
	ctx context.Context,
	cfg *config.Config,
	db *DatabaseComponents,
	infra *InfraComponents,
	log logger.Logger,
) (*ServiceComponents, error) {
	pipe := newPipeline(cfg, db, infra, log)
	crawler := newCrawler(cfg.Crawler, db, pipe, infra.Metrics, log)

	var statusEvents job.StatusPublisher
	if infra.Publisher != nil {
		statusEvents = infra.Publisher
	}

	manager := job.NewManager(job.Deps{
		Jobs:    db.Jobs,
		Logs:    db.JobLogs,
		Sources: db.Sources,
		Configs: db.Configs,
		Crawler: crawler,
		Metrics: infra.Metrics,
		Events:  statusEvents,
		Logger:  log.With(logger.String("component", "job_manager")),
	}, job.Config{
		MaxJobs: cfg.Crawler.MaxJobs,
		Policy:  job.DefaultFailurePolicy,
	})

	recoverCtx, cancel := context.WithTimeout(ctx, recoverTimeout)
	defer cancel()
	if err := manager.Recover(recoverCtx); err != nil {
		return nil, fmt.Errorf("recover interrupted jobs: %w", err)
	}

	svc := &ServiceComponents{
		Pipeline: pipe,
		Crawler:  crawler,
		Jobs:     manager,
		Query:    query.NewEngine(db.Content, log),
		Importer: importer.New(db.Sources, log),
	}

	if cfg.Scheduler.AutoCrawlEnabled {
		scheduler := job.NewAutoCrawlScheduler(db.Sources, manager, job.SchedulerOptions{
			DefaultSpec: cfg.Scheduler.DefaultSpec,
		}, log.With(logger.String("component", "scheduler")))
		if err := scheduler.Start(ctx); err != nil {
			return nil, fmt.Errorf("start auto-crawl scheduler: %w", err)
		}
		svc.Scheduler = scheduler
	}

	return svc, nil
}

// NewPipeline builds the content pipeline on its own, for the CLI
// maintenance commands.
func NewPipeline(cfg *config.Config, db *DatabaseComponents, infra *InfraComponents, log logger.Logger) *pipeline.Pipeline {
	return newPipeline(cfg, db, infra, log)
}

func newPipeline(cfg *config.Config, db *DatabaseComponents, infra *InfraComponents, log logger.Logger) *pipeline.Pipeline {
	deps := pipeline.Deps{
		Store:   db.Content,
		Metrics: infra.Metrics,
		Logger:  log.With(logger.String("component", "pipeline")),
	}
	if infra.Indexer != nil {
		deps.Indexer = infra.Indexer
	}
	if infra.Publisher != nil {
		deps.Events = infra.Publisher
	}
	if cfg.Anthropic.APIKey != "" {
		deps.Summarizer = pipeline.NewAnthropicSummarizer(pipeline.AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			BaseURL:   cfg.Anthropic.BaseURL,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}, log)
		log.Info("AI summaries enabled", logger.String("model", cfg.Anthropic.Model))
	}

	return pipeline.New(deps, domain.ValuableRule{
		Threshold:       cfg.Scoring.ValuableThreshold,
		ConfidenceFloor: cfg.Scoring.ConfidenceFloor,
	})
}

func newCrawler(
	cfg config.CrawlerConfig,
	db *DatabaseComponents,
	handler fetcher.ItemHandler,
	m *metrics.Metrics,
	log logger.Logger,
) *fetcher.Crawler {
	client := &http.Client{Timeout: cfg.RequestTimeout}

	var robots fetcher.RobotsPolicy
	if cfg.RobotsEnabled() {
		robots = fetcher.NewRobotsChecker(client, cfg.UserAgent, cfg.RobotsCacheTTL)
	}

	return fetcher.NewCrawler(
		fetcher.NewHTTPFetcher(client, cfg.UserAgent),
		robots,
		db.Frontier,
		handler,
		m,
		log.With(logger.String("component", "crawler")),
		fetcher.CrawlerConfig{
			DefaultConcurrency: cfg.MaxConcurrency,
			DefaultDelay:       cfg.PolitenessDelay,
			RespectRobots:      cfg.RobotsEnabled(),
		},
	)
}
