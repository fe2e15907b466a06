package database

import (
	"context"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// SourceRepositoryInterface defines the contract for source registry access.
type SourceRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context, f SourceFilter) ([]*domain.Source, error)
	Count(ctx context.Context, f SourceFilter) (int, error)
	Update(ctx context.Context, s *domain.Source) error
	Delete(ctx context.Context, id string, force bool) error

	// Crawl bookkeeping
	ApplyCrawlStats(ctx context.Context, id string, stats domain.SourceCrawlStats) error
	ListByURLs(ctx context.Context, urls []string) ([]*domain.Source, error)
	ListAutoCrawl(ctx context.Context) ([]*domain.Source, error)

	// Bulk import
	UpsertByURL(ctx context.Context, sources []*domain.Source) (created, updated int, err error)
}

// JobRepositoryInterface defines the contract for job snapshot persistence.
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Save(ctx context.Context, job *domain.Job) error
	List(ctx context.Context, f JobFilter) ([]*domain.Job, error)
	Count(ctx context.Context, f JobFilter) (int, error)
	MarkInterrupted(ctx context.Context) (int64, error)
	HasActiveForSource(ctx context.Context, sourceID string) (bool, error)
}

// JobLogRepositoryInterface defines the contract for the append-only job log.
type JobLogRepositoryInterface interface {
	Append(ctx context.Context, e *domain.JobLogEntry) error
	ListByJob(ctx context.Context, jobID string, page, limit int) ([]*domain.JobLogEntry, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
	VisitedURLs(ctx context.Context, jobID string, attempt int) ([]string, error)
}

// FrontierRepositoryInterface defines the contract for a job's known URL set.
type FrontierRepositoryInterface interface {
	AddKnown(ctx context.Context, entries []domain.FrontierEntry) ([]domain.FrontierEntry, error)
	ListKnown(ctx context.Context, jobID string) ([]domain.FrontierEntry, error)
}

// ContentRepositoryInterface defines the contract for the curated content store.
type ContentRepositoryInterface interface {
	Upsert(ctx context.Context, item *domain.ContentItem) (bool, error)
	GetByURL(ctx context.Context, sourceURL string) (*domain.ContentItem, error)
	Filter(ctx context.Context, f ContentFilter) ([]*domain.ContentItem, error)
	Count(ctx context.Context, f ContentFilter) (int, error)
	Stats(ctx context.Context) (*domain.ContentStats, error)
	Facets(ctx context.Context) (*domain.ContentFacets, error)
	Purge(ctx context.Context, minQuality int) (int64, error)
	ListAfter(ctx context.Context, afterID string, limit int) ([]*domain.ContentItem, error)
}

// ConfigRepositoryInterface defines the contract for scraping config CRUD.
type ConfigRepositoryInterface interface {
	Create(ctx context.Context, c *domain.ScrapingConfig) error
	GetByID(ctx context.Context, id string) (*domain.ScrapingConfig, error)
	List(ctx context.Context) ([]*domain.ScrapingConfig, error)
	Update(ctx context.Context, c *domain.ScrapingConfig) error
	Delete(ctx context.Context, id string) error
}

var (
	_ SourceRepositoryInterface   = (*SourceRepository)(nil)
	_ JobRepositoryInterface      = (*JobRepository)(nil)
	_ JobLogRepositoryInterface   = (*JobLogRepository)(nil)
	_ FrontierRepositoryInterface = (*FrontierRepository)(nil)
	_ ContentRepositoryInterface  = (*ContentRepository)(nil)
	_ ConfigRepositoryInterface   = (*ConfigRepository)(nil)
)
