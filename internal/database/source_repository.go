package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const sourceColumns = `id, url, name, type, priority, auto_crawl, crawl_schedule, status,
	total_content_found, total_files_downloaded, last_crawled_at, created_at, updated_at`

// SourceFilter narrows ListSources. Search matches name or url.
type SourceFilter struct {
	Search    string
	Type      string
	AutoCrawl *bool
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// SourceRepository persists the source registry.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a source and assigns its id and timestamps.
func (r *SourceRepository) Create(ctx context.Context, s *domain.Source) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	query := `
		INSERT INTO sources (id, url, name, type, priority, auto_crawl, crawl_schedule, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.URL, s.Name, s.Type, s.Priority, s.AutoCrawl, s.CrawlSchedule, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// GetByID returns a source or an error wrapping domain.ErrNotFound.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var s domain.Source
	err := r.db.GetContext(ctx, &s, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return &s, nil
}

// List returns one page of sources.
func (r *SourceRepository) List(ctx context.Context, f SourceFilter) ([]*domain.Source, error) {
	where, args := buildSourceWhere(f)
	args = append(args, f.Limit, pageOffset(f.Page, f.Limit))

	// #nosec G202 -- where and order are built from whitelisted fragments
	query := `SELECT ` + sourceColumns + ` FROM sources` + where + buildSourceOrder(f) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	sources := make([]*domain.Source, 0)
	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Count returns how many sources match the filter, ignoring paging.
func (r *SourceRepository) Count(ctx context.Context, f SourceFilter) (int, error) {
	where, args := buildSourceWhere(f)

	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sources`+where, args...); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}
	return n, nil
}

func buildSourceWhere(f SourceFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR url ILIKE $%d)", len(args), len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.AutoCrawl != nil {
		args = append(args, *f.AutoCrawl)
		clauses = append(clauses, fmt.Sprintf("auto_crawl = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildSourceOrder(f SourceFilter) string {
	valid := map[string]bool{"name": true, "priority": true, "created_at": true, "last_crawled_at": true}
	sortBy := f.SortBy
	if !valid[sortBy] {
		sortBy = "priority"
	}
	order := strings.ToUpper(f.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, name ASC", sortBy, order)
}

// Update replaces the operator-editable fields of a source.
func (r *SourceRepository) Update(ctx context.Context, s *domain.Source) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sources
		SET url = $2, name = $3, type = $4, priority = $5, auto_crawl = $6,
		    crawl_schedule = $7, status = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ID, s.URL, s.Name, s.Type, s.Priority, s.AutoCrawl, s.CrawlSchedule, s.Status, s.UpdatedAt,
	)
	if reqErr := execRequireRows(result, err, fmt.Errorf("source %s: %w", s.ID, domain.ErrNotFound)); reqErr != nil {
		return fmt.Errorf("update source: %w", reqErr)
	}
	return nil
}

// Delete removes a source. Without force it fails with domain.ErrSourceInUse
// while a pending, running or paused job references the source or its URL.
func (r *SourceRepository) Delete(ctx context.Context, id string, force bool) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var url string
	if err = tx.GetContext(ctx, &url, `SELECT url FROM sources WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
			return err
		}
		err = fmt.Errorf("lock source: %w", err)
		return err
	}

	if !force {
		var inUse bool
		query := `
			SELECT EXISTS (
				SELECT 1 FROM jobs
				WHERE (source_id = $1 OR $2 = ANY(target_urls))
				  AND status IN ('pending', 'running', 'paused')
			)
		`
		if err = tx.GetContext(ctx, &inUse, query, id, url); err != nil {
			err = fmt.Errorf("check active jobs: %w", err)
			return err
		}
		if inUse {
			err = fmt.Errorf("source %s: %w", id, domain.ErrSourceInUse)
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
		err = fmt.Errorf("delete source: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit transaction: %w", err)
		return err
	}
	return nil
}

// ApplyCrawlStats adds a finished job's totals to the source counters.
func (r *SourceRepository) ApplyCrawlStats(ctx context.Context, id string, stats domain.SourceCrawlStats) error {
	query := `
		UPDATE sources
		SET total_content_found = total_content_found + $2,
		    total_files_downloaded = total_files_downloaded + $3,
		    last_crawled_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, stats.ContentFound, stats.FilesDownloaded, stats.CrawledAt)
	if reqErr := execRequireRows(result, err, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)); reqErr != nil {
		return fmt.Errorf("apply crawl stats: %w", reqErr)
	}
	return nil
}

// ListByURLs returns the sources registered under any of urls.
func (r *SourceRepository) ListByURLs(ctx context.Context, urls []string) ([]*domain.Source, error) {
	sources := make([]*domain.Source, 0)
	if len(urls) == 0 {
		return sources, nil
	}
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE url = ANY($1)`
	if err := r.db.SelectContext(ctx, &sources, query, domain.StringArray(urls)); err != nil {
		return nil, fmt.Errorf("list sources by url: %w", err)
	}
	return sources, nil
}

// ListAutoCrawl returns active sources flagged for scheduled crawling.
func (r *SourceRepository) ListAutoCrawl(ctx context.Context) ([]*domain.Source, error) {
	sources := make([]*domain.Source, 0)
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE auto_crawl AND status = 'active' ORDER BY priority DESC, name`
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list auto-crawl sources: %w", err)
	}
	return sources, nil
}

// UpsertByURL inserts or updates sources keyed by url in one transaction.
func (r *SourceRepository) UpsertByURL(ctx context.Context, sources []*domain.Source) (created, updated int, err error) {
	if len(sources) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// xmax = 0 only for freshly inserted rows.
	query := `
		INSERT INTO sources (id, url, name, type, priority, auto_crawl, crawl_schedule, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (url) DO UPDATE
		SET name = EXCLUDED.name, type = EXCLUDED.type, priority = EXCLUDED.priority,
		    auto_crawl = EXCLUDED.auto_crawl, crawl_schedule = EXCLUDED.crawl_schedule,
		    status = EXCLUDED.status, updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`
	for _, s := range sources {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		var inserted bool
		row := tx.QueryRowxContext(ctx, query,
			s.ID, s.URL, s.Name, s.Type, s.Priority, s.AutoCrawl, s.CrawlSchedule, s.Status,
		)
		if err = row.Scan(&s.ID, &inserted); err != nil {
			err = fmt.Errorf("upsert source %q: %w", s.URL, err)
			return 0, 0, err
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit transaction: %w", err)
		return 0, 0, err
	}
	return created, updated, nil
}
