package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const jobColumns = `id, name, type, status, source_id, config_id, target_urls, scraping_depth,
	content_type_filters, options, priority, attempt, progress_percentage, items_found,
	items_processed, items_successful, items_failed, started_at, completed_at, error_summary,
	can_retry, completed_override, created_at, updated_at`

// JobFilter narrows List and Count.
type JobFilter struct {
	Status   string
	Type     string
	SourceID string
	Page     int
	Limit    int
}

// JobRepository persists job snapshots.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job. created_at and updated_at come from the database.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, name, type, status, source_id, config_id, target_urls, scraping_depth,
		                  content_type_filters, options, priority, attempt, can_retry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		job.ID, job.Name, job.Type, job.Status, job.SourceID, job.ConfigID, job.TargetURLs,
		job.ScrapingDepth, job.ContentTypeFilters, job.Options, job.Priority, job.Attempt, job.CanRetry,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID returns a job or an error wrapping domain.ErrNotFound.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// Save writes the mutable state of a snapshot.
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, attempt = $3, progress_percentage = $4, items_found = $5,
		    items_processed = $6, items_successful = $7, items_failed = $8,
		    started_at = $9, completed_at = $10, error_summary = $11, can_retry = $12,
		    completed_override = $13, updated_at = $14
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		job.ID, job.Status, job.Attempt, job.ProgressPercentage, job.ItemsFound,
		job.ItemsProcessed, job.ItemsSuccessful, job.ItemsFailed,
		job.StartedAt, job.CompletedAt, job.ErrorSummary, job.CanRetry,
		job.CompletedOverride, job.UpdatedAt,
	)
	if reqErr := execRequireRows(result, err, fmt.Errorf("job %s: %w", job.ID, domain.ErrNotFound)); reqErr != nil {
		return fmt.Errorf("save job: %w", reqErr)
	}
	return nil
}

// List returns a page of jobs, newest first.
func (r *JobRepository) List(ctx context.Context, f JobFilter) ([]*domain.Job, error) {
	where, args := buildJobWhere(f)
	args = append(args, f.Limit, pageOffset(f.Page, f.Limit))

	// #nosec G202 -- where clause built from fixed fragments
	query := `SELECT ` + jobColumns + ` FROM jobs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	jobs := make([]*domain.Job, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Count returns how many jobs match the filter.
func (r *JobRepository) Count(ctx context.Context, f JobFilter) (int, error) {
	where, args := buildJobWhere(f)

	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM jobs`+where, args...); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func buildJobWhere(f JobFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.SourceID != "" {
		args = append(args, f.SourceID)
		clauses = append(clauses, fmt.Sprintf("source_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}

	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

// MarkInterrupted pauses jobs left running by a previous process and
// returns how many were changed.
func (r *JobRepository) MarkInterrupted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'paused', updated_at = NOW() WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// HasActiveForSource reports whether a pending, running or paused job
// exists for the source.
func (r *JobRepository) HasActiveForSource(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM jobs WHERE source_id = $1 AND status IN ('pending', 'running', 'paused'))`
	if err := r.db.GetContext(ctx, &exists, query, sourceID); err != nil {
		return false, fmt.Errorf("check active jobs: %w", err)
	}
	return exists, nil
}
