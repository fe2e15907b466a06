package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// JobLogRepository appends and reads per-URL job log entries.
type JobLogRepository struct {
	db *sqlx.DB
}

// NewJobLogRepository creates a job log repository.
func NewJobLogRepository(db *sqlx.DB) *JobLogRepository {
	return &JobLogRepository{db: db}
}

// Append inserts an entry and sets its id.
func (r *JobLogRepository) Append(ctx context.Context, e *domain.JobLogEntry) error {
	query := `
		INSERT INTO job_logs (job_id, attempt, url, title, status, content_type, size_bytes, quality_score, errors, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		e.JobID, e.Attempt, e.URL, e.Title, e.Status, e.ContentType, e.SizeBytes, e.QualityScore, e.Errors, e.Timestamp,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// ListByJob returns a page of a job's entries in insertion order.
func (r *JobLogRepository) ListByJob(ctx context.Context, jobID string, page, limit int) ([]*domain.JobLogEntry, error) {
	query := `
		SELECT id, job_id, attempt, url, title, status, content_type, size_bytes, quality_score, errors, timestamp
		FROM job_logs
		WHERE job_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`
	entries := make([]*domain.JobLogEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, jobID, limit, pageOffset(page, limit)); err != nil {
		return nil, fmt.Errorf("list job logs: %w", err)
	}
	return entries, nil
}

// CountByJob returns the number of entries a job has across all attempts.
func (r *JobLogRepository) CountByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM job_logs WHERE job_id = $1`, jobID); err != nil {
		return 0, fmt.Errorf("count job logs: %w", err)
	}
	return n, nil
}

// VisitedURLs lists the URLs that already have an entry in the given attempt.
// A runner resuming after a restart skips them.
func (r *JobLogRepository) VisitedURLs(ctx context.Context, jobID string, attempt int) ([]string, error) {
	urls := make([]string, 0)
	query := `SELECT url FROM job_logs WHERE job_id = $1 AND attempt = $2`
	if err := r.db.SelectContext(ctx, &urls, query, jobID, attempt); err != nil {
		return nil, fmt.Errorf("list visited urls: %w", err)
	}
	return urls, nil
}
