package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// FrontierRepository stores the discovered URL set of each job.
type FrontierRepository struct {
	db *sqlx.DB
}

// NewFrontierRepository creates a frontier repository.
func NewFrontierRepository(db *sqlx.DB) *FrontierRepository {
	return &FrontierRepository{db: db}
}

// AddKnown records entries and returns those that were not known before.
func (r *FrontierRepository) AddKnown(ctx context.Context, entries []domain.FrontierEntry) ([]domain.FrontierEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO job_frontier (job_id, url_hash, url, depth, discovered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, url_hash) DO NOTHING
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	added := make([]domain.FrontierEntry, 0, len(entries))
	for _, e := range entries {
		result, execErr := tx.ExecContext(ctx, query, e.JobID, e.URLHash, e.URL, e.Depth, e.DiscoveredAt)
		if execErr != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert frontier entry: %w", execErr)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			added = append(added, e)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("commit transaction: %w", commitErr)
	}
	return added, nil
}

// ListKnown returns every URL the job has discovered, shallowest first.
func (r *FrontierRepository) ListKnown(ctx context.Context, jobID string) ([]domain.FrontierEntry, error) {
	query := `
		SELECT job_id, url_hash, url, depth, discovered_at
		FROM job_frontier
		WHERE job_id = $1
		ORDER BY depth, discovered_at, url_hash
	`
	entries := make([]domain.FrontierEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, jobID); err != nil {
		return nil, fmt.Errorf("list frontier: %w", err)
	}
	return entries, nil
}
