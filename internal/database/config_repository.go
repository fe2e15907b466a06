package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const configColumns = `id, name, scraping_depth, content_type_filters, politeness_delay_ms,
	max_concurrency, created_at, updated_at`

// ConfigRepository persists named scraping configs.
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository creates a scraping config repository.
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create inserts a config.
func (r *ConfigRepository) Create(ctx context.Context, c *domain.ScrapingConfig) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `
		INSERT INTO scraping_configs (id, name, scraping_depth, content_type_filters,
		    politeness_delay_ms, max_concurrency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.ScrapingDepth, c.ContentTypeFilters,
		c.PolitenessDelayMS, c.MaxConcurrency, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert scraping config: %w", err)
	}
	return nil
}

// GetByID returns a config or an error wrapping domain.ErrNotFound.
func (r *ConfigRepository) GetByID(ctx context.Context, id string) (*domain.ScrapingConfig, error) {
	var c domain.ScrapingConfig
	err := r.db.GetContext(ctx, &c, `SELECT `+configColumns+` FROM scraping_configs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scraping config %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scraping config: %w", err)
	}
	return &c, nil
}

// List returns all configs by name.
func (r *ConfigRepository) List(ctx context.Context) ([]*domain.ScrapingConfig, error) {
	configs := make([]*domain.ScrapingConfig, 0)
	if err := r.db.SelectContext(ctx, &configs, `SELECT `+configColumns+` FROM scraping_configs ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list scraping configs: %w", err)
	}
	return configs, nil
}

// Update replaces a config's parameters.
func (r *ConfigRepository) Update(ctx context.Context, c *domain.ScrapingConfig) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE scraping_configs
		SET name = $2, scraping_depth = $3, content_type_filters = $4,
		    politeness_delay_ms = $5, max_concurrency = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.ScrapingDepth, c.ContentTypeFilters,
		c.PolitenessDelayMS, c.MaxConcurrency, c.UpdatedAt)
	if reqErr := execRequireRows(result, err, fmt.Errorf("scraping config %s: %w", c.ID, domain.ErrNotFound)); reqErr != nil {
		return fmt.Errorf("update scraping config: %w", reqErr)
	}
	return nil
}

// Delete removes a config. Jobs referencing it keep their copied parameters.
func (r *ConfigRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scraping_configs WHERE id = $1`, id)
	if reqErr := execRequireRows(result, err, fmt.Errorf("scraping config %s: %w", id, domain.ErrNotFound)); reqErr != nil {
		return fmt.Errorf("delete scraping config: %w", reqErr)
	}
	return nil
}
