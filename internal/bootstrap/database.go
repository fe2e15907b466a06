package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// DatabaseComponents holds the connection and every repository.
type DatabaseComponents struct {
	DB       *sqlx.DB
	Sources  *database.SourceRepository
	Jobs     *database.JobRepository
	JobLogs  *database.JobLogRepository
	Frontier *database.FrontierRepository
	Content  *database.ContentRepository
	Configs  *database.ConfigRepository
}

// SetupDatabase connects to PostgreSQL, applies migrations when
// auto_migrate is set and creates the repositories.
func SetupDatabase(cfg config.DatabaseConfig, log logger.Logger) (*DatabaseComponents, error) {
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if migrateErr := database.MigrateUp(db.DB, cfg.MigrationsPath, log); migrateErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", migrateErr)
		}
	}

	return &DatabaseComponents{
		DB:       db,
		Sources:  database.NewSourceRepository(db),
		Jobs:     database.NewJobRepository(db),
		JobLogs:  database.NewJobLogRepository(db),
		Frontier: database.NewFrontierRepository(db),
		Content:  database.NewContentRepository(db),
		Configs:  database.NewConfigRepository(db),
	}, nil
}
