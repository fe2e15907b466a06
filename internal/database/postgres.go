// Package database implements curator's PostgreSQL repositories on sqlx.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:blankimports // file source driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" //nolint:blankimports // PostgreSQL driver

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const pingTimeout = 5 * time.Second

// New opens a pooled connection and verifies it with a ping.
func New(cfg config.DatabaseConfig, log logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connection established",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("dbname", cfg.DBName),
	)
	return db, nil
}

func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	if abs, absErr := filepath.Abs(migrationsPath); absErr == nil {
		migrationsPath = abs
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending migrations.
func MigrateUp(db *sql.DB, migrationsPath string, log logger.Logger) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}

	if upErr := m.Up(); upErr != nil {
		if errors.Is(upErr, migrate.ErrNoChange) {
			log.Info("No pending migrations", logger.String("migrations_path", migrationsPath))
			return nil
		}
		return fmt.Errorf("run migrations: %w", upErr)
	}

	log.Info("Migrations applied", logger.String("migrations_path", migrationsPath))
	return nil
}

// MigrateDown rolls back steps migrations (at least one).
func MigrateDown(db *sql.DB, migrationsPath string, steps int, log logger.Logger) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if steps <= 0 {
		steps = 1
	}

	if downErr := m.Steps(-steps); downErr != nil {
		if errors.Is(downErr, migrate.ErrNoChange) {
			log.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", downErr)
	}

	log.Info("Migrations rolled back", logger.Int("steps", steps))
	return nil
}

// execRequireRows returns notFound when the statement touched no rows.
func execRequireRows(result sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return fmt.Errorf("rows affected: %w", affectedErr)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// pageOffset converts a 1-based page into an OFFSET.
func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
