package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const jobShutdownTimeout = 30 * time.Second

// Serve runs every phase and blocks until the server stops. Cancelling ctx
// or sending SIGINT/SIGTERM starts a graceful shutdown.
func Serve(ctx context.Context, configPath string, debug bool) error {
	// Phase 1: Config & Logger
	deps, err := NewCommandDeps(configPath, debug)
	if err != nil {
		return err
	}
	log := deps.Logger
	defer func() { _ = log.Sync() }()

	log.Info("Starting curator",
		logger.String("host", deps.Config.Server.Host),
		logger.Int("port", deps.Config.Server.Port),
	)

	// Phase 2: Database
	db, err := SetupDatabase(deps.Config.Database, log)
	if err != nil {
		return err
	}

	// Phase 3: Infrastructure
	infra := SetupInfrastructure(ctx, deps.Config, log)

	// Phase 4: Services
	svc, err := SetupServices(ctx, deps.Config, db, infra, log)
	if err != nil {
		shutdown(context.Background(), log, db, infra, nil)
		return err
	}

	// Phase 5: HTTP server
	srv := SetupHTTPServer(deps.Config, db, infra, svc, log)

	// Phase 6: Run until interrupted
	runErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), jobShutdownTimeout)
	defer cancel()
	shutdownErr := shutdown(shutdownCtx, log, db, infra, svc)

	return errors.Join(runErr, shutdownErr)
}

// shutdown stops components in reverse start order: the scheduler so no new
// jobs are created, then running jobs (paused for resume), then connections.
func shutdown(
	ctx context.Context,
	log logger.Logger,
	db *DatabaseComponents,
	infra *InfraComponents,
	svc *ServiceComponents,
) error {
	var errs []error

	if svc != nil {
		if svc.Scheduler != nil {
			svc.Scheduler.Stop()
			log.Info("Auto-crawl scheduler stopped")
		}
		if err := svc.Jobs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop jobs: %w", err))
		}
	}

	if infra != nil && infra.Redis != nil {
		if err := infra.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if db != nil {
		if err := db.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if len(errs) > 0 {
		log.Error("Shutdown completed with errors", logger.Error(errors.Join(errs...)))
	} else {
		log.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}
