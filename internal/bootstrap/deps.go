// Package bootstrap wires curator's components together.
//
// The serve path runs in phases:
//   - Phase 1: Config & Logger
//   - Phase 2: Database, migrations and repositories
//   - Phase 3: Infrastructure (metrics, Redis events, Elasticsearch mirror)
//   - Phase 4: Services (pipeline, crawler, job manager, scheduler)
//   - Phase 5: HTTP server
//   - Phase 6: Run until interrupted, then shut down in reverse order
package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const serviceName = "curator"

// Version is reported by /health and attached to every log entry. Set at
// build time with -ldflags "-X .../internal/bootstrap.Version=...".
var Version = "dev"

// CommandDeps are shared by every CLI command.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewCommandDeps loads configuration from configPath and builds the logger.
// debug forces debug-level, development logging.
func NewCommandDeps(configPath string, debug bool) (*CommandDeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(
		logger.String("service", serviceName),
		logger.String("version", Version),
	)

	return &CommandDeps{Config: cfg, Logger: log}, nil
}
