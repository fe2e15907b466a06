package bootstrap

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/curator/internal/api"
	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/server"
)

// SetupHTTPServer builds the gin server with every API route.
func SetupHTTPServer(
	cfg *config.Config,
	db *DatabaseComponents,
	infra *InfraComponents,
	svc *ServiceComponents,
	log logger.Logger,
) *server.Server {
	var schedules api.ScheduleReloader
	if svc.Scheduler != nil {
		schedules = svc.Scheduler
	}

	handlers := api.Handlers{
		Sources: api.NewSourcesHandler(db.Sources, svc.Importer, schedules, log),
		Jobs:    api.NewJobsHandler(svc.Jobs, log),
		Configs: api.NewConfigsHandler(db.Configs, log),
		Content: api.NewContentHandler(svc.Query, svc.Pipeline, cfg.Scoring.RescoreBatchSize, log),
		Metrics: promhttp.HandlerFor(infra.Registry, promhttp.HandlerOpts{}),
	}

	return server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Debug:          cfg.Debug,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ServiceName:    serviceName,
		ServiceVersion: Version,
	}, log, func(router *gin.Engine) {
		api.RegisterRoutes(router, handlers)
	})
}
