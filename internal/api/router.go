package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything mounted under /api/v1.
type Handlers struct {
	Sources *SourcesHandler
	Jobs    *JobsHandler
	Configs *ConfigsHandler
	Content *ContentHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// RegisterRoutes mounts the API on router. /health is registered by the server.
func RegisterRoutes(router *gin.Engine, h Handlers) {
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	v1 := router.Group("/api/v1")

	sources := v1.Group("/sources")
	sources.GET("", h.Sources.List)
	sources.POST("", h.Sources.Create)
	sources.POST("/import", h.Sources.Import)
	sources.GET("/:id", h.Sources.Get)
	sources.PUT("/:id", h.Sources.Update)
	sources.DELETE("/:id", h.Sources.Delete)

	jobs := v1.Group("/jobs")
	jobs.GET("", h.Jobs.List)
	jobs.POST("", h.Jobs.Create)
	jobs.GET("/:id", h.Jobs.Get)
	jobs.GET("/:id/logs", h.Jobs.Logs)
	jobs.POST("/:id/start", h.Jobs.Start)
	jobs.POST("/:id/pause", h.Jobs.Pause)
	jobs.POST("/:id/stop", h.Jobs.Stop)
	jobs.POST("/:id/retry", h.Jobs.Retry)

	configs := v1.Group("/configs")
	configs.GET("", h.Configs.List)
	configs.POST("", h.Configs.Create)
	configs.GET("/:id", h.Configs.Get)
	configs.PUT("/:id", h.Configs.Update)
	configs.DELETE("/:id", h.Configs.Delete)

	content := v1.Group("/content")
	content.GET("", h.Content.Filter)
	content.GET("/stats", h.Content.Stats)
	content.GET("/facets", h.Content.Facets)
	content.POST("/purge", h.Content.Purge)
	content.POST("/rescore", h.Content.Rescore)
}
