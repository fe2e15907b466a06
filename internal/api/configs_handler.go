package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// ConfigsHandler serves scraping config CRUD.
type ConfigsHandler struct {
	repo database.ConfigRepositoryInterface
	log  logger.Logger
}

// NewConfigsHandler creates a configs handler.
func NewConfigsHandler(repo database.ConfigRepositoryInterface, log logger.Logger) *ConfigsHandler {
	return &ConfigsHandler{repo: repo, log: log}
}

type configRequest struct {
	Name               string   `json:"name"`
	ScrapingDepth      int      `json:"scraping_depth"`
	ContentTypeFilters []string `json:"content_type_filters"`
	PolitenessDelayMS  int      `json:"politeness_delay_ms"`
	MaxConcurrency     int      `json:"max_concurrency"`
}

func (r configRequest) apply(c *domain.ScrapingConfig) error {
	c.Name = r.Name
	c.ScrapingDepth = r.ScrapingDepth
	c.ContentTypeFilters = domain.StringArray(r.ContentTypeFilters)
	c.PolitenessDelayMS = r.PolitenessDelayMS
	c.MaxConcurrency = r.MaxConcurrency
	return c.Validate()
}

// List handles GET /api/v1/configs
func (h *ConfigsHandler) List(c *gin.Context) {
	configs, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs, "total": len(configs)})
}

// Create handles POST /api/v1/configs
func (h *ConfigsHandler) Create(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var cfg domain.ScrapingConfig
	if err := req.apply(&cfg); err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), &cfg); err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// Get handles GET /api/v1/configs/:id
func (h *ConfigsHandler) Get(c *gin.Context) {
	cfg, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Update handles PUT /api/v1/configs/:id
func (h *ConfigsHandler) Update(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	cfg, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	if applyErr := req.apply(cfg); applyErr != nil {
		respondDomainError(c, h.log, applyErr)
		return
	}
	if updateErr := h.repo.Update(c.Request.Context(), cfg); updateErr != nil {
		respondDomainError(c, h.log, updateErr)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Delete handles DELETE /api/v1/configs/:id
func (h *ConfigsHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
