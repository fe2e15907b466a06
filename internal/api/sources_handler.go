package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/importer"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const maxImportSize = 10 << 20

// SourceImporter bulk-loads sources from an uploaded file.
type SourceImporter interface {
	Import(ctx context.Context, filename string, r io.Reader) (*importer.Result, error)
}

// ScheduleReloader is told when auto-crawl settings may have changed.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// SourcesHandler serves the source registry.
type SourcesHandler struct {
	repo      database.SourceRepositoryInterface
	importer  SourceImporter
	schedules ScheduleReloader
	log       logger.Logger
}

// NewSourcesHandler creates a sources handler. schedules may be nil.
func NewSourcesHandler(
	repo database.SourceRepositoryInterface,
	imp SourceImporter,
	schedules ScheduleReloader,
	log logger.Logger,
) *SourcesHandler {
	return &SourcesHandler{repo: repo, importer: imp, schedules: schedules, log: log}
}

// sourceRequest is the editable part of a source.
type sourceRequest struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Priority      int    `json:"priority"`
	AutoCrawl     bool   `json:"auto_crawl"`
	CrawlSchedule string `json:"crawl_schedule"`
	Status        string `json:"status"`
}

func (r sourceRequest) apply(s *domain.Source) error {
	s.URL = strings.TrimSpace(r.URL)
	s.Name = r.Name
	s.Type = domain.SourceType(r.Type)
	s.Priority = r.Priority
	s.AutoCrawl = r.AutoCrawl
	s.CrawlSchedule = strings.TrimSpace(r.CrawlSchedule)
	s.Status = domain.SourceStatus(r.Status)

	if err := s.Validate(); err != nil {
		return err
	}
	return job.ValidateSchedule(s.CrawlSchedule)
}

// List handles GET /api/v1/sources
func (h *SourcesHandler) List(c *gin.Context) {
	page, limit := parsePage(c)
	filter := database.SourceFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Type:      c.Query("type"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		Limit:     limit,
	}
	if c.Query("auto_crawl") != "" {
		autoCrawl := queryBool(c, "auto_crawl")
		filter.AutoCrawl = &autoCrawl
	}

	sources, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	total, err := h.repo.Count(c.Request.Context(), filter)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewPage(sources, total, page, limit))
}

// Create handles POST /api/v1/sources
func (h *SourcesHandler) Create(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var source domain.Source
	if err := req.apply(&source); err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), &source); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	h.log.Info("Source created",
		logger.String("source_id", source.ID),
		logger.URL(source.URL),
	)
	h.reloadSchedules(c.Request.Context())
	c.JSON(http.StatusCreated, source)
}

// Get handles GET /api/v1/sources/:id
func (h *SourcesHandler) Get(c *gin.Context) {
	source, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, source)
}

// Update handles PUT /api/v1/sources/:id
func (h *SourcesHandler) Update(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	source, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	if applyErr := req.apply(source); applyErr != nil {
		respondDomainError(c, h.log, applyErr)
		return
	}
	if updateErr := h.repo.Update(c.Request.Context(), source); updateErr != nil {
		respondDomainError(c, h.log, updateErr)
		return
	}

	h.reloadSchedules(c.Request.Context())
	c.JSON(http.StatusOK, source)
}

// Delete handles DELETE /api/v1/sources/:id. Pass ?force=true to delete a
// source that an active job still references.
func (h *SourcesHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	force := queryBool(c, "force")

	if err := h.repo.Delete(c.Request.Context(), id, force); err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	h.log.Info("Source deleted", logger.String("source_id", id), logger.Bool("force", force))
	h.reloadSchedules(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// Import handles POST /api/v1/sources/import with a multipart "file" field.
func (h *SourcesHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	if header.Size > maxImportSize {
		respondBadRequest(c, "file exceeds 10 MiB")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, "cannot read uploaded file")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.importer.Import(c.Request.Context(), header.Filename, file)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}

	if result.Created+result.Updated > 0 {
		h.reloadSchedules(c.Request.Context())
	}
	c.JSON(http.StatusOK, result)
}

func (h *SourcesHandler) reloadSchedules(ctx context.Context) {
	if h.schedules == nil {
		return
	}
	if err := h.schedules.Reload(ctx); err != nil {
		h.log.Warn("Failed to reload auto-crawl schedules", logger.Error(err))
	}
}
