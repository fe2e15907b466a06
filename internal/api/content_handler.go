package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/pipeline"
	"github.com/jonesrussell/north-cloud/curator/internal/query"
)

// ContentQuerier is the read side of the content library.
type ContentQuerier interface {
	Filter(ctx context.Context, f query.Filter) (domain.Page[*domain.ContentItem], error)
	Stats(ctx context.Context) (*domain.ContentStats, error)
	Facets(ctx context.Context) (*domain.ContentFacets, error)
}

// ContentCurator runs maintenance passes over stored content.
type ContentCurator interface {
	Rescore(ctx context.Context, batchSize int) (pipeline.RescoreResult, error)
	Purge(ctx context.Context, minQuality int, confirm bool) (int64, error)
}

var (
	_ ContentQuerier = (*query.Engine)(nil)
	_ ContentCurator = (*pipeline.Pipeline)(nil)
)

// ContentHandler serves the curated content library.
type ContentHandler struct {
	query        ContentQuerier
	curator      ContentCurator
	rescoreBatch int
	log          logger.Logger
}

// NewContentHandler creates a content handler.
func NewContentHandler(q ContentQuerier, curator ContentCurator, rescoreBatch int, log logger.Logger) *ContentHandler {
	return &ContentHandler{query: q, curator: curator, rescoreBatch: rescoreBatch, log: log}
}

// purgeRequest requires confirm; min_quality_score is a pointer so that an
// omitted value is rejected rather than read as 0.
type purgeRequest struct {
	MinQualityScore *int `json:"min_quality_score"`
	Confirm         bool `json:"confirm"`
}

// Filter handles GET /api/v1/content
func (h *ContentHandler) Filter(c *gin.Context) {
	var f query.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		respondBadRequest(c, "invalid query: "+err.Error())
		return
	}

	page, err := h.query.Filter(c.Request.Context(), f)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Stats handles GET /api/v1/content/stats
func (h *ContentHandler) Stats(c *gin.Context) {
	stats, err := h.query.Stats(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Facets handles GET /api/v1/content/facets
func (h *ContentHandler) Facets(c *gin.Context) {
	facets, err := h.query.Facets(c.Request.Context())
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, facets)
}

// Purge handles POST /api/v1/content/purge
func (h *ContentHandler) Purge(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.MinQualityScore == nil {
		respondDomainError(c, h.log, &domain.ValidationError{Field: "min_quality_score", Message: "is required"})
		return
	}

	deleted, err := h.curator.Purge(c.Request.Context(), *req.MinQualityScore, req.Confirm)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "min_quality_score": *req.MinQualityScore})
}

// Rescore handles POST /api/v1/content/rescore. It runs synchronously.
func (h *ContentHandler) Rescore(c *gin.Context) {
	result, err := h.curator.Rescore(c.Request.Context(), h.rescoreBatch)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
