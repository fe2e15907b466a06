package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// JobService is the job lifecycle as the API sees it.
type JobService interface {
	Create(ctx context.Context, req job.CreateRequest) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, f job.ListFilter) (domain.Page[*domain.Job], error)
	Logs(ctx context.Context, id string, page, limit int) (domain.Page[*domain.JobLogEntry], error)
	Start(ctx context.Context, id string) (*domain.Job, error)
	Pause(ctx context.Context, id string) (*domain.Job, error)
	Stop(ctx context.Context, id string) (*domain.Job, error)
	Retry(ctx context.Context, id string, override bool) (*domain.Job, error)
}

var _ JobService = (*job.Manager)(nil)

// JobsHandler handles job-related HTTP requests.
type JobsHandler struct {
	jobs JobService
	log  logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs JobService, log logger.Logger) *JobsHandler {
	return &JobsHandler{jobs: jobs, log: log}
}

// List handles GET /api/v1/jobs
func (h *JobsHandler) List(c *gin.Context) {
	page, limit := parsePage(c)
	result, err := h.jobs.List(c.Request.Context(), job.ListFilter{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		SourceID: c.Query("source_id"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create handles POST /api/v1/jobs. The job is created pending; start it
// with POST /jobs/:id/start.
func (h *JobsHandler) Create(c *gin.Context) {
	var req job.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	created, err := h.jobs.Create(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /api/v1/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	j, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// Logs handles GET /api/v1/jobs/:id/logs
func (h *JobsHandler) Logs(c *gin.Context) {
	page, limit := parsePage(c)
	result, err := h.jobs.Logs(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Start handles POST /api/v1/jobs/:id/start. The response may still show
// the job as pending; poll GET /jobs/:id for progress.
func (h *JobsHandler) Start(c *gin.Context) {
	h.transition(c, h.jobs.Start)
}

// Pause handles POST /api/v1/jobs/:id/pause
func (h *JobsHandler) Pause(c *gin.Context) {
	h.transition(c, h.jobs.Pause)
}

// Stop handles POST /api/v1/jobs/:id/stop
func (h *JobsHandler) Stop(c *gin.Context) {
	h.transition(c, h.jobs.Stop)
}

// Retry handles POST /api/v1/jobs/:id/retry. ?override=true allows retrying
// a completed job.
func (h *JobsHandler) Retry(c *gin.Context) {
	override := queryBool(c, "override")
	h.transition(c, func(ctx context.Context, id string) (*domain.Job, error) {
		return h.jobs.Retry(ctx, id, override)
	})
}

func (h *JobsHandler) transition(c *gin.Context, action func(context.Context, string) (*domain.Job, error)) {
	j, err := action(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, j)
}
