// Package api implements curator's HTTP API on gin.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// parsePage reads the 1-indexed page and limit query params. Invalid values
// fall back to the defaults.
func parsePage(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(domain.DefaultPageLimit)))
	return domain.NormalizePage(page, limit)
}

// queryBool treats "true" and "1" as true.
func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without its details.
func respondDomainError(c *gin.Context, log logger.Logger, err error) {
	var (
		validation   *domain.ValidationError
		invalidState *domain.InvalidStateError
		notRetryable *domain.NotRetryableError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.Is(err, domain.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidState), errors.As(err, &notRetryable):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSourceInUse):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, job.ErrShuttingDown):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("Request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}
