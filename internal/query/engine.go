// Package query serves the read side of the curated content library.
package query

import (
	"context"
	"math"
	"strings"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	maxQualityScore = 100
	maxSearchLength = 200
	percentScale    = 100
)

// Store is the content read model.
type Store interface {
	Filter(ctx context.Context, f database.ContentFilter) ([]*domain.ContentItem, error)
	Count(ctx context.Context, f database.ContentFilter) (int, error)
	Stats(ctx context.Context) (*domain.ContentStats, error)
	Facets(ctx context.Context) (*domain.ContentFacets, error)
}

// Filter selects content. Every set facet must match.
type Filter struct {
	Category        string `form:"category"`
	ExamType        string `form:"exam_type"`
	Subject         string `form:"subject"`
	MinQualityScore int    `form:"min_quality_score"`
	OnlyValuable    bool   `form:"only_valuable"`
	SearchQuery     string `form:"search_query"`
	Page            int    `form:"page"`
	Limit           int    `form:"limit"`
}

// Engine answers content queries straight from the store.
type Engine struct {
	store Store
	log   logger.Logger
}

// NewEngine creates a query engine.
func NewEngine(store Store, log logger.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Filter returns one page of matching items ordered by quality_score DESC,
// created_at DESC, id ASC. A page past the last one is empty.
func (e *Engine) Filter(ctx context.Context, f Filter) (domain.Page[*domain.ContentItem], error) {
	if f.MinQualityScore < 0 || f.MinQualityScore > maxQualityScore {
		return domain.Page[*domain.ContentItem]{}, &domain.ValidationError{
			Field:   "min_quality_score",
			Message: "must be within 0-100",
		}
	}
	search := strings.TrimSpace(f.SearchQuery)
	if len(search) > maxSearchLength {
		return domain.Page[*domain.ContentItem]{}, &domain.ValidationError{
			Field:   "search_query",
			Message: "must be at most 200 characters",
		}
	}

	page, limit := domain.NormalizePage(f.Page, f.Limit)
	dbFilter := database.ContentFilter{
		Category:        strings.TrimSpace(f.Category),
		ExamType:        strings.TrimSpace(f.ExamType),
		Subject:         strings.TrimSpace(f.Subject),
		MinQualityScore: f.MinQualityScore,
		OnlyValuable:    f.OnlyValuable,
		SearchQuery:     search,
		Limit:           limit,
		Offset:          (page - 1) * limit,
	}

	total, err := e.store.Count(ctx, dbFilter)
	if err != nil {
		return domain.Page[*domain.ContentItem]{}, err
	}
	if dbFilter.Offset >= total {
		return domain.NewPage[*domain.ContentItem](nil, total, page, limit), nil
	}

	items, err := e.store.Filter(ctx, dbFilter)
	if err != nil {
		return domain.Page[*domain.ContentItem]{}, err
	}

	e.log.Debug("Content query",
		logger.Int("total", total),
		logger.Int("page", page),
		logger.Int("returned", len(items)),
	)
	return domain.NewPage(items, total, page, limit), nil
}

// Stats aggregates the store on every call.
func (e *Engine) Stats(ctx context.Context) (*domain.ContentStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.AnalyzedPercentage = percentage(stats.Analyzed, stats.Total)
	return stats, nil
}

// Facets lists the filter values present in the store.
func (e *Engine) Facets(ctx context.Context) (*domain.ContentFacets, error) {
	facets, err := e.store.Facets(ctx)
	if err != nil {
		return nil, err
	}
	if facets.Categories == nil {
		facets.Categories = []domain.FacetCount{}
	}
	if facets.ExamTypes == nil {
		facets.ExamTypes = []domain.FacetCount{}
	}
	if facets.Subjects == nil {
		facets.Subjects = []domain.FacetCount{}
	}
	return facets, nil
}

// percentage is part/total as a percentage rounded to two decimals.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*percentScale*percentScale) / percentScale
}
