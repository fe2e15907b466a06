package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/query"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Filter(ctx context.Context, f database.ContentFilter) ([]*domain.ContentItem, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*domain.ContentItem)
	return items, args.Error(1)
}

func (m *mockStore) Count(ctx context.Context, f database.ContentFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context) (*domain.ContentStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*domain.ContentStats)
	return stats, args.Error(1)
}

func (m *mockStore) Facets(ctx context.Context) (*domain.ContentFacets, error) {
	args := m.Called(ctx)
	facets, _ := args.Get(0).(*domain.ContentFacets)
	return facets, args.Error(1)
}

func items(ids ...string) []*domain.ContentItem {
	out := make([]*domain.ContentItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.ContentItem{ID: id})
	}
	return out
}

func TestEngine_FilterPagination(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())

	want := database.ContentFilter{
		Category:        "past_questions",
		Subject:         "biology",
		MinQualityScore: 60,
		OnlyValuable:    true,
		SearchQuery:     "cells",
		Limit:           2,
		Offset:          2,
	}
	store.On("Count", mock.Anything, want).Return(5, nil).Once()
	store.On("Filter", mock.Anything, want).Return(items("c3", "c4"), nil).Once()

	page, err := engine.Filter(context.Background(), query.Filter{
		Category:        " past_questions ",
		Subject:         "biology",
		MinQualityScore: 60,
		OnlyValuable:    true,
		SearchQuery:     "  cells ",
		Page:            2,
		Limit:           2,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c3", page.Items[0].ID)
	store.AssertExpectations(t)
}

func TestEngine_FilterPageBeyondEndIsEmpty(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())

	store.On("Count", mock.Anything, mock.Anything).Return(3, nil).Once()

	page, err := engine.Filter(context.Background(), query.Filter{Page: 9, Limit: 2})
	require.NoError(t, err)

	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 9, page.Page)
	store.AssertNotCalled(t, "Filter", mock.Anything, mock.Anything)
}

func TestEngine_FilterDefaultsAndCaps(t *testing.T) {
	tests := []struct {
		name      string
		in        query.Filter
		wantLimit int
		wantPage  int
	}{
		{"defaults", query.Filter{}, domain.DefaultPageLimit, 1},
		{"capped", query.Filter{Page: -3, Limit: 1000}, domain.MaxPageLimit, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			engine := query.NewEngine(store, logger.NewNop())
			store.On("Count", mock.Anything, mock.MatchedBy(func(f database.ContentFilter) bool {
				return f.Limit == tt.wantLimit && f.Offset == 0
			})).Return(0, nil).Once()

			page, err := engine.Filter(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, 0, page.Pages)
			store.AssertExpectations(t)
		})
	}
}

func TestEngine_FilterRejectsBadInput(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())

	_, err := engine.Filter(context.Background(), query.Filter{MinQualityScore: 101})
	assert.True(t, domain.IsValidation(err))

	_, err = engine.Filter(context.Background(), query.Filter{MinQualityScore: -1})
	assert.True(t, domain.IsValidation(err))

	store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestEngine_FilterStoreError(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())
	store.On("Count", mock.Anything, mock.Anything).Return(0, errors.New("db down"))

	_, err := engine.Filter(context.Background(), query.Filter{})
	assert.ErrorContains(t, err, "db down")
}

func TestEngine_Stats(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())

	store.On("Stats", mock.Anything).Return(&domain.ContentStats{Total: 3, Analyzed: 2, Valuable: 1, Unanalyzed: 1}, nil).Once()
	stats, err := engine.Stats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 66.67, stats.AnalyzedPercentage, 0.001)

	store.On("Stats", mock.Anything).Return(&domain.ContentStats{}, nil).Once()
	stats, err = engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.AnalyzedPercentage)
	store.AssertNumberOfCalls(t, "Stats", 2)
}

func TestEngine_FacetsNeverNil(t *testing.T) {
	store := &mockStore{}
	engine := query.NewEngine(store, logger.NewNop())
	store.On("Facets", mock.Anything).Return(&domain.ContentFacets{
		Subjects: []domain.FacetCount{{Value: "physics", Count: 2}},
	}, nil)

	facets, err := engine.Facets(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, facets.Categories)
	assert.NotNil(t, facets.ExamTypes)
	assert.Equal(t, "physics", facets.Subjects[0].Value)
}
