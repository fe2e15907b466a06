package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/pipeline"
)

func TestAnthropicSummarizer_Summarize(t *testing.T) {
	models := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		model, _ := body["model"].(string)
		models <- model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "  A revision guide to\nquadratic equations.  "},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 12},
		})
	}))
	defer ts.Close()

	s := pipeline.NewAnthropicSummarizer(pipeline.AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: ts.URL,
	}, logger.NewNop())

	got, err := s.Summarize(context.Background(), "Algebra", "Quadratic equations. Factorisation.")
	require.NoError(t, err)
	assert.Equal(t, "A revision guide to quadratic equations.", got)
	assert.Equal(t, "claude-haiku-4-5-20251001", <-models)
}

func TestAnthropicSummarizer_FallsBackOnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "bad request"},
		})
	}))
	defer ts.Close()

	s := pipeline.NewAnthropicSummarizer(pipeline.AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: ts.URL,
		Model:   "claude-haiku-4-5-20251001",
	}, logger.NewNop())

	got, err := s.Summarize(context.Background(), "Algebra", "First sentence. Second sentence. Third. Fourth.")
	require.NoError(t, err)
	assert.Equal(t, "First sentence. Second sentence. Third.", got)
}
