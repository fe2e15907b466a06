package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	maxExtractiveSentences = 3
	maxSummaryLength       = 600
	// maxPromptRunes bounds the document excerpt sent to the model.
	maxPromptRunes = 12000

	defaultSummaryModel  = "claude-haiku-4-5-20251001"
	defaultSummaryTokens = 256
)

const summaryPrompt = `Summarize the following educational document in two or three plain sentences
for a student deciding whether to study it. Mention the subject and level when evident.
Reply with the summary only.

Title: %s

%s`

// Summarizer produces the ai_summary of a document.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (string, error)
}

// ExtractiveSummarizer returns the leading sentences of the text.
type ExtractiveSummarizer struct{}

// Summarize implements Summarizer.
func (ExtractiveSummarizer) Summarize(_ context.Context, _, text string) (string, error) {
	var b strings.Builder
	for i, s := range sentences(text) {
		if i == maxExtractiveSentences {
			break
		}
		if b.Len() > 0 && b.Len()+len(s)+1 > maxSummaryLength {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return truncateRunes(b.String(), maxSummaryLength), nil
}

// AnthropicConfig configures AnthropicSummarizer.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// AnthropicSummarizer asks the Messages API for a summary and falls back to
// the extractive summary on any error.
type AnthropicSummarizer struct {
	client    sdk.Client
	model     string
	maxTokens int64
	fallback  Summarizer
	log       logger.Logger
}

// NewAnthropicSummarizer creates a summarizer backed by the Messages API.
func NewAnthropicSummarizer(cfg AnthropicConfig, log logger.Logger) *AnthropicSummarizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = defaultSummaryModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultSummaryTokens
	}
	return &AnthropicSummarizer{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		fallback:  ExtractiveSummarizer{},
		log:       log,
	}
}

// Summarize implements Summarizer.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, title, text string) (string, error) {
	summary, err := s.complete(ctx, title, text)
	if err == nil {
		return summary, nil
	}
	s.log.Warn("AI summary failed, using extractive summary",
		logger.String("model", s.model),
		logger.Error(err),
	)
	return s.fallback.Summarize(ctx, title, text)
}

func (s *AnthropicSummarizer) complete(ctx context.Context, title, text string) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, title, truncateRunes(text, maxPromptRunes))

	msg, err := s.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	summary := collapseSpace(b.String())
	if summary == "" {
		return "", errors.New("anthropic: empty summary")
	}
	return truncateRunes(summary, maxSummaryLength), nil
}
