// Package pipeline turns fetched documents into scored, tagged and
// summarized content items.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fetcher"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

const defaultRescoreBatchSize = 200

var _ fetcher.ItemHandler = (*Pipeline)(nil)

// Store is the content persistence the pipeline needs.
type Store interface {
	Upsert(ctx context.Context, item *domain.ContentItem) (bool, error)
	GetByURL(ctx context.Context, sourceURL string) (*domain.ContentItem, error)
	ListAfter(ctx context.Context, afterID string, limit int) ([]*domain.ContentItem, error)
	Purge(ctx context.Context, minQuality int) (int64, error)
}

// Indexer mirrors content into a search index.
type Indexer interface {
	Index(ctx context.Context, item *domain.ContentItem) error
	PurgeBelow(ctx context.Context, minQuality int) error
}

// ContentPublisher announces stored content.
type ContentPublisher interface {
	PublishContentUpserted(ctx context.Context, item *domain.ContentItem, inserted bool) error
}

// Document is one successfully fetched item.
type Document struct {
	URL         string
	Body        []byte
	ContentType string
	JobID       string
}

// Deps holds the pipeline collaborators. Extractor, Scorer, Tagger and
// Summarizer default to the built-in implementations; Indexer, Events and
// Metrics are optional.
type Deps struct {
	Store      Store
	Extractor  Extractor
	Scorer     Scorer
	Tagger     Tagger
	Summarizer Summarizer
	Indexer    Indexer
	Events     ContentPublisher
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// Pipeline extracts, scores, tags, summarizes and upserts documents.
type Pipeline struct {
	store      Store
	extractor  Extractor
	scorer     Scorer
	tagger     Tagger
	summarizer Summarizer
	indexer    Indexer
	events     ContentPublisher
	metrics    *metrics.Metrics
	log        logger.Logger
	rule       domain.ValuableRule
}

// New creates a pipeline applying rule to every upsert.
func New(deps Deps, rule domain.ValuableRule) *Pipeline {
	p := &Pipeline{
		store:      deps.Store,
		extractor:  deps.Extractor,
		scorer:     deps.Scorer,
		tagger:     deps.Tagger,
		summarizer: deps.Summarizer,
		indexer:    deps.Indexer,
		events:     deps.Events,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		rule:       rule,
	}
	if p.extractor == nil {
		p.extractor = NewDocumentExtractor()
	}
	if p.scorer == nil {
		p.scorer = NewHeuristicScorer()
	}
	if p.tagger == nil {
		p.tagger = NewKeywordTagger()
	}
	if p.summarizer == nil {
		p.summarizer = ExtractiveSummarizer{}
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}
	return p
}

// HandleItem implements fetcher.ItemHandler. Extraction and storage errors
// turn the success into a per-URL failure.
func (p *Pipeline) HandleItem(
	ctx context.Context,
	job *domain.Job,
	pageURL string,
	outcome domain.Outcome,
) domain.Outcome {
	if outcome.Kind != domain.OutcomeSuccess {
		return outcome
	}

	item, err := p.Process(ctx, Document{
		URL:         pageURL,
		Body:        outcome.Body,
		ContentType: outcome.ContentType,
		JobID:       job.ID,
	})
	if err != nil {
		failed := domain.Failure(err)
		failed.ContentType = outcome.ContentType
		failed.SizeBytes = outcome.SizeBytes
		return failed
	}

	outcome.Body = nil
	outcome.Title = item.Title
	if item.Analyzed {
		quality := item.QualityScore
		outcome.QualityScore = &quality
	}
	return outcome
}

// Process runs one document through every stage and upserts it by URL.
func (p *Pipeline) Process(ctx context.Context, doc Document) (*domain.ContentItem, error) {
	log := p.log.With(logger.URL(doc.URL))

	text, meta, err := p.extractor.Extract(doc.URL, doc.Body, doc.ContentType)
	if err != nil {
		log.Debug("Extraction failed", logger.Error(err))
		return nil, err
	}

	item := &domain.ContentItem{
		Title:         meta.Title,
		SourceURL:     doc.URL,
		ContentType:   doc.ContentType,
		ExtractedText: text,
		Metadata:      meta,
	}
	if item.Title == "" {
		item.Title = titleFromURL(doc.URL)
	}
	if doc.JobID != "" {
		jobID := doc.JobID
		item.SourceJobID = &jobID
	}

	existing, err := p.store.GetByURL(ctx, doc.URL)
	switch {
	case err == nil:
		item.AISummary = existing.AISummary
		item.ContentHash = existing.ContentHash
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load content %s: %w", doc.URL, err)
	}

	if scoreErr := p.analyze(ctx, item); scoreErr != nil {
		log.Warn("Scoring failed, storing unanalyzed", logger.Error(scoreErr))
	}
	if _, err = p.save(ctx, item); err != nil {
		log.Error("Failed to store content", logger.Error(err))
		return nil, err
	}

	log.Debug("Content stored",
		logger.Int("quality_score", item.QualityScore),
		logger.Int("educational_value", item.EducationalValue),
		logger.Int("confidence_score", item.ConfidenceScore),
		logger.Bool("is_valuable", item.IsValuable),
		logger.Bool("analyzed", item.Analyzed),
	)
	return item, nil
}

// analyze fills scores, tags and summary from the item's text and metadata.
// The summary is kept when the text has not changed since it was written.
// When scoring fails the item is left unanalyzed with zero scores so a
// later rescore can pick it up.
func (p *Pipeline) analyze(ctx context.Context, item *domain.ContentItem) error {
	hash := contentHash(item.ExtractedText)

	tags := p.tagger.Tag(item.Title, item.ExtractedText)
	item.SubjectTags = domain.StringArray(tags.Subjects)
	item.Category = tags.Category
	item.ExamType = tags.ExamType

	scores, err := p.scorer.Score(item.ExtractedText, item.Metadata)
	if err != nil {
		item.QualityScore, item.EducationalValue, item.ConfidenceScore = 0, 0, 0
		item.Analyzed = false
		item.IsValuable = false
		return err
	}
	item.QualityScore = scores.Quality
	item.EducationalValue = scores.EducationalValue
	item.ConfidenceScore = scores.Confidence

	if item.AISummary == "" || item.ContentHash != hash {
		summary, sumErr := p.summarizer.Summarize(ctx, item.Title, item.ExtractedText)
		if sumErr != nil {
			p.log.Warn("Summary failed", logger.URL(item.SourceURL), logger.Error(sumErr))
		}
		item.AISummary = summary
	}

	item.ContentHash = hash
	item.Analyzed = true
	p.rule.Apply(item)
	return nil
}

// save upserts the item, then mirrors and announces it. Mirror and event
// failures are logged only.
func (p *Pipeline) save(ctx context.Context, item *domain.ContentItem) (bool, error) {
	inserted, err := p.store.Upsert(ctx, item)
	if err != nil {
		return false, err
	}
	p.metrics.ContentUpserted(inserted, item.IsValuable, item.QualityScore)

	if p.indexer != nil {
		if indexErr := p.indexer.Index(ctx, item); indexErr != nil {
			p.log.Warn("Failed to index content", logger.URL(item.SourceURL), logger.Error(indexErr))
		}
	}
	if p.events != nil {
		if pubErr := p.events.PublishContentUpserted(ctx, item, inserted); pubErr != nil {
			p.log.Warn("Failed to publish content event", logger.URL(item.SourceURL), logger.Error(pubErr))
		}
	}
	return inserted, nil
}

// RescoreResult summarizes a rescore pass.
type RescoreResult struct {
	Rescored int `json:"rescored"`
	Valuable int `json:"valuable"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Rescore re-runs scoring, tagging and the valuable rule over every stored
// item in id order. Items without extracted text are skipped, and items that
// still fail scoring keep their stored values. Running it
// twice without changes in between stores the same values.
func (p *Pipeline) Rescore(ctx context.Context, batchSize int) (RescoreResult, error) {
	if batchSize <= 0 {
		batchSize = defaultRescoreBatchSize
	}

	var res RescoreResult
	after := ""
	for {
		items, err := p.store.ListAfter(ctx, after, batchSize)
		if err != nil {
			return res, err
		}

		for _, item := range items {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			if strings.TrimSpace(item.ExtractedText) == "" {
				res.Skipped++
				continue
			}
			if scoreErr := p.analyze(ctx, item); scoreErr != nil {
				p.log.Warn("Rescore failed", logger.URL(item.SourceURL), logger.Error(scoreErr))
				res.Failed++
				continue
			}
			if _, saveErr := p.save(ctx, item); saveErr != nil {
				p.log.Error("Failed to store rescored content", logger.URL(item.SourceURL), logger.Error(saveErr))
				res.Failed++
				continue
			}
			res.Rescored++
			if item.IsValuable {
				res.Valuable++
			}
		}

		if len(items) < batchSize {
			break
		}
		after = items[len(items)-1].ID
	}

	p.log.Info("Rescore finished",
		logger.Int("rescored", res.Rescored),
		logger.Int("valuable", res.Valuable),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

// Purge deletes items with quality_score below minQuality. Items exactly at
// minQuality are kept. Nothing happens unless confirm is true.
func (p *Pipeline) Purge(ctx context.Context, minQuality int, confirm bool) (int64, error) {
	if !confirm {
		return 0, &domain.ValidationError{Field: "confirm", Message: "purge deletes content and must be confirmed"}
	}
	if minQuality < 0 || minQuality > maxScore {
		return 0, &domain.ValidationError{Field: "min_quality_score", Message: "must be within 0-100"}
	}

	n, err := p.store.Purge(ctx, minQuality)
	if err != nil {
		return 0, err
	}
	p.metrics.Purged(n)

	if p.indexer != nil {
		if indexErr := p.indexer.PurgeBelow(ctx, minQuality); indexErr != nil {
			p.log.Warn("Failed to purge search index", logger.Error(indexErr))
		}
	}

	p.log.Info("Content purged", logger.Int("min_quality_score", minQuality), logger.Int64("deleted", n))
	return n, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		return u.Host
	}
	if unescaped, unescapeErr := url.PathUnescape(base); unescapeErr == nil {
		base = unescaped
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
