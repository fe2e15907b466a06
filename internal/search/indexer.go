// Package search mirrors curated content into Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	defaultIndex       = "curator_content"
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 3
	maxErrorBodyLength = 512
)

// contentMapping keeps facets as keywords and the text fields analyzed.
const contentMapping = `{
  "mappings": {
    "properties": {
      "title":             {"type": "text"},
      "source_url":        {"type": "keyword"},
      "category":          {"type": "keyword"},
      "exam_type":         {"type": "keyword"},
      "content_type":      {"type": "keyword"},
      "subject_tags":      {"type": "keyword"},
      "ai_summary":        {"type": "text"},
      "extracted_text":    {"type": "text"},
      "quality_score":     {"type": "integer"},
      "educational_value": {"type": "integer"},
      "confidence_score":  {"type": "integer"},
      "is_valuable":       {"type": "boolean"},
      "created_at":        {"type": "date"},
      "updated_at":        {"type": "date"}
    }
  }
}`

// Config configures the Elasticsearch mirror.
type Config struct {
	Address  string
	Username string
	Password string
	Index    string
	// CACert is a PEM bundle for clusters with a private CA.
	CACert []byte
}

// Document is the indexed form of a content item.
type Document struct {
	Title            string    `json:"title"`
	SourceURL        string    `json:"source_url"`
	Category         string    `json:"category"`
	ExamType         string    `json:"exam_type,omitempty"`
	ContentType      string    `json:"content_type"`
	SubjectTags      []string  `json:"subject_tags"`
	AISummary        string    `json:"ai_summary"`
	ExtractedText    string    `json:"extracted_text"`
	QualityScore     int       `json:"quality_score"`
	EducationalValue int       `json:"educational_value"`
	ConfidenceScore  int       `json:"confidence_score"`
	IsValuable       bool      `json:"is_valuable"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewDocument converts a content item for indexing.
func NewDocument(item *domain.ContentItem) Document {
	tags := []string(item.SubjectTags)
	if tags == nil {
		tags = []string{}
	}
	return Document{
		Title:            item.Title,
		SourceURL:        item.SourceURL,
		Category:         item.Category,
		ExamType:         item.ExamType,
		ContentType:      item.ContentType,
		SubjectTags:      tags,
		AISummary:        item.AISummary,
		ExtractedText:    item.ExtractedText,
		QualityScore:     item.QualityScore,
		EducationalValue: item.EducationalValue,
		ConfidenceScore:  item.ConfidenceScore,
		IsValuable:       item.IsValuable,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}
}

// Indexer writes content items to one index, keyed by content id.
type Indexer struct {
	client  *es.Client
	index   string
	timeout time.Duration
	log     logger.Logger
}

// NewClient creates an Elasticsearch client. The address gains an http://
// prefix when it has no scheme.
func NewClient(cfg Config) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses:  []string{normalizeURL(cfg.Address)},
		Username:   cfg.Username,
		Password:   cfg.Password,
		CACert:     cfg.CACert,
		MaxRetries: defaultMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return client, nil
}

// NewIndexer creates an indexer on client for index.
func NewIndexer(client *es.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = defaultIndex
	}
	return &Indexer{client: client, index: index, timeout: defaultTimeout, log: log}
}

// EnsureIndex creates the index with the content mapping when it is missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: unexpected status %d", i.index, res.StatusCode)
	}

	res, err = i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(contentMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index", res)
	}

	i.log.Info("Created search index", logger.String("index", i.index))
	return nil
}

// Index writes item under its id, replacing any earlier version.
func (i *Indexer) Index(ctx context.Context, item *domain.ContentItem) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	body, err := json.Marshal(NewDocument(item))
	if err != nil {
		return fmt.Errorf("failed to marshal document for indexing: %w", err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(item.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("index document", res)
	}

	i.log.Debug("Document indexed",
		logger.String("index", i.index),
		logger.String("doc_id", item.ID),
		logger.URL(item.SourceURL),
	)
	return nil
}

// PurgeBelow deletes documents whose quality_score is below minQuality.
func (i *Indexer) PurgeBelow(ctx context.Context, minQuality int) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	query := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"quality_score": map[string]any{"lt": minQuality},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal purge query: %w", err)
	}

	res, err := i.client.DeleteByQuery(
		[]string{i.index},
		bytes.NewReader(body),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return fmt.Errorf("delete by query: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("delete by query", res)
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&result); decodeErr != nil {
		return fmt.Errorf("decode delete by query response: %w", decodeErr)
	}

	i.log.Info("Purged search documents",
		logger.String("index", i.index),
		logger.Int("min_quality_score", minQuality),
		logger.Int64("deleted", result.Deleted),
	)
	return nil
}

func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyLength))
	return fmt.Errorf("%s: elasticsearch status %d: %s", op, res.StatusCode, strings.TrimSpace(string(data)))
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}

func normalizeURL(address string) string {
	if address == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		return "http://" + address
	}
	return address
}
