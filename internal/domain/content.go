package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ContentItem is a scored document keyed by SourceURL.
type ContentItem struct {
	ID               string           `db:"id"                json:"id"`
	Title            string           `db:"title"             json:"title"`
	SourceURL        string           `db:"source_url"        json:"source_url"`
	Category         string           `db:"category"          json:"category"`
	ExamType         string           `db:"exam_type"         json:"exam_type,omitempty"`
	ContentType      string           `db:"content_type"      json:"content_type"`
	QualityScore     int              `db:"quality_score"     json:"quality_score"`
	EducationalValue int              `db:"educational_value" json:"educational_value"`
	ConfidenceScore  int              `db:"confidence_score"  json:"confidence_score"`
	IsValuable       bool             `db:"is_valuable"       json:"is_valuable"`
	Analyzed         bool             `db:"analyzed"          json:"analyzed"`
	SubjectTags      StringArray      `db:"subject_tags"      json:"subject_tags"`
	AISummary        string           `db:"ai_summary"        json:"ai_summary"`
	FilePath         *string          `db:"file_path"         json:"file_path,omitempty"`
	ExtractedText    string           `db:"extracted_text"    json:"-"`
	ContentHash      string           `db:"content_hash"      json:"content_hash,omitempty"`
	Metadata         DocumentMetadata `db:"metadata"          json:"metadata"`
	SourceJobID      *string          `db:"source_job_id"     json:"source_job_id,omitempty"`
	CreatedAt        time.Time        `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"        json:"updated_at"`
}

// DocumentMetadata is what extraction learned about a document besides its
// text. It is kept so rescoring sees the same inputs as the first pass.
type DocumentMetadata struct {
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Author       string `json:"author,omitempty"`
	Language     string `json:"language,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	HasImage     bool   `json:"has_image,omitempty"`
	Headings     int    `json:"headings,omitempty"`
	ListItems    int    `json:"list_items,omitempty"`
	Pages        int    `json:"pages,omitempty"`
	WordCount    int    `json:"word_count"`
	Method       string `json:"method,omitempty"`
}

// Value stores DocumentMetadata as JSONB.
func (m DocumentMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal document metadata: %w", err)
	}
	return b, nil
}

// Scan reads DocumentMetadata from JSONB.
func (m *DocumentMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = DocumentMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("scan document metadata: unsupported source type")
	}
}

// ValuableRule decides is_valuable from the scores.
type ValuableRule struct {
	Threshold       int
	ConfidenceFloor int
}

// DefaultValuableRule is threshold 50, confidence floor 40.
var DefaultValuableRule = ValuableRule{Threshold: 50, ConfidenceFloor: 40}

// IsValuable is true exactly when quality ≥ threshold and confidence ≥ floor.
func (r ValuableRule) IsValuable(qualityScore, confidenceScore int) bool {
	return qualityScore >= r.Threshold && confidenceScore >= r.ConfidenceFloor
}

// Apply recomputes item.IsValuable.
func (r ValuableRule) Apply(item *ContentItem) {
	item.IsValuable = r.IsValuable(item.QualityScore, item.ConfidenceScore)
}

// ContentStats is the aggregate view of the content store.
type ContentStats struct {
	Total              int     `db:"total"      json:"total"`
	Analyzed           int     `db:"analyzed"   json:"analyzed"`
	Valuable           int     `db:"valuable"   json:"valuable"`
	Unanalyzed         int     `db:"unanalyzed" json:"unanalyzed"`
	AnalyzedPercentage float64 `db:"-"          json:"analyzed_percentage"`
}

// FacetCount is one facet value and how many items carry it.
type FacetCount struct {
	Value string `db:"value" json:"value"`
	Count int    `db:"count" json:"count"`
}

// ContentFacets lists the distinct facet values available for filtering.
type ContentFacets struct {
	Categories []FacetCount `json:"categories"`
	ExamTypes  []FacetCount `json:"exam_types"`
	Subjects   []FacetCount `json:"subjects"`
}
