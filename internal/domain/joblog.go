package domain

import "time"

// LogStatus is the per-URL result recorded in a JobLogEntry.
type LogStatus string

const (
	LogStatusCompleted LogStatus = "completed"
	LogStatusFailed    LogStatus = "failed"
	LogStatusSkipped   LogStatus = "skipped"
)

// JobLogEntry records one terminal per-URL outcome. Entries are append-only.
type JobLogEntry struct {
	ID           int64     `db:"id"            json:"id"`
	JobID        string    `db:"job_id"        json:"job_id"`
	Attempt      int       `db:"attempt"       json:"attempt"`
	URL          string    `db:"url"           json:"url"`
	Title        *string   `db:"title"         json:"title,omitempty"`
	Status       LogStatus `db:"status"        json:"status"`
	ContentType  string    `db:"content_type"  json:"content_type"`
	SizeBytes    int64     `db:"size_bytes"    json:"size_bytes"`
	QualityScore *int      `db:"quality_score" json:"quality_score,omitempty"`
	Errors       ErrorList `db:"errors"        json:"errors"`
	Timestamp    time.Time `db:"timestamp"     json:"timestamp"`
}

// ScrapingConfig is a reusable bundle of crawl parameters.
type ScrapingConfig struct {
	ID                 string      `db:"id"                   json:"id"`
	Name               string      `db:"name"                 json:"name"`
	ScrapingDepth      int         `db:"scraping_depth"       json:"scraping_depth"`
	ContentTypeFilters StringArray `db:"content_type_filters" json:"content_type_filters"`
	PolitenessDelayMS  int         `db:"politeness_delay_ms"  json:"politeness_delay_ms"`
	MaxConcurrency     int         `db:"max_concurrency"      json:"max_concurrency"`
	CreatedAt          time.Time   `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"           json:"updated_at"`
}

// MaxScrapingDepth bounds the BFS depth a job or config may request.
const MaxScrapingDepth = 10

// Validate checks operator input.
func (c *ScrapingConfig) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if c.ScrapingDepth < 0 || c.ScrapingDepth > MaxScrapingDepth {
		return &ValidationError{Field: "scraping_depth", Message: "must be within 0-10"}
	}
	if c.PolitenessDelayMS < 0 {
		return &ValidationError{Field: "politeness_delay_ms", Message: "must not be negative"}
	}
	if c.MaxConcurrency < 0 {
		return &ValidationError{Field: "max_concurrency", Message: "must not be negative"}
	}
	for _, f := range c.ContentTypeFilters {
		if _, err := ParseContentKind(f); err != nil {
			return err
		}
	}
	return nil
}
