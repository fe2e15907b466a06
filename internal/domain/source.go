package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SourceType describes what a seed points at.
type SourceType string

const (
	SourceTypeWebsite    SourceType = "website"
	SourceTypeRepository SourceType = "repository"
	SourceTypeGovernment SourceType = "government"
	SourceTypeUniversity SourceType = "university"
	SourceTypeOther      SourceType = "other"
)

// SourceStatus is an operator-visible health flag.
type SourceStatus string

const (
	SourceStatusActive   SourceStatus = "active"
	SourceStatusInactive SourceStatus = "inactive"
	SourceStatusError    SourceStatus = "error"
)

// Source is a crawl seed in the registry.
type Source struct {
	ID                   string       `db:"id"                     json:"id"`
	URL                  string       `db:"url"                    json:"url"`
	Name                 string       `db:"name"                   json:"name"`
	Type                 SourceType   `db:"type"                   json:"type"`
	Priority             int          `db:"priority"               json:"priority"`
	AutoCrawl            bool         `db:"auto_crawl"             json:"auto_crawl"`
	CrawlSchedule        string       `db:"crawl_schedule"         json:"crawl_schedule,omitempty"`
	Status               SourceStatus `db:"status"                 json:"status"`
	TotalContentFound    int          `db:"total_content_found"    json:"total_content_found"`
	TotalFilesDownloaded int          `db:"total_files_downloaded" json:"total_files_downloaded"`
	LastCrawledAt        *time.Time   `db:"last_crawled_at"        json:"last_crawled_at,omitempty"`
	CreatedAt            time.Time    `db:"created_at"             json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"             json:"updated_at"`
}

// Validate checks operator input and fills defaults.
func (s *Source) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if err := ValidateSeedURL(s.URL); err != nil {
		return &ValidationError{Field: "url", Message: err.Error()}
	}
	switch s.Type {
	case "":
		s.Type = SourceTypeWebsite
	case SourceTypeWebsite, SourceTypeRepository, SourceTypeGovernment, SourceTypeUniversity, SourceTypeOther:
	default:
		return &ValidationError{Field: "type", Message: "unknown source type " + string(s.Type)}
	}
	switch s.Status {
	case "":
		s.Status = SourceStatusActive
	case SourceStatusActive, SourceStatusInactive, SourceStatusError:
	default:
		return &ValidationError{Field: "status", Message: "unknown source status " + string(s.Status)}
	}
	return nil
}

// SourceCrawlStats is applied to a source when a job touching it completes.
type SourceCrawlStats struct {
	ContentFound    int
	FilesDownloaded int
	CrawledAt       time.Time
}

// ValidateSeedURL accepts absolute http(s) URLs with a host.
func ValidateSeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host: %q", raw)
	}
	return nil
}
