// Package importer bulk-loads sources from YAML or XLSX files.
package importer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/job"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// Format is a supported import file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// SourceUpserter stores imported sources keyed by url.
type SourceUpserter interface {
	UpsertByURL(ctx context.Context, sources []*domain.Source) (created, updated int, err error)
}

// SourceRow is one source as read from a file, before validation.
type SourceRow struct {
	Row           int    `yaml:"-"`
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	Type          string `yaml:"type"`
	Priority      int    `yaml:"priority"`
	AutoCrawl     bool   `yaml:"auto_crawl"`
	CrawlSchedule string `yaml:"crawl_schedule"`
	Status        string `yaml:"status"`

	// problem is set when a cell could not be parsed.
	problem string
}

// ImportError reports a rejected row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result summarises an import. Rows listed in Errors were not stored.
type Result struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Errors  []ImportError `json:"errors"`
}

// Importer validates rows and upserts the valid ones in one batch.
type Importer struct {
	repo SourceUpserter
	log  logger.Logger
}

// New creates an importer.
func New(repo SourceUpserter, log logger.Logger) *Importer {
	return &Importer{repo: repo, log: log}
}

// DetectFormat picks the format from a file name's extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", &domain.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file type %q (want .yaml, .yml or .xlsx)", filepath.Ext(filename)),
		}
	}
}

// Import parses r in the format implied by filename and stores every valid
// row. Invalid rows are reported in the result and skipped.
func (i *Importer) Import(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var rows []SourceRow
	switch format {
	case FormatYAML:
		rows, err = ParseYAML(r)
	case FormatXLSX:
		rows, err = ParseExcel(r)
	}
	if err != nil {
		return nil, &domain.ValidationError{Field: "file", Message: err.Error()}
	}

	sources, rowErrors := Validate(rows)
	result := &Result{Errors: rowErrors}

	if len(sources) > 0 {
		created, updated, upsertErr := i.repo.UpsertByURL(ctx, sources)
		if upsertErr != nil {
			return nil, fmt.Errorf("import sources: %w", upsertErr)
		}
		result.Created, result.Updated = created, updated
	}

	i.log.Info("Imported sources",
		logger.String("file", filename),
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("rejected", len(result.Errors)),
	)
	return result, nil
}

// Validate converts rows to sources. A url repeated later in the file is
// rejected in favour of its first occurrence.
func Validate(rows []SourceRow) ([]*domain.Source, []ImportError) {
	sources := make([]*domain.Source, 0, len(rows))
	errs := make([]ImportError, 0)
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		if row.problem != "" {
			errs = append(errs, ImportError{Row: row.Row, Error: row.problem})
			continue
		}
		src := &domain.Source{
			Name:          row.Name,
			URL:           strings.TrimSpace(row.URL),
			Type:          domain.SourceType(strings.ToLower(strings.TrimSpace(row.Type))),
			Priority:      row.Priority,
			AutoCrawl:     row.AutoCrawl,
			CrawlSchedule: strings.TrimSpace(row.CrawlSchedule),
			Status:        domain.SourceStatus(strings.ToLower(strings.TrimSpace(row.Status))),
		}
		if err := src.Validate(); err != nil {
			errs = append(errs, ImportError{Row: row.Row, Error: err.Error()})
			continue
		}
		if err := job.ValidateSchedule(src.CrawlSchedule); err != nil {
			errs = append(errs, ImportError{Row: row.Row, Error: err.Error()})
			continue
		}
		if first, dup := seen[src.URL]; dup {
			errs = append(errs, ImportError{Row: row.Row, Error: fmt.Sprintf("duplicate url, first seen in row %d", first)})
			continue
		}
		seen[src.URL] = row.Row
		sources = append(sources, src)
	}
	return sources, errs
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "no", "n", "0":
		return false, nil
	case "true", "yes", "y", "1":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}
