package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// CreateRequest is the operator input for a new job. Options is loosely typed
// at the API edge and decoded into domain.JobOptions.
type CreateRequest struct {
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	SourceID           *string        `json:"source_id,omitempty"`
	ConfigID           *string        `json:"config_id,omitempty"`
	TargetURLs         []string       `json:"target_urls"`
	ScrapingDepth      *int           `json:"scraping_depth,omitempty"`
	ContentTypeFilters []string       `json:"content_type_filters"`
	Options            map[string]any `json:"options,omitempty"`
	Priority           int            `json:"priority"`
}

// ListFilter narrows List. Status must be empty or a known status.
type ListFilter struct {
	Status   string
	Type     string
	SourceID string
	Page     int
	Limit    int
}

// buildJob validates req and returns a pending job. Unset depth, filters and
// crawl options are filled from the referenced scraping config.
func (m *Manager) buildJob(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	jobType := domain.JobTypeBulkScrape
	if req.Type != "" {
		parsed, err := domain.ParseJobType(req.Type)
		if err != nil {
			return nil, err
		}
		jobType = parsed
	}

	opts, err := decodeOptions(req.Options)
	if err != nil {
		return nil, err
	}

	targets := req.TargetURLs
	if len(targets) == 0 && req.SourceID != nil {
		src, srcErr := m.sources.GetByID(ctx, *req.SourceID)
		if srcErr != nil {
			return nil, referenceError("source_id", srcErr)
		}
		targets = []string{src.URL}
	}
	targets, err = normalizeTargets(targets)
	if err != nil {
		return nil, err
	}

	depth := 0
	filters := req.ContentTypeFilters
	if req.ScrapingDepth != nil {
		depth = *req.ScrapingDepth
	}

	if req.ConfigID != nil {
		cfg, cfgErr := m.configs.GetByID(ctx, *req.ConfigID)
		if cfgErr != nil {
			return nil, referenceError("config_id", cfgErr)
		}
		if req.ScrapingDepth == nil {
			depth = cfg.ScrapingDepth
		}
		if len(filters) == 0 {
			filters = cfg.ContentTypeFilters
		}
		if opts.PolitenessDelayMS == 0 {
			opts.PolitenessDelayMS = cfg.PolitenessDelayMS
		}
		if opts.MaxConcurrency == 0 {
			opts.MaxConcurrency = cfg.MaxConcurrency
		}
	}

	if depth < 0 || depth > domain.MaxScrapingDepth {
		return nil, &domain.ValidationError{Field: "scraping_depth", Message: "must be within 0-10"}
	}
	for _, f := range filters {
		if _, kindErr := domain.ParseContentKind(f); kindErr != nil {
			return nil, kindErr
		}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s %s", jobType, targets[0])
	}

	return &domain.Job{
		Name:               name,
		Type:               jobType,
		Status:             domain.JobStatusPending,
		SourceID:           req.SourceID,
		ConfigID:           req.ConfigID,
		TargetURLs:         targets,
		ScrapingDepth:      depth,
		ContentTypeFilters: append(domain.StringArray(nil), filters...),
		Options:            opts,
		Priority:           req.Priority,
		Attempt:            1,
	}, nil
}

// normalizeTargets trims, validates and de-duplicates seeds keeping the
// first occurrence.
func normalizeTargets(raw []string) (domain.StringArray, error) {
	if len(raw) == 0 {
		return nil, &domain.ValidationError{Field: "target_urls", Message: "at least one url is required"}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make(domain.StringArray, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if err := domain.ValidateSeedURL(u); err != nil {
			return nil, &domain.ValidationError{Field: "target_urls", Message: err.Error()}
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

func decodeOptions(raw map[string]any) (domain.JobOptions, error) {
	var opts domain.JobOptions
	if len(raw) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return opts, fmt.Errorf("create options decoder: %w", err)
	}
	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return opts, &domain.ValidationError{Field: "options", Message: decodeErr.Error()}
	}

	switch {
	case opts.PolitenessDelayMS < 0:
		return opts, &domain.ValidationError{Field: "options.politeness_delay_ms", Message: "must not be negative"}
	case opts.MaxConcurrency < 0:
		return opts, &domain.ValidationError{Field: "options.max_concurrency", Message: "must not be negative"}
	case opts.MaxPages < 0:
		return opts, &domain.ValidationError{Field: "options.max_pages", Message: "must not be negative"}
	}
	return opts, nil
}

// referenceError turns a missing referenced record into a validation error.
func referenceError(field string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ValidationError{Field: field, Message: "does not exist"}
	}
	return err
}
