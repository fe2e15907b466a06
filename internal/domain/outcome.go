package domain

import "fmt"

// ContentKind is a content-type filter value.
type ContentKind string

const (
	ContentKindHTML ContentKind = "html"
	ContentKindPDF  ContentKind = "pdf"
	ContentKindDoc  ContentKind = "doc"
	ContentKindText ContentKind = "txt"
)

// ParseContentKind validates a content_type_filters entry.
func ParseContentKind(raw string) (ContentKind, error) {
	k := ContentKind(raw)
	switch k {
	case ContentKindHTML, ContentKindPDF, ContentKindDoc, ContentKindText:
		return k, nil
	}
	return "", &ValidationError{Field: "content_type_filters", Message: fmt.Sprintf("unknown content type %q", raw)}
}

// OutcomeKind is the terminal result of one URL.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailure OutcomeKind = "failure"
)

// Skip reasons.
const (
	SkipRobots          = "robots"
	SkipDiscoveryOnly   = "discovery_only"
	SkipContentMismatch = "content_type_mismatch"
	SkipNotModified     = "not_modified"
)

// Outcome is reported once per URL by the fetcher. For successes, Title and
// QualityScore are filled by the pipeline before the report.
type Outcome struct {
	Kind         OutcomeKind
	ContentType  string
	SizeBytes    int64
	Body         []byte
	Reason       string
	Err          error
	Title        string
	QualityScore *int
}

// Success builds a success outcome.
func Success(body []byte, contentType string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Body: body, ContentType: contentType, SizeBytes: int64(len(body))}
}

// Skipped builds a skipped outcome.
func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

// Failure builds a failure outcome.
func Failure(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// Counted reports whether the outcome increments items_processed.
// Discovery-only fetches are never items.
func (o Outcome) Counted() bool {
	return !(o.Kind == OutcomeSkipped && o.Reason == SkipDiscoveryOnly)
}
