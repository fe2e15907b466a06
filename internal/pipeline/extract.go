package pipeline

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// Extraction methods recorded in Metadata.Method.
const (
	MethodReadability = "readability"
	MethodDOM         = "dom"
	MethodPDF         = "pdf"
	MethodText        = "text"
)

const maxTitleLength = 300

var errNoText = errors.New("no readable text")

// Metadata describes a document beyond its text.
type Metadata = domain.DocumentMetadata

// Extractor turns a fetched body into text and metadata. Errors are
// *domain.ExtractionError.
type Extractor interface {
	Extract(pageURL string, body []byte, contentType string) (string, Metadata, error)
}

// DocumentExtractor dispatches on the content kind.
type DocumentExtractor struct{}

// NewDocumentExtractor creates the default extractor.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// Extract implements Extractor.
func (e *DocumentExtractor) Extract(pageURL string, body []byte, contentType string) (string, Metadata, error) {
	var (
		text string
		meta Metadata
		err  error
	)
	switch domain.ContentKind(contentType) {
	case domain.ContentKindHTML:
		text, meta, err = extractHTML(pageURL, body)
	case domain.ContentKindPDF:
		text, meta, err = extractPDF(body)
	case domain.ContentKindText:
		text, meta, err = extractPlainText(body)
	default:
		err = &domain.ExtractionError{Reason: domain.ExtractionUnsupportedFormat}
	}
	if err != nil {
		var ee *domain.ExtractionError
		if errors.As(err, &ee) {
			ee.URL = pageURL
			return "", Metadata{}, ee
		}
		return "", Metadata{}, &domain.ExtractionError{URL: pageURL, Reason: domain.ExtractionCorruptDocument, Err: err}
	}

	text = strings.TrimSpace(text)
	meta.Title = truncateRunes(collapseSpace(meta.Title), maxTitleLength)
	meta.WordCount = wordCount(text)
	return text, meta, nil
}

func extractPlainText(body []byte) (string, Metadata, error) {
	if !utf8.Valid(body) {
		return "", Metadata{}, &domain.ExtractionError{
			Reason: domain.ExtractionCorruptDocument,
			Err:    errors.New("invalid utf-8"),
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", Metadata{}, &domain.ExtractionError{Reason: domain.ExtractionUnsupportedFormat, Err: errNoText}
	}

	meta := Metadata{Method: MethodText}
	for line := range strings.Lines(text) {
		if l := strings.TrimSpace(line); l != "" {
			meta.Title = l
			break
		}
	}
	return text, meta, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
