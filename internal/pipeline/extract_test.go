package pipeline

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

func buildPDF(dict string, content []byte) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d %s >>\nstream\n", len(content), dict)
	b.Write(content)
	b.WriteString("\nendstream\nendobj\n")
	b.WriteString("5 0 obj\n<< /Title (Algebra Notes) /Author (J. Okafor) >>\nendobj\n")
	b.WriteString("trailer\n<< /Root 1 0 R /Info 5 0 R >>\n%%EOF\n")
	return b.Bytes()
}

func flate(t *testing.T, s string) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

func extractionReason(t *testing.T, err error) domain.ExtractionReason {
	t.Helper()
	var ee *domain.ExtractionError
	require.True(t, errors.As(err, &ee), "expected ExtractionError, got %v", err)
	return ee.Reason
}

func TestExtract_PDFLiteralText(t *testing.T) {
	body := buildPDF("", []byte("BT /F1 12 Tf 72 712 Td (Quadratic equations) Tj 0 -14 Td (and their roots) Tj ET"))

	text, meta, err := NewDocumentExtractor().Extract("https://example.edu/algebra.pdf", body, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "Quadratic equations and their roots", text)
	assert.Equal(t, "Algebra Notes", meta.Title)
	assert.Equal(t, "J. Okafor", meta.Author)
	assert.Equal(t, 1, meta.Pages)
	assert.Equal(t, MethodPDF, meta.Method)
	assert.Equal(t, 5, meta.WordCount)
}

func TestExtract_PDFFlateStream(t *testing.T) {
	body := buildPDF("/Filter /FlateDecode", flate(t, "BT [(Cell)-250(division)] TJ ET BT <4D69746F736973> Tj ET"))

	text, _, err := NewDocumentExtractor().Extract("https://example.edu/bio.pdf", body, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "Cell division Mitosis", text)
}

func TestExtract_PDFEscapes(t *testing.T) {
	body := buildPDF("", []byte(`BT (R\351sum\351 \(first\) draft) Tj ET`))

	text, _, err := NewDocumentExtractor().Extract("https://example.edu/physics.pdf", body, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "Résumé (first) draft", text)
}

func TestExtract_PDFErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		reason domain.ExtractionReason
	}{
		{
			name:   "missing header",
			body:   []byte("<html>not a pdf</html>"),
			reason: domain.ExtractionCorruptDocument,
		},
		{
			name:   "truncated",
			body:   bytes.TrimSuffix(buildPDF("", []byte("BT (x) Tj ET")), []byte("%%EOF\n")),
			reason: domain.ExtractionCorruptDocument,
		},
		{
			name:   "no text operators",
			body:   buildPDF("", []byte("0 0 m 100 100 l S")),
			reason: domain.ExtractionUnsupportedFormat,
		},
		{
			name:   "unsupported filter",
			body:   buildPDF("/Filter /DCTDecode", []byte("BT (hidden) Tj ET")),
			reason: domain.ExtractionUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDocumentExtractor().Extract("https://example.edu/doc.pdf", tt.body, "pdf")
			assert.Equal(t, tt.reason, extractionReason(t, err))

			var ee *domain.ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, "https://example.edu/doc.pdf", ee.URL)
		})
	}
}

func TestExtract_HTML(t *testing.T) {
	paragraph := strings.Repeat("Photosynthesis converts light energy into chemical energy in plant cells. ", 6)
	body := []byte(`<!DOCTYPE html>
<html lang="en">
<head>
  <title>Photosynthesis Lesson Notes</title>
  <meta name="description" content="Notes for SS2 biology">
  <meta name="author" content="Biology Department">
  <link rel="canonical" href="https://example.edu/bio/photosynthesis">
</head>
<body>
  <nav>Home | Courses | Contact</nav>
  <article>
    <h1>Photosynthesis</h1>
    <h2>Light reactions</h2>
    <p>` + paragraph + `</p>
    <ul><li>Chlorophyll</li><li>Stomata</li><li>Glucose</li></ul>
  </article>
  <script>console.log("tracking")</script>
</body>
</html>`)

	text, meta, err := NewDocumentExtractor().Extract("https://example.edu/bio/photosynthesis", body, "html")
	require.NoError(t, err)

	assert.Contains(t, text, "Photosynthesis converts light energy")
	assert.NotContains(t, text, "tracking")
	assert.Equal(t, "Photosynthesis Lesson Notes", meta.Title)
	assert.Equal(t, "Notes for SS2 biology", meta.Description)
	assert.Equal(t, "Biology Department", meta.Author)
	assert.Equal(t, "https://example.edu/bio/photosynthesis", meta.CanonicalURL)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, 2, meta.Headings)
	assert.Equal(t, 3, meta.ListItems)
	assert.Contains(t, []string{MethodReadability, MethodDOM}, meta.Method)
	assert.Positive(t, meta.WordCount)
}

func TestExtract_HTMLWithoutText(t *testing.T) {
	body := []byte(`<html><head><title></title></head><body><script>var x = 1;</script></body></html>`)

	_, _, err := NewDocumentExtractor().Extract("https://example.edu/empty", body, "html")
	assert.Equal(t, domain.ExtractionUnsupportedFormat, extractionReason(t, err))
}

func TestExtract_PlainText(t *testing.T) {
	text, meta, err := NewDocumentExtractor().Extract("https://example.edu/notes.txt",
		[]byte("\n\nLesson One: Fractions\nA fraction is part of a whole.\n"), "txt")
	require.NoError(t, err)

	assert.Equal(t, "Lesson One: Fractions", meta.Title)
	assert.Equal(t, MethodText, meta.Method)
	assert.True(t, strings.HasPrefix(text, "Lesson One"))

	_, _, err = NewDocumentExtractor().Extract("https://example.edu/bad.txt", []byte{0xff, 0xfe, 0xfd}, "txt")
	assert.Equal(t, domain.ExtractionCorruptDocument, extractionReason(t, err))
}

func TestExtract_UnsupportedKinds(t *testing.T) {
	for _, kind := range []string{"doc", "image", ""} {
		_, _, err := NewDocumentExtractor().Extract("https://example.edu/file", []byte("data"), kind)
		assert.Equal(t, domain.ExtractionUnsupportedFormat, extractionReason(t, err), kind)
	}
}
