package pipeline

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// minReadabilityWords is the word count under which readability output is
// treated as a miss and the DOM text is used instead.
const minReadabilityWords = 20

const boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

func extractHTML(pageURL string, body []byte) (string, Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", Metadata{}, &domain.ExtractionError{
			Reason: domain.ExtractionCorruptDocument,
			Err:    fmt.Errorf("parse html: %w", err),
		}
	}

	meta := htmlMetadata(doc)

	title, text := readabilityText(pageURL, body)
	if wordCount(text) >= minReadabilityWords {
		meta.Method = MethodReadability
	} else {
		text = domText(doc)
		meta.Method = MethodDOM
	}
	if meta.Title == "" {
		meta.Title = title
	}

	if strings.TrimSpace(text) == "" {
		return "", Metadata{}, &domain.ExtractionError{Reason: domain.ExtractionUnsupportedFormat, Err: errNoText}
	}
	return text, meta, nil
}

// readabilityText returns readability's title and text content, or empty
// strings when it cannot make sense of the page.
func readabilityText(pageURL string, body []byte) (title, text string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent)
}

// domText is the body text without boilerplate elements.
func domText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body = body.Clone()
	body.Find(boilerplateSelector).Remove()
	return collapseSpace(body.Text())
}

func htmlMetadata(doc *goquery.Document) Metadata {
	meta := Metadata{
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Description:  metaContent(doc, "description"),
		Keywords:     metaContent(doc, "keywords"),
		Author:       metaContent(doc, "author"),
		PublishedAt:  metaContent(doc, "article:published_time"),
		CanonicalURL: strings.TrimSpace(doc.Find("link[rel='canonical']").AttrOr("href", "")),
		Language:     strings.TrimSpace(doc.Find("html").AttrOr("lang", "")),
		Headings:     doc.Find("h1, h2, h3").Length(),
		ListItems:    doc.Find("li").Length(),
		HasImage:     doc.Find("article img, main img").Length() > 0 || metaContent(doc, "og:image") != "",
	}
	if meta.Title == "" {
		meta.Title = metaContent(doc, "og:title")
	}
	if meta.Description == "" {
		meta.Description = metaContent(doc, "og:description")
	}
	return meta
}

// metaContent reads a <meta> tag by property first, then by name.
func metaContent(doc *goquery.Document, key string) string {
	if v, ok := doc.Find(fmt.Sprintf("meta[property='%s']", key)).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(doc.Find(fmt.Sprintf("meta[name='%s']", key)).First().AttrOr("content", ""))
}
