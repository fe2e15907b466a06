package fetcher

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/curator/internal/frontier"
)

// ExtractLinks returns the absolute http(s) links of an HTML page in
// document order, without duplicates. A <base href> overrides pageURL.
func ExtractLinks(pageURL string, body []byte) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, parseErr := base.Parse(href); parseErr == nil {
			base = b
		}
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		if rel, _ := s.Attr("rel"); rel == "nofollow" {
			return
		}
		href, _ := s.Attr("href")
		abs, ok := frontier.Resolve(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}
