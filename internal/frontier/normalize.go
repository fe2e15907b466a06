// Package frontier holds the breadth-first crawl frontier of a job: URL
// normalization and hashing, content-kind filtering by extension, and the
// known/visited sets that make a crawl resumable.
package frontier

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are stripped before hashing; they never change the document.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyURL    = errors.New("normalize url: empty input")
	errNotHTTP     = errors.New("normalize url: scheme must be http or https")
	errMissingHost = errors.New("normalize url: missing host")
)

// NormalizeURL returns the canonical form used as a dedup key: lowercase
// scheme and host, default port removed, dot-segments resolved, trailing
// slash trimmed, fragment dropped, tracking params removed and the rest
// sorted. The scheme is kept so the result stays fetchable.
func NormalizeURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyURL
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errNotHTTP
	}
	if u.Host == "" {
		return "", errMissingHost
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = cleanQuery(u.Query())
	u.Path = cleanPath(u.Path)
	u.RawPath = ""

	return u.String(), nil
}

// URLHash returns the SHA-256 hex digest of the normalized URL.
func URLHash(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("url hash: %w", err)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// ExtractHost returns the lowercase host (with non-default port) of rawURL.
func ExtractHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}
	if u.Host == "" {
		return "", errMissingHost
	}
	return strings.ToLower(u.Host), nil
}

// Resolve turns href, found on page base, into an absolute http(s) URL.
// It returns false for mailto:, javascript:, fragments and other non-web links.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracking := trackingParams[strings.ToLower(key)]; !tracking {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, val := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimRight(path.Clean(p), "/")
}
