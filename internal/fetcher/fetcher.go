// Package fetcher executes crawl jobs: HTTP fetching with size and time
// limits, robots.txt compliance, per-host politeness, link discovery and the
// breadth-first job runner.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// MaxBodyBytes caps every fetched response.
const MaxBodyBytes = 10 * 1024 * 1024

const defaultRequestTimeout = 30 * time.Second

// Response is a fetched document.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTTPFetcher performs single GET requests and classifies their failures
// into domain.FetchError kinds.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher creates a fetcher. A nil client gets the default timeout.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, maxBytes: MaxBodyBytes}
}

// Fetch GETs rawURL. Non-2xx responses, oversized bodies, timeouts and
// transport errors return a *domain.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.FetchErrorNetwork, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.5")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req) //nolint:gosec // URL comes from the job frontier
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBytes))
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.FetchErrorHTTPStatus, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.maxBytes {
		return nil, &domain.FetchError{
			URL:  rawURL,
			Kind: domain.FetchErrorTooLarge,
			Err:  fmt.Errorf("content-length %d exceeds %d", resp.ContentLength, f.maxBytes),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: classifyTransportError(err), Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &domain.FetchError{
			URL:  rawURL,
			Kind: domain.FetchErrorTooLarge,
			Err:  fmt.Errorf("body exceeds %d bytes", f.maxBytes),
		}
	}

	return &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func classifyTransportError(err error) domain.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FetchErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FetchErrorTimeout
	}
	return domain.FetchErrorNetwork
}
