package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"
)

const maxBodyBytes = 10 * 1024 * 1024

// HTTPFetcher loads pages with net/http. It follows redirects but does not
// execute JavaScript, so it only sees links present in the served HTML.
type HTTPFetcher struct {
	client        *http.Client
	userAgent     string
	customHeaders map[string]string
}

// NewHTTPFetcher creates a new HTTP fetcher
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:        client,
		userAgent:     opts.UserAgent,
		customHeaders: headers,
	}
}

// Fetch performs a GET request and reports the final status and URL.
// The body is kept only for HTML responses.
func (h *HTTPFetcher) Fetch(ctx context.Context, url string) *Page {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failedPage(url, fmt.Errorf("failed to create request: %w", err), start)
	}

	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for name, value := range h.customHeaders {
		req.Header.Set(name, value)
	}

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := h.client.Do(req)
	if err != nil {
		return failedPage(url, fmt.Errorf("request failed: %w", err), start)
	}
	defer func() { _ = resp.Body.Close() }()

	page := &Page{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			// Status and final URL are already known; links are just unavailable.
			slog.Debug("Failed to read response body", "url", url, "error", err)
		} else {
			page.Body = body
		}
	}

	page.Elapsed = time.Since(start)
	if !firstByte.IsZero() {
		slog.Debug("HTTP fetch complete", "url", url, "status", resp.StatusCode,
			"ttfb", firstByte.Sub(start), "elapsed", page.Elapsed)
	}

	return page
}

// Close releases idle connections
func (h *HTTPFetcher) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

var _ Fetcher = (*HTTPFetcher)(nil)
