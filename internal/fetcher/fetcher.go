// Package fetcher loads pages for the crawler. A fetch never fails from the
// caller's point of view: timeouts and navigation errors are reported as a
// Page with a zero status code.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/cleansite/linkcheck/internal/config"
)

// StatusNetworkError is the status recorded when no HTTP response was
// received at all (timeout, DNS failure, refused connection, TLS error).
const StatusNetworkError = 0

// Page is the outcome of loading one URL
type Page struct {
	URL        string        // URL that was requested
	FinalURL   string        // URL after redirects; equals URL when the fetch failed
	StatusCode int           // Status of the final response, StatusNetworkError on failure
	Body       []byte        // Document HTML, nil when unavailable
	Err        error         // Navigation error behind a StatusNetworkError page
	Elapsed    time.Duration // Wall time spent on the fetch
}

// Failed reports whether no HTTP response was received
func (p *Page) Failed() bool {
	return p.StatusCode == StatusNetworkError
}

// Fetcher retrieves a page. Implementations must be safe for concurrent use
// and must not return a nil Page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *Page
	Close() error
}

// Options configures the production fetchers
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string

	// Browser fetcher only
	Headless  bool
	ExecPath  string
	NoSandbox bool
}

// OptionsFromConfig maps crawl settings onto fetcher options
func OptionsFromConfig(cfg *config.CrawlConfig) Options {
	return Options{
		Timeout:   cfg.PageTimeout,
		UserAgent: cfg.UserAgent,
		Headers:   cfg.ParseHeaders(),
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		NoSandbox: cfg.Browser.NoSandbox,
	}
}

// New builds the fetcher selected by kind. For the browser fetcher this
// launches Chrome; an error here is a fatal setup error.
func New(ctx context.Context, kind string, opts Options) (Fetcher, error) {
	switch kind {
	case config.FetcherBrowser:
		return NewBrowserFetcher(ctx, opts)
	case config.FetcherHTTP:
		return NewHTTPFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unsupported fetcher %q", kind)
	}
}

func failedPage(url string, err error, start time.Time) *Page {
	return &Page{
		URL:        url,
		FinalURL:   url,
		StatusCode: StatusNetworkError,
		Err:        err,
		Elapsed:    time.Since(start),
	}
}
