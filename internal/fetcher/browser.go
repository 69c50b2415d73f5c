package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher drives one shared headless Chrome instance. Every Fetch
// opens its own tab and closes it before returning.
type BrowserFetcher struct {
	opts Options

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	logger    *slog.Logger
	closeOnce sync.Once
}

// NewBrowserFetcher launches Chrome and verifies it is reachable.
// The browser lives until Close is called or ctx is cancelled.
func NewBrowserFetcher(ctx context.Context, opts Options) (*BrowserFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.NoSandbox {
		execOpts = append(execOpts, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &BrowserFetcher{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        slog.Default().With("fetcher", "browser"),
	}, nil
}

// Fetch navigates a fresh tab to url, waits until the DOM has been parsed
// and captures the main document's status, final URL and outer HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) *Page {
	start := time.Now()

	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()

	runCtx, cancel := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	docs := newDocumentResponses()
	chromedp.ListenTarget(runCtx, docs.listen)

	var (
		frameID  cdp.FrameID
		finalURL string
		html     string
		navErr   error
	)

	err := chromedp.Run(runCtx,
		network.Enable(),
		b.extraHeaders(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Unlike chromedp.Navigate this returns on commit instead of
			// waiting for the load event.
			var res page.NavigateReturns
			if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
				return err
			}
			frameID = res.FrameID
			if res.ErrorText != "" {
				navErr = errors.New(res.ErrorText)
				return navErr
			}
			return nil
		}),
		waitForDOMContentLoaded(),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		// Chrome aborts navigation to an error status with an empty body
		// (net::ERR_HTTP_RESPONSE_CODE_FAILURE) even though a response
		// arrived; keep its status.
		if navErr != nil {
			if resp := docs.get(frameID); resp != nil {
				b.logger.Debug("Navigation aborted after response", "url", url, "status", resp.Status, "error", navErr)
				return &Page{
					URL:        url,
					FinalURL:   responseURL(resp, url),
					StatusCode: int(resp.Status),
					Elapsed:    time.Since(start),
				}
			}
		}
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("navigation timed out after %s: %w", b.opts.Timeout, err)
		}
		b.logger.Debug("Navigation failed", "url", url, "error", err)
		return failedPage(url, err, start)
	}

	resp := docs.get(frameID)
	if resp == nil {
		return failedPage(url, errors.New("no document response received"), start)
	}

	if finalURL == "" {
		finalURL = responseURL(resp, url)
	}

	return &Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: int(resp.Status),
		Body:       []byte(html),
		Elapsed:    time.Since(start),
	}
}

// Close shuts the browser down
func (b *BrowserFetcher) Close() error {
	b.closeOnce.Do(func() {
		b.browserCancel()
		b.allocCancel()
	})
	return nil
}

func (b *BrowserFetcher) extraHeaders() chromedp.Action {
	if len(b.opts.Headers) == 0 {
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}
	headers := make(network.Headers, len(b.opts.Headers))
	for k, v := range b.opts.Headers {
		headers[k] = v
	}
	return network.SetExtraHTTPHeaders(headers)
}

// waitForDOMContentLoaded polls document.readyState until the document has
// been parsed. It does not wait for images or other subresources.
func waitForDOMContentLoaded() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "interactive" || readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}

// documentResponses remembers the last document response seen per frame.
// Redirect hops never produce a responseReceived event, so the last one is
// the final response of the chain.
type documentResponses struct {
	mu    sync.Mutex
	byFID map[cdp.FrameID]*network.Response
}

func newDocumentResponses() *documentResponses {
	return &documentResponses{byFID: make(map[cdp.FrameID]*network.Response)}
}

func (d *documentResponses) listen(ev interface{}) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	d.mu.Lock()
	d.byFID[e.FrameID] = e.Response
	d.mu.Unlock()
}

func (d *documentResponses) get(frameID cdp.FrameID) *network.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byFID[frameID]
}

func responseURL(resp *network.Response, fallback string) string {
	if resp.URL == "" {
		return fallback
	}
	return resp.URL
}

var _ Fetcher = (*BrowserFetcher)(nil)
