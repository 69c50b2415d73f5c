// Package crawler walks a single site breadth-first, fetching every internal
// page once and classifying each discovered link as broken, redirected,
// healthy or external.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cleansite/linkcheck/internal/config"
	"github.com/cleansite/linkcheck/internal/fetcher"
	"github.com/cleansite/linkcheck/internal/linkurl"
	"github.com/cleansite/linkcheck/internal/parser"
)

// ErrAlreadyRun is returned when Run is called twice on the same engine
var ErrAlreadyRun = errors.New("crawl engine has already run")

// Engine implements the Crawler interface. All crawl state is owned by the
// goroutine calling Run; only fetches run in parallel.
type Engine struct {
	config  *config.CrawlConfig
	fetcher fetcher.Fetcher
	logger  *slog.Logger

	baseURL    string
	queue      targetQueue
	visited    map[string]struct{}
	visitOrder []string
	broken     *ordered[BrokenLink]
	redirects  *ordered[Redirect]
	external   *ordered[ExternalLink]
	totalPages int
	totalLinks int

	// Batch members that are marked visited but whose results are not yet
	// applied, and the referrals to them that arrived in the meantime.
	pending  map[string]struct{}
	deferred []CrawlTarget

	progress *progressReporter
	ran      bool

	stats      Stats
	statsMutex sync.RWMutex
}

// NewEngine creates a crawl engine for cfg.BaseURL using f to load pages.
// The fetcher is owned by the caller.
func NewEngine(cfg *config.CrawlConfig, f fetcher.Fetcher, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		config:    cfg,
		fetcher:   f,
		logger:    logger,
		visited:   make(map[string]struct{}),
		broken:    newOrdered[BrokenLink](),
		redirects: newOrdered[Redirect](),
		external:  newOrdered[ExternalLink](),
		pending:   make(map[string]struct{}),
		progress:  newProgressReporter(logger, progressInterval),
	}, nil
}

// Run crawls the site until the queue is empty. If ctx is cancelled the
// crawl stops between batches and the partial result is returned with
// ctx's error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.ran {
		return nil, ErrAlreadyRun
	}
	e.ran = true
	startedAt := time.Now()

	seed, ok := linkurl.Normalize(e.config.BaseURL, e.config.BaseURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidBaseURL, e.config.BaseURL)
	}
	e.baseURL = seed
	e.queue.push(CrawlTarget{URL: seed, Depth: 0, DiscoveredOn: InitialReferrer})

	e.logger.Info("Starting crawl",
		"base_url", seed,
		"max_depth", e.config.MaxDepth,
		"concurrency", e.config.Concurrency,
	)

	for e.queue.len() > 0 {
		if err := ctx.Err(); err != nil {
			return e.interrupted(startedAt, err)
		}

		batch := e.nextBatch()
		if len(batch) == 0 {
			continue
		}

		pages := e.fetchBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			// Results of an interrupted batch are unreliable; drop them.
			return e.interrupted(startedAt, err)
		}

		for i, target := range batch {
			e.handle(target, pages[i])
			delete(e.pending, target.URL)
		}
		for _, d := range e.deferred {
			e.revisit(d)
		}
		e.deferred = e.deferred[:0]

		stats := e.updateStats()
		e.progress.report(stats)
	}

	result := e.result(startedAt)
	e.logger.Info("Crawl completed",
		"pages", result.TotalPages,
		"links", result.TotalLinks,
		"broken", len(result.Broken),
		"redirects", len(result.Redirects),
		"external", len(result.External),
		"duration", result.FinishedAt.Sub(startedAt).Round(time.Millisecond),
	)
	return result, nil
}

// Stats returns the counters as of the last completed batch
func (e *Engine) Stats() Stats {
	e.statsMutex.RLock()
	defer e.statsMutex.RUnlock()
	return e.stats
}

func (e *Engine) interrupted(startedAt time.Time, err error) (*Result, error) {
	e.updateStats()
	result := e.result(startedAt)
	e.logger.Warn("Crawl interrupted",
		"visited", len(result.Visited),
		"queued", e.queue.len(),
		"error", err,
	)
	return result, err
}

// nextBatch dequeues up to Concurrency unvisited targets, marking each
// visited as it is taken. Already visited targets are not fetched again;
// their referrer is merged into any record the earlier fetch produced.
func (e *Engine) nextBatch() []CrawlTarget {
	limit := max(e.config.Concurrency, 1)
	batch := make([]CrawlTarget, 0, limit)

	for len(batch) < limit {
		target, ok := e.queue.pop()
		if !ok {
			break
		}
		if _, seen := e.visited[target.URL]; seen {
			e.revisitOrDefer(target)
			continue
		}

		e.visited[target.URL] = struct{}{}
		e.visitOrder = append(e.visitOrder, target.URL)
		e.pending[target.URL] = struct{}{}
		batch = append(batch, target)
	}
	return batch
}

func (e *Engine) fetchBatch(ctx context.Context, batch []CrawlTarget) []*fetcher.Page {
	pages := make([]*fetcher.Page, len(batch))
	if len(batch) == 1 {
		pages[0] = e.fetch(ctx, batch[0])
		return pages
	}

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, target := range batch {
		i, target := i, target
		g.Go(func() error {
			pages[i] = e.fetch(ctx, target)
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

func (e *Engine) fetch(ctx context.Context, target CrawlTarget) *fetcher.Page {
	e.logger.Debug("Fetching", "url", target.URL, "depth", target.Depth, "found_on", target.DiscoveredOn)

	page := e.fetcher.Fetch(ctx, target.URL)
	if page == nil {
		page = &fetcher.Page{
			URL:        target.URL,
			FinalURL:   target.URL,
			StatusCode: fetcher.StatusNetworkError,
			Err:        errors.New("fetcher returned no page"),
		}
	}
	return page
}

// handle applies one fetch result to the crawl state
func (e *Engine) handle(target CrawlTarget, page *fetcher.Page) {
	// pageURL is where the document actually lives; relative links resolve
	// against it, before any trailing slash is normalized away.
	finalURL, pageURL := target.URL, target.URL
	if !page.Failed() && page.FinalURL != "" {
		if normalized, ok := linkurl.Normalize(page.FinalURL, target.URL); ok {
			finalURL, pageURL = normalized, page.FinalURL
		}
	}

	if finalURL != target.URL {
		e.recordRedirect(target, finalURL)
	}

	if IsBroken(page.StatusCode) {
		e.recordBroken(target, page.StatusCode)
		e.logger.Warn("Broken link",
			"url", target.URL,
			"status", page.StatusCode,
			"found_on", target.DiscoveredOn,
			"error", page.Err,
		)
		return
	}

	e.totalPages++
	e.logger.Debug("Fetched page",
		"url", target.URL,
		"status", page.StatusCode,
		"elapsed", page.Elapsed,
	)

	if target.Depth >= e.config.MaxDepth {
		return
	}
	if !linkurl.IsInternal(finalURL, e.baseURL) {
		e.logger.Debug("Redirected off site, not following links",
			"url", target.URL,
			"target", finalURL,
			"host", linkurl.Host(finalURL),
		)
		return
	}

	result, err := parser.Parse(page.Body)
	if err != nil {
		e.logger.Warn("Failed to parse page", "url", target.URL, "error", err)
		return
	}

	e.logger.Debug("Extracted links", "url", target.URL, "title", result.Title, "links", len(result.Links))
	e.totalLinks += len(result.Links)
	for _, raw := range result.Links {
		link, ok := linkurl.Normalize(raw, pageURL)
		if !ok {
			e.logger.Debug("Skipping unparseable link", "href", raw, "page", target.URL)
			continue
		}

		if !linkurl.IsInternal(link, e.baseURL) {
			e.recordExternal(link, target.URL)
			continue
		}

		next := CrawlTarget{URL: link, Depth: target.Depth + 1, DiscoveredOn: target.URL}
		if _, seen := e.visited[link]; seen {
			e.revisitOrDefer(next)
			continue
		}
		e.queue.push(next)
	}
}

func (e *Engine) revisitOrDefer(target CrawlTarget) {
	if _, inFlight := e.pending[target.URL]; inFlight {
		e.deferred = append(e.deferred, target)
		return
	}
	e.revisit(target)
}

// revisit records another referrer for a URL that was already fetched
func (e *Engine) revisit(target CrawlTarget) {
	if b, ok := e.broken.get(target.URL); ok {
		b.FoundOn = append(b.FoundOn, target.DiscoveredOn)
	}
	if r, ok := e.redirects.get(target.URL); ok {
		r.FoundOn = append(r.FoundOn, target.DiscoveredOn)
	}
}

func (e *Engine) recordBroken(target CrawlTarget, status int) {
	if b, ok := e.broken.get(target.URL); ok {
		b.FoundOn = append(b.FoundOn, target.DiscoveredOn)
		return
	}
	e.broken.add(target.URL, &BrokenLink{
		URL:     target.URL,
		Status:  status,
		FoundOn: []string{target.DiscoveredOn},
	})
}

// recordRedirect keeps the target of the first fetch; later referrers only
// extend FoundOn.
func (e *Engine) recordRedirect(target CrawlTarget, finalURL string) {
	if r, ok := e.redirects.get(target.URL); ok {
		r.FoundOn = append(r.FoundOn, target.DiscoveredOn)
		return
	}
	e.redirects.add(target.URL, &Redirect{
		URL:     target.URL,
		Target:  finalURL,
		FoundOn: []string{target.DiscoveredOn},
	})
	e.logger.Debug("Redirect", "url", target.URL, "target", finalURL)
}

func (e *Engine) recordExternal(link, referrer string) {
	if x, ok := e.external.get(link); ok {
		x.Referrers = append(x.Referrers, referrer)
		return
	}
	e.external.add(link, &ExternalLink{URL: link, Referrers: []string{referrer}})
}

func (e *Engine) updateStats() Stats {
	stats := Stats{
		Visited:   len(e.visitOrder),
		Pages:     e.totalPages,
		Links:     e.totalLinks,
		Queued:    e.queue.len(),
		Broken:    e.broken.len(),
		Redirects: e.redirects.len(),
		External:  e.external.len(),
	}

	e.statsMutex.Lock()
	e.stats = stats
	e.statsMutex.Unlock()
	return stats
}

func (e *Engine) result(startedAt time.Time) *Result {
	visited := make([]string, len(e.visitOrder))
	copy(visited, e.visitOrder)

	return &Result{
		BaseURL:    e.baseURL,
		MaxDepth:   e.config.MaxDepth,
		TotalPages: e.totalPages,
		TotalLinks: e.totalLinks,
		Visited:    visited,
		Broken:     e.broken.values(cloneBroken),
		Redirects:  e.redirects.values(cloneRedirect),
		External:   e.external.values(cloneExternal),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
}
