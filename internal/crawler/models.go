package crawler

import (
	"slices"
	"time"

	"github.com/cleansite/linkcheck/internal/fetcher"
)

// InitialReferrer is the DiscoveredOn value of the seed target
const InitialReferrer = "initial"

// CrawlTarget is a URL waiting in the crawl queue
type CrawlTarget struct {
	URL          string // Normalized URL to visit
	Depth        int    // BFS distance from the seed
	DiscoveredOn string // Page the link was found on, InitialReferrer for the seed
}

// BrokenLink is an internal URL that failed to load or answered >= 400
type BrokenLink struct {
	URL     string
	Status  int      // HTTP status, fetcher.StatusNetworkError for timeouts and network errors
	FoundOn []string // Every page linking here, in discovery order
}

// Redirect is an internal URL whose fetch ended on a different URL
type Redirect struct {
	URL     string   // Requested URL
	Target  string   // Normalized final URL of the first fetch
	FoundOn []string // Every page linking here, in discovery order
}

// ExternalLink is a link to another host. External links are never fetched.
type ExternalLink struct {
	URL       string
	Referrers []string // Internal pages linking here, one entry per anchor
}

// Result is the engine state at the end of a run
type Result struct {
	BaseURL    string
	MaxDepth   int
	TotalPages int      // Pages fetched successfully (broken targets excluded)
	TotalLinks int      // Anchors extracted across all pages
	Visited    []string // Every dequeued URL, in visit order
	Broken     []BrokenLink
	Redirects  []Redirect
	External   []ExternalLink // In first-seen order
	StartedAt  time.Time
	FinishedAt time.Time
}

// Stats is a point-in-time view of a running crawl
type Stats struct {
	Visited   int
	Pages     int
	Links     int
	Queued    int
	Broken    int
	Redirects int
	External  int
}

// IsBroken reports whether a fetch status marks the target as broken
func IsBroken(status int) bool {
	return status == fetcher.StatusNetworkError || status >= 400
}

// ordered is a map that remembers insertion order
type ordered[T any] struct {
	keys  []string
	items map[string]*T
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{items: make(map[string]*T)}
}

func (o *ordered[T]) get(key string) (*T, bool) {
	v, ok := o.items[key]
	return v, ok
}

func (o *ordered[T]) add(key string, v *T) {
	if _, exists := o.items[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.items[key] = v
}

func (o *ordered[T]) len() int {
	return len(o.keys)
}

// values returns copies of the stored records in insertion order; clone
// deep-copies any slices so the snapshot does not alias engine state.
func (o *ordered[T]) values(clone func(T) T) []T {
	out := make([]T, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, clone(*o.items[k]))
	}
	return out
}

func cloneBroken(b BrokenLink) BrokenLink {
	b.FoundOn = slices.Clone(b.FoundOn)
	return b
}

func cloneRedirect(r Redirect) Redirect {
	r.FoundOn = slices.Clone(r.FoundOn)
	return r
}

func cloneExternal(e ExternalLink) ExternalLink {
	e.Referrers = slices.Clone(e.Referrers)
	return e
}
