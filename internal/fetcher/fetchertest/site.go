// Package fetchertest provides an in-memory fetcher for crawler tests.
package fetchertest

import (
	"context"
	"errors"
	"sync"

	"github.com/cleansite/linkcheck/internal/fetcher"
)

// ErrUnknownURL is the navigation error reported for URLs missing from a Site
var ErrUnknownURL = errors.New("fetchertest: no such page")

// Response is a canned answer for one URL
type Response struct {
	Status   int
	FinalURL string // Defaults to the requested URL
	Body     string
}

// Site is a fake fetcher backed by a URL → Response map.
// Unknown URLs behave like a network error (status 0).
type Site struct {
	mu      sync.Mutex
	pages   map[string]Response
	fetched []string
	closed  bool
}

// NewSite creates a Site serving pages
func NewSite(pages map[string]Response) *Site {
	s := &Site{pages: make(map[string]Response, len(pages))}
	for url, resp := range pages {
		s.pages[url] = resp
	}
	return s
}

// HTML is shorthand for a 200 response with the given body
func HTML(body string) Response {
	return Response{Status: 200, Body: body}
}

// Status is shorthand for a bodiless response with the given status
func Status(code int) Response {
	return Response{Status: code}
}

// Redirect is shorthand for a 200 page reached after redirecting to target
func Redirect(target, body string) Response {
	return Response{Status: 200, FinalURL: target, Body: body}
}

// Set adds or replaces a page
func (s *Site) Set(url string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = resp
}

// Fetch implements fetcher.Fetcher
func (s *Site) Fetch(ctx context.Context, url string) *fetcher.Page {
	s.mu.Lock()
	s.fetched = append(s.fetched, url)
	resp, ok := s.pages[url]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &fetcher.Page{URL: url, FinalURL: url, Err: err}
	}
	if !ok || resp.Status == fetcher.StatusNetworkError {
		return &fetcher.Page{URL: url, FinalURL: url, Err: ErrUnknownURL}
	}

	final := resp.FinalURL
	if final == "" {
		final = url
	}
	page := &fetcher.Page{URL: url, FinalURL: final, StatusCode: resp.Status}
	if resp.Body != "" {
		page.Body = []byte(resp.Body)
	}
	return page
}

// Close implements fetcher.Fetcher
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Fetched returns every requested URL in request order
func (s *Site) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

// Count returns how many times url was requested
func (s *Site) Count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.fetched {
		if u == url {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called
func (s *Site) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ fetcher.Fetcher = (*Site)(nil)
