// Package report turns a finished crawl into the link check report: a JSON
// file for tooling and a table rendering for the console.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/cleansite/linkcheck/internal/crawler"
)

// TopExternal is how many external links the report keeps
const TopExternal = 20

// Summary holds the run counters
type Summary struct {
	TotalPages    int `json:"totalPages"`
	TotalLinks    int `json:"totalLinks"`
	BrokenLinks   int `json:"brokenLinks"`
	Redirects     int `json:"redirects"`
	ExternalLinks int `json:"externalLinks"` // Distinct external URLs, before truncation
}

// BrokenLink is a broken internal URL and the pages linking to it
type BrokenLink struct {
	URL     string   `json:"url"`
	Status  int      `json:"status"`
	FoundOn []string `json:"foundOn"`
}

// Redirect is an internal URL that resolved somewhere else
type Redirect struct {
	URL     string   `json:"url"`
	Target  string   `json:"target"`
	FoundOn []string `json:"foundOn"`
}

// ExternalLink is an external URL with the number of anchors pointing to it
type ExternalLink struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Report is the immutable outcome of one crawl
type Report struct {
	BaseURL    string         `json:"baseUrl"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	DurationMs int64          `json:"durationMs"`
	Summary    Summary        `json:"summary"`
	Broken     []BrokenLink   `json:"broken"`
	Redirects  []Redirect     `json:"redirects"`
	External   []ExternalLink `json:"external"`
}

// Build aggregates a crawl result into a report. External links are sorted
// by referrer count, most linked first with ties in first-seen order, and
// cut to TopExternal.
func Build(result *crawler.Result) *Report {
	r := &Report{
		BaseURL:    result.BaseURL,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		DurationMs: result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		Summary: Summary{
			TotalPages:    result.TotalPages,
			TotalLinks:    result.TotalLinks,
			BrokenLinks:   len(result.Broken),
			Redirects:     len(result.Redirects),
			ExternalLinks: len(result.External),
		},
		Broken:    make([]BrokenLink, 0, len(result.Broken)),
		Redirects: make([]Redirect, 0, len(result.Redirects)),
		External:  make([]ExternalLink, 0, min(len(result.External), TopExternal)),
	}

	for _, b := range result.Broken {
		r.Broken = append(r.Broken, BrokenLink{URL: b.URL, Status: b.Status, FoundOn: slices.Clone(b.FoundOn)})
	}
	for _, rd := range result.Redirects {
		r.Redirects = append(r.Redirects, Redirect{URL: rd.URL, Target: rd.Target, FoundOn: slices.Clone(rd.FoundOn)})
	}

	external := make([]ExternalLink, 0, len(result.External))
	for _, x := range result.External {
		external = append(external, ExternalLink{URL: x.URL, Count: len(x.Referrers)})
	}
	slices.SortStableFunc(external, func(a, b ExternalLink) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(external) > TopExternal {
		external = external[:TopExternal]
	}
	r.External = append(r.External, external...)

	return r
}

// HasBroken reports whether the crawl found any broken link
func (r *Report) HasBroken() bool {
	return len(r.Broken) > 0
}

// WriteFile stores the report as indented JSON at path
func WriteFile(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
