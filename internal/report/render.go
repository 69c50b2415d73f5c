package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rodaine/table"

	"github.com/cleansite/linkcheck/internal/fetcher"
)

// Console limits
const (
	sampleReferrers  = 3
	consoleRedirects = 10
	consoleExternal  = 10
)

// Render writes the human readable report to w
func Render(w io.Writer, r *Report) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Link check report for %s\n", r.BaseURL)
	fmt.Fprintf(&buf, "Finished in %s\n\n", (time.Duration(r.DurationMs) * time.Millisecond).String())

	summary := table.New("Summary", "").WithWriter(&buf)
	summary.AddRow("Pages crawled", r.Summary.TotalPages)
	summary.AddRow("Links found", r.Summary.TotalLinks)
	summary.AddRow("Broken links", r.Summary.BrokenLinks)
	summary.AddRow("Redirects", r.Summary.Redirects)
	summary.AddRow("External links", r.Summary.ExternalLinks)
	summary.Print()

	if len(r.Broken) > 0 {
		fmt.Fprintf(&buf, "\nBroken links (%d)\n", len(r.Broken))
		tbl := table.New("URL", "Status", "Found on").WithWriter(&buf)
		for _, b := range r.Broken {
			addBrokenRows(tbl, b)
		}
		tbl.Print()
	}

	if len(r.Redirects) > 0 {
		fmt.Fprintf(&buf, "\nRedirects (%d)\n", len(r.Redirects))
		tbl := table.New("URL", "", "Target").WithWriter(&buf)
		for _, rd := range r.Redirects[:min(len(r.Redirects), consoleRedirects)] {
			tbl.AddRow(rd.URL, "->", rd.Target)
		}
		tbl.Print()
		if extra := len(r.Redirects) - consoleRedirects; extra > 0 {
			fmt.Fprintf(&buf, "... and %d more\n", extra)
		}
	}

	if len(r.External) > 0 {
		fmt.Fprintf(&buf, "\nTop external links\n")
		tbl := table.New("URL", "Count").WithWriter(&buf)
		for _, x := range r.External[:min(len(r.External), consoleExternal)] {
			tbl.AddRow(x.URL, x.Count)
		}
		tbl.Print()
	}

	if len(r.Broken) == 0 {
		fmt.Fprintf(&buf, "\nNo broken links found.\n")
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// addBrokenRows lists up to sampleReferrers referring pages, one per row
func addBrokenRows(tbl table.Table, b BrokenLink) {
	status := StatusText(b.Status)
	if len(b.FoundOn) == 0 {
		tbl.AddRow(b.URL, status, "")
		return
	}

	for i, page := range b.FoundOn[:min(len(b.FoundOn), sampleReferrers)] {
		if i == 0 {
			tbl.AddRow(b.URL, status, page)
		} else {
			tbl.AddRow("", "", page)
		}
	}
	if extra := len(b.FoundOn) - sampleReferrers; extra > 0 {
		tbl.AddRow("", "", fmt.Sprintf("+%d more", extra))
	}
}

// StatusText renders a recorded status for people
func StatusText(status int) string {
	if status == fetcher.StatusNetworkError {
		return "network error"
	}
	return strconv.Itoa(status)
}
