// Package parser extracts anchor targets and basic metadata from a loaded
// HTML document.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseResult contains the data read from one document
type ParseResult struct {
	Title string
	// Links holds every anchor href exactly as written, in document order.
	// Values may be empty, relative or absolute and may repeat.
	Links []string
}

// Parse parses an HTML document and collects the href attribute of every
// anchor element. Anchors without an href attribute are skipped; nothing
// else is filtered, resolved or deduplicated.
func Parse(htmlContent []byte) (*ParseResult, error) {
	root, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)

	result := &ParseResult{
		Title: strings.TrimSpace(doc.Find("head > title").First().Text()),
		Links: []string{},
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		result.Links = append(result.Links, href)
	})

	return result, nil
}
