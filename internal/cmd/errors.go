package cmd

import "fmt"

// BrokenLinksError is returned by a crawl that completed but found broken
// links. The report has already been printed when it is returned.
type BrokenLinksError struct {
	Count int
}

func (e *BrokenLinksError) Error() string {
	if e.Count == 1 {
		return "found 1 broken link"
	}
	return fmt.Sprintf("found %d broken links", e.Count)
}
