package crawler

import "context"

// Crawler defines the main crawling interface
type Crawler interface {
	// Run crawls until the queue drains or ctx is cancelled. On cancellation
	// the partial result is returned together with ctx's error.
	Run(ctx context.Context) (*Result, error)
	// Stats may be called from another goroutine while Run is in progress.
	Stats() Stats
}

var _ Crawler = (*Engine)(nil)
