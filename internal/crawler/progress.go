package crawler

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const progressInterval = 10 * time.Second

// progressReporter logs crawl counters at most once per interval
type progressReporter struct {
	logger *slog.Logger
	every  rate.Sometimes
}

func newProgressReporter(logger *slog.Logger, interval time.Duration) *progressReporter {
	return &progressReporter{
		logger: logger,
		every:  rate.Sometimes{Interval: interval},
	}
}

func (p *progressReporter) report(stats Stats) {
	p.every.Do(func() {
		p.logger.Info("Crawl progress",
			"visited", stats.Visited,
			"pages", stats.Pages,
			"queued", stats.Queued,
			"broken", stats.Broken,
			"redirects", stats.Redirects,
			"external", stats.External,
		)
	})
}
