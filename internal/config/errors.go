package config

import "errors"

var (
	// ErrNoBaseURL is returned when no base URL is configured
	ErrNoBaseURL = errors.New("base_url is required")
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL
	ErrInvalidBaseURL = errors.New("base_url must be an absolute http or https URL")
	// ErrInvalidDepth is returned when max depth is negative
	ErrInvalidDepth = errors.New("max_depth cannot be negative")
	// ErrInvalidTimeout is returned when the page timeout is not greater than 0
	ErrInvalidTimeout = errors.New("page_timeout must be greater than 0")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrUnknownFetcher is returned for a fetcher other than "browser" or "http"
	ErrUnknownFetcher = errors.New("fetcher must be \"browser\" or \"http\"")
	// ErrEmptyReportPath is returned when report path is empty
	ErrEmptyReportPath = errors.New("report_path cannot be empty")
)
