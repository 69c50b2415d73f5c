// Package config provides configuration management for the link checker.
// It defines configuration structures and default values for crawl parameters.
package config

import (
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Supported page fetcher implementations.
const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"
)

// BrowserConfig controls the headless Chrome instance used by the browser fetcher
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless" yaml:"headless"`     // Run Chrome without a window
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`   // Chrome binary, empty = autodetect
	NoSandbox bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"` // Needed inside most containers
}

// LogConfig controls structured logging
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // text or json
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file, rotated by size
	MaxSize    int64  `mapstructure:"max_size" yaml:"max_size"`       // Rotation threshold in MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
}

// CrawlConfig holds link checker configuration
type CrawlConfig struct {
	// Crawl parameters
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`         // Site home page, crawl seed
	MaxDepth    int           `mapstructure:"max_depth" yaml:"max_depth"`       // BFS depth bound
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"` // Per page navigation timeout
	Verbose     bool          `mapstructure:"verbose" yaml:"verbose"`           // Log every visited page
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`   // Parallel fetches, 1 = sequential

	// Fetching
	Fetcher   string        `mapstructure:"fetcher" yaml:"fetcher"`       // browser or http
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"` // User-Agent for both fetchers
	Headers   []string      `mapstructure:"headers" yaml:"headers"`       // Extra "Name: Value" headers
	Browser   BrowserConfig `mapstructure:"browser" yaml:"browser"`

	// Output
	ReportPath   string `mapstructure:"report_path" yaml:"report_path"`     // Structured report file
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Run history, empty disables

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxDepth:    5,
		PageTimeout: 30 * time.Second,
		Concurrency: 1,
		Fetcher:     FetcherBrowser,
		UserAgent:   "linkcheck/1.0",
		Browser: BrowserConfig{
			Headless: true,
		},
		ReportPath: "link-check-report.json",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    100,
			MaxBackups: 5,
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrNoBaseURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	switch c.Fetcher {
	case FetcherBrowser, FetcherHTTP:
	default:
		return ErrUnknownFetcher
	}

	if c.ReportPath == "" {
		return ErrEmptyReportPath
	}

	return nil
}

// ParseHeaders converts the "Name: Value" header list into a map.
// Malformed entries are skipped with a warning.
func (c *CrawlConfig) ParseHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers))
	for _, header := range c.Headers {
		colonIndex := strings.Index(header, ":")
		if colonIndex <= 0 {
			slog.Warn("Skipping invalid header format", "header", header)
			continue
		}

		key := strings.TrimSpace(header[:colonIndex])
		value := strings.TrimSpace(header[colonIndex+1:])
		if key == "" || value == "" {
			slog.Warn("Skipping header with empty key or value", "header", header)
			continue
		}

		headers[key] = value
	}
	return headers
}
