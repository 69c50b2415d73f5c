// Package logging configures the process-wide slog logger.
// Console output goes to stderr so the rendered report on stdout stays clean.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleansite/linkcheck/internal/config"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	JSON       bool   // JSON handler instead of text
	FilePath   string // Optional rotated log file
	MaxSize    int64  // MB
	MaxBackups int
	Console    bool
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
	}
}

// FromCrawlConfig derives the logging configuration from the crawl settings.
// Verbose forces debug level.
func FromCrawlConfig(cfg *config.CrawlConfig) Config {
	lc := Config{
		Level:      ParseLevel(cfg.Log.Level),
		JSON:       strings.EqualFold(cfg.Log.Format, "json"),
		FilePath:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    true,
	}
	if cfg.Verbose {
		lc.Level = slog.LevelDebug
	}
	return lc
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the given configuration.
// The returned closer releases the log file, if any.
func NewLogger(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.Console {
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, err
		}

		maxSize := cfg.MaxSize
		if maxSize <= 0 {
			maxSize = 100
		}
		fileWriter, err := NewRotatingFileWriter(cfg.FilePath, maxSize*1024*1024, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), closer, nil
}

// SetDefault creates and installs the default logger with the given configuration
func SetDefault(cfg Config) (io.Closer, error) {
	logger, closer, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
