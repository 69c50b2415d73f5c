package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cleansite/linkcheck/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"invalid level", "invalid", slog.LevelInfo},
		{"empty string", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFromCrawlConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "JSON"
	cfg.Log.File = "/tmp/linkcheck.log"

	lc := FromCrawlConfig(cfg)
	if lc.Level != slog.LevelWarn {
		t.Errorf("Level = %v, want %v", lc.Level, slog.LevelWarn)
	}
	if !lc.JSON {
		t.Errorf("Expected JSON format")
	}
	if lc.FilePath != "/tmp/linkcheck.log" {
		t.Errorf("FilePath = %q", lc.FilePath)
	}

	cfg.Verbose = true
	if lc := FromCrawlConfig(cfg); lc.Level != slog.LevelDebug {
		t.Errorf("Verbose should force debug level, got %v", lc.Level)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		logger, closer, err := NewLogger(Config{Level: slog.LevelInfo, Console: true})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer closer.Close()
		if logger == nil {
			t.Fatal("NewLogger returned nil logger")
		}
	})

	t.Run("json file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "linkcheck.log")

		logger, closer, err := NewLogger(Config{
			Level:      slog.LevelDebug,
			JSON:       true,
			FilePath:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Debug("visited page", "url", "https://example.test/about")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Log file was not created: %v", err)
		}
		if !strings.Contains(string(content), `"url":"https://example.test/about"`) {
			t.Errorf("Expected JSON record in log file, got %q", content)
		}
	})

	t.Run("no outputs configured defaults to console", func(t *testing.T) {
		logger, _, err := NewLogger(Config{Level: slog.LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger returned nil logger")
		}
	})
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logFile := filepath.Join(t.TempDir(), "default.log")
	closer, err := SetDefault(Config{Level: slog.LevelDebug, FilePath: logFile, MaxSize: 1})
	if err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	defer closer.Close()

	slog.Info("message from default logger")

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Errorf("Log file was not created at %s", logFile)
	}
}
