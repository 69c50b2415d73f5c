// Package cmd provides the command-line interface for linkcheck.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cleansite/linkcheck/internal/config"
	"github.com/cleansite/linkcheck/internal/crawler"
	"github.com/cleansite/linkcheck/internal/fetcher"
	"github.com/cleansite/linkcheck/internal/logging"
	"github.com/cleansite/linkcheck/internal/report"
	"github.com/cleansite/linkcheck/internal/storage"
)

const (
	envPrefix      = "LINKCHECK"
	configName     = "linkcheck"
	defaultUAValue = "linkcheck/1.0"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkcheck [base-url]",
	Short: "Find broken internal links on a website",
	Long: `linkcheck crawls a website breadth-first from its home page, following
internal links up to a maximum depth. Every internal URL is loaded once and
classified as healthy, broken or redirected; links to other hosts are tallied
but never fetched.

A JSON report is written at the end of the run and a summary is printed.
The exit status is 1 when at least one broken link was found.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the crawl.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./linkcheck.yml)")
	rootCmd.PersistentFlags().String("database", "", "SQLite run history database (empty disables history)")

	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Crawl flags
	rootCmd.Flags().IntP("max-depth", "d", 5, "Maximum link depth from the home page")
	rootCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Per page navigation timeout (page_timeout in config/env also accepts milliseconds)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Log every visited page")
	rootCmd.Flags().IntP("concurrency", "c", 1, "Number of pages fetched in parallel")

	// Fetcher flags
	rootCmd.Flags().String("fetcher", config.FetcherBrowser, "Page fetcher: 'browser' (headless Chrome) or 'http'")
	rootCmd.Flags().StringP("user-agent", "u", defaultUAValue, "User-Agent sent with every request")
	rootCmd.Flags().StringSliceP("header", "H", []string{}, "Custom HTTP headers in 'Name: Value' format (use multiple times for multiple headers)")
	rootCmd.Flags().Bool("headless", true, "Run Chrome without a window")
	rootCmd.Flags().String("chrome-path", "", "Chrome binary to launch (default: autodetect)")
	rootCmd.Flags().Bool("no-sandbox", false, "Disable the Chrome sandbox (needed in most containers)")

	// Output flags
	rootCmd.Flags().StringP("report", "o", "link-check-report.json", "Path of the JSON report")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-format", "text", "Log format: text or json")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file (rotated by size)")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"max_depth", "max-depth"},
		{"page_timeout", "timeout"},
		{"verbose", "verbose"},
		{"concurrency", "concurrency"},
		{"fetcher", "fetcher"},
		{"user_agent", "user-agent"},
		{"headers", "header"},
		{"browser.headless", "headless"},
		{"browser.exec_path", "chrome-path"},
		{"browser.no_sandbox", "no-sandbox"},
		{"report_path", "report"},
		{"database_path", "database"},
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"log.file", "log-file"},
	}

	for _, bind := range bindFlags {
		flag := rootCmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	rootCmd.AddCommand(historyCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// setupViper registers defaults, environment lookup and the config file on v.
// A missing default config file is not an error; a missing explicit one is.
func setupViper(v *viper.Viper, file string) error {
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(configName)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// BASE_URL is accepted without the prefix as well
	if err := v.BindEnv("base_url", envPrefix+"_BASE_URL", "BASE_URL"); err != nil {
		return fmt.Errorf("failed to bind base_url environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	return nil
}

// setDefaults makes every configuration key known to v so that environment
// variables are honoured for keys without a flag.
func setDefaults(v *viper.Viper) {
	d := config.DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("page_timeout", d.PageTimeout)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("fetcher", d.Fetcher)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("headers", d.Headers)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.no_sandbox", d.Browser.NoSandbox)
	v.SetDefault("report_path", d.ReportPath)
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}

// loadConfig builds the effective configuration. A positional base URL
// overrides every other source.
func loadConfig(v *viper.Viper, args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(config.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.BaseURL = args[0]
	}

	if cfg.UserAgent == defaultUAValue {
		cfg.UserAgent = generateUserAgent()
	}
	return cfg, nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("linkcheck/%s", version)
	}
	return defaultUAValue
}

func showCurrentConfig(out io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(out, "# Current linkcheck configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./%s.yml\n", configName)
	fmt.Fprintf(out, "# Environment variables prefix: %s_ (BASE_URL also accepted)\n\n", envPrefix)

	fmt.Fprint(out, string(yamlData))

	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (%s_ prefix)\n", envPrefix)
	fmt.Fprintf(out, "# 3. Configuration file (%s.yml)\n", configName)
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(viper.GetViper(), args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := logging.SetDefault(logging.FromCrawlConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout())
}

// runCrawl starts the configured fetcher and checks the site with it
func runCrawl(ctx context.Context, cfg *config.CrawlConfig, out io.Writer) error {
	f, err := fetcher.New(ctx, cfg.Fetcher, fetcher.OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("Failed to start fetcher", "fetcher", cfg.Fetcher, "error", err)
		return fmt.Errorf("failed to start %s fetcher: %w", cfg.Fetcher, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close fetcher", "error", err)
		}
	}()

	return check(ctx, cfg, f, out)
}

// check crawls the site with f, prints and writes the report and records
// the run in the history database when one is configured.
func check(ctx context.Context, cfg *config.CrawlConfig, f fetcher.Fetcher, out io.Writer) error {
	engine, err := crawler.NewEngine(cfg, f, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl aborted: %w", err)
	}

	rep := report.Build(result)
	if err := report.Render(out, rep); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	if err := report.WriteFile(cfg.ReportPath, rep); err != nil {
		return err
	}
	slog.Info("Report written", "path", cfg.ReportPath)

	if cfg.DatabasePath != "" {
		if err := saveHistory(cfg, rep); err != nil {
			return err
		}
	}

	if rep.HasBroken() {
		return &BrokenLinksError{Count: len(rep.Broken)}
	}
	return nil
}

func saveHistory(cfg *config.CrawlConfig, rep *report.Report) error {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer func() { _ = store.Close() }()

	id, err := store.SaveRun(rep, cfg.MaxDepth)
	if err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}
	slog.Info("Run saved", "run_id", id, "database", cfg.DatabasePath)
	return nil
}
