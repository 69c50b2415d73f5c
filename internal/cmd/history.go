package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleansite/linkcheck/internal/report"
	"github.com/cleansite/linkcheck/internal/storage"
)

// ErrNoHistory is returned when the history command has no database to read
var ErrNoHistory = errors.New("no history database configured (set database_path or --database)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous link check runs",
	Long: `history reads the run history database written by crawls that had
database_path set. Without flags it lists the most recent runs; --run prints
the full report of one run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 = all)")
	historyCmd.Flags().String("run", "", "Print the stored report of this run")
	historyCmd.Flags().String("delete", "", "Delete this run from the history")
}

type historyOptions struct {
	limit    int
	runID    string
	deleteID string
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	deleteID, _ := cmd.Flags().GetString("delete")

	return showHistory(cmd.OutOrStdout(), viper.GetString("database_path"), historyOptions{
		limit:    limit,
		runID:    runID,
		deleteID: deleteID,
	})
}

func showHistory(out io.Writer, dbPath string, opts historyOptions) error {
	if dbPath == "" {
		return ErrNoHistory
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("history database %s: %w", dbPath, err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer func() { _ = store.Close() }()

	switch {
	case opts.deleteID != "":
		if err := store.DeleteRun(opts.deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", opts.deleteID)
		return nil

	case opts.runID != "":
		rep, err := store.LoadReport(opts.runID)
		if err != nil {
			return err
		}
		return report.Render(out, rep)

	default:
		runs, err := store.ListRuns(opts.limit)
		if err != nil {
			return err
		}
		printRuns(out, runs)
		return nil
	}
}

func printRuns(out io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	tbl := table.New("Run", "Started", "Base URL", "Pages", "Broken", "Redirects", "External", "Duration").WithWriter(out)
	for _, run := range runs {
		tbl.AddRow(
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.BaseURL,
			run.Summary.TotalPages,
			run.Summary.BrokenLinks,
			run.Summary.Redirects,
			run.Summary.ExternalLinks,
			run.Duration().Round(time.Millisecond),
		)
	}
	tbl.Print()
}
