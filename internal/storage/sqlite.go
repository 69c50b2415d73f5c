// Package storage keeps a history of link check runs in SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"

	"github.com/cleansite/linkcheck/internal/report"
)

// ErrRunNotFound is returned when a run id is not in the database
var ErrRunNotFound = errors.New("run not found")

// Run is one stored crawl
type Run struct {
	ID         string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	MaxDepth   int
	Summary    report.Summary
}

// Duration is the wall time of the run
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SQLiteStorage stores run history in a SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the history database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished report in one transaction and returns the new
// run id.
func (s *SQLiteStorage) SaveRun(r *report.Report, maxDepth int) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, base_url, started_at, finished_at, max_depth,
			total_pages, total_links, broken_links, redirects, external_links
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.BaseURL, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), maxDepth,
		r.Summary.TotalPages, r.Summary.TotalLinks, r.Summary.BrokenLinks,
		r.Summary.Redirects, r.Summary.ExternalLinks,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertBroken(tx, id, r.Broken); err != nil {
		return "", err
	}
	if err := insertRedirects(tx, id, r.Redirects); err != nil {
		return "", err
	}
	if err := insertExternal(tx, id, r.External); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func insertBroken(tx *sql.Tx, runID string, links []report.BrokenLink) error {
	if len(links) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO broken_links (run_id, position, url, status, found_on)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, link := range links {
		foundOn, err := encodeList(link.FoundOn)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, i, link.URL, link.Status, foundOn); err != nil {
			return fmt.Errorf("failed to insert broken link %s: %w", link.URL, err)
		}
	}
	return nil
}

func insertRedirects(tx *sql.Tx, runID string, redirects []report.Redirect) error {
	if len(redirects) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO redirects (run_id, position, url, target, found_on)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rd := range redirects {
		foundOn, err := encodeList(rd.FoundOn)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, i, rd.URL, rd.Target, foundOn); err != nil {
			return fmt.Errorf("failed to insert redirect %s: %w", rd.URL, err)
		}
	}
	return nil
}

func insertExternal(tx *sql.Tx, runID string, links []report.ExternalLink) error {
	if len(links) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO external_links (run_id, position, url, count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, link := range links {
		if _, err := stmt.Exec(runID, i, link.URL, link.Count); err != nil {
			return fmt.Errorf("failed to insert external link %s: %w", link.URL, err)
		}
	}
	return nil
}

const runColumns = `id, base_url, started_at, finished_at, max_depth,
	total_pages, total_links, broken_links, redirects, external_links`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run               Run
		started, finished int64
	)
	err := row.Scan(
		&run.ID, &run.BaseURL, &started, &finished, &run.MaxDepth,
		&run.Summary.TotalPages, &run.Summary.TotalLinks, &run.Summary.BrokenLinks,
		&run.Summary.Redirects, &run.Summary.ExternalLinks,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	return &run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *SQLiteStorage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound
func (s *SQLiteStorage) GetRun(runID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetBrokenLinks returns the broken links of a run in report order
func (s *SQLiteStorage) GetBrokenLinks(runID string) ([]report.BrokenLink, error) {
	rows, err := s.db.Query(`
		SELECT url, status, found_on FROM broken_links
		WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query broken links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := []report.BrokenLink{}
	for rows.Next() {
		var (
			link    report.BrokenLink
			foundOn string
		)
		if err := rows.Scan(&link.URL, &link.Status, &foundOn); err != nil {
			return nil, fmt.Errorf("failed to scan broken link: %w", err)
		}
		if link.FoundOn, err = decodeList(foundOn); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate broken links: %w", err)
	}
	return links, nil
}

// GetRedirects returns the redirects of a run in report order
func (s *SQLiteStorage) GetRedirects(runID string) ([]report.Redirect, error) {
	rows, err := s.db.Query(`
		SELECT url, target, found_on FROM redirects
		WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query redirects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	redirects := []report.Redirect{}
	for rows.Next() {
		var (
			rd      report.Redirect
			foundOn string
		)
		if err := rows.Scan(&rd.URL, &rd.Target, &foundOn); err != nil {
			return nil, fmt.Errorf("failed to scan redirect: %w", err)
		}
		if rd.FoundOn, err = decodeList(foundOn); err != nil {
			return nil, err
		}
		redirects = append(redirects, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate redirects: %w", err)
	}
	return redirects, nil
}

// GetExternalLinks returns the stored external links of a run, most linked first
func (s *SQLiteStorage) GetExternalLinks(runID string) ([]report.ExternalLink, error) {
	rows, err := s.db.Query(`
		SELECT url, count FROM external_links
		WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query external links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := []report.ExternalLink{}
	for rows.Next() {
		var link report.ExternalLink
		if err := rows.Scan(&link.URL, &link.Count); err != nil {
			return nil, fmt.Errorf("failed to scan external link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate external links: %w", err)
	}
	return links, nil
}

// LoadReport rebuilds the stored report of a run
func (s *SQLiteStorage) LoadReport(runID string) (*report.Report, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	r := &report.Report{
		BaseURL:    run.BaseURL,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMs: run.Duration().Milliseconds(),
		Summary:    run.Summary,
	}
	if r.Broken, err = s.GetBrokenLinks(runID); err != nil {
		return nil, err
	}
	if r.Redirects, err = s.GetRedirects(runID); err != nil {
		return nil, err
	}
	if r.External, err = s.GetExternalLinks(runID); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRun removes a run and everything recorded for it
func (s *SQLiteStorage) DeleteRun(runID string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(data string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return items, nil
}
