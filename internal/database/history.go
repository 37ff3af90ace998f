package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/deadlinks/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "deadlinks.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores run reports and dead link findings.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a check with --history first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := h.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site_url TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		documents INTEGER DEFAULT 0,
		links INTEGER DEFAULT 0,
		dead INTEGER DEFAULT 0,
		summary_json TEXT,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per dead link occurrence.
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source TEXT NOT NULL,
		url TEXT NOT NULL,
		tag TEXT NOT NULL,
		verdict TEXT NOT NULL,
		status_code INTEGER DEFAULT 0,
		detail TEXT,
		checked_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_url ON findings(url);
	`

	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// BeginRun inserts a new run row and returns its ID.
func (h *HistoryDB) BeginRun(ctx context.Context, report *model.BuildReport) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (site_url, started_at) VALUES (?, ?)`,
		report.SiteURL,
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return result.LastInsertId()
}

// RecordDocument stores the dead links of one document under runID.
// Documents without dead links store nothing.
func (h *HistoryDB) RecordDocument(ctx context.Context, runID int64, doc *model.DocumentReport) error {
	dead := doc.DeadLinks()
	if len(dead) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO findings (run_id, source, url, tag, verdict, status_code, detail, checked_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	checkedAt := formatTimestamp(doc.CheckedAt)
	for _, l := range dead {
		if _, err := stmt.ExecContext(ctx,
			runID,
			doc.Source,
			l.URL,
			l.Tag,
			l.Verdict.String(),
			l.Outcome.StatusCode,
			l.Outcome.String(),
			checkedAt,
		); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit findings: %w", err)
	}
	return nil
}

// FinishRun stores the summary and full report of a finished run.
func (h *HistoryDB) FinishRun(ctx context.Context, runID int64, report *model.BuildReport) error {
	summary := report.Summary()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	result, err := h.db.ExecContext(ctx, `
	UPDATE runs
	SET finished_at = ?, documents = ?, links = ?, dead = ?, summary_json = ?, report_json = ?
	WHERE id = ?
	`,
		formatTimestamp(report.FinishedAt),
		summary.Documents,
		summary.Links,
		summary.Dead,
		string(summaryJSON),
		string(reportJSON),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// RunMetadata summarizes a stored run without loading its report.
type RunMetadata struct {
	ID         int64
	SiteURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    model.Summary
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, site_url, started_at, finished_at, summary_json
	FROM runs
	ORDER BY started_at DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt, summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.SiteURL, &startedAt, &finishedAt, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		if summaryJSON.Valid && summaryJSON.String != "" {
			// A malformed summary leaves zero counts.
			_ = json.Unmarshal([]byte(summaryJSON.String), &meta.Summary)
		}

		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// GetRun loads the full report of a finished run.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.BuildReport, error) {
	var reportJSON sql.NullString
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if !reportJSON.Valid {
		return nil, fmt.Errorf("run %d has not finished", id)
	}

	var report model.BuildReport
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// Finding is a stored dead link occurrence.
type Finding struct {
	ID         int64
	RunID      int64
	Source     string
	URL        string
	Tag        string
	Verdict    model.Verdict
	StatusCode int
	Detail     string
	CheckedAt  time.Time
}

// FindingFilter narrows a Findings query. Zero values match everything.
type FindingFilter struct {
	RunID int64
	URL   string
}

// Findings returns stored dead links, newest run first.
func (h *HistoryDB) Findings(ctx context.Context, filter FindingFilter) ([]Finding, error) {
	query := `
	SELECT id, run_id, source, url, tag, verdict, status_code, detail, checked_at
	FROM findings
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if filter.RunID != 0 {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.URL != "" {
		query += " AND url = ?"
		args = append(args, filter.URL)
	}

	query += " ORDER BY run_id DESC, id ASC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var results []Finding
	for rows.Next() {
		var f Finding
		var verdict, checkedAt string
		var detail sql.NullString

		if err := rows.Scan(
			&f.ID,
			&f.RunID,
			&f.Source,
			&f.URL,
			&f.Tag,
			&verdict,
			&f.StatusCode,
			&detail,
			&checkedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}

		v, err := model.ParseVerdict(verdict)
		if err != nil {
			return nil, fmt.Errorf("finding %d: %w", f.ID, err)
		}
		f.Verdict = v
		f.Detail = detail.String
		f.CheckedAt = parseTimestamp(checkedAt)
		results = append(results, f)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// timestampLayout has a fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp tries each known format and returns the zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
