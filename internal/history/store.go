// Package history records staging runs in a SQLite database so a destination
// can later be checked against the manifest of the run that produced it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/stager/internal/models"
	"github.com/harrison/stager/internal/stager"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded staging run.
type Run struct {
	ID           string
	PlanFile     string // Plan the job came from, empty for ad-hoc runs
	JobName      string
	Pattern      string
	Destination  string // Absolute destination path
	Atomic       bool
	Status       string // models.StatusSucceeded or models.StatusFailed
	ErrorKind    string // stager.Kind of the failure
	ErrorMessage string
	FileCount    int
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	Files        []models.StagedFile // Populated by GetRun and LastSuccessfulRun
}

// Succeeded reports whether the run staged every matched file.
func (r *Run) Succeeded() bool {
	return r.Status == models.StatusSucceeded
}

// NewRun builds a history record from a run result and the error Run
// returned. Files copied before a failure are kept so a partial destination
// can be told apart from a smaller complete one.
func NewRun(result *models.RunResult, runErr error) *Run {
	run := &Run{
		ID:          result.RunID,
		JobName:     result.Job.Name,
		Pattern:     result.Job.Pattern,
		Destination: absPath(result.Job.Destination),
		Atomic:      result.Job.Atomic,
		Status:      models.StatusSucceeded,
		FileCount:   result.Count,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Duration:    result.Duration,
		Files:       result.Files,
	}
	if runErr != nil {
		run.Status = models.StatusFailed
		run.ErrorKind = stager.Kind(runErr)
		run.ErrorMessage = runErr.Error()
	}
	return run
}

// Filter narrows ListRuns.
type Filter struct {
	Destination string // Exact destination; relative paths are made absolute
	Status      string // Empty for any status
	Limit       int    // 0 for no limit
}

// Store manages the SQLite run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores run and its staged files in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("record run: missing run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, plan_file, job_name, pattern, destination, atomic, status, error_kind, error_message, file_count, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PlanFile, run.JobName, run.Pattern, absPath(run.Destination), run.Atomic,
		run.Status, run.ErrorKind, run.ErrorMessage, run.FileCount,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO staged_files (run_id, idx, source, target, size, sha256) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare staged file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range run.Files {
		if _, err := stmt.ExecContext(ctx, run.ID, f.Index, f.Source, f.Target, f.Size, f.SHA256); err != nil {
			return fmt.Errorf("insert staged file %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, COALESCE(plan_file, ''), COALESCE(job_name, ''), pattern, destination, atomic, status,
	COALESCE(error_kind, ''), COALESCE(error_message, ''), file_count, started_at, finished_at, duration_ms`

// GetRun returns the run with the given id, or a unique id prefix, together
// with its staged files.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case runs[0].ID != id && len(runs) > 1:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	run := runs[0]
	if run.Files, err = s.stagedFiles(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first. Staged files are not loaded.
func (s *Store) ListRuns(ctx context.Context, filter Filter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var (
		where []string
		args  []interface{}
	)
	if filter.Destination != "" {
		where = append(where, "destination = ?")
		args = append(args, absPath(filter.Destination))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return scanRuns(rows)
}

// LastSuccessfulRun returns the newest succeeded run for destination,
// including its manifest.
func (s *Store) LastSuccessfulRun(ctx context.Context, destination string) (*Run, error) {
	runs, err := s.ListRuns(ctx, Filter{Destination: destination, Status: models.StatusSucceeded, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no successful run for %s", ErrRunNotFound, absPath(destination))
	}

	run := runs[0]
	if run.Files, err = s.stagedFiles(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ClearRuns deletes recorded runs for destination, or every run when
// destination is empty, and returns how many runs were removed.
func (s *Store) ClearRuns(ctx context.Context, destination string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if destination == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM staged_files`); err != nil {
			return 0, fmt.Errorf("delete staged files: %w", err)
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM runs`)
	} else {
		dest := absPath(destination)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM staged_files WHERE run_id IN (SELECT id FROM runs WHERE destination = ?)`, dest); err != nil {
			return 0, fmt.Errorf("delete staged files: %w", err)
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE destination = ?`, dest)
	}
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return n, nil
}

func (s *Store) stagedFiles(ctx context.Context, runID string) ([]models.StagedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, source, target, size, sha256 FROM staged_files WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query staged files: %w", err)
	}
	defer rows.Close()

	files := []models.StagedFile{}
	for rows.Next() {
		var f models.StagedFile
		if err := rows.Scan(&f.Index, &f.Source, &f.Target, &f.Size, &f.SHA256); err != nil {
			return nil, fmt.Errorf("scan staged file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			durationMS        int64
		)
		err := rows.Scan(&run.ID, &run.PlanFile, &run.JobName, &run.Pattern, &run.Destination, &run.Atomic,
			&run.Status, &run.ErrorKind, &run.ErrorMessage, &run.FileCount, &started, &finished, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", run.ID, err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func absPath(p string) string {
	if p == "" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
