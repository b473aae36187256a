// Package store wraps the embedded SQLite database backing the job queue:
// connection setup, pragma configuration, and schema migration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB bound to a single SQLite file.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at path, applies
// the reliability/concurrency pragmas, and ensures the job-queue schema
// exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	// _txlock=immediate makes every transaction opened through this handle
	// take SQLite's write lock at BEGIN rather than at the first write,
	// which is what lets the worker's claim transaction act as the
	// exclusive row lock the job state machine depends on.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_txlock=immediate", path)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// SQLite allows only one writer at a time; a single shared connection
	// avoids SQLITE_BUSY storms under the pool's default concurrency.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path}

	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("store: pragma %q: %w", pragma, err)
		}
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("store: read journal_mode: %w", err)
	}
	slog.Debug("store configured", "path", db.path, "journal_mode", journalMode)

	return nil
}

// EnsureSchema creates the jobs/job_executions tables and their indexes if
// they don't already exist. Safe to call repeatedly.
func (db *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			function_identifier TEXT NOT NULL,
			parameters TEXT,
			priority INTEGER NOT NULL DEFAULT 0,
			dependencies TEXT,
			max_attempts INTEGER NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			timeout_seconds INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			worker_id TEXT,
			result TEXT,
			error TEXT,
			executing_workflow_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS jobs_workflow ON jobs(executing_workflow_id)`,
		`CREATE INDEX IF NOT EXISTS jobs_eligibility ON jobs(status, priority DESC, created_at ASC)`,
		`CREATE TABLE IF NOT EXISTS job_executions (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL REFERENCES jobs(id),
			worker_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS executions_job ON job_executions(job_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema migration: %w", err)
		}
	}

	return nil
}

// IntegrityCheck runs SQLite's own integrity check and returns an error
// if it reports any problem — mirrors the teacher's startup integrity check.
func (db *DB) IntegrityCheck() error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("store: integrity check failed: %s", result)
	}
	return nil
}

// Tx wraps a *sql.Tx opened with BEGIN IMMEDIATE semantics (via the DSN's
// _txlock=immediate), giving the whole job state machine its exclusivity
// guarantee.
type Tx struct {
	*sql.Tx
}

// BeginTx starts a new immediate-locking transaction.
func (db *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	return &Tx{tx}, nil
}
