package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertJob inserts a new pending job row. Callers are expected to have
// already generated job.ID and set CreatedAt/UpdatedAt.
func (db *DB) InsertJob(ctx context.Context, job *Job) error {
	deps, err := encodeDependencies(job.Dependencies)
	if err != nil {
		return fmt.Errorf("store: encode dependencies: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, function_identifier, parameters, priority, dependencies,
			max_attempts, attempts, timeout_seconds, status, created_at, updated_at,
			executing_workflow_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.FunctionIdentifier, job.Parameters, job.Priority, deps,
		job.MaxAttempts, job.Attempts, job.TimeoutSeconds, StatusPending, job.CreatedAt, job.UpdatedAt,
		job.ExecutingWorkflowID,
	)
	if err != nil {
		return fmt.Errorf("store: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id. Returns sql.ErrNoRows if it doesn't exist.
func (db *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListFilter narrows ListJobs.
type ListFilter struct {
	Status     string // empty = any
	WorkflowID string // empty = any
	Limit      int    // <=0 = no limit
}

// ListJobs returns jobs matching filter, newest first.
func (db *DB) ListJobs(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.WorkflowID != "" {
		query += ` AND executing_workflow_id = ?`
		args = append(args, filter.WorkflowID)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListExecutions returns a job's executions ordered by started_at ascending.
func (db *DB) ListExecutions(ctx context.Context, jobID string) ([]*JobExecution, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM job_executions WHERE job_id = ? ORDER BY started_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list executions: %w", err)
	}
	defer rows.Close()

	var execs []*JobExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, rows.Err()
}

// CancelJob transitions a job to cancelled iff its current status is
// pending or failed. Returns whether a row was modified.
func (db *DB) CancelJob(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, now, id, StatusPending, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("store: cancel job: %w", err)
	}
	return rowsAffected(res)
}

// RequeueJob resets a job to pending iff its current status is failed,
// cancelled, or timeout. Idempotent: a second call on an already-pending
// job is a no-op (returns false).
func (db *DB) RequeueJob(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = ?, attempts = 0, worker_id = NULL, error = NULL, result = NULL,
		     started_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		StatusPending, now, id, StatusFailed, StatusCancelled, StatusTimeout,
	)
	if err != nil {
		return false, fmt.Errorf("store: requeue job: %w", err)
	}
	return rowsAffected(res)
}

// CleanupOlderThan deletes terminal jobs (and their executions) whose
// completed_at is before cutoff. Returns the number of jobs deleted.
func (db *DB) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM jobs
		 WHERE status IN (?, ?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup select: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_executions WHERE job_id = ?`, id); err != nil {
			return 0, fmt.Errorf("store: cleanup delete executions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("store: cleanup delete job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
