package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// eligibilityScanLimit bounds how many pending jobs a single claim attempt
// will inspect before giving up for this iteration. A deployment with more
// than this many simultaneously pending jobs will still make progress —
// just possibly not on the very highest-priority one until a later poll —
// rather than have one claim transaction scan an unbounded table while
// holding SQLite's write lock.
const eligibilityScanLimit = 500

// candidate is the subset of a pending job's columns the eligibility scan
// needs before deciding whether to claim or cancel it.
type candidate struct {
	id           string
	attempts     int
	maxAttempts  int
	dependencies []string
}

// SweepTimeouts promotes expired running jobs: the open execution row is
// closed out as "timeout", and the job either goes back to pending
// (attempts remaining) or becomes terminally "timeout". attempts is left
// as the claim set it. Returns the number of jobs swept.
func (db *DB) SweepTimeouts(ctx context.Context, now time.Time) (int, error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, attempts, max_attempts, timeout_seconds, started_at
		 FROM jobs WHERE status = ? AND started_at IS NOT NULL`,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("store: sweep select: %w", err)
	}

	type expired struct {
		id             string
		attempts       int
		maxAttempts    int
		timeoutSeconds int
	}
	var toSweep []expired
	for rows.Next() {
		var e expired
		var startedAt time.Time
		if err := rows.Scan(&e.id, &e.attempts, &e.maxAttempts, &e.timeoutSeconds, &startedAt); err != nil {
			rows.Close()
			return 0, err
		}
		if now.Sub(startedAt) >= time.Duration(e.timeoutSeconds)*time.Second {
			toSweep = append(toSweep, e)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, e := range toSweep {
		errMsg := fmt.Sprintf("timed out after %d seconds", e.timeoutSeconds)

		if _, err := tx.ExecContext(ctx,
			`UPDATE job_executions SET status = ?, completed_at = ?, error = ?
			 WHERE job_id = ? AND status = ?`,
			ExecStatusTimeout, now, errMsg, e.id, ExecStatusRunning,
		); err != nil {
			return 0, fmt.Errorf("store: sweep close execution: %w", err)
		}

		// attempts was already incremented once, at claim time (step 3 of
		// the claim loop); the sweep evaluates that count against the
		// retry budget rather than incrementing a second time.
		if e.attempts < e.maxAttempts {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, worker_id = NULL, started_at = NULL, updated_at = ?
				 WHERE id = ?`,
				StatusPending, now, e.id,
			); err != nil {
				return 0, fmt.Errorf("store: sweep requeue: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, completed_at = ?, error = ?, updated_at = ?
				 WHERE id = ?`,
				StatusTimeout, now, errMsg, now, e.id,
			); err != nil {
				return 0, fmt.Errorf("store: sweep finalize: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(toSweep), nil
}

// ClaimNext finds the highest-priority eligible pending job (dependencies
// all completed), claims it for workerID, and opens a running execution
// row for it — all within one BEGIN IMMEDIATE transaction, so SQLite's
// single-writer guarantee is what makes this exactly-one-winner across
// concurrent workers. Pending jobs whose dependencies have resolved to a
// terminal non-completed status are cancelled in the same pass rather than
// claimed. Returns (nil, nil) if nothing is eligible to claim right now.
func (db *DB) ClaimNext(ctx context.Context, workerID string, now time.Time) (*Job, error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, attempts, max_attempts, dependencies FROM jobs
		 WHERE status = ?
		 ORDER BY priority DESC, created_at ASC, id ASC
		 LIMIT ?`,
		StatusPending, eligibilityScanLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: claim select: %w", err)
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var depsRaw sql.NullString
		if err := rows.Scan(&c.id, &c.attempts, &c.maxAttempts, &depsRaw); err != nil {
			rows.Close()
			return nil, err
		}
		c.dependencies, err = decodeDependencies(depsRaw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimedID string
	for _, c := range candidates {
		eligible, cancelReason, err := tx.evaluateDependencies(ctx, c.dependencies)
		if err != nil {
			return nil, err
		}

		if cancelReason != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE jobs SET status = ?, completed_at = ?, error = ?, updated_at = ?
				 WHERE id = ? AND status = ?`,
				StatusCancelled, now, cancelReason, now, c.id, StatusPending,
			); err != nil {
				return nil, fmt.Errorf("store: cancel dependent: %w", err)
			}
			continue
		}

		if !eligible {
			continue
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, worker_id = ?, started_at = ?, attempts = attempts + 1, updated_at = ?
			 WHERE id = ? AND status = ?`,
			StatusRunning, workerID, now, now, c.id, StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("store: claim update: %w", err)
		}
		ok, err := rowsAffected(res)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost to a concurrent mutation within the same process
			// (e.g. a cancellation just above); try the next candidate.
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_executions (id, job_id, worker_id, started_at, status)
			 VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), c.id, workerID, now, ExecStatusRunning,
		); err != nil {
			return nil, fmt.Errorf("store: claim insert execution: %w", err)
		}

		claimedID = c.id
		break
	}

	if claimedID == "" {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, claimedID)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// evaluateDependencies reports whether deps are all completed (eligible),
// or — if any dependency has resolved to a terminal non-completed status —
// returns a non-empty cancelReason naming the offending dependency. A
// dependency id that doesn't exist yet leaves the job ineligible but not
// cancelled, per the queue's lazy-eligibility contract.
func (tx *Tx) evaluateDependencies(ctx context.Context, deps []string) (eligible bool, cancelReason string, err error) {
	if len(deps) == 0 {
		return true, "", nil
	}

	for _, depID := range deps {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, depID).Scan(&status)
		if err == sql.ErrNoRows {
			return false, "", nil
		}
		if err != nil {
			return false, "", fmt.Errorf("store: check dependency %s: %w", depID, err)
		}

		switch status {
		case StatusCompleted:
			continue
		case StatusFailed, StatusCancelled, StatusTimeout:
			return false, fmt.Sprintf("dependency %s ended in status %q", depID, status), nil
		default: // pending or running
			return false, "", nil
		}
	}

	return true, "", nil
}

// FinalizeSuccess marks jobID as completed, provided it is still running
// under workerID. If the job has since been reassigned (e.g. by a timeout
// sweep), the job row is left untouched, but the execution row this
// worker opened is still closed out as completed for audit purposes.
func (db *DB) FinalizeSuccess(ctx context.Context, jobID, workerID string, result string, now time.Time) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, result = ?, updated_at = ?
		 WHERE id = ? AND worker_id = ? AND status = ?`,
		StatusCompleted, now, result, now, jobID, workerID, StatusRunning,
	); err != nil {
		return fmt.Errorf("store: finalize success: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE job_executions SET status = ?, completed_at = ?, result = ?
		 WHERE job_id = ? AND worker_id = ? AND status = ?`,
		ExecStatusCompleted, now, result, jobID, workerID, ExecStatusRunning,
	); err != nil {
		return fmt.Errorf("store: finalize success execution: %w", err)
	}

	return tx.Commit()
}

// FinalizeFailure records a failed attempt. If attempts remain it resets
// the job to pending; otherwise it terminally fails the job. As with
// FinalizeSuccess, the job row update is conditional on the job still
// being running under workerID — a sweep may have already reassigned it —
// but the execution row is always closed out.
func (db *DB) FinalizeFailure(ctx context.Context, jobID, workerID, errMsg string, now time.Time) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRowContext(ctx,
		`SELECT attempts, max_attempts FROM jobs WHERE id = ? AND worker_id = ? AND status = ?`,
		jobID, workerID, StatusRunning,
	).Scan(&attempts, &maxAttempts)

	switch {
	case err == sql.ErrNoRows:
		// Reassigned out from under this worker; nothing to update on the
		// job row, but still close out the execution for audit.
	case err != nil:
		return fmt.Errorf("store: finalize failure lookup: %w", err)
	case attempts < maxAttempts:
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, worker_id = NULL, started_at = NULL, error = ?, updated_at = ?
			 WHERE id = ? AND worker_id = ? AND status = ?`,
			StatusPending, errMsg, now, jobID, workerID, StatusRunning,
		); err != nil {
			return fmt.Errorf("store: finalize failure retry: %w", err)
		}
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, completed_at = ?, error = ?, updated_at = ?
			 WHERE id = ? AND worker_id = ? AND status = ?`,
			StatusFailed, now, errMsg, now, jobID, workerID, StatusRunning,
		); err != nil {
			return fmt.Errorf("store: finalize failure terminal: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE job_executions SET status = ?, completed_at = ?, error = ?
		 WHERE job_id = ? AND worker_id = ? AND status = ?`,
		ExecStatusFailed, now, errMsg, jobID, workerID, ExecStatusRunning,
	); err != nil {
		return fmt.Errorf("store: finalize failure execution: %w", err)
	}

	return tx.Commit()
}
