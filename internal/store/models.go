package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Job statuses, per the state machine.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
)

// Execution statuses. A subset of job statuses — executions never go
// through "pending" or "cancelled", only the outcomes of a single attempt.
const (
	ExecStatusRunning   = "running"
	ExecStatusCompleted = "completed"
	ExecStatusFailed    = "failed"
	ExecStatusTimeout   = "timeout"
)

// terminalStatuses lists the job statuses that are never mutated again
// except by an explicit requeue.
var terminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
	StatusTimeout:   true,
}

// IsTerminal reports whether status is one of the four terminal statuses.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}

// Job is the persisted row for one unit of work.
type Job struct {
	ID                  string
	Name                string
	FunctionIdentifier  string
	Parameters          string // JSON object, opaque to the store
	Priority            int
	Dependencies        []string // job ids; empty slice, never nil, once decoded
	MaxAttempts         int
	Attempts            int
	TimeoutSeconds      int
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	WorkerID            *string
	Result              *string
	Error               *string
	ExecutingWorkflowID *string
}

// JobExecution is one attempt at running a Job.
type JobExecution struct {
	ID          string
	JobID       string
	WorkerID    string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	Result      *string
	Error       *string
}

func encodeDependencies(deps []string) (string, error) {
	if deps == nil {
		deps = []string{}
	}
	b, err := json.Marshal(deps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeDependencies(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return []string{}, nil
	}
	var deps []string
	if err := json.Unmarshal([]byte(raw.String), &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

const jobColumns = `id, name, function_identifier, parameters, priority, dependencies,
	max_attempts, attempts, timeout_seconds, status, created_at, updated_at,
	started_at, completed_at, worker_id, result, error, executing_workflow_id`

type jobRow struct {
	parameters   sql.NullString
	dependencies sql.NullString
	startedAt    sql.NullTime
	completedAt  sql.NullTime
	workerID     sql.NullString
	result       sql.NullString
	errMsg       sql.NullString
	workflowID   sql.NullString
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*Job, error) {
	job := &Job{}
	var r jobRow

	err := s.Scan(
		&job.ID, &job.Name, &job.FunctionIdentifier, &r.parameters, &job.Priority, &r.dependencies,
		&job.MaxAttempts, &job.Attempts, &job.TimeoutSeconds, &job.Status, &job.CreatedAt, &job.UpdatedAt,
		&r.startedAt, &r.completedAt, &r.workerID, &r.result, &r.errMsg, &r.workflowID,
	)
	if err != nil {
		return nil, err
	}

	if r.parameters.Valid {
		job.Parameters = r.parameters.String
	}
	if r.startedAt.Valid {
		t := r.startedAt.Time
		job.StartedAt = &t
	}
	if r.completedAt.Valid {
		t := r.completedAt.Time
		job.CompletedAt = &t
	}
	if r.workerID.Valid {
		job.WorkerID = &r.workerID.String
	}
	if r.result.Valid {
		job.Result = &r.result.String
	}
	if r.errMsg.Valid {
		job.Error = &r.errMsg.String
	}
	if r.workflowID.Valid {
		job.ExecutingWorkflowID = &r.workflowID.String
	}

	job.Dependencies, err = decodeDependencies(r.dependencies)
	if err != nil {
		return nil, err
	}

	return job, nil
}

const executionColumns = `id, job_id, worker_id, started_at, completed_at, status, result, error`

func scanExecution(s scanner) (*JobExecution, error) {
	exec := &JobExecution{}
	var completedAt sql.NullTime
	var result, errMsg sql.NullString

	if err := s.Scan(
		&exec.ID, &exec.JobID, &exec.WorkerID, &exec.StartedAt, &completedAt,
		&exec.Status, &result, &errMsg,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	if result.Valid {
		exec.Result = &result.String
	}
	if errMsg.Valid {
		exec.Error = &errMsg.String
	}

	return exec, nil
}
