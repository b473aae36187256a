// Package gigq implements the Queue: the submission, cancellation,
// requeue, status, listing, and cleanup surface of the job queue. It owns
// schema creation (via the injected store.SessionFactory) and never claims
// or executes jobs itself — that is the Worker's job.
package gigq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gigq/gigq/internal/store"
)

// Queue is the submitter-facing API of the job queue.
type Queue struct {
	factory store.SessionFactory
	logger  *slog.Logger
}

// NewQueue creates a Queue backed by factory, ensuring the schema exists.
func NewQueue(ctx context.Context, factory store.SessionFactory, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := factory.Session(ctx)
	if err != nil {
		return nil, storeErrorf(err, "open session")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, storeErrorf(err, "ensure schema")
	}

	return &Queue{factory: factory, logger: logger}, nil
}

// Submit validates and persists def as a new pending job, optionally
// tagged with a workflow id, and returns its freshly generated job id.
func (q *Queue) Submit(ctx context.Context, def JobDefinition, workflowID *string) (string, error) {
	if def.MaxAttempts < 1 {
		return "", invalidJobf("max_attempts must be >= 1, got %d", def.MaxAttempts)
	}
	if def.TimeoutSeconds <= 0 {
		return "", invalidJobf("timeout_seconds must be > 0, got %d", def.TimeoutSeconds)
	}

	var paramsJSON string
	if def.Parameters != nil {
		b, err := json.Marshal(def.Parameters)
		if err != nil {
			return "", serializationErrorf(err, "parameters not encodable")
		}
		paramsJSON = string(b)
	}

	db, err := q.factory.Session(ctx)
	if err != nil {
		return "", storeErrorf(err, "open session")
	}

	now := time.Now().UTC()
	job := &store.Job{
		ID:                  uuid.New().String(),
		Name:                def.Name,
		FunctionIdentifier:  def.FunctionIdentifier,
		Parameters:          paramsJSON,
		Priority:            def.Priority,
		Dependencies:        def.Dependencies,
		MaxAttempts:         def.MaxAttempts,
		TimeoutSeconds:      def.TimeoutSeconds,
		Status:              store.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExecutingWorkflowID: workflowID,
	}

	if err := db.InsertJob(ctx, job); err != nil {
		return "", storeErrorf(err, "insert job")
	}

	q.logger.Info("job submitted", "job_id", job.ID, "name", job.Name, "function", job.FunctionIdentifier)
	return job.ID, nil
}

// Cancel cancels jobID if it is currently pending or failed. Returns a
// NotFound error if jobID doesn't exist, or a Conflict error if it exists
// but is in a status that can't be cancelled (e.g. running, or already
// terminal).
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	db, err := q.factory.Session(ctx)
	if err != nil {
		return storeErrorf(err, "open session")
	}

	modified, err := db.CancelJob(ctx, jobID)
	if err != nil {
		return storeErrorf(err, "cancel job %s", jobID)
	}
	if modified {
		q.logger.Info("job cancelled", "job_id", jobID)
		return nil
	}
	return q.conflictOrNotFound(ctx, db, jobID)
}

// Requeue resets jobID to pending if it is currently failed, cancelled, or
// timed out. Returns a NotFound error if jobID doesn't exist, or a
// Conflict error if it exists but isn't in a requeueable status (e.g.
// it's already pending or running).
func (q *Queue) Requeue(ctx context.Context, jobID string) error {
	db, err := q.factory.Session(ctx)
	if err != nil {
		return storeErrorf(err, "open session")
	}

	modified, err := db.RequeueJob(ctx, jobID)
	if err != nil {
		return storeErrorf(err, "requeue job %s", jobID)
	}
	if modified {
		q.logger.Info("job requeued", "job_id", jobID)
		return nil
	}
	return q.conflictOrNotFound(ctx, db, jobID)
}

// conflictOrNotFound is called after a conditional update affected no
// rows, to tell an unknown job id apart from one that exists but is in
// the wrong status for the attempted transition.
func (q *Queue) conflictOrNotFound(ctx context.Context, db *store.DB, jobID string) error {
	job, err := db.GetJob(ctx, jobID)
	if err == sql.ErrNoRows {
		return notFoundf("job %s not found", jobID)
	}
	if err != nil {
		return storeErrorf(err, "get job %s", jobID)
	}
	return newError(KindConflict, fmt.Sprintf("job %s is %s, not eligible for this transition", jobID, job.Status), nil)
}

// GetStatus returns jobID's current row plus its execution history,
// oldest attempt first. Returns a NotFound error if jobID doesn't exist.
func (q *Queue) GetStatus(ctx context.Context, jobID string) (*StatusRecord, error) {
	db, err := q.factory.Session(ctx)
	if err != nil {
		return nil, storeErrorf(err, "open session")
	}

	job, err := db.GetJob(ctx, jobID)
	if err == sql.ErrNoRows {
		return nil, notFoundf("job %s not found", jobID)
	}
	if err != nil {
		return nil, storeErrorf(err, "get job %s", jobID)
	}

	execs, err := db.ListExecutions(ctx, jobID)
	if err != nil {
		return nil, storeErrorf(err, "list executions for job %s", jobID)
	}

	return &StatusRecord{
		Job:        summarizeJob(job),
		Executions: summarizeExecutions(execs),
	}, nil
}

// ListFilter narrows List by status and/or workflow id.
type ListFilter struct {
	Status     string
	WorkflowID string
	Limit      int
}

// List returns jobs matching filter, newest first.
func (q *Queue) List(ctx context.Context, filter ListFilter) ([]JobSummary, error) {
	db, err := q.factory.Session(ctx)
	if err != nil {
		return nil, storeErrorf(err, "open session")
	}

	jobs, err := db.ListJobs(ctx, store.ListFilter{
		Status:     filter.Status,
		WorkflowID: filter.WorkflowID,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, storeErrorf(err, "list jobs")
	}

	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, summarizeJob(job))
	}
	return summaries, nil
}

// Cleanup deletes jobs (and their executions) that are in a terminal
// status and whose completed_at is older than olderThanDays days.
// Returns the number of jobs removed.
func (q *Queue) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	db, err := q.factory.Session(ctx)
	if err != nil {
		return 0, storeErrorf(err, "open session")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	count, err := db.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return 0, storeErrorf(err, "cleanup")
	}
	if count > 0 {
		q.logger.Info("cleaned up old jobs", "count", count, "older_than_days", olderThanDays)
	}
	return count, nil
}

func summarizeJob(job *store.Job) JobSummary {
	return JobSummary{
		ID:                  job.ID,
		Name:                job.Name,
		FunctionIdentifier:  job.FunctionIdentifier,
		Priority:            job.Priority,
		Dependencies:        job.Dependencies,
		MaxAttempts:         job.MaxAttempts,
		Attempts:            job.Attempts,
		TimeoutSeconds:      job.TimeoutSeconds,
		Status:              job.Status,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
		WorkerID:            job.WorkerID,
		Result:              job.Result,
		Error:               job.Error,
		ExecutingWorkflowID: job.ExecutingWorkflowID,
	}
}

func summarizeExecutions(execs []*store.JobExecution) []ExecutionSummary {
	summaries := make([]ExecutionSummary, 0, len(execs))
	for _, e := range execs {
		summaries = append(summaries, ExecutionSummary{
			ID:          e.ID,
			WorkerID:    e.WorkerID,
			StartedAt:   e.StartedAt,
			CompletedAt: e.CompletedAt,
			Status:      e.Status,
			Error:       e.Error,
		})
	}
	return summaries
}
