package workflow

import (
	"context"
	"fmt"

	"github.com/gigq/gigq/internal/gigq"
	"github.com/gigq/gigq/internal/store"
)

// JobStatus is one job's standing within a workflow.
type JobStatus struct {
	JobID  string
	Name   string
	Status string
}

// Summary reports every job belonging to workflowID and whether the
// workflow as a whole has finished (every job in a terminal status).
type Summary struct {
	WorkflowID string
	Jobs       []JobStatus
	Done       bool
}

// Status reports the current standing of every job tagged with
// workflowID, for an "is my pipeline done yet" check without the caller
// needing to track individual job ids itself.
func Status(ctx context.Context, queue *gigq.Queue, workflowID string) (*Summary, error) {
	jobs, err := queue.List(ctx, gigq.ListFilter{WorkflowID: workflowID})
	if err != nil {
		return nil, fmt.Errorf("workflow: list status for %s: %w", workflowID, err)
	}

	summary := &Summary{WorkflowID: workflowID, Jobs: make([]JobStatus, 0, len(jobs)), Done: true}
	for _, j := range jobs {
		summary.Jobs = append(summary.Jobs, JobStatus{JobID: j.ID, Name: j.Name, Status: j.Status})
		if !store.IsTerminal(j.Status) {
			summary.Done = false
		}
	}
	return summary, nil
}
