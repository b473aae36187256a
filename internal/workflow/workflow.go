// Package workflow builds a set of related jobs into a dependency graph
// and submits them to a Queue in one batch, tagged with a shared
// workflow id so the queue can track and report on them together.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gigq/gigq/internal/gigq"
)

// Builder accumulates named job definitions and the dependency edges
// between them before they are ever persisted. Dependencies are
// expressed by the name the caller gave a job at AddJob time, not by a
// store-assigned id, since ids don't exist until submission.
type Builder struct {
	jobs    []namedJob
	byName  map[string]int
	logger  *slog.Logger
}

type namedJob struct {
	name     string
	def      gigq.JobDefinition
	dependOn []string
}

// NewBuilder creates an empty workflow Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{byName: make(map[string]int), logger: logger}
}

// AddJob adds def to the workflow under name, depending on the jobs named
// in dependOn. name must be unique within the builder. Dependencies may
// name jobs added later; unknown names are rejected by Submit, not here.
func (b *Builder) AddJob(name string, def gigq.JobDefinition, dependOn ...string) error {
	if name == "" {
		return fmt.Errorf("workflow: job name must not be empty")
	}
	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("workflow: duplicate job name %q", name)
	}

	b.byName[name] = len(b.jobs)
	b.jobs = append(b.jobs, namedJob{name: name, def: def, dependOn: dependOn})
	return nil
}

// Submit resolves the dependency graph, rejects cycles and references to
// unknown job names, then submits every job to queue in topological
// order, tagging each with a freshly generated workflow id. Returns the
// workflow id and a map from the names given to AddJob to their assigned
// job ids.
func (b *Builder) Submit(ctx context.Context, queue *gigq.Queue) (workflowID string, jobIDs map[string]string, err error) {
	for _, j := range b.jobs {
		for _, dep := range j.dependOn {
			if _, ok := b.byName[dep]; !ok {
				return "", nil, &gigq.Error{Kind: gigq.KindUnknownDependency, Message: fmt.Sprintf("job %q depends on unknown job %q", j.name, dep)}
			}
		}
	}

	order, err := b.topologicalOrder()
	if err != nil {
		return "", nil, err
	}

	workflowID = uuid.New().String()
	jobIDs = make(map[string]string, len(b.jobs))

	for _, idx := range order {
		j := b.jobs[idx]

		def := j.def
		def.Dependencies = make([]string, 0, len(j.dependOn))
		for _, dep := range j.dependOn {
			depID, ok := jobIDs[dep]
			if !ok {
				return workflowID, jobIDs, fmt.Errorf("workflow: dependency %q not yet submitted when submitting %q", dep, j.name)
			}
			def.Dependencies = append(def.Dependencies, depID)
		}

		id, err := queue.Submit(ctx, def, &workflowID)
		if err != nil {
			return workflowID, jobIDs, fmt.Errorf("workflow: submit job %q: %w", j.name, err)
		}
		jobIDs[j.name] = id
	}

	b.logger.Info("workflow submitted", "workflow_id", workflowID, "job_count", len(b.jobs))
	return workflowID, jobIDs, nil
}

// topologicalOrder returns a valid submission order (dependencies before
// dependents) as indices into b.jobs, or a CycleDetected error.
func (b *Builder) topologicalOrder() ([]int, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make([]int, len(b.jobs))
	order := make([]int, 0, len(b.jobs))

	var visit func(idx int) error
	visit = func(idx int) error {
		switch state[idx] {
		case black:
			return nil
		case gray:
			return &gigq.Error{Kind: gigq.KindCycleDetected, Message: fmt.Sprintf("dependency cycle involving job %q", b.jobs[idx].name)}
		}

		state[idx] = gray
		for _, dep := range b.jobs[idx].dependOn {
			depIdx := b.byName[dep]
			if err := visit(depIdx); err != nil {
				return err
			}
		}
		state[idx] = black
		order = append(order, idx)
		return nil
	}

	for idx := range b.jobs {
		if err := visit(idx); err != nil {
			return nil, err
		}
	}
	return order, nil
}
