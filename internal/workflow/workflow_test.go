package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gigq/gigq/internal/gigq"
	"github.com/gigq/gigq/internal/store"
)

func newTestQueue(t *testing.T) *gigq.Queue {
	t.Helper()
	factory, err := store.NewInMemorySessionFactory(filepath.Join(t.TempDir(), "workflow.db"))
	if err != nil {
		t.Fatalf("NewInMemorySessionFactory() error = %v", err)
	}
	t.Cleanup(func() { factory.Close() })

	q, err := gigq.NewQueue(context.Background(), factory, nil)
	if err != nil {
		t.Fatalf("NewQueue() error = %v", err)
	}
	return q
}

func TestBuilderSubmitsInDependencyOrder(t *testing.T) {
	queue := newTestQueue(t)
	b := NewBuilder(nil)

	if err := b.AddJob("fetch", gigq.NewJobDefinition("fetch", "fetch_report", nil)); err != nil {
		t.Fatalf("AddJob(fetch) error = %v", err)
	}
	if err := b.AddJob("summarize", gigq.NewJobDefinition("summarize", "summarize_report", nil), "fetch"); err != nil {
		t.Fatalf("AddJob(summarize) error = %v", err)
	}

	workflowID, jobIDs, err := b.Submit(context.Background(), queue)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if workflowID == "" {
		t.Fatal("Submit() returned empty workflow id")
	}

	fetchID, ok := jobIDs["fetch"]
	if !ok {
		t.Fatal("jobIDs missing \"fetch\"")
	}
	summarizeID, ok := jobIDs["summarize"]
	if !ok {
		t.Fatal("jobIDs missing \"summarize\"")
	}

	status, err := queue.GetStatus(context.Background(), summarizeID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if len(status.Job.Dependencies) != 1 || status.Job.Dependencies[0] != fetchID {
		t.Fatalf("summarize dependencies = %v, want [%s]", status.Job.Dependencies, fetchID)
	}
}

func TestBuilderRejectsDuplicateName(t *testing.T) {
	b := NewBuilder(nil)
	if err := b.AddJob("job", gigq.NewJobDefinition("job", "noop", nil)); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if err := b.AddJob("job", gigq.NewJobDefinition("job", "noop", nil)); err == nil {
		t.Fatal("AddJob() error = nil, want duplicate name rejection")
	}
}

func TestBuilderRejectsUnknownDependency(t *testing.T) {
	queue := newTestQueue(t)
	b := NewBuilder(nil)
	if err := b.AddJob("job", gigq.NewJobDefinition("job", "noop", nil), "ghost"); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	_, _, err := b.Submit(context.Background(), queue)
	var gigqErr *gigq.Error
	if !errors.As(err, &gigqErr) || gigqErr.Kind != gigq.KindUnknownDependency {
		t.Fatalf("Submit() error = %v, want KindUnknownDependency", err)
	}
}

func TestBuilderRejectsCycle(t *testing.T) {
	queue := newTestQueue(t)
	b := NewBuilder(nil)
	if err := b.AddJob("a", gigq.NewJobDefinition("a", "noop", nil), "b"); err != nil {
		t.Fatalf("AddJob(a) error = %v", err)
	}
	if err := b.AddJob("b", gigq.NewJobDefinition("b", "noop", nil), "a"); err != nil {
		t.Fatalf("AddJob(b) error = %v", err)
	}

	_, _, err := b.Submit(context.Background(), queue)
	var gigqErr *gigq.Error
	if !errors.As(err, &gigqErr) || gigqErr.Kind != gigq.KindCycleDetected {
		t.Fatalf("Submit() error = %v, want KindCycleDetected", err)
	}
}

func TestSpecBuilderAppliesOverridesAndDependsOn(t *testing.T) {
	spec := &Spec{
		Jobs: []JobSpec{
			{Name: "fetch", Function: "fetch_report", Priority: 5},
			{Name: "summarize", Function: "summarize_report", DependsOn: []string{"fetch"}, MaxAttempts: 1, TimeoutSeconds: 10},
		},
	}

	b, err := spec.Builder()
	if err != nil {
		t.Fatalf("Builder() error = %v", err)
	}

	queue := newTestQueue(t)
	_, jobIDs, err := b.Submit(context.Background(), queue)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	status, err := queue.GetStatus(context.Background(), jobIDs["fetch"])
	if err != nil {
		t.Fatalf("GetStatus(fetch) error = %v", err)
	}
	if status.Job.Priority != 5 {
		t.Errorf("fetch priority = %d, want 5", status.Job.Priority)
	}

	summarizeStatus, err := queue.GetStatus(context.Background(), jobIDs["summarize"])
	if err != nil {
		t.Fatalf("GetStatus(summarize) error = %v", err)
	}
	if summarizeStatus.Job.MaxAttempts != 1 {
		t.Errorf("summarize max_attempts = %d, want 1", summarizeStatus.Job.MaxAttempts)
	}
	if summarizeStatus.Job.TimeoutSeconds != 10 {
		t.Errorf("summarize timeout_seconds = %d, want 10", summarizeStatus.Job.TimeoutSeconds)
	}
}
