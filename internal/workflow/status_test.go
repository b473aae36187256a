package workflow

import (
	"context"
	"testing"

	"github.com/gigq/gigq/internal/gigq"
)

func TestStatusReportsDoneOnlyWhenAllTerminal(t *testing.T) {
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

	summary, err := Status(context.Background(), queue, workflowID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if summary.Done {
		t.Fatal("Done = true, want false (both jobs still pending)")
	}
	if len(summary.Jobs) != 2 {
		t.Fatalf("Jobs = %v, want 2 entries", summary.Jobs)
	}

	if err := queue.Cancel(context.Background(), jobIDs["fetch"]); err != nil {
		t.Fatalf("Cancel(fetch) error = %v", err)
	}

	summary, err = Status(context.Background(), queue, workflowID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if summary.Done {
		t.Fatal("Done = true, want false (summarize still pending, gated by a cancelled dependency it hasn't been claimed against yet)")
	}
}
