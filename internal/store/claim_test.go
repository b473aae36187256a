package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestJob(t *testing.T, db *DB, priority int, deps []string) *Job {
	t.Helper()
	now := time.Now().UTC()
	job := &Job{
		ID:                 uuid.New().String(),
		Name:               "test-job",
		FunctionIdentifier: "noop",
		Priority:           priority,
		Dependencies:       deps,
		MaxAttempts:        3,
		TimeoutSeconds:     60,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.InsertJob(context.Background(), job); err != nil {
		t.Fatalf("InsertJob() error = %v", err)
	}
	return job
}

func TestClaimNextExactlyOneWinner(t *testing.T) {
	db := openTestDB(t)
	job := insertTestJob(t, db, 0, nil)

	const workers = 8
	var wg sync.WaitGroup
	claimed := make([]*Job, workers)
	errs := make([]error, workers)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			claimed[i], errs[i] = db.ClaimNext(context.Background(), "worker-"+string(rune('a'+i)), time.Now().UTC())
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, j := range claimed {
		if errs[i] != nil {
			t.Fatalf("ClaimNext() error = %v", errs[i])
		}
		if j != nil {
			winners++
			if j.ID != job.ID {
				t.Errorf("claimed unexpected job %s", j.ID)
			}
		}
	}

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestClaimNextOrdersByPriorityThenAge(t *testing.T) {
	db := openTestDB(t)
	low := insertTestJob(t, db, 0, nil)
	time.Sleep(2 * time.Millisecond)
	high := insertTestJob(t, db, 10, nil)

	claimed, err := db.ClaimNext(context.Background(), "worker-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed == nil || claimed.ID != high.ID {
		t.Fatalf("expected to claim high priority job %s, got %v", high.ID, claimed)
	}
	_ = low
}

func TestSweepTimeoutsRequeuesWithinBudget(t *testing.T) {
	db := openTestDB(t)
	job := insertTestJob(t, db, 0, nil)
	job.MaxAttempts = 2
	job.TimeoutSeconds = 1
	if _, err := db.Exec(`UPDATE jobs SET max_attempts = ?, timeout_seconds = ? WHERE id = ?`, 2, 1, job.ID); err != nil {
		t.Fatalf("setup update: %v", err)
	}

	claimed, err := db.ClaimNext(context.Background(), "worker-1", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext() = %v, %v", claimed, err)
	}

	future := time.Now().UTC().Add(2 * time.Second)
	count, err := db.SweepTimeouts(context.Background(), future)
	if err != nil {
		t.Fatalf("SweepTimeouts() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("swept %d jobs, want 1", count)
	}

	after, err := db.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if after.Status != StatusPending {
		t.Errorf("status = %s, want pending (retry budget remains)", after.Status)
	}
	if after.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (incremented at claim time only)", after.Attempts)
	}

	execs, err := db.ListExecutions(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(execs) != 1 || execs[0].Status != ExecStatusTimeout {
		t.Fatalf("executions = %+v, want one timeout execution", execs)
	}
}

func TestSweepTimeoutsTerminatesAfterBudgetExhausted(t *testing.T) {
	db := openTestDB(t)
	job := insertTestJob(t, db, 0, nil)
	if _, err := db.Exec(`UPDATE jobs SET max_attempts = ?, timeout_seconds = ? WHERE id = ?`, 1, 1, job.ID); err != nil {
		t.Fatalf("setup update: %v", err)
	}

	if _, err := db.ClaimNext(context.Background(), "worker-1", time.Now().UTC()); err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}

	future := time.Now().UTC().Add(2 * time.Second)
	if _, err := db.SweepTimeouts(context.Background(), future); err != nil {
		t.Fatalf("SweepTimeouts() error = %v", err)
	}

	after, err := db.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if after.Status != StatusTimeout {
		t.Errorf("status = %s, want timeout (budget exhausted)", after.Status)
	}
}

func TestClaimNextCancelsJobWithFailedDependency(t *testing.T) {
	db := openTestDB(t)
	dep := insertTestJob(t, db, 0, nil)
	dependent := insertTestJob(t, db, 0, []string{dep.ID})

	// Fail the dependency directly.
	now := time.Now().UTC()
	if _, err := db.Exec(`UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?`, StatusFailed, now, dep.ID); err != nil {
		t.Fatalf("setup update: %v", err)
	}

	claimed, err := db.ClaimNext(context.Background(), "worker-1", now)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed %v, want nil (only a cancellation should happen)", claimed)
	}

	after, err := db.GetJob(context.Background(), dependent.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if after.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", after.Status)
	}
}

func TestClaimNextLeavesJobPendingOnUnknownDependency(t *testing.T) {
	db := openTestDB(t)
	dependent := insertTestJob(t, db, 0, []string{"does-not-exist"})

	claimed, err := db.ClaimNext(context.Background(), "worker-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed %v, want nil", claimed)
	}

	after, err := db.GetJob(context.Background(), dependent.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if after.Status != StatusPending {
		t.Errorf("status = %s, want pending (unknown dependency never cancels)", after.Status)
	}
}

func TestFinalizeSuccessSkipsReassignedJob(t *testing.T) {
	db := openTestDB(t)
	job := insertTestJob(t, db, 0, nil)

	claimed, err := db.ClaimNext(context.Background(), "worker-1", time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext() = %v, %v", claimed, err)
	}

	// Simulate the sweep reassigning the job to another worker out from
	// under worker-1.
	now := time.Now().UTC()
	if _, err := db.Exec(`UPDATE jobs SET worker_id = ? WHERE id = ?`, "worker-2", job.ID); err != nil {
		t.Fatalf("setup update: %v", err)
	}

	if err := db.FinalizeSuccess(context.Background(), job.ID, "worker-1", `{"ok":true}`, now); err != nil {
		t.Fatalf("FinalizeSuccess() error = %v", err)
	}

	after, err := db.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if after.Status != StatusRunning {
		t.Errorf("status = %s, want running (stale finalize must not clobber reassignment)", after.Status)
	}
}
