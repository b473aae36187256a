// Package worker implements the polling loop that claims, executes, and
// finalizes jobs. A Worker never decides what work means; it delegates
// to a resolver.Resolver for that and to the store for persistence.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gigq/gigq/internal/resolver"
	"github.com/gigq/gigq/internal/store"
)

const (
	// defaultGracefulShutdownTimeout bounds how long gracefulShutdown waits
	// for a job still recorded as in flight before giving up and returning
	// anyway; such a job is left running and will be recovered by the next
	// sweep once its timeout elapses.
	defaultGracefulShutdownTimeout = 30 * time.Second

	// heartbeatInterval controls how often an idle worker logs host stats.
	heartbeatInterval = 1 * time.Minute
)

// Options configures a Worker. PollInterval and GracefulShutdownTimeout
// fall back to sane defaults when left zero.
type Options struct {
	WorkerID                string
	PollInterval            time.Duration
	GracefulShutdownTimeout time.Duration
	Logger                  *slog.Logger
	Heartbeat               bool
}

// Worker polls a session factory for claimable jobs and executes them via
// a resolver.Resolver.
type Worker struct {
	factory      store.SessionFactory
	resolver     resolver.Resolver
	workerID     string
	pollInterval time.Duration
	shutdownWait time.Duration
	logger       *slog.Logger
	heartbeat    bool

	mu        sync.RWMutex
	currentID string
}

// New creates a Worker. opts.WorkerID defaults to "<hostname>:<pid>".
func New(factory store.SessionFactory, res resolver.Resolver, opts Options) *Worker {
	workerID := opts.WorkerID
	if workerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		workerID = fmt.Sprintf("%s:%d", host, os.Getpid())
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	shutdownWait := opts.GracefulShutdownTimeout
	if shutdownWait <= 0 {
		shutdownWait = defaultGracefulShutdownTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		factory:      factory,
		resolver:     res,
		workerID:     workerID,
		pollInterval: pollInterval,
		shutdownWait: shutdownWait,
		logger:       logger,
		heartbeat:    opts.Heartbeat,
	}
}

// ID returns this worker's identifier, as recorded on claimed jobs.
func (w *Worker) ID() string { return w.workerID }

// Start runs the poll loop until ctx is cancelled. Jobs run synchronously
// inside the loop under a context that is not cancelled along with ctx,
// so a job in flight when ctx is cancelled runs to completion and is
// finalized before Start returns; the shutdown timeout does not bound
// that wait.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting", "worker_id", w.workerID, "poll_interval", w.pollInterval)

	pollTicker := time.NewTicker(w.pollInterval)
	defer pollTicker.Stop()

	var heartbeatC <-chan time.Time
	if w.heartbeat {
		hb := time.NewTicker(heartbeatInterval)
		defer hb.Stop()
		heartbeatC = hb.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.workerID)
			return w.gracefulShutdown()
		case <-pollTicker.C:
			if _, err := w.ProcessOne(context.WithoutCancel(ctx)); err != nil {
				w.logger.Error("poll iteration failed", "worker_id", w.workerID, "error", err)
			}
		case <-heartbeatC:
			w.logHostStats()
		}
	}
}

func (w *Worker) gracefulShutdown() error {
	w.mu.RLock()
	jobID := w.currentID
	w.mu.RUnlock()

	if jobID == "" {
		return nil
	}

	w.logger.Info("waiting for in-flight job", "job_id", jobID, "timeout", w.shutdownWait)
	deadline := time.Now().Add(w.shutdownWait)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		w.mu.RLock()
		stillRunning := w.currentID == jobID
		w.mu.RUnlock()
		if !stillRunning {
			return nil
		}
		<-ticker.C
	}

	w.logger.Warn("graceful shutdown timed out, job left running for the timeout sweep", "job_id", jobID)
	return nil
}

// ProcessOne runs a single poll iteration: sweep expired jobs, then claim
// and execute at most one job. Returns whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	db, err := w.factory.Session(ctx)
	if err != nil {
		return false, fmt.Errorf("worker: open session: %w", err)
	}

	now := time.Now().UTC()
	if _, err := db.SweepTimeouts(ctx, now); err != nil {
		return false, fmt.Errorf("worker: sweep timeouts: %w", err)
	}

	job, err := db.ClaimNext(ctx, w.workerID, now)
	if err != nil {
		return false, fmt.Errorf("worker: claim next: %w", err)
	}
	if job == nil {
		return false, nil
	}

	w.mu.Lock()
	w.currentID = job.ID
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.currentID = ""
		w.mu.Unlock()
	}()

	w.runJob(ctx, db, job)
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, db *store.DB, job *store.Job) {
	logger := w.logger.With("job_id", job.ID, "function", job.FunctionIdentifier, "worker_id", w.workerID)
	logger.Info("job claimed")
	start := time.Now()

	fn, ok := w.resolver.Resolve(job.FunctionIdentifier)
	if !ok {
		errMsg := (&resolver.ErrUnknownFunction{FunctionIdentifier: job.FunctionIdentifier}).Error()
		logger.Error("no handler registered", "error", errMsg)
		if err := db.FinalizeFailure(ctx, job.ID, w.workerID, errMsg, time.Now().UTC()); err != nil {
			logger.Error("failed to finalize unresolved job", "error", err)
		}
		return
	}

	var params map[string]interface{}
	if job.Parameters != "" {
		if err := json.Unmarshal([]byte(job.Parameters), &params); err != nil {
			errMsg := fmt.Sprintf("invalid parameters: %v", err)
			logger.Error("failed to decode parameters", "error", err)
			if err := db.FinalizeFailure(ctx, job.ID, w.workerID, errMsg, time.Now().UTC()); err != nil {
				logger.Error("failed to finalize undecodable job", "error", err)
			}
			return
		}
	}

	// No in-process timer wraps this call: timeout enforcement is the
	// sweep's job, not this worker's. A job that overruns its budget keeps
	// running here until it returns on its own; the sweep is what reassigns
	// or terminally times it out from the outside, possibly while this call
	// is still in flight.
	result, runErr := func() (res interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return fn(ctx, params)
	}()
	duration := time.Since(start)

	if runErr != nil {
		logger.Error("job failed", "error", runErr, "duration", duration)
		if err := db.FinalizeFailure(ctx, job.ID, w.workerID, runErr.Error(), time.Now().UTC()); err != nil {
			logger.Error("failed to finalize failed job", "error", err)
		}
		return
	}

	resultJSON, err := encodeResult(result)
	if err != nil {
		logger.Error("result not encodable", "error", err)
		if ferr := db.FinalizeFailure(ctx, job.ID, w.workerID, fmt.Sprintf("result not encodable: %v", err), time.Now().UTC()); ferr != nil {
			logger.Error("failed to finalize job with unencodable result", "error", ferr)
		}
		return
	}

	logger.Info("job completed", "duration", duration)
	if err := db.FinalizeSuccess(ctx, job.ID, w.workerID, resultJSON, time.Now().UTC()); err != nil {
		logger.Error("failed to finalize completed job", "error", err)
	}
}

func encodeResult(result interface{}) (string, error) {
	if result == nil {
		return "", nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w *Worker) logHostStats() {
	cores, err := cpu.Counts(true)
	if err != nil {
		w.logger.Warn("failed to read cpu stats", "error", err)
		return
	}
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		w.logger.Warn("failed to read cpu usage", "error", err)
		return
	}
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		w.logger.Warn("failed to read memory stats", "error", err)
		return
	}

	w.logger.Info("worker heartbeat",
		"worker_id", w.workerID,
		"cpu_cores", cores,
		"cpu_usage_percent", percentages[0],
		"memory_usage_percent", vmStat.UsedPercent,
	)
}
