// Package scheduler runs periodic queue maintenance — currently just
// old-job cleanup — on a cron schedule, independent of the worker's poll
// loop.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/gigq/gigq/internal/gigq"
)

// Scheduler wraps a cron.Cron running a single cleanup job.
type Scheduler struct {
	cron         *cron.Cron
	queue        *gigq.Queue
	cleanupAfter int
	logger       *slog.Logger
}

// New builds a Scheduler that runs queue.Cleanup(cleanupAfterDays) on
// spec (a standard 5-field cron expression).
func New(spec string, queue *gigq.Queue, cleanupAfterDays int, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:         cron.New(),
		queue:        queue,
		cleanupAfter: cleanupAfterDays,
		logger:       logger,
	}

	if _, err := s.cron.AddFunc(spec, s.runCleanup); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info("cleanup scheduler starting")
	s.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cleanup scheduler stopped")
}

func (s *Scheduler) runCleanup() {
	count, err := s.queue.Cleanup(context.Background(), s.cleanupAfter)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
		return
	}
	s.logger.Info("scheduled cleanup ran", "jobs_removed", count)
}
