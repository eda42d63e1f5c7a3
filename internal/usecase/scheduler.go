package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ContentRewriter/internal/ports"
)

// Scheduler wires the periodic driver with the pipeline cycle.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	notifier ports.Notifier
	logger   *slog.Logger

	// one cycle at a time even when ticks overlap
	running sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:   driver,
		pipeline: pipeline,
		notifier: notifier,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the cycle with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunOnce(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunOnce executes one cycle, skipping if another is still running.
// Cycle-level failures are logged and reported; they never stop the
// schedule.
func (s *Scheduler) RunOnce(ctx context.Context, trigger time.Time) {
	if !s.running.TryLock() {
		s.logger.Warn("previous cycle still running, tick skipped", "trigger", trigger)
		return
	}
	defer s.running.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked", "trigger", trigger, "panic", r)
			s.report(ctx, fmt.Sprintf("Cycle panicked: %v", r))
		}
	}()

	if _, err := s.pipeline.RunCycle(ctx); err != nil {
		s.logger.Error("cycle failed", "trigger", trigger, "error", err)
		s.report(ctx, "Cycle failed: "+err.Error())
	}
}

func (s *Scheduler) report(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), "error", message); err != nil {
		s.logger.Warn("notification failed", "error", err)
	}
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
