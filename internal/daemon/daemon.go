// Package daemon runs the processing loop: wake up, drain the approved
// queue, sleep. One pass at a time, no overlap.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/models"
	"github.com/garnizeh/applyd/internal/pipeline"
	"github.com/garnizeh/applyd/internal/store"
)

// Scheduler owns the periodic drain.
type Scheduler struct {
	runner *pipeline.Runner
	store  *store.Store
	cfg    config.DaemonConfig
	dryRun bool
	logger *slog.Logger
}

func New(runner *pipeline.Runner, st *store.Store, cfg config.DaemonConfig, dryRun bool, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, store: st, cfg: cfg, dryRun: dryRun, logger: logger}
}

// RunOnce drains the approved queue a single time. An empty queue is a
// no-op, not an error.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Results, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	approved := stats[models.StatusApproved]
	if approved == 0 {
		s.logger.Debug("queue empty, nothing to process")
		return &pipeline.Results{}, nil
	}

	s.logger.Info("processing queue", "approved", approved, "max_per_run", s.cfg.MaxPerRun, "dry_run", s.dryRun)
	res, err := s.runner.Drain(ctx, s.cfg.MaxPerRun, s.dryRun)
	if res != nil {
		s.logger.Info("queue pass complete",
			"processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed)
	}
	return res, err
}

// Run loops RunOnce until the context is canceled. The interval sleep is
// chunked so cancellation takes effect within about a second.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("daemon started", "interval", s.cfg.Interval, "dry_run", s.dryRun)
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("queue pass failed", "error", err)
		}

		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			s.logger.Info("daemon stopped")
			return err
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		step := time.Second
		if rem := time.Until(deadline); rem < step {
			step = rem
		}
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
