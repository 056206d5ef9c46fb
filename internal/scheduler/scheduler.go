// Package scheduler fires engine operations on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/store"
)

type Job struct {
	Spec      string
	Operation engine.Operation
}

// Jobs lists the scheduled operations with non-empty specs.
func Jobs(cfg *store.Config) []Job {
	all := []Job{
		{cfg.Schedule.Cycle, engine.OpExecuteCycle},
		{cfg.Schedule.Learn, engine.OpAutoLearn},
		{cfg.Schedule.Watchlist, engine.OpDynamicWatchlist},
		{cfg.Schedule.Report, engine.OpWeeklyReport},
	}
	out := all[:0]
	for _, j := range all {
		if j.Spec != "" {
			out = append(out, j)
		}
	}
	return out
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron   *cron.Cron
	runner engine.Runner
	ctx    context.Context
}

// New builds a seconds-resolution scheduler in the trading timezone. An
// overlapping fire of the same job is skipped rather than queued.
func New(ctx context.Context, cfg *store.Config, runner engine.Runner) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		runner: runner,
		ctx:    ctx,
	}
}

func (s *Scheduler) Register(jobs []Job) error {
	for _, j := range jobs {
		op := j.Operation
		if _, err := s.cron.AddFunc(j.Spec, func() { s.fire(op) }); err != nil {
			return fmt.Errorf("register %s (%q): %w", op, j.Spec, err)
		}
		logger.Info(s.ctx, "Scheduled operation", "operation", op, "spec", j.Spec)
	}
	return nil
}

func (s *Scheduler) fire(op engine.Operation) {
	if _, err := s.runner.Dispatch(s.ctx, op, engine.Params{}); err != nil {
		logger.ErrorWithErr(s.ctx, "Scheduled operation failed", err, "operation", op)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info(s.ctx, "Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn(ctx, "Scheduler stop timed out with jobs running")
	}
	logger.Info(ctx, "Scheduler stopped")
}
