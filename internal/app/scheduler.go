/**
 * @description
 * Cron scheduler setup for the auto-payout sweep and payout dispatch jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/inkwell/monetization-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.AutoPayoutSweepSchedule, s.jobs.ProcessAutoPayouts); err != nil {
		s.logger.Error("failed to schedule auto payout sweep", "error", err)
	} else {
		s.logger.Info("scheduled auto payout sweep", "schedule", s.config.AutoPayoutSweepSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.PayoutDispatchSchedule, s.jobs.DispatchPendingPayouts); err != nil {
		s.logger.Error("failed to schedule payout dispatch", "error", err)
	} else {
		s.logger.Info("scheduled payout dispatch", "schedule", s.config.PayoutDispatchSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
