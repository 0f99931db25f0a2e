/**
 * @description
 * Scheduled job implementations: the auto-payout sweep over due authors and
 * the dispatcher that submits PENDING payouts to the provider.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
)

// PayoutRunner defines the service operations the jobs need.
type PayoutRunner interface {
	AutoPayoutCandidates(ctx context.Context) ([]uuid.UUID, error)
	EvaluateAutoPayout(ctx context.Context, authorID uuid.UUID) (*domain.Payout, error)
	ListPendingPayouts(ctx context.Context) ([]domain.Payout, error)
	SubmitPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)
	StalePendingPayouts(ctx context.Context) ([]domain.Payout, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	runner PayoutRunner
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(runner PayoutRunner, logger *slog.Logger) *Jobs {
	return &Jobs{runner: runner, logger: logger}
}

// ProcessAutoPayouts walks every author whose auto-payout window has elapsed
// and evaluates them. One author's failure must not abort the sweep: errors
// are logged and the loop continues.
func (j *Jobs) ProcessAutoPayouts() {
	j.logger.Info("starting auto payout sweep")
	ctx := context.Background()

	candidates, err := j.runner.AutoPayoutCandidates(ctx)
	if err != nil {
		j.logger.Error("failed to list auto payout candidates", "error", err)
		return
	}
	if len(candidates) == 0 {
		j.logger.Info("no authors due for auto payout")
		return
	}

	j.logger.Info("found authors due for auto payout", "count", len(candidates))

	created := 0
	for _, authorID := range candidates {
		payout, err := j.runner.EvaluateAutoPayout(ctx, authorID)
		if err != nil {
			j.logger.Error("auto payout evaluation failed", "author_id", authorID, "error", err)
			continue
		}
		if payout != nil {
			created++
		}
	}

	j.logger.Info("auto payout sweep finished", "evaluated", len(candidates), "created", created)
}

// DispatchPendingPayouts submits PENDING payouts to the provider gateway.
// Failures are isolated per payout: a submission error closes that payout as
// FAILED (releasing its earnings) and the loop continues.
func (j *Jobs) DispatchPendingPayouts() {
	j.logger.Info("starting payout dispatch")
	ctx := context.Background()

	if stale, err := j.runner.StalePendingPayouts(ctx); err != nil {
		j.logger.Error("failed to check for stale pending payouts", "error", err)
	} else {
		for _, payout := range stale {
			j.logger.Warn("payout stuck in pending state",
				"payout_id", payout.ID, "author_id", payout.AuthorID, "requested_at", payout.RequestedAt)
		}
	}

	pending, err := j.runner.ListPendingPayouts(ctx)
	if err != nil {
		j.logger.Error("failed to list pending payouts", "error", err)
		return
	}
	if len(pending) == 0 {
		j.logger.Info("no pending payouts to dispatch")
		return
	}

	submitted := 0
	for _, payout := range pending {
		if _, err := j.runner.SubmitPayout(ctx, payout.ID); err != nil {
			j.logger.Error("payout dispatch failed", "payout_id", payout.ID, "error", err)
			continue
		}
		submitted++
	}

	j.logger.Info("payout dispatch finished", "pending", len(pending), "submitted", submitted)
}
