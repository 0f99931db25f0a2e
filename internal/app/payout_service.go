/**
 * @description
 * Payout batcher and settlement state machine. Batching reserves unpaid
 * earnings into a PENDING payout; the dispatcher moves it to PROCESSING and
 * hands it to the provider gateway; asynchronous provider outcomes close it
 * as COMPLETED or FAILED. A FAILED or CANCELLED payout releases its earnings
 * back to the unpaid pool and is never reused, so every settlement attempt
 * leaves an audit trail.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

func payoutEvent(p *domain.Payout) domain.PayoutEvent {
	event := domain.PayoutEvent{
		PayoutID:         p.ID,
		AuthorID:         p.AuthorID,
		Status:           p.Status,
		TotalAmountMinor: p.TotalAmount.MinorUnits,
		Currency:         p.TotalAmount.Currency,
		EarningsReleased: p.Status.ReleasesEarnings(),
		Timestamp:        time.Now().UTC(),
	}
	if p.ProviderPayoutID != nil {
		event.ProviderPayoutID = *p.ProviderPayoutID
	}
	if p.FailureReason != nil {
		event.FailureReason = *p.FailureReason
	}
	return event
}

// RequestPayout creates a PENDING payout batch from the author's unpaid
// earnings. With no requested amount the full unpaid balance is batched;
// with one, earnings are selected oldest-first until the amount is covered.
// A requested amount without a currency is taken in the platform currency.
// The balance must meet the author's minimum payout threshold unless the
// service is configured to allow explicit below-minimum requests.
func (s *Service) RequestPayout(ctx context.Context, authorID uuid.UUID, requested *money.Money, notes *string) (*domain.Payout, error) {
	settings, err := s.GetPayoutSettings(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !settings.HasDestination() {
		return nil, store.ErrPayoutDestinationNotConfigured
	}

	var requestedMinor *int64
	if requested != nil {
		amount := *requested
		if amount.Currency == "" {
			amount = money.New(amount.MinorUnits, s.opts.DefaultCurrency)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: requested %s", money.ErrInvalidAmount, amount)
		}
		if amount.Currency != s.opts.DefaultCurrency {
			return nil, fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, amount.Currency, s.opts.DefaultCurrency)
		}
		requestedMinor = &amount.MinorUnits
	}

	// An explicit amount may bypass the threshold only when the platform
	// allows it; full-balance requests always honor the minimum.
	enforceMinimum := requestedMinor == nil || !s.opts.AllowBelowMinimum

	payout, err := s.repo.ReservePayoutBatch(ctx, store.ReservePayoutBatchParams{
		AuthorID:       authorID,
		Currency:       s.opts.DefaultCurrency,
		MinimumMinor:   settings.MinimumPayout.MinorUnits,
		RequestedMinor: requestedMinor,
		EnforceMinimum: enforceMinimum,
		Notes:          notes,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payout requested",
		"payout_id", payout.ID, "author_id", authorID,
		"total", payout.TotalAmount.String(), "earnings", payout.EarningsCount)
	s.publish(ctx, routingPayoutRequested, payoutEvent(payout))
	return payout, nil
}

// EvaluateAutoPayout runs one author's scheduled payout check. Unlike
// RequestPayout it never treats an unready author as an error: a disabled
// flag, missing destination, or below-threshold balance is a silent no-op
// and returns a nil payout.
func (s *Service) EvaluateAutoPayout(ctx context.Context, authorID uuid.UUID) (*domain.Payout, error) {
	settings, err := s.repo.GetOrCreatePayoutSettings(ctx, s.defaultSettings(authorID))
	if err != nil {
		return nil, err
	}
	if !settings.AutoPayoutActive() {
		return nil, nil
	}
	// The candidate query is a coarse SQL prefilter; the frequency window is
	// re-checked here so the settings row is the authority on due-ness.
	if !settings.IsDue(time.Now().UTC()) {
		return nil, nil
	}

	unpaid, err := s.repo.TotalUnpaid(ctx, authorID)
	if err != nil {
		return nil, err
	}
	cmp, err := money.New(unpaid, s.opts.DefaultCurrency).Cmp(settings.MinimumPayout)
	if err != nil {
		s.logger.Warn("payout settings currency differs from platform currency; skipping author",
			"author_id", authorID, "error", err)
		return nil, nil
	}
	if cmp < 0 {
		return nil, nil
	}

	payout, err := s.repo.ReservePayoutBatch(ctx, store.ReservePayoutBatchParams{
		AuthorID:       authorID,
		Currency:       s.opts.DefaultCurrency,
		MinimumMinor:   settings.MinimumPayout.MinorUnits,
		EnforceMinimum: true,
	})
	if err != nil {
		// A racing manual request may have drained the balance between the
		// pre-check and the reservation. Not an error for the sweep.
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("auto payout created",
		"payout_id", payout.ID, "author_id", authorID, "total", payout.TotalAmount.String())
	s.publish(ctx, routingPayoutRequested, payoutEvent(payout))
	return payout, nil
}

// ListPendingPayouts returns the oldest PENDING payouts for the dispatcher.
func (s *Service) ListPendingPayouts(ctx context.Context) ([]domain.Payout, error) {
	return s.repo.ListPayoutsByStatus(ctx, domain.PayoutStatusPending, s.opts.DispatchBatchSize)
}

// stalePendingAge is how long a payout may sit PENDING before the dispatcher
// flags it for operator attention.
const stalePendingAge = 24 * time.Hour

// StalePendingPayouts lists payouts stuck in PENDING past the stale cutoff,
// usually a sign the dispatcher has been failing to reach the provider.
func (s *Service) StalePendingPayouts(ctx context.Context) ([]domain.Payout, error) {
	return s.repo.StalePendingPayouts(ctx, time.Now().UTC().Add(-stalePendingAge), s.opts.DispatchBatchSize)
}

// AutoPayoutCandidates lists authors whose auto-payout window has elapsed.
func (s *Service) AutoPayoutCandidates(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.AutoPayoutCandidates(ctx, time.Now().UTC())
}

// SubmitPayout advances a PENDING payout to PROCESSING and submits the
// transfer to the provider gateway. The status flip commits before the
// network call so no database lock is held while awaiting the provider; a
// synchronous submission failure closes the payout as FAILED, releasing its
// earnings for rebatching.
func (s *Service) SubmitPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.repo.MarkPayoutProcessing(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetOrCreatePayoutSettings(ctx, s.defaultSettings(payout.AuthorID))
	if err != nil {
		return nil, err
	}
	if !settings.HasDestination() {
		return s.failPayout(ctx, payout.ID, "payout destination no longer configured")
	}

	providerID, err := s.gateway.SubmitPayout(ctx,
		*settings.Destination,
		payout.TotalAmount.MinorUnits,
		payout.TotalAmount.Currency,
		payout.ID.String(),
	)
	if err != nil {
		s.logger.Error("provider submission failed", "payout_id", payout.ID, "error", err)
		return s.failPayout(ctx, payout.ID, fmt.Sprintf("provider submission failed: %v", err))
	}

	if err := s.repo.SetPayoutProviderID(ctx, payout.ID, providerID); err != nil {
		return nil, fmt.Errorf("record provider payout id: %w", err)
	}
	payout.ProviderPayoutID = &providerID

	s.logger.Info("payout submitted", "payout_id", payout.ID, "provider_payout_id", providerID)
	s.publish(ctx, routingPayoutProcessing, payoutEvent(payout))
	return payout, nil
}

func (s *Service) failPayout(ctx context.Context, payoutID uuid.UUID, reason string) (*domain.Payout, error) {
	failed, err := s.repo.MarkPayoutFailed(ctx, payoutID, reason)
	if err != nil {
		return nil, fmt.Errorf("mark payout failed: %w", err)
	}
	s.publish(ctx, routingPayoutFailed, payoutEvent(failed))
	return failed, fmt.Errorf("payout %s failed: %s", payoutID, reason)
}

// CancelPayout cancels a payout that has not been submitted yet. Its earnings
// return to the unpaid pool; payouts past PENDING can only be closed by the
// provider outcome. The ownership check runs before any state change, and a
// mismatch is reported as not found rather than forbidden.
func (s *Service) CancelPayout(ctx context.Context, authorID, payoutID uuid.UUID) (*domain.Payout, error) {
	existing, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if authorID != uuid.Nil && existing.AuthorID != authorID {
		return nil, store.ErrPayoutNotFound
	}

	payout, err := s.repo.CancelPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payout cancelled", "payout_id", payout.ID, "author_id", payout.AuthorID)
	s.publish(ctx, routingPayoutCancelled, payoutEvent(payout))
	return payout, nil
}

// HandleProviderOutcome applies an asynchronous settlement outcome from the
// provider. Notifications for a payout that is already closed are acknowledged
// without touching it: a same-status duplicate is a redelivery, and a
// conflicting outcome cannot be applied because terminal states never change.
// The provider's ledger disagreement is logged for reconciliation, not retried.
func (s *Service) HandleProviderOutcome(ctx context.Context, event domain.PayoutProviderEvent) error {
	payout, err := s.resolvePayout(ctx, event)
	if err != nil {
		return err
	}

	outcome := normalizeOutcomeStatus(event.Status)
	if payout.Status.IsTerminal() {
		if (outcome == "completed" && payout.Status != domain.PayoutStatusCompleted) ||
			(outcome == "failed" && payout.Status != domain.PayoutStatusFailed) {
			s.logger.Warn("provider outcome conflicts with closed payout; ignoring",
				"payout_id", payout.ID, "status", payout.Status, "outcome", event.Status)
		}
		return nil
	}

	switch outcome {
	case "completed":
		completed, err := s.repo.MarkPayoutCompleted(ctx, payout.ID, event.ProviderPayoutID)
		if err != nil {
			return err
		}
		s.logger.Info("payout completed", "payout_id", completed.ID, "provider_payout_id", event.ProviderPayoutID)
		s.publish(ctx, routingPayoutCompleted, payoutEvent(completed))
		return nil
	case "failed":
		reason := event.Reason
		if reason == "" {
			reason = "provider reported failure"
		}
		failed, err := s.repo.MarkPayoutFailed(ctx, payout.ID, reason)
		if err != nil {
			return err
		}
		s.logger.Info("payout failed; earnings released",
			"payout_id", failed.ID, "reason", reason, "earnings", failed.EarningsCount)
		s.publish(ctx, routingPayoutFailed, payoutEvent(failed))
		return nil
	default:
		// Intermediate provider states carry no local transition.
		return nil
	}
}

func (s *Service) resolvePayout(ctx context.Context, event domain.PayoutProviderEvent) (*domain.Payout, error) {
	if reference := strings.TrimSpace(event.Reference); reference != "" {
		if id, err := uuid.Parse(reference); err == nil {
			return s.repo.GetPayout(ctx, id)
		}
	}
	if event.ProviderPayoutID != "" {
		return s.repo.FindPayoutByProviderID(ctx, event.ProviderPayoutID)
	}
	return nil, store.ErrPayoutNotFound
}

func normalizeOutcomeStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "successful", "success", "completed", "settled":
		return "completed"
	case "failed", "failure", "rejected", "returned":
		return "failed"
	case "initiated", "processing", "pending":
		return "processing"
	default:
		return strings.TrimSpace(strings.ToLower(status))
	}
}
