/**
 * @description
 * Transactional operations of the payout batcher and settlement state machine.
 * Batch reservation locks the author's unpaid earnings with FOR UPDATE so two
 * racing payout requests can never claim the same earning; every status write
 * that releases earnings does the release and the status change in one
 * transaction.
 */
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
)

// earningShare is the slice of an unpaid earning the batcher cares about.
type earningShare struct {
	id       uuid.UUID
	netMinor int64
	feeMinor int64
}

// selectEarningsForAmount picks earnings oldest-first until their cumulative
// net amount covers the requested amount. Earnings are whole monetary units:
// an earning is included entirely or not at all, never split. A nil request
// selects the full unpaid balance.
func selectEarningsForAmount(unpaid []earningShare, requestedMinor *int64) []earningShare {
	if requestedMinor == nil {
		return unpaid
	}
	var (
		selected []earningShare
		covered  int64
	)
	for _, share := range unpaid {
		if covered >= *requestedMinor {
			break
		}
		selected = append(selected, share)
		covered += share.netMinor
	}
	return selected
}

// ReservePayoutBatchParams are the inputs to ReservePayoutBatch. The minimum
// is re-checked inside the reservation transaction so a racing request that
// drained the balance is rejected, not double-paid.
type ReservePayoutBatchParams struct {
	AuthorID       uuid.UUID
	Currency       string
	MinimumMinor   int64
	RequestedMinor *int64
	EnforceMinimum bool
	Notes          *string
}

// ReservePayoutBatch atomically creates a PENDING payout batch from the
// author's unpaid earnings: it locks the unpaid rows, selects oldest-first,
// inserts the payout, and tags every selected earning with the payout id.
// Either everything commits or nothing does.
func (r *Repository) ReservePayoutBatch(ctx context.Context, params ReservePayoutBatchParams) (*domain.Payout, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock every unpaid earning for this author. A concurrent reservation
	// blocks here and, once this transaction commits, re-reads the rows as
	// paid and drops them from its own candidate set.
	rows, err := tx.Query(ctx, `
		SELECT id, net_amount, platform_fee
		FROM author_earnings
		WHERE author_id = $1 AND is_paid_out = FALSE AND currency = $2
		ORDER BY earned_at ASC, id ASC
		FOR UPDATE
	`, params.AuthorID, params.Currency)
	if err != nil {
		return nil, err
	}

	var (
		unpaid    []earningShare
		available int64
	)
	for rows.Next() {
		var share earningShare
		if err := rows.Scan(&share.id, &share.netMinor, &share.feeMinor); err != nil {
			rows.Close()
			return nil, err
		}
		unpaid = append(unpaid, share)
		available += share.netMinor
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if params.EnforceMinimum && available < params.MinimumMinor {
		return nil, ErrInsufficientBalance
	}
	if params.RequestedMinor != nil && *params.RequestedMinor > available {
		return nil, ErrInsufficientBalance
	}

	selected := selectEarningsForAmount(unpaid, params.RequestedMinor)
	if len(selected) == 0 {
		return nil, ErrInsufficientBalance
	}

	var (
		ids        = make([]uuid.UUID, 0, len(selected))
		totalMinor int64
		feesMinor  int64
	)
	for _, share := range selected {
		ids = append(ids, share.id)
		totalMinor += share.netMinor
		feesMinor += share.feeMinor
	}

	payoutID := uuid.New()
	payout, err := scanPayout(tx.QueryRow(ctx, `
		INSERT INTO author_payouts (
			id, author_id, total_amount, platform_fees_deducted, currency,
			status, earnings_count, requested_at, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		RETURNING `+payoutColumns,
		payoutID, params.AuthorID, totalMinor, feesMinor, params.Currency,
		string(domain.PayoutStatusPending), len(ids), params.Notes,
	))
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE author_earnings
		SET payout_id = $1, is_paid_out = TRUE
		WHERE id = ANY($2) AND is_paid_out = FALSE
	`, payoutID, ids)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return nil, ErrConcurrentModification
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payout_settings SET last_payout_at = NOW(), updated_at = NOW() WHERE author_id = $1`,
		params.AuthorID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

// transitionError resolves why a guarded status update matched no rows.
func (r *Repository) transitionError(ctx context.Context, payoutID uuid.UUID, target domain.PayoutStatus) error {
	payout, err := r.GetPayout(ctx, payoutID)
	if err != nil {
		return err
	}
	return resolveTransitionFailure(payout.Status, target)
}

// resolveTransitionFailure classifies a guarded update that matched no rows.
// If the re-read status could still legally reach the target, the row moved
// between the update and the re-read; otherwise the caller asked for an
// illegal step of the state machine.
func resolveTransitionFailure(current, target domain.PayoutStatus) error {
	if current.CanTransitionTo(target) {
		return fmt.Errorf("%w: payout moved to %s mid-update", ErrConcurrentModification, current)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidPayoutTransition, current, target)
}

// MarkPayoutProcessing moves a PENDING payout to PROCESSING and stamps
// processed_at. The WHERE clause is the transition guard: any other current
// status leaves the row untouched and reports ErrInvalidPayoutTransition.
func (r *Repository) MarkPayoutProcessing(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	query := `
		UPDATE author_payouts
		SET status = $1, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + payoutColumns
	payout, err := scanPayout(r.db.QueryRow(ctx, query,
		string(domain.PayoutStatusProcessing), payoutID, string(domain.PayoutStatusPending)))
	if err != nil {
		if isNoRows(err) {
			return nil, r.transitionError(ctx, payoutID, domain.PayoutStatusProcessing)
		}
		return nil, err
	}
	return payout, nil
}

// SetPayoutProviderID records the provider's transfer id after submission.
func (r *Repository) SetPayoutProviderID(ctx context.Context, payoutID uuid.UUID, providerPayoutID string) error {
	query := `UPDATE author_payouts SET provider_payout_id = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, providerPayoutID, payoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

// MarkPayoutCompleted moves a PROCESSING payout to COMPLETED. Terminal: the
// linked earnings stay paid permanently.
func (r *Repository) MarkPayoutCompleted(ctx context.Context, payoutID uuid.UUID, providerPayoutID string) (*domain.Payout, error) {
	query := `
		UPDATE author_payouts
		SET status = $1, completed_at = NOW(),
		    provider_payout_id = COALESCE(NULLIF($2, ''), provider_payout_id),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + payoutColumns
	payout, err := scanPayout(r.db.QueryRow(ctx, query,
		string(domain.PayoutStatusCompleted), providerPayoutID, payoutID,
		string(domain.PayoutStatusProcessing)))
	if err != nil {
		if isNoRows(err) {
			return nil, r.transitionError(ctx, payoutID, domain.PayoutStatusCompleted)
		}
		return nil, err
	}
	return payout, nil
}

// MarkPayoutFailed moves a PROCESSING payout to FAILED and releases every
// linked earning back to the unpaid pool. The status write and the release are
// one transaction so there is no window where earnings are neither paid nor
// eligible for rebatching.
func (r *Repository) MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, reason string) (*domain.Payout, error) {
	return r.releasePayout(ctx, payoutID, domain.PayoutStatusProcessing, domain.PayoutStatusFailed, &reason)
}

// CancelPayout moves a PENDING payout to CANCELLED and releases its earnings.
// Once a payout has reached PROCESSING only the provider outcome may close it.
func (r *Repository) CancelPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	return r.releasePayout(ctx, payoutID, domain.PayoutStatusPending, domain.PayoutStatusCancelled, nil)
}

func (r *Repository) releasePayout(ctx context.Context, payoutID uuid.UUID, from, to domain.PayoutStatus, reason *string) (*domain.Payout, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE author_payouts
		SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING ` + payoutColumns
	payout, err := scanPayout(tx.QueryRow(ctx, query, string(to), reason, payoutID, string(from)))
	if err != nil {
		if isNoRows(err) {
			return nil, r.transitionError(ctx, payoutID, to)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE author_earnings
		SET payout_id = NULL, is_paid_out = FALSE
		WHERE payout_id = $1
	`, payoutID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payout, nil
}

// FindPayoutByProviderID resolves a payout from the provider's transfer id,
// used when an outcome event arrives without our reference.
func (r *Repository) FindPayoutByProviderID(ctx context.Context, providerPayoutID string) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM author_payouts WHERE provider_payout_id = $1`
	payout, err := scanPayout(r.db.QueryRow(ctx, query, providerPayoutID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return payout, nil
}

// StalePendingPayouts lists payouts stuck in PENDING since before the cutoff,
// surfaced by the dispatch job for operator attention.
func (r *Repository) StalePendingPayouts(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM author_payouts
		WHERE status = $1 AND requested_at < $2
		ORDER BY requested_at ASC
		LIMIT $3
	`
	return r.queryPayouts(ctx, query, string(domain.PayoutStatusPending), olderThan, limit)
}
