/**
 * @description
 * Data access layer for the monetization ledger. All mutation of the earnings
 * and payouts tables goes through this package; batch reservation and the
 * payout state machine run inside explicit transactions so a crash can never
 * leave earnings double-claimable or orphaned.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain, internal/money: Domain models used for data transfer.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
)

var (
	ErrAuthorNotFound                 = errors.New("author not found")
	ErrEarningNotFound                = errors.New("earning not found")
	ErrPayoutNotFound                 = errors.New("payout not found")
	ErrInsufficientBalance            = errors.New("insufficient unpaid balance")
	ErrPayoutDestinationNotConfigured = errors.New("payout destination not configured")
	ErrInvalidPayoutTransition        = errors.New("invalid payout status transition")
	ErrConcurrentModification         = errors.New("earnings changed concurrently; payout not created")
)

const earningColumns = `id, author_id, chapter_id, unlock_record_id, gross_amount, platform_fee_bps,
	platform_fee, net_amount, currency, is_paid_out, payout_id, earned_at`

const payoutColumns = `id, author_id, total_amount, platform_fees_deducted, currency, status,
	earnings_count, requested_at, processed_at, completed_at, provider_payout_id,
	failure_reason, notes, created_at, updated_at`

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Repository is the PostgreSQL data access layer for the monetization ledger.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// AuthorExists reports whether the author is known to the platform.
func (r *Repository) AuthorExists(ctx context.Context, authorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM authors WHERE id = $1)", authorID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanEarning(row pgx.Row) (*domain.Earning, error) {
	var (
		e        domain.Earning
		gross    int64
		fee      int64
		net      int64
		currency string
	)
	if err := row.Scan(
		&e.ID,
		&e.AuthorID,
		&e.ChapterID,
		&e.UnlockRecordID,
		&gross,
		&e.PlatformFeeBps,
		&fee,
		&net,
		&currency,
		&e.IsPaidOut,
		&e.PayoutID,
		&e.EarnedAt,
	); err != nil {
		return nil, err
	}
	e.GrossAmount = money.New(gross, currency)
	e.PlatformFee = money.New(fee, currency)
	e.NetAmount = money.New(net, currency)
	return &e, nil
}

// CreateEarning persists a new earning record idempotently. If an earning
// already exists for the unlock record, the existing row is returned unchanged
// and created is false. The insert and the duplicate check are a single
// statement, so concurrent calls for the same unlock record cannot both insert.
func (r *Repository) CreateEarning(ctx context.Context, e *domain.Earning) (earning *domain.Earning, created bool, err error) {
	query := `
		INSERT INTO author_earnings (
			id, author_id, chapter_id, unlock_record_id, gross_amount, platform_fee_bps,
			platform_fee, net_amount, currency, is_paid_out, earned_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
		ON CONFLICT (unlock_record_id) DO NOTHING
		RETURNING ` + earningColumns
	earning, err = scanEarning(r.db.QueryRow(ctx, query,
		e.ID, e.AuthorID, e.ChapterID, e.UnlockRecordID,
		e.GrossAmount.MinorUnits, e.PlatformFeeBps, e.PlatformFee.MinorUnits,
		e.NetAmount.MinorUnits, e.GrossAmount.Currency, e.EarnedAt,
	))
	if err == nil {
		return earning, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Conflict: another call already recorded this unlock. Return the winner.
	existing, err := r.GetEarningByUnlockRecordID(ctx, e.UnlockRecordID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetEarningByUnlockRecordID fetches the earning created for an unlock record.
func (r *Repository) GetEarningByUnlockRecordID(ctx context.Context, unlockRecordID uuid.UUID) (*domain.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM author_earnings WHERE unlock_record_id = $1`
	earning, err := scanEarning(r.db.QueryRow(ctx, query, unlockRecordID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEarningNotFound
		}
		return nil, err
	}
	return earning, nil
}

func (r *Repository) queryEarnings(ctx context.Context, query string, args ...any) ([]domain.Earning, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earnings []domain.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		earnings = append(earnings, *e)
	}
	return earnings, rows.Err()
}

// UnpaidEarningsForAuthor lists the author's unpaid earnings, oldest first.
func (r *Repository) UnpaidEarningsForAuthor(ctx context.Context, authorID uuid.UUID) ([]domain.Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM author_earnings
		WHERE author_id = $1 AND is_paid_out = FALSE
		ORDER BY earned_at ASC, id ASC
	`
	return r.queryEarnings(ctx, query, authorID)
}

// EarningsByPayoutID lists the earnings currently linked to a payout batch.
func (r *Repository) EarningsByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]domain.Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM author_earnings
		WHERE payout_id = $1
		ORDER BY earned_at ASC, id ASC
	`
	return r.queryEarnings(ctx, query, payoutID)
}

// EarningsInPeriod lists an author's earnings with earned_at in [start, end).
func (r *Repository) EarningsInPeriod(ctx context.Context, authorID uuid.UUID, start, end time.Time) ([]domain.Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM author_earnings
		WHERE author_id = $1 AND earned_at >= $2 AND earned_at < $3
		ORDER BY earned_at ASC, id ASC
	`
	return r.queryEarnings(ctx, query, authorID, start, end)
}

// RecentEarnings lists an author's newest earnings.
func (r *Repository) RecentEarnings(ctx context.Context, authorID uuid.UUID, limit int) ([]domain.Earning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM author_earnings
		WHERE author_id = $1
		ORDER BY earned_at DESC, id DESC
		LIMIT $2
	`
	return r.queryEarnings(ctx, query, authorID, limit)
}

// TotalUnpaid returns the sum of the author's unpaid net amounts, in minor units.
func (r *Repository) TotalUnpaid(ctx context.Context, authorID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(net_amount), 0) FROM author_earnings WHERE author_id = $1 AND is_paid_out = FALSE`
	if err := r.db.QueryRow(ctx, query, authorID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TotalLifetime returns the sum of all net amounts the author has ever earned,
// in minor units.
func (r *Repository) TotalLifetime(ctx context.Context, authorID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(net_amount), 0) FROM author_earnings WHERE author_id = $1`
	if err := r.db.QueryRow(ctx, query, authorID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TopEarningAuthors returns the highest-earning authors since the given time.
func (r *Repository) TopEarningAuthors(ctx context.Context, since time.Time, limit int) ([]domain.AuthorEarningsTotal, error) {
	query := `
		SELECT author_id, SUM(net_amount), MIN(currency), COUNT(*)
		FROM author_earnings
		WHERE earned_at >= $1
		GROUP BY author_id
		ORDER BY SUM(net_amount) DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []domain.AuthorEarningsTotal
	for rows.Next() {
		var (
			row      domain.AuthorEarningsTotal
			total    int64
			currency string
		)
		if err := rows.Scan(&row.AuthorID, &total, &currency, &row.Count); err != nil {
			return nil, err
		}
		row.Total = money.New(total, currency)
		totals = append(totals, row)
	}
	return totals, rows.Err()
}

// GetOrCreatePayoutSettings returns the author's payout settings, creating a
// row with the supplied defaults on first access. Insert-or-fetch keeps lazy
// creation safe under concurrent first reads.
func (r *Repository) GetOrCreatePayoutSettings(ctx context.Context, defaults domain.PayoutSettings) (*domain.PayoutSettings, error) {
	insert := `
		INSERT INTO payout_settings (author_id, minimum_payout, currency, frequency, auto_payout_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (author_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert,
		defaults.AuthorID, defaults.MinimumPayout.MinorUnits, defaults.MinimumPayout.Currency,
		string(defaults.Frequency), defaults.AutoPayoutEnabled,
	); err != nil {
		return nil, err
	}
	return r.getPayoutSettings(ctx, defaults.AuthorID)
}

func (r *Repository) getPayoutSettings(ctx context.Context, authorID uuid.UUID) (*domain.PayoutSettings, error) {
	query := `
		SELECT author_id, minimum_payout, currency, frequency, auto_payout_enabled,
		       destination, last_payout_at, created_at, updated_at
		FROM payout_settings
		WHERE author_id = $1
	`
	var (
		s        domain.PayoutSettings
		minimum  int64
		currency string
		freq     string
	)
	if err := r.db.QueryRow(ctx, query, authorID).Scan(
		&s.AuthorID, &minimum, &currency, &freq, &s.AutoPayoutEnabled,
		&s.Destination, &s.LastPayoutAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAuthorNotFound
		}
		return nil, err
	}
	s.MinimumPayout = money.New(minimum, currency)
	s.Frequency = domain.PayoutFrequency(freq)
	return &s, nil
}

// UpdatePayoutSettings persists author-facing settings fields.
func (r *Repository) UpdatePayoutSettings(ctx context.Context, s *domain.PayoutSettings) error {
	query := `
		UPDATE payout_settings
		SET minimum_payout = $1, currency = $2, frequency = $3, auto_payout_enabled = $4,
		    destination = $5, updated_at = NOW()
		WHERE author_id = $6
	`
	tag, err := r.db.Exec(ctx, query,
		s.MinimumPayout.MinorUnits, s.MinimumPayout.Currency, string(s.Frequency),
		s.AutoPayoutEnabled, s.Destination, s.AuthorID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

// AutoPayoutCandidates lists authors whose auto-payout window has elapsed:
// auto-payout enabled, destination configured, non-manual frequency, and
// either never paid or last paid before the frequency interval. MANUAL authors
// never appear. This is a coarse prefilter for the sweep; the settings row's
// frequency window is re-evaluated per author before reserving a batch.
func (r *Repository) AutoPayoutCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT author_id
		FROM payout_settings
		WHERE auto_payout_enabled = TRUE
		  AND destination IS NOT NULL AND btrim(destination) <> ''
		  AND frequency <> 'MANUAL'
		  AND (
			last_payout_at IS NULL
			OR (frequency = 'WEEKLY' AND last_payout_at <= $1::timestamptz - INTERVAL '7 days')
			OR (frequency = 'MONTHLY' AND last_payout_at <= $1::timestamptz - INTERVAL '1 month')
			OR (frequency = 'QUARTERLY' AND last_payout_at <= $1::timestamptz - INTERVAL '3 months')
		  )
		ORDER BY author_id
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var (
		p        domain.Payout
		total    int64
		fees     int64
		currency string
		status   string
	)
	if err := row.Scan(
		&p.ID, &p.AuthorID, &total, &fees, &currency, &status,
		&p.EarningsCount, &p.RequestedAt, &p.ProcessedAt, &p.CompletedAt,
		&p.ProviderPayoutID, &p.FailureReason, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.TotalAmount = money.New(total, currency)
	p.PlatformFeesDeducted = money.New(fees, currency)
	p.Status = domain.PayoutStatus(status)
	return &p, nil
}

// GetPayout fetches a payout batch by id.
func (r *Repository) GetPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM author_payouts WHERE id = $1`
	payout, err := scanPayout(r.db.QueryRow(ctx, query, payoutID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return payout, nil
}

func (r *Repository) queryPayouts(ctx context.Context, query string, args ...any) ([]domain.Payout, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// RecentPayouts lists an author's newest payout batches.
func (r *Repository) RecentPayouts(ctx context.Context, authorID uuid.UUID, limit int) ([]domain.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM author_payouts
		WHERE author_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`
	return r.queryPayouts(ctx, query, authorID, limit)
}

// ListPayoutsByStatus lists the oldest payouts in the given status, used by the
// dispatch job to drain the PENDING queue.
func (r *Repository) ListPayoutsByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM author_payouts
		WHERE status = $1
		ORDER BY requested_at ASC
		LIMIT $2
	`
	return r.queryPayouts(ctx, query, string(status), limit)
}
