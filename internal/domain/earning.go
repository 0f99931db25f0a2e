/**
 * @description
 * This file defines the core domain models for author earnings. An Earning is
 * the immutable ledger record created for exactly one paid chapter unlock: the
 * gross amount the reader was charged, the platform fee captured at creation
 * time, and the author's net share.
 *
 * @notes
 * - Amounts are carried as the money.Money fixed-point type; the fee share is
 *   recorded in basis points so a historical record always reproduces the same
 *   split even after the fee policy changes.
 */
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/money"
)

// UnlockRecord identifies a single chapter-unlock transaction, as reported by
// the chapter-unlock subsystem after it has charged the reader.
type UnlockRecord struct {
	ID          uuid.UUID   `json:"id"`
	ReaderID    uuid.UUID   `json:"reader_id"`
	AuthorID    uuid.UUID   `json:"author_id"`
	ChapterID   uuid.UUID   `json:"chapter_id"`
	GrossAmount money.Money `json:"gross_amount"`
	AuthorTier  string      `json:"author_tier,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Earning is the author's share of one unlock event. Records are immutable
// once created; only payout reservation and release touch PayoutID/IsPaidOut,
// and only through the batcher and state machine.
//
// Invariant: PlatformFee + NetAmount == GrossAmount, exactly.
type Earning struct {
	ID             uuid.UUID   `json:"id"`
	AuthorID       uuid.UUID   `json:"author_id"`
	ChapterID      uuid.UUID   `json:"chapter_id"`
	UnlockRecordID uuid.UUID   `json:"unlock_record_id"`
	GrossAmount    money.Money `json:"gross_amount"`
	PlatformFeeBps int64       `json:"platform_fee_bps"`
	PlatformFee    money.Money `json:"platform_fee"`
	NetAmount      money.Money `json:"net_amount"`
	IsPaidOut      bool        `json:"is_paid_out"`
	PayoutID       *uuid.UUID  `json:"payout_id,omitempty"`
	EarnedAt       time.Time   `json:"earned_at"`
}

// EarningsSummary is a read-only dashboard projection over the earnings table.
type EarningsSummary struct {
	AuthorID      uuid.UUID   `json:"author_id"`
	TotalLifetime money.Money `json:"total_lifetime"`
	TotalUnpaid   money.Money `json:"total_unpaid"`
	Recent        []Earning   `json:"recent"`
}

// AuthorEarningsTotal is one row of the top-earning-authors projection.
type AuthorEarningsTotal struct {
	AuthorID uuid.UUID   `json:"author_id"`
	Total    money.Money `json:"total"`
	Count    int64       `json:"count"`
}
