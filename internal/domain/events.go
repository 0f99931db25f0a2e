/**
 * @description
 * Event payloads exchanged over RabbitMQ: unlock events consumed from the
 * chapter-unlock subsystem, settlement outcome events consumed from the payout
 * provider bridge, and lifecycle events this service publishes for dashboards
 * and notification fan-out.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChapterUnlockEvent is the payload published by the chapter-unlock subsystem
// after a reader has been charged. Delivery is at-least-once; the earning
// ledger deduplicates on UnlockRecordID.
type ChapterUnlockEvent struct {
	UnlockRecordID uuid.UUID `json:"unlock_record_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	ChapterID      uuid.UUID `json:"chapter_id"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	AuthorTier     string    `json:"author_tier,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// PayoutProviderEvent is the asynchronous settlement outcome delivered by the
// payout provider bridge. Reference carries our payout id.
type PayoutProviderEvent struct {
	ProviderPayoutID string `json:"provider_payout_id"`
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
}

// EarningRecordedEvent is published after a new earning is committed.
type EarningRecordedEvent struct {
	EarningID      uuid.UUID `json:"earning_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	ChapterID      uuid.UUID `json:"chapter_id"`
	UnlockRecordID uuid.UUID `json:"unlock_record_id"`
	NetAmountMinor int64     `json:"net_amount_minor"`
	Currency       string    `json:"currency"`
	Timestamp      time.Time `json:"timestamp"`
}

// PayoutEvent is published on every payout state change.
type PayoutEvent struct {
	PayoutID         uuid.UUID    `json:"payout_id"`
	AuthorID         uuid.UUID    `json:"author_id"`
	Status           PayoutStatus `json:"status"`
	TotalAmountMinor int64        `json:"total_amount_minor"`
	Currency         string       `json:"currency"`
	ProviderPayoutID string       `json:"provider_payout_id,omitempty"`
	FailureReason    string       `json:"failure_reason,omitempty"`
	EarningsReleased bool         `json:"earnings_released"`
	Timestamp        time.Time    `json:"timestamp"`
}
