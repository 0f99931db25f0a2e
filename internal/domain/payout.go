/**
 * @description
 * Payout batch model and its settlement state machine. A Payout groups a set
 * of unpaid earnings into one outgoing transfer and advances through a closed
 * set of states; the transition table below is the single source of truth for
 * which moves are legal.
 */
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/money"
)

// PayoutStatus is the settlement state of a payout batch.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
)

var validPayoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
}

// CanTransitionTo reports whether moving from s to target is a legal step of
// the settlement state machine.
func (s PayoutStatus) CanTransitionTo(target PayoutStatus) bool {
	for _, allowed := range validPayoutTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payout can never change state again.
func (s PayoutStatus) IsTerminal() bool {
	return len(validPayoutTransitions[s]) == 0
}

// ReleasesEarnings reports whether entering this state returns the linked
// earnings to the author's unpaid pool.
func (s PayoutStatus) ReleasesEarnings() bool {
	return s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// Payout represents one batch transfer of an author's accumulated net earnings.
// TotalAmount is fixed at creation time as the sum of the net amounts of the
// earnings reserved into the batch and is never mutated afterward.
type Payout struct {
	ID                   uuid.UUID    `json:"id"`
	AuthorID             uuid.UUID    `json:"author_id"`
	TotalAmount          money.Money  `json:"total_amount"`
	PlatformFeesDeducted money.Money  `json:"platform_fees_deducted"`
	Status               PayoutStatus `json:"status"`
	EarningsCount        int          `json:"earnings_count"`
	RequestedAt          time.Time    `json:"requested_at"`
	ProcessedAt          *time.Time   `json:"processed_at,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	ProviderPayoutID     *string      `json:"provider_payout_id,omitempty"`
	FailureReason        *string      `json:"failure_reason,omitempty"`
	Notes                *string      `json:"notes,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}
