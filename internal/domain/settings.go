/**
 * @description
 * Per-author payout configuration. One row per author, created lazily with
 * platform defaults the first time the author's settings are read.
 */
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/money"
)

// PayoutFrequency is how often the scheduler considers an author for
// auto-payout. MANUAL authors are only paid when they request it.
type PayoutFrequency string

const (
	PayoutFrequencyWeekly    PayoutFrequency = "WEEKLY"
	PayoutFrequencyMonthly   PayoutFrequency = "MONTHLY"
	PayoutFrequencyQuarterly PayoutFrequency = "QUARTERLY"
	PayoutFrequencyManual    PayoutFrequency = "MANUAL"
)

// ParsePayoutFrequency normalizes a frequency string, reporting whether it is
// one of the closed set of values.
func ParsePayoutFrequency(raw string) (PayoutFrequency, bool) {
	switch PayoutFrequency(strings.ToUpper(strings.TrimSpace(raw))) {
	case PayoutFrequencyWeekly:
		return PayoutFrequencyWeekly, true
	case PayoutFrequencyMonthly:
		return PayoutFrequencyMonthly, true
	case PayoutFrequencyQuarterly:
		return PayoutFrequencyQuarterly, true
	case PayoutFrequencyManual:
		return PayoutFrequencyManual, true
	default:
		return "", false
	}
}

// NextDue returns when the next auto-payout window opens after the given
// payout time. MANUAL frequencies are never due; ok is false.
func (f PayoutFrequency) NextDue(last time.Time) (time.Time, bool) {
	switch f {
	case PayoutFrequencyWeekly:
		return last.AddDate(0, 0, 7), true
	case PayoutFrequencyMonthly:
		return last.AddDate(0, 1, 0), true
	case PayoutFrequencyQuarterly:
		return last.AddDate(0, 3, 0), true
	default:
		return time.Time{}, false
	}
}

// PayoutSettings holds an author's payout configuration.
type PayoutSettings struct {
	AuthorID          uuid.UUID       `json:"author_id"`
	MinimumPayout     money.Money     `json:"minimum_payout"`
	Frequency         PayoutFrequency `json:"frequency"`
	AutoPayoutEnabled bool            `json:"auto_payout_enabled"`
	// Destination is the provider-specific payout destination reference
	// (e.g. a PayPal email or a counterparty token). Nil until configured.
	Destination  *string    `json:"destination,omitempty"`
	LastPayoutAt *time.Time `json:"last_payout_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasDestination reports whether a usable payout destination is configured.
func (s *PayoutSettings) HasDestination() bool {
	return s.Destination != nil && strings.TrimSpace(*s.Destination) != ""
}

// AutoPayoutActive reports whether the author can be auto-paid at all.
// A missing destination forces auto-payout off regardless of the stored flag.
func (s *PayoutSettings) AutoPayoutActive() bool {
	return s.AutoPayoutEnabled && s.HasDestination()
}

// IsDue reports whether the author's frequency window has elapsed at the given
// time. Authors with no payout history are due immediately.
func (s *PayoutSettings) IsDue(now time.Time) bool {
	if s.Frequency == PayoutFrequencyManual {
		return false
	}
	if s.LastPayoutAt == nil {
		return true
	}
	next, ok := s.Frequency.NextDue(*s.LastPayoutAt)
	if !ok {
		return false
	}
	return !now.Before(next)
}
