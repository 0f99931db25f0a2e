package store

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
)

func shares(nets ...int64) []earningShare {
	out := make([]earningShare, 0, len(nets))
	for _, net := range nets {
		out = append(out, earningShare{id: uuid.New(), netMinor: net})
	}
	return out
}

func sumNet(selected []earningShare) int64 {
	var total int64
	for _, s := range selected {
		total += s.netMinor
	}
	return total
}

func TestSelectEarningsForAmount_FullBalanceWhenNoAmountRequested(t *testing.T) {
	unpaid := shares(900, 450, 1200)

	selected := selectEarningsForAmount(unpaid, nil)

	if len(selected) != 3 {
		t.Fatalf("expected all 3 earnings selected, got %d", len(selected))
	}
	if sumNet(selected) != 2550 {
		t.Fatalf("expected full balance 2550, got %d", sumNet(selected))
	}
}

func TestSelectEarningsForAmount_OldestFirstUntilCovered(t *testing.T) {
	unpaid := shares(900, 450, 1200)
	requested := int64(1000)

	selected := selectEarningsForAmount(unpaid, &requested)

	// 900 does not cover 1000; 900+450 does. The third earning stays unpaid.
	if len(selected) != 2 {
		t.Fatalf("expected 2 earnings selected, got %d", len(selected))
	}
	if selected[0].id != unpaid[0].id || selected[1].id != unpaid[1].id {
		t.Fatal("selection must take earnings in the given oldest-first order")
	}
	if sumNet(selected) != 1350 {
		t.Fatalf("expected covered amount 1350, got %d", sumNet(selected))
	}
}

func TestSelectEarningsForAmount_EarningsAreNeverSplit(t *testing.T) {
	unpaid := shares(500)
	requested := int64(100)

	selected := selectEarningsForAmount(unpaid, &requested)

	if len(selected) != 1 || selected[0].netMinor != 500 {
		t.Fatal("a partially needed earning must still be included whole")
	}
}

func TestSelectEarningsForAmount_ExactCoverageStopsEarly(t *testing.T) {
	unpaid := shares(1000, 500)
	requested := int64(1000)

	selected := selectEarningsForAmount(unpaid, &requested)

	if len(selected) != 1 {
		t.Fatalf("expected exactly 1 earning when the first covers the request, got %d", len(selected))
	}
}

func TestSelectEarningsForAmount_EmptyPool(t *testing.T) {
	requested := int64(1000)
	if selected := selectEarningsForAmount(nil, &requested); len(selected) != 0 {
		t.Fatalf("expected no selection from an empty pool, got %d", len(selected))
	}
}

func TestResolveTransitionFailure(t *testing.T) {
	tests := []struct {
		name    string
		current domain.PayoutStatus
		target  domain.PayoutStatus
		want    error
	}{
		{name: "completed cannot fail", current: domain.PayoutStatusCompleted, target: domain.PayoutStatusFailed, want: ErrInvalidPayoutTransition},
		{name: "failed cannot complete", current: domain.PayoutStatusFailed, target: domain.PayoutStatusCompleted, want: ErrInvalidPayoutTransition},
		{name: "cancelled cannot process", current: domain.PayoutStatusCancelled, target: domain.PayoutStatusProcessing, want: ErrInvalidPayoutTransition},
		// A re-read showing a still-eligible status means the row changed
		// between the guarded update and the re-read.
		{name: "processing raced to completed", current: domain.PayoutStatusProcessing, target: domain.PayoutStatusCompleted, want: ErrConcurrentModification},
		{name: "pending raced to cancelled", current: domain.PayoutStatusPending, target: domain.PayoutStatusCancelled, want: ErrConcurrentModification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolveTransitionFailure(tt.current, tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
