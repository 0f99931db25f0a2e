package domain

import (
	"testing"
	"time"
)

func TestPayoutStatus_TransitionTable(t *testing.T) {
	all := []PayoutStatus{
		PayoutStatusPending,
		PayoutStatusProcessing,
		PayoutStatusCompleted,
		PayoutStatusFailed,
		PayoutStatusCancelled,
	}

	legal := map[PayoutStatus]map[PayoutStatus]bool{
		PayoutStatusPending:    {PayoutStatusProcessing: true, PayoutStatusCancelled: true},
		PayoutStatusProcessing: {PayoutStatusCompleted: true, PayoutStatusFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPayoutStatus_Terminal(t *testing.T) {
	for status, terminal := range map[PayoutStatus]bool{
		PayoutStatusPending:    false,
		PayoutStatusProcessing: false,
		PayoutStatusCompleted:  true,
		PayoutStatusFailed:     true,
		PayoutStatusCancelled:  true,
	} {
		if got := status.IsTerminal(); got != terminal {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, got, terminal)
		}
	}
}

func TestPayoutStatus_ReleasesEarnings(t *testing.T) {
	if !PayoutStatusFailed.ReleasesEarnings() || !PayoutStatusCancelled.ReleasesEarnings() {
		t.Fatal("FAILED and CANCELLED must release their earnings")
	}
	if PayoutStatusCompleted.ReleasesEarnings() {
		t.Fatal("COMPLETED must keep its earnings paid")
	}
}

func TestParsePayoutFrequency(t *testing.T) {
	if freq, ok := ParsePayoutFrequency(" monthly "); !ok || freq != PayoutFrequencyMonthly {
		t.Fatalf("expected MONTHLY, got %q ok=%v", freq, ok)
	}
	if _, ok := ParsePayoutFrequency("FORTNIGHTLY"); ok {
		t.Fatal("expected unknown frequency to be rejected")
	}
}

func TestPayoutSettings_IsDue(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := now.AddDate(0, -1, 0)
	yesterday := now.AddDate(0, 0, -1)

	tests := []struct {
		name     string
		settings PayoutSettings
		want     bool
	}{
		{
			name:     "never paid is due immediately",
			settings: PayoutSettings{Frequency: PayoutFrequencyWeekly},
			want:     true,
		},
		{
			name:     "weekly elapsed",
			settings: PayoutSettings{Frequency: PayoutFrequencyWeekly, LastPayoutAt: &lastMonth},
			want:     true,
		},
		{
			name:     "weekly not elapsed",
			settings: PayoutSettings{Frequency: PayoutFrequencyWeekly, LastPayoutAt: &yesterday},
			want:     false,
		},
		{
			name:     "monthly exactly elapsed",
			settings: PayoutSettings{Frequency: PayoutFrequencyMonthly, LastPayoutAt: &lastMonth},
			want:     true,
		},
		{
			name:     "manual never due",
			settings: PayoutSettings{Frequency: PayoutFrequencyManual},
			want:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.settings.IsDue(now); got != tc.want {
				t.Fatalf("IsDue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPayoutSettings_AutoPayoutActive(t *testing.T) {
	dest := "author@example.com"
	blank := "   "

	if (&PayoutSettings{AutoPayoutEnabled: true}).AutoPayoutActive() {
		t.Fatal("auto-payout must be inactive without a destination")
	}
	if (&PayoutSettings{AutoPayoutEnabled: true, Destination: &blank}).AutoPayoutActive() {
		t.Fatal("blank destination must not count as configured")
	}
	if !(&PayoutSettings{AutoPayoutEnabled: true, Destination: &dest}).AutoPayoutActive() {
		t.Fatal("expected auto-payout active with destination configured")
	}
	if (&PayoutSettings{AutoPayoutEnabled: false, Destination: &dest}).AutoPayoutActive() {
		t.Fatal("disabled flag must win even with a destination")
	}
}
