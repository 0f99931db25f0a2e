package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAdd_SameCurrency(t *testing.T) {
	sum, err := New(1000, "USD").Add(New(250, "USD"))
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.MinorUnits != 1250 || sum.Currency != "USD" {
		t.Fatalf("expected 1250 USD, got %s", sum)
	}
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	if _, err := New(1000, "USD").Add(New(250, "NGN")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestSub_CanGoNegative(t *testing.T) {
	diff, err := New(100, "USD").Sub(New(250, "USD"))
	if err != nil {
		t.Fatalf("Sub returned error: %v", err)
	}
	if diff.MinorUnits != -150 {
		t.Fatalf("expected -150 minor units, got %d", diff.MinorUnits)
	}
	if diff.IsPositive() {
		t.Fatal("negative amount reported as positive")
	}
}

func TestFromDecimal_RoundsHalfUpToMinorUnit(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{name: "exact cents", amount: "10.00", currency: "USD", want: 1000},
		{name: "half rounds up", amount: "1.005", currency: "USD", want: 101},
		{name: "below half rounds down", amount: "1.004", currency: "USD", want: 100},
		{name: "zero-digit currency", amount: "1200.5", currency: "JPY", want: 1201},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tc.amount)
			if err != nil {
				t.Fatalf("bad test amount %q: %v", tc.amount, err)
			}
			got := FromDecimal(d, tc.currency)
			if got.MinorUnits != tc.want {
				t.Fatalf("FromDecimal(%s %s) = %d minor units, want %d", tc.amount, tc.currency, got.MinorUnits, tc.want)
			}
		})
	}
}

func TestDecimal_RoundTrip(t *testing.T) {
	m := New(1250, "USD")
	if got := m.Decimal().StringFixed(2); got != "12.50" {
		t.Fatalf("expected 12.50, got %s", got)
	}
	if back := FromDecimal(m.Decimal(), "USD"); back != m {
		t.Fatalf("round trip changed value: %v -> %v", m, back)
	}
}

func TestString(t *testing.T) {
	if got := New(900, "USD").String(); got != "9.00 USD" {
		t.Fatalf("expected \"9.00 USD\", got %q", got)
	}
	if got := New(1500, "JPY").String(); got != "1500 JPY" {
		t.Fatalf("expected \"1500 JPY\", got %q", got)
	}
}

func TestCmp(t *testing.T) {
	a, b := New(100, "USD"), New(200, "USD")
	if got, _ := a.Cmp(b); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
	if got, _ := b.Cmp(a); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got, _ := a.Cmp(a); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if _, err := a.Cmp(New(100, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}
