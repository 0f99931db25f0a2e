/**
 * @description
 * Fixed-point money type used by every monetary calculation in the service.
 * Amounts are stored as int64 values in the currency's minor unit (cents, kobo),
 * which avoids floating-point inaccuracies with financial data. Decimal math
 * (percentages, display formatting) goes through shopspring/decimal.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Arbitrary-precision fixed-point decimals.
 */
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// minorUnitDigits maps ISO-4217 codes to the number of digits in their minor
// unit. Currencies not listed default to 2.
var minorUnitDigits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
}

// Money is an exact monetary amount: an integer count of minor units plus an
// ISO-4217 currency code.
type Money struct {
	MinorUnits int64  `json:"amount_minor"`
	Currency   string `json:"currency"`
}

// New returns a Money value of the given minor units and currency.
func New(minorUnits int64, currency string) Money {
	return Money{MinorUnits: minorUnits, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return New(0, currency)
}

// MinorDigits returns the number of minor-unit digits for a currency code.
func MinorDigits(currency string) int32 {
	if digits, ok := minorUnitDigits[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return digits
	}
	return 2
}

// FromDecimal converts a major-unit decimal amount (e.g. 10.00) into Money,
// rounding half-up to the currency's minor unit.
func FromDecimal(amount decimal.Decimal, currency string) Money {
	digits := MinorDigits(currency)
	minor := amount.Shift(digits).Round(0)
	return New(minor.IntPart(), currency)
}

// Decimal returns the amount in major units as a decimal (e.g. 1000 cents -> 10.00).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.MinorUnits, -MinorDigits(m.Currency))
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return New(m.MinorUnits+other.MinorUnits, m.Currency), nil
}

// Sub returns m - other. Both operands must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return New(m.MinorUnits-other.MinorUnits, m.Currency), nil
}

// Cmp compares m against other: -1 if less, 0 if equal, 1 if greater.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	switch {
	case m.MinorUnits < other.MinorUnits:
		return -1, nil
	case m.MinorUnits > other.MinorUnits:
		return 1, nil
	default:
		return 0, nil
	}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.MinorUnits > 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.MinorUnits == 0
}

// String formats the amount in major units with its currency code, e.g. "9.00 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(MinorDigits(m.Currency)), m.Currency)
}
