/**
 * @description
 * Platform fee policy. ComputeFee is pure: no I/O, no clock reads, no hidden
 * state, so the fee share recorded on an earning always reproduces the same
 * split when replayed. The percentage in force is captured on the earning at
 * creation time; changing the policy later never rewrites history.
 */
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inkwell/monetization-service/internal/money"
)

const bpsPerPercent = 100

// FeePolicy maps an unlock's gross amount to the platform's cut. Percentages
// are held in basis points so the split is exact integer arithmetic.
type FeePolicy struct {
	defaultBps int64
	tierBps    map[string]int64
}

// NewFeePolicy builds a policy from percentages (e.g. 10.0 for 10%). Tier
// names are matched case-insensitively; unknown tiers fall back to the
// default percentage.
func NewFeePolicy(defaultPercent float64, tierPercents map[string]float64) FeePolicy {
	policy := FeePolicy{
		defaultBps: percentToBps(defaultPercent),
		tierBps:    make(map[string]int64, len(tierPercents)),
	}
	for tier, percent := range tierPercents {
		policy.tierBps[strings.ToUpper(strings.TrimSpace(tier))] = percentToBps(percent)
	}
	return policy
}

func percentToBps(percent float64) int64 {
	bps := decimal.NewFromFloat(percent).Mul(decimal.NewFromInt(bpsPerPercent)).Round(0).IntPart()
	if bps < 0 {
		return 0
	}
	if bps > 100*bpsPerPercent {
		return 100 * bpsPerPercent
	}
	return bps
}

// FeeBps returns the basis points charged for an unlock at the given time by
// an author of the given tier. The timestamp is part of the contract so a
// future schedule change can key off it without changing callers.
func (p FeePolicy) FeeBps(at time.Time, tier string) int64 {
	if bps, ok := p.tierBps[strings.ToUpper(strings.TrimSpace(tier))]; ok {
		return bps
	}
	return p.defaultBps
}

// ComputeFee splits a gross unlock amount into the platform fee and the
// author's net share. The fee is rounded half-up to the currency's minor unit;
// net is derived by subtraction so fee + net always equals gross exactly.
func (p FeePolicy) ComputeFee(gross money.Money, at time.Time, tier string) (bps int64, fee, net money.Money, err error) {
	if !gross.IsPositive() {
		return 0, money.Money{}, money.Money{}, fmt.Errorf("%w: gross %s", money.ErrInvalidAmount, gross)
	}

	bps = p.FeeBps(at, tier)
	if bps == 0 {
		return 0, money.Zero(gross.Currency), gross, nil
	}
	feeMinor := decimal.NewFromInt(gross.MinorUnits).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(100 * bpsPerPercent)).
		Round(0).
		IntPart()

	fee = money.New(feeMinor, gross.Currency)
	net = money.New(gross.MinorUnits-feeMinor, gross.Currency)
	return bps, fee, net, nil
}
