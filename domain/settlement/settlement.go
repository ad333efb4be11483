// Package settlement provides the pure settlement math: spendable
// computation, overdraft/exceeded-cap classification and fee splitting.
// All functions are deterministic with no side effects.
package settlement

import (
	"github.com/meterpay/meterpay/domain/money"
)

// Outcome is the result of classifying one buyer's settlement (value type).
type Outcome struct {
	Spendable money.Amount

	// Overdrafted means the buyer's credits were the binding constraint:
	// credits < min(owed, cap).
	Overdrafted bool

	// ExceededApproval means the cap was the binding constraint and the
	// buyer was not overdrafted. Overdraft takes precedence: a buyer who
	// is both short on credits and over their cap counts only as
	// overdrafted.
	ExceededApproval bool
}

// Classify computes the spendable amount and its limiting classification
// for one buyer. This is a PURE function and is evaluated even when the
// spendable amount comes out zero.
func Classify(owed, credits, capLimit money.Amount) Outcome {
	capIsLimiting := capLimit < owed
	creditsIsLimiting := credits < money.Min(owed, capLimit)

	return Outcome{
		Spendable:        money.Min3(owed, credits, capLimit),
		Overdrafted:      creditsIsLimiting,
		ExceededApproval: capIsLimiting && !creditsIsLimiting,
	}
}

// FeeRate is a fixed-point percentage: numerator/denominator percent.
// A rate of 10/1 is 10%; 25/10 is 2.5%.
type FeeRate struct {
	Numerator   uint64
	Denominator uint64
}

// Valid reports whether the rate is usable and no more than 100%.
func (r FeeRate) Valid() bool {
	return r.Denominator != 0 && r.Numerator <= 100*r.Denominator
}

// Fee returns the network fee taken from total.
// fee = total * numerator / denominator / 100, truncating.
// This is a PURE function; a degenerate rate takes no fee.
func (r FeeRate) Fee(total money.Amount) money.Amount {
	if !r.Valid() {
		return 0
	}
	scaled, err := money.Mul(total, r.Numerator)
	if err != nil {
		// total*num does not fit; divide first. Loses at most one unit
		// of precision, which only ever rounds the fee down.
		return total / r.Denominator / 100 * r.Numerator
	}
	return scaled / r.Denominator / 100
}

// Split returns the seller's share and the network fee for a settled total.
func (r FeeRate) Split(total money.Amount) (payout, fee money.Amount) {
	fee = r.Fee(total)
	return total - fee, fee
}
