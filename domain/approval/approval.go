// Package approval provides the time-decayed spending cap algorithm.
// All functions are deterministic - same input always produces same output.
package approval

import (
	"errors"
	"time"

	"github.com/meterpay/meterpay/domain/money"
)

// Approval is the per-(listing, buyer) spending authorization (value type).
// Anchor is the start of the current spending window. A nil Anchor means
// the window was never anchored; readers substitute now-defaultWindow at
// evaluation time and never persist that substitution.
type Approval struct {
	RatePerSecond money.Amount
	Anchor        *time.Time
}

// ErrAlreadyAnchored is returned when a caller tries to set a first-use
// anchor on an approval whose window is already anchored. Re-anchoring
// would let a buyer rewind their own cap window.
var ErrAlreadyAnchored = errors.New("approval window already anchored")

// Anchored reports whether the window has been anchored.
func (a Approval) Anchored() bool {
	return a.Anchor != nil
}

// WithFirstUse returns a copy of the approval with rate and anchor set.
// Fails with ErrAlreadyAnchored if the window is already anchored.
func (a Approval) WithFirstUse(rate money.Amount, firstUse time.Time) (Approval, error) {
	if a.Anchored() {
		return a, ErrAlreadyAnchored
	}
	return Approval{RatePerSecond: rate, Anchor: &firstUse}, nil
}

// EffectiveCap computes the spendable cap at time now.
// This is a PURE function.
//
// The cap is (now - anchor) * ratePerSecond, where an unanchored window
// uses now - defaultWindow as its anchor. A future anchor yields 0 rather
// than underflowing; a product that would wrap saturates at the maximum
// amount (the cap is a bound, not a balance, so saturation is safe).
func EffectiveCap(a Approval, defaultWindow time.Duration, now time.Time) money.Amount {
	anchor := now.Add(-defaultWindow)
	if a.Anchor != nil {
		anchor = *a.Anchor
	}
	if !now.After(anchor) {
		return 0
	}
	elapsed := uint64(now.Unix() - anchor.Unix())
	limit, err := money.Mul(elapsed, a.RatePerSecond)
	if err != nil {
		return ^money.Amount(0)
	}
	return limit
}
