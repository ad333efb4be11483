// Package money provides checked arithmetic on unsigned ledger amounts.
// Amounts never wrap: any overflow is reported as an error, because call
// counts and prices are partner-influenced inputs.
package money

import (
	"errors"
	"math/bits"
)

// Amount is an unsigned ledger amount in the smallest unit (wei-equivalent).
type Amount = uint64

// ErrOverflow is returned when an arithmetic result does not fit in 64 bits.
var ErrOverflow = errors.New("amount overflow")

// Add returns a+b, or ErrOverflow if the sum wraps.
func Add(a, b Amount) (Amount, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Mul returns a*b, or ErrOverflow if the product wraps.
func Mul(a, b Amount) (Amount, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Sub returns a-b. Callers must ensure b <= a; a would-be-negative result
// saturates to zero rather than wrapping.
func Sub(a, b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Min3 returns the smallest of a, b and c.
func Min3(a, b, c Amount) Amount {
	return Min(Min(a, b), c)
}
