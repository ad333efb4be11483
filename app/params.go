// Package app provides application services that orchestrate domain logic.
package app

import (
	"sync/atomic"
	"time"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
)

// Params holds the runtime-settable operating parameters shared by all
// services. The owner can change them at runtime through AdminService;
// readers always see a complete, consistent snapshot.
type Params struct {
	// Owner may do everything the reporter and withdraw address can.
	Owner ledger.Address

	// Reporter is the only non-owner address allowed to report usage.
	Reporter ledger.Address

	// WithdrawAddress may withdraw accumulated network fees.
	WithdrawAddress ledger.Address

	// FeeRate is the network fee taken from each seller payout.
	FeeRate settlement.FeeRate

	// RewardAmount is minted to the seller per buyer actually paid.
	RewardAmount money.Amount

	// RewardEnabled gates reward minting entirely.
	RewardEnabled bool

	// DefaultWindow is the cap window substituted for an unanchored
	// approval.
	DefaultWindow time.Duration
}

// ParamsHolder provides lock-free access to the current parameters.
type ParamsHolder struct {
	p atomic.Pointer[Params]
}

// NewParamsHolder creates a holder with the given initial parameters.
func NewParamsHolder(p Params) *ParamsHolder {
	h := &ParamsHolder{}
	h.p.Store(&p)
	return h
}

// Get returns the current parameter snapshot.
func (h *ParamsHolder) Get() Params {
	return *h.p.Load()
}

// Set replaces the parameter snapshot.
func (h *ParamsHolder) Set(p Params) {
	h.p.Store(&p)
}
