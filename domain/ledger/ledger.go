// Package ledger provides the core value types shared by the settlement
// engine: addresses, listings, owed entries and buyer statistics.
package ledger

import (
	"errors"
	"time"

	"github.com/meterpay/meterpay/domain/money"
)

// Address identifies a participant (buyer, seller, owner, reporter).
// The empty string is the zero address and is never a valid participant.
type Address string

// Zero reports whether the address is the zero address.
func (a Address) Zero() bool {
	return a == ""
}

// Listing is a registered pay-per-call API (value type).
// Owned by the listing directory; the settlement core only reads
// PricePerCall and Seller.
type Listing struct {
	ID           string
	Name         string
	Hostname     string
	DocsURL      string
	PricePerCall money.Amount
	Seller       Address
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwedEntry is the accrued, unsettled debt from one buyer to one listing.
type OwedEntry struct {
	ListingID string
	Buyer     Address
	Amount    money.Amount
}

// BuyerStat holds per-(listing, buyer) settlement statistics.
// Overdrafted is recomputed on every settlement; the counters only
// ever increase.
type BuyerStat struct {
	Overdrafted              bool
	OverdraftCount           uint64
	LifetimeCreditsUsed      money.Amount
	LifetimeExceededApproval uint64
}

// Error taxonomy for ledger operations. Every failure leaves all state
// untouched; callers retry externally if they wish.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrListingNotFound     = errors.New("listing not found")
)
