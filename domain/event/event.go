// Package event provides the append-only audit record types emitted by the
// settlement core. Records are immutable value types.
package event

import (
	"time"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
)

// Type identifies the kind of audit record.
type Type string

const (
	TypeUsageReported    Type = "usage.reported"
	TypeCreditsDeposited Type = "credits.deposited"
	TypeCreditsWithdrawn Type = "credits.withdrawn"
	TypeCreditsSpent     Type = "credits.spent"
	TypeSellerPaid       Type = "seller.paid"
	TypeFeesWithdrawn    Type = "fees.withdrawn"
	TypeRewardMinted     Type = "reward.minted"
	TypeListingChanged   Type = "listing.changed"
	TypeParamsChanged    Type = "params.changed"
)

// Record is a single audit log entry.
// Exactly one of the payload fields relevant to Type is meaningful; the
// rest are zero. Records are appended after a successful commit only - a
// failed operation emits nothing.
type Record struct {
	ID        string
	Type      Type
	Timestamp time.Time

	ListingID string
	Buyer     ledger.Address
	Seller    ledger.Address
	Caller    ledger.Address

	NumCalls uint64
	Amount   money.Amount // amount moved (deposit, withdrawal, spend, payout)
	Fee      money.Amount // network fee portion, for seller.paid and spends
	Reward   money.Amount // reward tokens minted, for seller.paid

	// Settlement classification at the time of a credits.spent record.
	Overdrafted      bool
	ExceededApproval bool

	Note string
}

// UsageReported builds the record for a successful usage report.
func UsageReported(id string, at time.Time, listingID string, buyer, caller ledger.Address, numCalls uint64, amount money.Amount) Record {
	return Record{
		ID:        id,
		Type:      TypeUsageReported,
		Timestamp: at,
		ListingID: listingID,
		Buyer:     buyer,
		Caller:    caller,
		NumCalls:  numCalls,
		Amount:    amount,
	}
}

// CreditsSpent builds the per-buyer record for a settlement spend.
func CreditsSpent(id string, at time.Time, listingID string, buyer ledger.Address, amount money.Amount, overdrafted, exceeded bool) Record {
	return Record{
		ID:               id,
		Type:             TypeCreditsSpent,
		Timestamp:        at,
		ListingID:        listingID,
		Buyer:            buyer,
		Amount:           amount,
		Overdrafted:      overdrafted,
		ExceededApproval: exceeded,
	}
}

// SellerPaid builds the aggregate payout record for one settlement call.
func SellerPaid(id string, at time.Time, listingID string, seller ledger.Address, payout, fee, reward money.Amount) Record {
	return Record{
		ID:        id,
		Type:      TypeSellerPaid,
		Timestamp: at,
		ListingID: listingID,
		Seller:    seller,
		Amount:    payout,
		Fee:       fee,
		Reward:    reward,
	}
}
