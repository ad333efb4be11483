// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Ledger Port
// -----------------------------------------------------------------------------

// LedgerReader provides read access to settlement state.
type LedgerReader interface {
	// CreditBalance returns the buyer's shared credits balance.
	CreditBalance(ctx context.Context, buyer ledger.Address) (money.Amount, error)

	// Owed returns the amount owed by buyer to listing. Zero if none.
	Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error)

	// TotalOwed returns the listing's aggregate owed amount.
	TotalOwed(ctx context.Context, listingID string) (money.Amount, error)

	// WorkingSet returns a snapshot of the buyers with nonzero owed
	// balance for the listing. Order is not significant.
	WorkingSet(ctx context.Context, listingID string) ([]ledger.Address, error)

	// Approval returns the buyer's approval for the listing. An absent
	// approval is the zero value (rate 0, unanchored).
	Approval(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error)

	// BuyerStat returns the settlement statistics for (listing, buyer).
	BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error)

	// FeePool returns the accumulated, unwithdrawn network fees.
	FeePool(ctx context.Context) (money.Amount, error)

	// NativeBalance returns the native value currently held by the
	// service (deposits plus fees, minus withdrawals and payouts).
	NativeBalance(ctx context.Context) (money.Amount, error)
}

// Ledger is the transactional store for all settlement state.
// Mutations happen only inside a LedgerTx; a transaction's writes become
// visible all at once on Commit or not at all.
type Ledger interface {
	LedgerReader

	// Begin opens a read-write transaction.
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is a single all-or-nothing unit of settlement state mutation.
// Reads inside the transaction observe its own uncommitted writes.
type LedgerTx interface {
	LedgerReader

	// AddCredits credits the buyer's balance. Fails with
	// money.ErrOverflow if the balance would wrap.
	AddCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error

	// SubCredits debits the buyer's balance. Fails with
	// ledger.ErrInsufficientBalance if delta exceeds the balance.
	SubCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error

	// AddOwed accrues debt from buyer to listing, maintains the listing
	// total and inserts the buyer into the working set when absent.
	AddOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error

	// SubOwed reduces debt, maintains the listing total and removes the
	// buyer from the working set when the entry reaches zero. Fails with
	// ledger.ErrInsufficientBalance if delta exceeds the entry.
	SubOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error

	// SetApproval stores the buyer's approval for the listing.
	SetApproval(ctx context.Context, listingID string, buyer ledger.Address, a approval.Approval) error

	// SetBuyerStat stores the settlement statistics for (listing, buyer).
	SetBuyerStat(ctx context.Context, listingID string, buyer ledger.Address, s ledger.BuyerStat) error

	// AddFeePool / SubFeePool adjust the accumulated network fees.
	AddFeePool(ctx context.Context, delta money.Amount) error
	SubFeePool(ctx context.Context, delta money.Amount) error

	// AddNative / SubNative adjust the tracked native-value balance.
	AddNative(ctx context.Context, delta money.Amount) error
	SubNative(ctx context.Context, delta money.Amount) error

	// Commit applies all writes atomically.
	Commit() error

	// Rollback discards all writes. Safe to call after Commit.
	Rollback() error
}

// -----------------------------------------------------------------------------
// Collaborator Ports
// -----------------------------------------------------------------------------

// ListingStore is the listing directory: maps a listing id to its price
// per call and seller, with CRUD restricted by the application layer.
type ListingStore interface {
	// Get retrieves a listing. Fails with ledger.ErrListingNotFound.
	Get(ctx context.Context, id string) (ledger.Listing, error)

	// Create stores a new listing.
	Create(ctx context.Context, l ledger.Listing) error

	// Update modifies an existing listing.
	Update(ctx context.Context, l ledger.Listing) error

	// Delete removes a listing.
	Delete(ctx context.Context, id string) error

	// List returns all listings.
	List(ctx context.Context) ([]ledger.Listing, error)
}

// RewardToken is the fungible reward-token ledger. Settlement mints a
// fixed reward to the seller per buyer actually paid.
type RewardToken interface {
	// Mint credits amount of reward tokens to the address.
	Mint(ctx context.Context, to ledger.Address, amount money.Amount) error

	// BalanceOf returns the address's reward-token balance.
	BalanceOf(ctx context.Context, addr ledger.Address) (money.Amount, error)
}

// ValueTransfer moves native value out of the service: seller payouts,
// credit withdrawals and fee withdrawals. A failed transfer aborts the
// surrounding settlement entirely.
type ValueTransfer interface {
	Send(ctx context.Context, to ledger.Address, amount money.Amount) error
}

// AuditLog is the append-only record of core events.
type AuditLog interface {
	// Append stores a record.
	Append(ctx context.Context, rec event.Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]event.Record, error)
}

// -----------------------------------------------------------------------------
// Auth Ports
// -----------------------------------------------------------------------------

// APIKey is a stored API key. The plaintext is never stored; Hash is a
// bcrypt hash and Prefix narrows lookup before the hash comparison.
type APIKey struct {
	ID        string
	Prefix    string
	Hash      []byte
	Address   ledger.Address
	CreatedAt time.Time
}

// KeyStore persists API keys.
type KeyStore interface {
	// GetByPrefix retrieves keys matching a prefix (for validation).
	GetByPrefix(ctx context.Context, prefix string) ([]APIKey, error)

	// Create stores a new key.
	Create(ctx context.Context, k APIKey) error

	// ListByAddress returns all keys for an address.
	ListByAddress(ctx context.Context, addr ledger.Address) ([]APIKey, error)

	// Delete removes a key.
	Delete(ctx context.Context, id string) error
}

// SettingsStore persists runtime-settable parameters across restarts.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}
