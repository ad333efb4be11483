package sqlite_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/meterpay/meterpay/adapters/sqlite"
	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

const listingID = "listing-1"

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "meterpay-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

// -----------------------------------------------------------------------------
// LedgerStore
// -----------------------------------------------------------------------------

func TestLedgerStore_CreditsRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.AddCredits(ctx, "buyer-1", 100); err != nil {
		t.Fatalf("add credits: %v", err)
	}
	if err := tx.SubCredits(ctx, "buyer-1", 30); err != nil {
		t.Fatalf("sub credits: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	balance, err := store.CreditBalance(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 70 {
		t.Errorf("balance = %d, want 70", balance)
	}

	// Unknown buyers read as zero.
	balance, err = store.CreditBalance(ctx, "buyer-unknown")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}
}

func TestLedgerStore_SubCreditsInsufficient(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := tx.SubCredits(ctx, "buyer-1", 1); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestLedgerStore_OwedAndWorkingSet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tx.AddOwed(ctx, listingID, "buyer-1", 50)
	tx.AddOwed(ctx, listingID, "buyer-2", 25)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	total, _ := store.TotalOwed(ctx, listingID)
	if total != 75 {
		t.Errorf("total = %d, want 75", total)
	}
	set, _ := store.WorkingSet(ctx, listingID)
	if len(set) != 2 {
		t.Fatalf("working set = %d, want 2", len(set))
	}

	// Paying an entry to zero removes its working-set row.
	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.SubOwed(ctx, listingID, "buyer-1", 50); err != nil {
		t.Fatalf("sub owed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	set, _ = store.WorkingSet(ctx, listingID)
	if len(set) != 1 || set[0] != "buyer-2" {
		t.Errorf("working set = %v, want [buyer-2]", set)
	}
	owed, _ := store.Owed(ctx, listingID, "buyer-1")
	if owed != 0 {
		t.Errorf("owed = %d, want 0", owed)
	}
}

func TestLedgerStore_RollbackDiscardsWrites(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tx.AddCredits(ctx, "buyer-1", 100)
	tx.AddFeePool(ctx, 10)
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	balance, _ := store.CreditBalance(ctx, "buyer-1")
	if balance != 0 {
		t.Errorf("balance = %d, want 0 after rollback", balance)
	}
	pool, _ := store.FeePool(ctx)
	if pool != 0 {
		t.Errorf("fee pool = %d, want 0 after rollback", pool)
	}
}

func TestLedgerStore_ApprovalRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	// Absent approvals read as the zero value.
	a, err := store.Approval(ctx, listingID, "buyer-1")
	if err != nil {
		t.Fatalf("approval: %v", err)
	}
	if a.RatePerSecond != 0 || a.Anchored() {
		t.Errorf("approval = %+v, want zero value", a)
	}

	// Unanchored rate.
	tx, _ := store.Begin(ctx)
	if err := tx.SetApproval(ctx, listingID, "buyer-1", approval.Approval{RatePerSecond: 5}); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	tx.Commit()

	a, _ = store.Approval(ctx, listingID, "buyer-1")
	if a.RatePerSecond != 5 || a.Anchored() {
		t.Errorf("approval = %+v, want rate 5 unanchored", a)
	}

	// Anchored approval preserves the anchor instant.
	anchor := baseTime
	tx, _ = store.Begin(ctx)
	if err := tx.SetApproval(ctx, listingID, "buyer-1", approval.Approval{RatePerSecond: 5, Anchor: &anchor}); err != nil {
		t.Fatalf("set approval: %v", err)
	}
	tx.Commit()

	a, _ = store.Approval(ctx, listingID, "buyer-1")
	if a.Anchor == nil || !a.Anchor.Equal(anchor) {
		t.Errorf("anchor = %v, want %v", a.Anchor, anchor)
	}
}

func TestLedgerStore_BuyerStatRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewLedgerStore(db)
	ctx := context.Background()

	stat := ledger.BuyerStat{
		Overdrafted:              true,
		OverdraftCount:           2,
		LifetimeCreditsUsed:      300,
		LifetimeExceededApproval: 1,
	}

	tx, _ := store.Begin(ctx)
	if err := tx.SetBuyerStat(ctx, listingID, "buyer-1", stat); err != nil {
		t.Fatalf("set stat: %v", err)
	}
	tx.Commit()

	got, err := store.BuyerStat(ctx, listingID, "buyer-1")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got != stat {
		t.Errorf("stat = %+v, want %+v", got, stat)
	}
}

// -----------------------------------------------------------------------------
// ListingStore
// -----------------------------------------------------------------------------

func TestListingStore_CRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewListingStore(db)
	ctx := context.Background()

	l := ledger.Listing{
		ID:           listingID,
		Name:         "weather-api",
		Hostname:     "api.weather.example",
		DocsURL:      "https://docs.example",
		PricePerCall: 10,
		Seller:       "0xseller",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if err := store.Create(ctx, l); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, listingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != l.Name || got.PricePerCall != 10 || got.Seller != l.Seller {
		t.Errorf("listing = %+v", got)
	}

	got.PricePerCall = 20
	got.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(ctx, listingID)
	if got.PricePerCall != 20 {
		t.Errorf("price = %d, want 20", got.PricePerCall)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("listings = %d, want 1", len(all))
	}

	if err := store.Delete(ctx, listingID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, listingID); !errors.Is(err, ledger.ErrListingNotFound) {
		t.Fatalf("err = %v, want ErrListingNotFound", err)
	}
}

// -----------------------------------------------------------------------------
// RewardToken
// -----------------------------------------------------------------------------

func TestRewardToken_MintAndBalance(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	token := sqlite.NewRewardToken(db)
	ctx := context.Background()

	if err := token.Mint(ctx, "0xseller", 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Mint(ctx, "0xseller", 50); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Mint(ctx, "0xother", 25); err != nil {
		t.Fatalf("mint: %v", err)
	}

	bal, err := token.BalanceOf(ctx, "0xseller")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 150 {
		t.Errorf("balance = %d, want 150", bal)
	}

	supply, err := token.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply != 175 {
		t.Errorf("supply = %d, want 175", supply)
	}
}

// -----------------------------------------------------------------------------
// KeyStore / SettingsStore / AuditLog
// -----------------------------------------------------------------------------

func TestKeyStore_RoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewKeyStore(db)
	ctx := context.Background()

	k := ports.APIKey{
		ID:        "key-1",
		Prefix:    "mp_012345678",
		Hash:      []byte("hash"),
		Address:   "0xbuyer",
		CreatedAt: baseTime,
	}
	if err := store.Create(ctx, k); err != nil {
		t.Fatalf("create: %v", err)
	}

	byPrefix, err := store.GetByPrefix(ctx, "mp_012345678")
	if err != nil {
		t.Fatalf("get by prefix: %v", err)
	}
	if len(byPrefix) != 1 || byPrefix[0].Address != "0xbuyer" {
		t.Errorf("byPrefix = %+v", byPrefix)
	}

	byAddr, err := store.ListByAddress(ctx, "0xbuyer")
	if err != nil {
		t.Fatalf("list by address: %v", err)
	}
	if len(byAddr) != 1 {
		t.Errorf("byAddr = %d keys, want 1", len(byAddr))
	}

	if err := store.Delete(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	byPrefix, _ = store.GetByPrefix(ctx, "mp_012345678")
	if len(byPrefix) != 0 {
		t.Errorf("byPrefix after delete = %d keys, want 0", len(byPrefix))
	}
}

func TestAuditLog_RecentNewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	log := sqlite.NewAuditLog(db)
	ctx := context.Background()

	first := event.Record{
		ID:        "evt-1",
		Type:      event.TypeCreditsDeposited,
		Timestamp: baseTime,
		Buyer:     "0xbuyer",
		Amount:    100,
	}
	second := event.Record{
		ID:        "evt-2",
		Type:      event.TypeUsageReported,
		Timestamp: baseTime.Add(time.Minute),
		ListingID: listingID,
		Buyer:     "0xbuyer",
		Caller:    "0xreporter",
		NumCalls:  5,
		Amount:    50,
	}
	if err := log.Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].ID != "evt-2" || recs[1].ID != "evt-1" {
		t.Errorf("order = [%s %s], want newest first", recs[0].ID, recs[1].ID)
	}
	if recs[0].Type != event.TypeUsageReported || recs[0].NumCalls != 5 || recs[0].Amount != 50 {
		t.Errorf("record = %+v", recs[0])
	}
	if !recs[0].Timestamp.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("timestamp = %v, want %v", recs[0].Timestamp, baseTime.Add(time.Minute))
	}

	limited, err := log.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "evt-2" {
		t.Errorf("limited = %+v, want just evt-2", limited)
	}
}

func TestSettingsStore_RoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSettingsStore(db)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, sqlite.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, "reporter_address", "0xreporter"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "reporter_address", "0xreporter2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	v, err := store.Get(ctx, "reporter_address")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "0xreporter2" {
		t.Errorf("value = %s, want 0xreporter2", v)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("settings = %d, want 1", len(all))
	}
}
