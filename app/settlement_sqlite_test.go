package app_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/clock"
	"github.com/meterpay/meterpay/adapters/idgen"
	"github.com/meterpay/meterpay/adapters/memory"
	"github.com/meterpay/meterpay/adapters/sqlite"
	"github.com/meterpay/meterpay/app"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/settlement"
)

// Settlement over the SQLite ledger behaves identically to the memory
// ledger: same balances, same working-set removal, same rollback.
func TestSettleListing_SQLiteLedger(t *testing.T) {
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
	defer func() {
		db.Close()
		os.Remove(path)
	}()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := sqlite.NewLedgerStore(db)
	listings := sqlite.NewListingStore(db)
	token := sqlite.NewRewardToken(db)
	transfer := memory.NewValueTransfer()
	audit := sqlite.NewAuditLog(db)
	fakeClock := clock.NewFake(baseTime)

	params := app.NewParamsHolder(app.Params{
		Owner:           owner,
		Reporter:        reporter,
		WithdrawAddress: withdraw,
		FeeRate:         settlement.FeeRate{Numerator: 10, Denominator: 1},
		RewardAmount:    100,
		RewardEnabled:   true,
		DefaultWindow:   week,
	})
	idGen := idgen.NewSequential("id-")
	locks := app.NewListingLocks(4)
	logger := zerolog.Nop()

	credits := app.NewCreditsService(app.CreditsDeps{
		Ledger: store, Transfer: transfer, Audit: audit,
		Clock: fakeClock, IDGen: idGen, Logger: logger,
	})
	usage := app.NewUsageService(app.UsageDeps{
		Ledger: store, Listings: listings, Params: params, Locks: locks,
		Audit: audit, Clock: fakeClock, IDGen: idGen, Logger: logger,
	})
	approvals := app.NewApprovalService(app.ApprovalDeps{
		Ledger: store, Listings: listings, Params: params,
		Clock: fakeClock, Logger: logger,
	})
	settle := app.NewSettlementService(app.SettlementDeps{
		Ledger: store, Listings: listings, Token: token, Transfer: transfer,
		Audit: audit, Params: params, Locks: locks,
		Clock: fakeClock, IDGen: idGen, Logger: logger,
	})

	ctx := context.Background()
	if err := listings.Create(ctx, ledger.Listing{
		ID:           listingID,
		Name:         "test-api",
		Hostname:     "api.example.com",
		PricePerCall: 10,
		Seller:       seller,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if err := credits.Deposit(ctx, buyer, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := approvals.Approve(ctx, buyer, listingID, buyer, 1); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := usage.ReportUsage(ctx, reporter, listingID, 10, buyer); err != nil {
		t.Fatalf("report usage: %v", err)
	}

	res, err := settle.SettleListing(ctx, listingID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.TotalSettled != 100 || res.Fee != 10 || res.Payout != 90 {
		t.Errorf("result = settled %d fee %d payout %d, want 100/10/90",
			res.TotalSettled, res.Fee, res.Payout)
	}

	balance, err := store.CreditBalance(ctx, buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 900 {
		t.Errorf("balance = %d, want 900", balance)
	}
	pool, _ := store.FeePool(ctx)
	if pool != 10 {
		t.Errorf("fee pool = %d, want 10", pool)
	}
	set, _ := store.WorkingSet(ctx, listingID)
	if len(set) != 0 {
		t.Errorf("working set = %v, want empty", set)
	}
	reward, _ := token.BalanceOf(ctx, seller)
	if reward != 100 {
		t.Errorf("reward balance = %d, want 100", reward)
	}
	if got := transfer.TotalTo(seller); got != 90 {
		t.Errorf("seller transfer = %d, want 90", got)
	}
}
