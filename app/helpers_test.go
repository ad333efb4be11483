package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/clock"
	"github.com/meterpay/meterpay/adapters/idgen"
	"github.com/meterpay/meterpay/adapters/memory"
	"github.com/meterpay/meterpay/app"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/domain/settlement"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

const (
	owner    = ledger.Address("0xowner")
	reporter = ledger.Address("0xreporter")
	withdraw = ledger.Address("0xwithdraw")
	seller   = ledger.Address("0xseller")
	buyer    = ledger.Address("0xbuyer")
	buyer2   = ledger.Address("0xbuyer2")

	listingID = "listing-1"
	week      = 7 * 24 * time.Hour
)

// testEnv wires every service over in-memory adapters with a fake clock.
type testEnv struct {
	ledger   *memory.Ledger
	listings *memory.ListingStore
	token    *memory.RewardToken
	transfer *memory.ValueTransfer
	audit    *memory.AuditLog
	settings *memory.SettingsStore
	clock    *clock.Fake
	params   *app.ParamsHolder

	credits    *app.CreditsService
	usage      *app.UsageService
	approvals  *app.ApprovalService
	settlement *app.SettlementService
	listing    *app.ListingService
	admin      *app.AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		ledger:   memory.NewLedger(),
		listings: memory.NewListingStore(),
		token:    memory.NewRewardToken(),
		transfer: memory.NewValueTransfer(),
		audit:    memory.NewAuditLog(),
		settings: memory.NewSettingsStore(),
		clock:    clock.NewFake(baseTime),
	}
	e.params = app.NewParamsHolder(app.Params{
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

	e.credits = app.NewCreditsService(app.CreditsDeps{
		Ledger:   e.ledger,
		Transfer: e.transfer,
		Audit:    e.audit,
		Clock:    e.clock,
		IDGen:    idGen,
		Logger:   logger,
	})
	e.usage = app.NewUsageService(app.UsageDeps{
		Ledger:   e.ledger,
		Listings: e.listings,
		Params:   e.params,
		Locks:    locks,
		Audit:    e.audit,
		Clock:    e.clock,
		IDGen:    idGen,
		Logger:   logger,
	})
	e.approvals = app.NewApprovalService(app.ApprovalDeps{
		Ledger:   e.ledger,
		Listings: e.listings,
		Params:   e.params,
		Clock:    e.clock,
		Logger:   logger,
	})
	e.settlement = app.NewSettlementService(app.SettlementDeps{
		Ledger:   e.ledger,
		Listings: e.listings,
		Token:    e.token,
		Transfer: e.transfer,
		Audit:    e.audit,
		Params:   e.params,
		Locks:    locks,
		Clock:    e.clock,
		IDGen:    idGen,
		Logger:   logger,
	})
	e.listing = app.NewListingService(app.ListingDeps{
		Listings: e.listings,
		Params:   e.params,
		Audit:    e.audit,
		Clock:    e.clock,
		IDGen:    idGen,
		Logger:   logger,
	})
	e.admin = app.NewAdminService(app.AdminDeps{
		Params:   e.params,
		Settings: e.settings,
		Audit:    e.audit,
		Clock:    e.clock,
		IDGen:    idGen,
		Logger:   logger,
	})

	return e
}

// seedListing registers the standard test listing at 10 per call.
func (e *testEnv) seedListing(t *testing.T) {
	t.Helper()
	err := e.listings.Create(context.Background(), ledger.Listing{
		ID:           listingID,
		Name:         "test-api",
		Hostname:     "api.example.com",
		PricePerCall: 10,
		Seller:       seller,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	})
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
}

// fund deposits credits for a buyer.
func (e *testEnv) fund(t *testing.T, b ledger.Address, amount money.Amount) {
	t.Helper()
	if err := e.credits.Deposit(context.Background(), b, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

// report accrues numCalls of usage for a buyer via the reporter.
func (e *testEnv) report(t *testing.T, b ledger.Address, numCalls uint64) {
	t.Helper()
	if err := e.usage.ReportUsage(context.Background(), reporter, listingID, numCalls, b); err != nil {
		t.Fatalf("report usage: %v", err)
	}
}

// approve sets an unanchored approval rate for a buyer.
func (e *testEnv) approve(t *testing.T, b ledger.Address, rate money.Amount) {
	t.Helper()
	if err := e.approvals.Approve(context.Background(), b, listingID, b, rate); err != nil {
		t.Fatalf("approve: %v", err)
	}
}
