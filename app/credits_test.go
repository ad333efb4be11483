package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
)

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	if err := e.credits.Deposit(ctx, buyer, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	balance, _ := e.credits.Balance(ctx, buyer)
	if balance != 500 {
		t.Errorf("balance = %d, want 500", balance)
	}

	// Deposits carry native value into the service.
	native, _ := e.ledger.NativeBalance(ctx)
	if native != 500 {
		t.Errorf("native = %d, want 500", native)
	}
}

func TestDeposit_ZeroBuyer(t *testing.T) {
	e := newTestEnv(t)

	err := e.credits.Deposit(context.Background(), "", 500)
	if !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.fund(t, buyer, 500)

	if err := e.credits.Withdraw(ctx, buyer, 200); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	balance, _ := e.credits.Balance(ctx, buyer)
	if balance != 300 {
		t.Errorf("balance = %d, want 300", balance)
	}
	if got := e.transfer.TotalTo(buyer); got != 200 {
		t.Errorf("buyer received %d, want 200", got)
	}
	native, _ := e.ledger.NativeBalance(ctx)
	if native != 300 {
		t.Errorf("native = %d, want 300", native)
	}
}

func TestWithdraw_Insufficient(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.fund(t, buyer, 100)

	err := e.credits.Withdraw(ctx, buyer, 101)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// Balance untouched and nothing sent.
	balance, _ := e.credits.Balance(ctx, buyer)
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
	if len(e.transfer.Sent()) != 0 {
		t.Error("no transfer expected on failed withdrawal")
	}
}

func TestWithdraw_TransferFailureKeepsBalance(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	e.fund(t, buyer, 500)

	e.transfer.SetFail(true)
	if err := e.credits.Withdraw(ctx, buyer, 200); err == nil {
		t.Fatal("expected withdrawal to fail")
	}

	// The debit rolled back with the failed transfer.
	balance, _ := e.credits.Balance(ctx, buyer)
	if balance != 500 {
		t.Errorf("balance = %d, want 500", balance)
	}
}

func TestCredits_AuditTrail(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	e.fund(t, buyer, 500)
	if err := e.credits.Withdraw(ctx, buyer, 100); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	records, _ := e.audit.Recent(ctx, 10)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].Type != event.TypeCreditsWithdrawn {
		t.Errorf("records[0].Type = %s, want %s", records[0].Type, event.TypeCreditsWithdrawn)
	}
	if records[1].Type != event.TypeCreditsDeposited {
		t.Errorf("records[1].Type = %s, want %s", records[1].Type, event.TypeCreditsDeposited)
	}
}
