package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/metrics"
	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// CreditsService manages the shared buyer credits balance.
type CreditsService struct {
	ledger   ports.Ledger
	transfer ports.ValueTransfer
	audit    ports.AuditLog
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// CreditsDeps contains dependencies for CreditsService.
type CreditsDeps struct {
	Ledger   ports.Ledger
	Transfer ports.ValueTransfer
	Audit    ports.AuditLog
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewCreditsService creates a new credits service.
func NewCreditsService(deps CreditsDeps) *CreditsService {
	return &CreditsService{
		ledger:   deps.Ledger,
		transfer: deps.Transfer,
		audit:    deps.Audit,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Deposit credits amount to the buyer's shared balance. The amount is the
// native value accompanying the call; there is no upper bound.
func (s *CreditsService) Deposit(ctx context.Context, buyer ledger.Address, amount money.Amount) error {
	if buyer.Zero() {
		return ledger.ErrInvalidInput
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin deposit: %w", err)
	}
	defer tx.Rollback()

	if err := tx.AddCredits(ctx, buyer, amount); err != nil {
		return err
	}
	if err := tx.AddNative(ctx, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deposit: %w", err)
	}

	s.appendAudit(ctx, event.Record{
		ID:        s.idGen.New(),
		Type:      event.TypeCreditsDeposited,
		Timestamp: s.clock.Now(),
		Buyer:     buyer,
		Amount:    amount,
	})
	if s.metrics != nil {
		s.metrics.Deposits.Inc()
	}
	s.logger.Info().Str("buyer", string(buyer)).Uint64("amount", amount).Msg("credits deposited")
	return nil
}

// Withdraw moves amount of the caller's credits back out of the service.
// The balance is debited before the outbound transfer, and the whole
// operation commits only if the transfer succeeds.
func (s *CreditsService) Withdraw(ctx context.Context, caller ledger.Address, amount money.Amount) error {
	if caller.Zero() {
		return ledger.ErrInvalidInput
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin withdrawal: %w", err)
	}
	defer tx.Rollback()

	if err := tx.SubCredits(ctx, caller, amount); err != nil {
		return err
	}
	if err := tx.SubNative(ctx, amount); err != nil {
		return err
	}
	if err := s.transfer.Send(ctx, caller, amount); err != nil {
		return fmt.Errorf("withdrawal transfer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit withdrawal: %w", err)
	}

	s.appendAudit(ctx, event.Record{
		ID:        s.idGen.New(),
		Type:      event.TypeCreditsWithdrawn,
		Timestamp: s.clock.Now(),
		Buyer:     caller,
		Amount:    amount,
	})
	if s.metrics != nil {
		s.metrics.Withdrawals.Inc()
	}
	s.logger.Info().Str("buyer", string(caller)).Uint64("amount", amount).Msg("credits withdrawn")
	return nil
}

// Balance returns the buyer's current credits balance.
func (s *CreditsService) Balance(ctx context.Context, buyer ledger.Address) (money.Amount, error) {
	return s.ledger.CreditBalance(ctx, buyer)
}

func (s *CreditsService) appendAudit(ctx context.Context, rec event.Record) {
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("type", string(rec.Type)).Msg("audit append failed")
	}
}
