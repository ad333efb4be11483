package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// ApprovalService manages per-(listing, buyer) spending approvals.
type ApprovalService struct {
	ledger   ports.Ledger
	listings ports.ListingStore
	params   *ParamsHolder
	clock    ports.Clock
	logger   zerolog.Logger
}

// ApprovalDeps contains dependencies for ApprovalService.
type ApprovalDeps struct {
	Ledger   ports.Ledger
	Listings ports.ListingStore
	Params   *ParamsHolder
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewApprovalService creates a new approval service.
func NewApprovalService(deps ApprovalDeps) *ApprovalService {
	return &ApprovalService{
		ledger:   deps.Ledger,
		listings: deps.Listings,
		params:   deps.Params,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// The buyer themselves or the reporter may manage a buyer's approval.
func (s *ApprovalService) authorize(caller, buyer ledger.Address) error {
	p := s.params.Get()
	if caller != buyer && caller != p.Reporter && caller != p.Owner {
		return ledger.ErrUnauthorized
	}
	return nil
}

func (s *ApprovalService) validateTarget(ctx context.Context, listingID string, buyer ledger.Address) error {
	if buyer.Zero() {
		return ledger.ErrInvalidAddress
	}
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return ledger.ErrInvalidInput
	}
	return nil
}

// Approve sets the buyer's approved spend rate for the listing, leaving
// the window anchor untouched.
func (s *ApprovalService) Approve(ctx context.Context, caller ledger.Address, listingID string, buyer ledger.Address, rate money.Amount) error {
	if err := s.authorize(caller, buyer); err != nil {
		return err
	}
	if err := s.validateTarget(ctx, listingID, buyer); err != nil {
		return err
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback()

	a, err := tx.Approval(ctx, listingID, buyer)
	if err != nil {
		return err
	}
	a.RatePerSecond = rate
	if err := tx.SetApproval(ctx, listingID, buyer, a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve: %w", err)
	}

	s.logger.Info().
		Str("listing", listingID).
		Str("buyer", string(buyer)).
		Uint64("rate", rate).
		Msg("approval set")
	return nil
}

// ApproveWithFirstUse sets the rate and anchors the spending window at
// firstUse. Allowed only while the window has never been anchored, so a
// buyer cannot rewind an active cap window.
func (s *ApprovalService) ApproveWithFirstUse(ctx context.Context, caller ledger.Address, listingID string, buyer ledger.Address, rate money.Amount, firstUse time.Time) error {
	if err := s.authorize(caller, buyer); err != nil {
		return err
	}
	if err := s.validateTarget(ctx, listingID, buyer); err != nil {
		return err
	}

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback()

	a, err := tx.Approval(ctx, listingID, buyer)
	if err != nil {
		return err
	}
	anchored, err := a.WithFirstUse(rate, firstUse)
	if err != nil {
		return err
	}
	if err := tx.SetApproval(ctx, listingID, buyer, anchored); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve: %w", err)
	}

	s.logger.Info().
		Str("listing", listingID).
		Str("buyer", string(buyer)).
		Uint64("rate", rate).
		Time("first_use", firstUse).
		Msg("approval anchored")
	return nil
}

// Get returns the buyer's stored approval for the listing.
func (s *ApprovalService) Get(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error) {
	return s.ledger.Approval(ctx, listingID, buyer)
}

// EffectiveCap returns the buyer's spendable cap for the listing at the
// current time. Pure read; nothing is persisted.
func (s *ApprovalService) EffectiveCap(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	a, err := s.ledger.Approval(ctx, listingID, buyer)
	if err != nil {
		return 0, err
	}
	return approval.EffectiveCap(a, s.params.Get().DefaultWindow, s.clock.Now()), nil
}
