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

// UsageService accrues owed debt from reported call counts.
type UsageService struct {
	ledger   ports.Ledger
	listings ports.ListingStore
	params   *ParamsHolder
	locks    *ListingLocks
	audit    ports.AuditLog
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// UsageDeps contains dependencies for UsageService.
type UsageDeps struct {
	Ledger   ports.Ledger
	Listings ports.ListingStore
	Params   *ParamsHolder
	Locks    *ListingLocks
	Audit    ports.AuditLog
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewUsageService creates a new usage accrual service.
func NewUsageService(deps UsageDeps) *UsageService {
	return &UsageService{
		ledger:   deps.Ledger,
		listings: deps.Listings,
		params:   deps.Params,
		locks:    deps.Locks,
		audit:    deps.Audit,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// ReportUsage accrues numCalls * pricePerCall of debt from buyer to the
// listing and registers the buyer in the listing's working set.
//
// Only the designated reporter or the owner may report. The multiplication
// is checked: prices and call counts are partner-influenced and must not
// wrap.
func (s *UsageService) ReportUsage(ctx context.Context, caller ledger.Address, listingID string, numCalls uint64, buyer ledger.Address) error {
	p := s.params.Get()
	if caller != p.Reporter && caller != p.Owner {
		return ledger.ErrUnauthorized
	}
	if numCalls == 0 || buyer.Zero() || listingID == "" {
		return ledger.ErrInvalidInput
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		// A report against an unknown listing is bad reporter input,
		// not a lookup the caller can retry elsewhere.
		return ledger.ErrInvalidInput
	}

	delta, err := money.Mul(numCalls, listing.PricePerCall)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(listingID)
	defer unlock()

	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin usage report: %w", err)
	}
	defer tx.Rollback()

	if err := tx.AddOwed(ctx, listingID, buyer, delta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage report: %w", err)
	}

	rec := event.UsageReported(s.idGen.New(), s.clock.Now(), listingID, buyer, caller, numCalls, delta)
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("audit append failed")
	}
	if s.metrics != nil {
		s.metrics.UsageReports.Inc()
		s.metrics.UsageOwed.Add(float64(delta))
	}
	s.logger.Info().
		Str("listing", listingID).
		Str("buyer", string(buyer)).
		Uint64("calls", numCalls).
		Uint64("owed_delta", delta).
		Msg("usage reported")
	return nil
}

// Owed returns the amount owed by buyer to the listing.
func (s *UsageService) Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	return s.ledger.Owed(ctx, listingID, buyer)
}

// TotalOwed returns the listing's aggregate owed amount.
func (s *UsageService) TotalOwed(ctx context.Context, listingID string) (money.Amount, error) {
	return s.ledger.TotalOwed(ctx, listingID)
}

// Buyers returns the listing's working set of in-debt buyers.
func (s *UsageService) Buyers(ctx context.Context, listingID string) ([]ledger.Address, error) {
	return s.ledger.WorkingSet(ctx, listingID)
}
