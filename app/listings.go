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

// ListingService is the listing directory: sellers register pay-per-call
// APIs and manage their price.
type ListingService struct {
	listings ports.ListingStore
	params   *ParamsHolder
	audit    ports.AuditLog
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// ListingDeps contains dependencies for ListingService.
type ListingDeps struct {
	Listings ports.ListingStore
	Params   *ParamsHolder
	Audit    ports.AuditLog
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewListingService creates a new listing directory service.
func NewListingService(deps ListingDeps) *ListingService {
	return &ListingService{
		listings: deps.Listings,
		params:   deps.Params,
		audit:    deps.Audit,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Create registers a new listing owned by the calling seller.
func (s *ListingService) Create(ctx context.Context, seller ledger.Address, name, hostname, docsURL string, pricePerCall money.Amount) (ledger.Listing, error) {
	if seller.Zero() {
		return ledger.Listing{}, ledger.ErrInvalidAddress
	}
	if name == "" {
		return ledger.Listing{}, ledger.ErrInvalidInput
	}

	now := s.clock.Now()
	l := ledger.Listing{
		ID:           s.idGen.New(),
		Name:         name,
		Hostname:     hostname,
		DocsURL:      docsURL,
		PricePerCall: pricePerCall,
		Seller:       seller,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return ledger.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	s.auditChange(ctx, l.ID, seller, "created")
	s.logger.Info().Str("listing", l.ID).Str("seller", string(seller)).Uint64("price", pricePerCall).Msg("listing created")
	return l, nil
}

// Update modifies a listing. Only the listing's seller may change it.
func (s *ListingService) Update(ctx context.Context, caller ledger.Address, id string, name, hostname, docsURL string, pricePerCall money.Amount) (ledger.Listing, error) {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return ledger.Listing{}, err
	}
	if caller != l.Seller {
		return ledger.Listing{}, ledger.ErrUnauthorized
	}

	if name != "" {
		l.Name = name
	}
	if hostname != "" {
		l.Hostname = hostname
	}
	if docsURL != "" {
		l.DocsURL = docsURL
	}
	l.PricePerCall = pricePerCall
	l.UpdatedAt = s.clock.Now()

	if err := s.listings.Update(ctx, l); err != nil {
		return ledger.Listing{}, fmt.Errorf("update listing: %w", err)
	}

	s.auditChange(ctx, id, caller, "updated")
	s.logger.Info().Str("listing", id).Uint64("price", pricePerCall).Msg("listing updated")
	return l, nil
}

// Delete removes a listing. The listing's seller or the owner may delete.
func (s *ListingService) Delete(ctx context.Context, caller ledger.Address, id string) error {
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return err
	}
	if caller != l.Seller && caller != s.params.Get().Owner {
		return ledger.ErrUnauthorized
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	s.auditChange(ctx, id, caller, "deleted")
	s.logger.Info().Str("listing", id).Msg("listing deleted")
	return nil
}

// Get retrieves a listing.
func (s *ListingService) Get(ctx context.Context, id string) (ledger.Listing, error) {
	return s.listings.Get(ctx, id)
}

// List returns all listings.
func (s *ListingService) List(ctx context.Context) ([]ledger.Listing, error) {
	return s.listings.List(ctx)
}

func (s *ListingService) auditChange(ctx context.Context, id string, caller ledger.Address, note string) {
	rec := event.Record{
		ID:        s.idGen.New(),
		Type:      event.TypeListingChanged,
		Timestamp: s.clock.Now(),
		ListingID: id,
		Caller:    caller,
		Note:      note,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error().Err(err).Msg("audit append failed")
	}
}
