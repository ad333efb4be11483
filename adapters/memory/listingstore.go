package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

// ListingStore is an in-memory implementation of ports.ListingStore.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]ledger.Listing
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[string]ledger.Listing),
	}
}

// Get retrieves a listing by id.
func (s *ListingStore) Get(ctx context.Context, id string) (ledger.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return ledger.Listing{}, ledger.ErrListingNotFound
	}
	return l, nil
}

// Create stores a new listing.
func (s *ListingStore) Create(ctx context.Context, l ledger.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings[l.ID] = l
	return nil
}

// Update modifies an existing listing.
func (s *ListingStore) Update(ctx context.Context, l ledger.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[l.ID]; !ok {
		return ledger.ErrListingNotFound
	}
	s.listings[l.ID] = l
	return nil
}

// Delete removes a listing.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return ledger.ErrListingNotFound
	}
	delete(s.listings, id)
	return nil
}

// List returns all listings sorted by id.
func (s *ListingStore) List(ctx context.Context) ([]ledger.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Ensure interface compliance.
var _ ports.ListingStore = (*ListingStore)(nil)
