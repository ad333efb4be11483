package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = errors.New("not found")

// KeyStore is an in-memory implementation of ports.KeyStore.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]ports.APIKey
}

// NewKeyStore creates a new in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string]ports.APIKey),
	}
}

// GetByPrefix retrieves keys matching a prefix.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]ports.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.APIKey
	for _, k := range s.keys {
		if k.Prefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k ports.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.ID] = k
	return nil
}

// ListByAddress returns all keys for an address.
func (s *KeyStore) ListByAddress(ctx context.Context, addr ledger.Address) ([]ports.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.APIKey
	for _, k := range s.keys {
		if k.Address == addr {
			out = append(out, k)
		}
	}
	return out, nil
}

// Delete removes a key.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
