// Package auth resolves API keys to participant addresses.
// Raw keys are never stored: generation returns the plaintext once, and
// validation compares a bcrypt hash after a prefix lookup.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

// KeyPrefix is the fixed prefix on raw meterpay API keys.
const KeyPrefix = "mp_"

// lookupLen is how many leading characters narrow the store lookup.
const lookupLen = 12

// ErrInvalidKey is returned when a raw key cannot be resolved.
var ErrInvalidKey = errors.New("invalid api key")

// Service authenticates raw API keys against a key store.
type Service struct {
	keys  ports.KeyStore
	idGen ports.IDGenerator
	clock ports.Clock
}

// NewService creates an auth service.
func NewService(keys ports.KeyStore, idGen ports.IDGenerator, clock ports.Clock) *Service {
	return &Service{keys: keys, idGen: idGen, clock: clock}
}

// Generate creates and stores a key for the address, returning the raw
// key exactly once.
func (s *Service) Generate(ctx context.Context, addr ledger.Address) (string, error) {
	if addr.Zero() {
		return "", ledger.ErrInvalidAddress
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	rawKey := KeyPrefix + hex.EncodeToString(randomBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}

	k := ports.APIKey{
		ID:        s.idGen.New(),
		Prefix:    rawKey[:lookupLen],
		Hash:      hash,
		Address:   addr,
		CreatedAt: s.clock.Now(),
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}
	return rawKey, nil
}

// Resolve returns the address owning the raw key.
func (s *Service) Resolve(ctx context.Context, rawKey string) (ledger.Address, error) {
	if !strings.HasPrefix(rawKey, KeyPrefix) || len(rawKey) < lookupLen {
		return "", ErrInvalidKey
	}

	candidates, err := s.keys.GetByPrefix(ctx, rawKey[:lookupLen])
	if err != nil {
		return "", fmt.Errorf("key lookup: %w", err)
	}
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword(k.Hash, []byte(rawKey)) == nil {
			return k.Address, nil
		}
	}
	return "", ErrInvalidKey
}
