package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = errors.New("not found")

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

// GetByPrefix retrieves keys matching a prefix.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]ports.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prefix, hash, address, created_at FROM api_keys WHERE prefix = ?
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.APIKey
	for rows.Next() {
		var (
			k       ports.APIKey
			created int64
		)
		if err := rows.Scan(&k.ID, &k.Prefix, &k.Hash, (*string)(&k.Address), &created); err != nil {
			return nil, err
		}
		k.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, k)
	}
	return out, rows.Err()
}

// Create stores a new key.
func (s *KeyStore) Create(ctx context.Context, k ports.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, prefix, hash, address, created_at) VALUES (?, ?, ?, ?, ?)
	`, k.ID, k.Prefix, k.Hash, string(k.Address), k.CreatedAt.Unix())
	return err
}

// ListByAddress returns all keys for an address.
func (s *KeyStore) ListByAddress(ctx context.Context, addr ledger.Address) ([]ports.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prefix, hash, address, created_at FROM api_keys WHERE address = ?
	`, string(addr))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.APIKey
	for rows.Next() {
		var (
			k       ports.APIKey
			created int64
		)
		if err := rows.Scan(&k.ID, &k.Prefix, &k.Hash, (*string)(&k.Address), &created); err != nil {
			return nil, err
		}
		k.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, k)
	}
	return out, rows.Err()
}

// Delete removes a key.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
