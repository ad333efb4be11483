package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/ports"
)

// ListingStore implements ports.ListingStore using SQLite.
type ListingStore struct {
	db *DB
}

// NewListingStore creates a new SQLite listing store.
func NewListingStore(db *DB) *ListingStore {
	return &ListingStore{db: db}
}

func scanListing(row interface{ Scan(...any) error }) (ledger.Listing, error) {
	var (
		l        ledger.Listing
		priceStr string
		created  int64
		updated  int64
	)
	err := row.Scan(&l.ID, &l.Name, &l.Hostname, &l.DocsURL, &priceStr, (*string)(&l.Seller), &created, &updated)
	if err != nil {
		return ledger.Listing{}, err
	}
	l.PricePerCall, err = parseAmount(priceStr)
	if err != nil {
		return ledger.Listing{}, err
	}
	l.CreatedAt = time.Unix(created, 0).UTC()
	l.UpdatedAt = time.Unix(updated, 0).UTC()
	return l, nil
}

// Get retrieves a listing by id.
func (s *ListingStore) Get(ctx context.Context, id string) (ledger.Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, hostname, docs_url, price_per_call, seller, created_at, updated_at
		FROM listings WHERE id = ?
	`, id)

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Listing{}, ledger.ErrListingNotFound
	}
	return l, err
}

// Create stores a new listing.
func (s *ListingStore) Create(ctx context.Context, l ledger.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (id, name, hostname, docs_url, price_per_call, seller, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Name, l.Hostname, l.DocsURL, formatAmount(l.PricePerCall), string(l.Seller),
		l.CreatedAt.Unix(), l.UpdatedAt.Unix())
	return err
}

// Update modifies an existing listing.
func (s *ListingStore) Update(ctx context.Context, l ledger.Listing) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET name = ?, hostname = ?, docs_url = ?, price_per_call = ?, updated_at = ?
		WHERE id = ?
	`, l.Name, l.Hostname, l.DocsURL, formatAmount(l.PricePerCall), l.UpdatedAt.Unix(), l.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrListingNotFound
	}
	return nil
}

// Delete removes a listing.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrListingNotFound
	}
	return nil
}

// List returns all listings ordered by creation time.
func (s *ListingStore) List(ctx context.Context) ([]ledger.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, hostname, docs_url, price_per_call, seller, created_at, updated_at
		FROM listings ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.ListingStore = (*ListingStore)(nil)
