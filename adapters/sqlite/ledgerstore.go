package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// Amounts are persisted as decimal strings: they are unsigned 64-bit
// values and SQLite INTEGER is signed. All arithmetic happens in Go.
func formatAmount(a money.Amount) string {
	return strconv.FormatUint(a, 10)
}

func parseAmount(s string) (money.Amount, error) {
	a, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, so reads are shared
// between the store and its transactions.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func creditBalance(ctx context.Context, q querier, buyer ledger.Address) (money.Amount, error) {
	row := q.QueryRowContext(ctx, `SELECT balance FROM credits WHERE buyer = ?`, string(buyer))
	var s string
	err := row.Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseAmount(s)
}

func owedAmount(ctx context.Context, q querier, listingID string, buyer ledger.Address) (money.Amount, error) {
	row := q.QueryRowContext(ctx, `SELECT amount FROM owed WHERE listing_id = ? AND buyer = ?`, listingID, string(buyer))
	var s string
	err := row.Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseAmount(s)
}

func totalOwed(ctx context.Context, q querier, listingID string) (money.Amount, error) {
	row := q.QueryRowContext(ctx, `SELECT total FROM listing_totals WHERE listing_id = ?`, listingID)
	var s string
	err := row.Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseAmount(s)
}

func workingSet(ctx context.Context, q querier, listingID string) ([]ledger.Address, error) {
	// Owed rows are deleted when fully paid, so every row is a member.
	rows, err := q.QueryContext(ctx, `SELECT buyer FROM owed WHERE listing_id = ?`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var set []ledger.Address
	for rows.Next() {
		var buyer string
		if err := rows.Scan(&buyer); err != nil {
			return nil, err
		}
		set = append(set, ledger.Address(buyer))
	}
	return set, rows.Err()
}

func approvalOf(ctx context.Context, q querier, listingID string, buyer ledger.Address) (approval.Approval, error) {
	row := q.QueryRowContext(ctx, `SELECT rate, anchor FROM approvals WHERE listing_id = ? AND buyer = ?`, listingID, string(buyer))
	var (
		rateStr string
		anchor  sql.NullInt64
	)
	err := row.Scan(&rateStr, &anchor)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Approval{}, nil
	}
	if err != nil {
		return approval.Approval{}, err
	}

	rate, err := parseAmount(rateStr)
	if err != nil {
		return approval.Approval{}, err
	}
	a := approval.Approval{RatePerSecond: rate}
	if anchor.Valid {
		t := time.Unix(anchor.Int64, 0).UTC()
		a.Anchor = &t
	}
	return a, nil
}

func buyerStat(ctx context.Context, q querier, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	row := q.QueryRowContext(ctx, `
		SELECT overdrafted, overdraft_count, credits_used, exceeded_count
		FROM buyer_stats WHERE listing_id = ? AND buyer = ?
	`, listingID, string(buyer))

	var (
		stat    ledger.BuyerStat
		usedStr string
	)
	err := row.Scan(&stat.Overdrafted, &stat.OverdraftCount, &usedStr, &stat.LifetimeExceededApproval)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BuyerStat{}, nil
	}
	if err != nil {
		return ledger.BuyerStat{}, err
	}
	stat.LifetimeCreditsUsed, err = parseAmount(usedStr)
	return stat, err
}

func globalAmount(ctx context.Context, q querier, name string) (money.Amount, error) {
	row := q.QueryRowContext(ctx, `SELECT value FROM globals WHERE name = ?`, name)
	var s string
	if err := row.Scan(&s); err != nil {
		return 0, err
	}
	return parseAmount(s)
}

// LedgerStore implements ports.Ledger using SQLite.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new SQLite ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) CreditBalance(ctx context.Context, buyer ledger.Address) (money.Amount, error) {
	return creditBalance(ctx, s.db, buyer)
}

func (s *LedgerStore) Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	return owedAmount(ctx, s.db, listingID, buyer)
}

func (s *LedgerStore) TotalOwed(ctx context.Context, listingID string) (money.Amount, error) {
	return totalOwed(ctx, s.db, listingID)
}

func (s *LedgerStore) WorkingSet(ctx context.Context, listingID string) ([]ledger.Address, error) {
	return workingSet(ctx, s.db, listingID)
}

func (s *LedgerStore) Approval(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error) {
	return approvalOf(ctx, s.db, listingID, buyer)
}

func (s *LedgerStore) BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	return buyerStat(ctx, s.db, listingID, buyer)
}

func (s *LedgerStore) FeePool(ctx context.Context) (money.Amount, error) {
	return globalAmount(ctx, s.db, "fee_pool")
}

func (s *LedgerStore) NativeBalance(ctx context.Context) (money.Amount, error) {
	return globalAmount(ctx, s.db, "native_balance")
}

// Begin opens a read-write transaction.
func (s *LedgerStore) Begin(ctx context.Context) (ports.LedgerTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &ledgerTx{tx: tx}, nil
}

// ledgerTx implements ports.LedgerTx over a sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) CreditBalance(ctx context.Context, buyer ledger.Address) (money.Amount, error) {
	return creditBalance(ctx, t.tx, buyer)
}

func (t *ledgerTx) Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	return owedAmount(ctx, t.tx, listingID, buyer)
}

func (t *ledgerTx) TotalOwed(ctx context.Context, listingID string) (money.Amount, error) {
	return totalOwed(ctx, t.tx, listingID)
}

func (t *ledgerTx) WorkingSet(ctx context.Context, listingID string) ([]ledger.Address, error) {
	return workingSet(ctx, t.tx, listingID)
}

func (t *ledgerTx) Approval(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error) {
	return approvalOf(ctx, t.tx, listingID, buyer)
}

func (t *ledgerTx) BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	return buyerStat(ctx, t.tx, listingID, buyer)
}

func (t *ledgerTx) FeePool(ctx context.Context) (money.Amount, error) {
	return globalAmount(ctx, t.tx, "fee_pool")
}

func (t *ledgerTx) NativeBalance(ctx context.Context) (money.Amount, error) {
	return globalAmount(ctx, t.tx, "native_balance")
}

func (t *ledgerTx) AddCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error {
	bal, err := creditBalance(ctx, t.tx, buyer)
	if err != nil {
		return err
	}
	sum, err := money.Add(bal, delta)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO credits (buyer, balance) VALUES (?, ?)
		ON CONFLICT(buyer) DO UPDATE SET balance = excluded.balance
	`, string(buyer), formatAmount(sum))
	return err
}

func (t *ledgerTx) SubCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error {
	bal, err := creditBalance(ctx, t.tx, buyer)
	if err != nil {
		return err
	}
	if delta > bal {
		return ledger.ErrInsufficientBalance
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE credits SET balance = ? WHERE buyer = ?`,
		formatAmount(bal-delta), string(buyer))
	return err
}

func (t *ledgerTx) AddOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error {
	entry, err := owedAmount(ctx, t.tx, listingID, buyer)
	if err != nil {
		return err
	}
	total, err := totalOwed(ctx, t.tx, listingID)
	if err != nil {
		return err
	}
	newEntry, err := money.Add(entry, delta)
	if err != nil {
		return err
	}
	newTotal, err := money.Add(total, delta)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO owed (listing_id, buyer, amount) VALUES (?, ?, ?)
		ON CONFLICT(listing_id, buyer) DO UPDATE SET amount = excluded.amount
	`, listingID, string(buyer), formatAmount(newEntry)); err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO listing_totals (listing_id, total) VALUES (?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET total = excluded.total
	`, listingID, formatAmount(newTotal))
	return err
}

func (t *ledgerTx) SubOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error {
	entry, err := owedAmount(ctx, t.tx, listingID, buyer)
	if err != nil {
		return err
	}
	if delta > entry {
		return ledger.ErrInsufficientBalance
	}
	total, err := totalOwed(ctx, t.tx, listingID)
	if err != nil {
		return err
	}

	remaining := entry - delta
	if remaining == 0 {
		// Fully paid: drop the row, which removes the buyer from the
		// listing's working set.
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM owed WHERE listing_id = ? AND buyer = ?`,
			listingID, string(buyer)); err != nil {
			return err
		}
	} else {
		if _, err := t.tx.ExecContext(ctx, `UPDATE owed SET amount = ? WHERE listing_id = ? AND buyer = ?`,
			formatAmount(remaining), listingID, string(buyer)); err != nil {
			return err
		}
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE listing_totals SET total = ? WHERE listing_id = ?`,
		formatAmount(money.Sub(total, delta)), listingID)
	return err
}

func (t *ledgerTx) SetApproval(ctx context.Context, listingID string, buyer ledger.Address, a approval.Approval) error {
	var anchor sql.NullInt64
	if a.Anchor != nil {
		anchor = sql.NullInt64{Int64: a.Anchor.Unix(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO approvals (listing_id, buyer, rate, anchor) VALUES (?, ?, ?, ?)
		ON CONFLICT(listing_id, buyer) DO UPDATE SET rate = excluded.rate, anchor = excluded.anchor
	`, listingID, string(buyer), formatAmount(a.RatePerSecond), anchor)
	return err
}

func (t *ledgerTx) SetBuyerStat(ctx context.Context, listingID string, buyer ledger.Address, s ledger.BuyerStat) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO buyer_stats (listing_id, buyer, overdrafted, overdraft_count, credits_used, exceeded_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(listing_id, buyer) DO UPDATE SET
			overdrafted = excluded.overdrafted,
			overdraft_count = excluded.overdraft_count,
			credits_used = excluded.credits_used,
			exceeded_count = excluded.exceeded_count
	`, listingID, string(buyer), s.Overdrafted, s.OverdraftCount, formatAmount(s.LifetimeCreditsUsed), s.LifetimeExceededApproval)
	return err
}

func (t *ledgerTx) addGlobal(ctx context.Context, name string, delta money.Amount) error {
	cur, err := globalAmount(ctx, t.tx, name)
	if err != nil {
		return err
	}
	sum, err := money.Add(cur, delta)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE globals SET value = ? WHERE name = ?`, formatAmount(sum), name)
	return err
}

func (t *ledgerTx) subGlobal(ctx context.Context, name string, delta money.Amount) error {
	cur, err := globalAmount(ctx, t.tx, name)
	if err != nil {
		return err
	}
	if delta > cur {
		return ledger.ErrInsufficientBalance
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE globals SET value = ? WHERE name = ?`, formatAmount(cur-delta), name)
	return err
}

func (t *ledgerTx) AddFeePool(ctx context.Context, delta money.Amount) error {
	return t.addGlobal(ctx, "fee_pool", delta)
}

func (t *ledgerTx) SubFeePool(ctx context.Context, delta money.Amount) error {
	return t.subGlobal(ctx, "fee_pool", delta)
}

func (t *ledgerTx) AddNative(ctx context.Context, delta money.Amount) error {
	return t.addGlobal(ctx, "native_balance", delta)
}

func (t *ledgerTx) SubNative(ctx context.Context, delta money.Amount) error {
	return t.subGlobal(ctx, "native_balance", delta)
}

func (t *ledgerTx) Commit() error {
	return t.tx.Commit()
}

func (t *ledgerTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Ensure interface compliance.
var (
	_ ports.Ledger   = (*LedgerStore)(nil)
	_ ports.LedgerTx = (*ledgerTx)(nil)
)
