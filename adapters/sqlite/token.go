package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// RewardToken implements ports.RewardToken using SQLite.
type RewardToken struct {
	db *DB
}

// NewRewardToken creates a new SQLite reward-token ledger.
func NewRewardToken(db *DB) *RewardToken {
	return &RewardToken{db: db}
}

// Mint credits amount of reward tokens to the address.
func (t *RewardToken) Mint(ctx context.Context, to ledger.Address, amount money.Amount) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mint: %w", err)
	}
	defer tx.Rollback()

	balance, err := tokenAmount(ctx, tx, `SELECT balance FROM reward_balances WHERE address = ?`, string(to))
	if err != nil {
		return err
	}
	balance, err = money.Add(balance, amount)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reward_balances (address, balance) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET balance = excluded.balance
	`, string(to), formatAmount(balance)); err != nil {
		return err
	}

	supply, err := tokenAmount(ctx, tx, `SELECT total FROM reward_supply WHERE id = 1`)
	if err != nil {
		return err
	}
	supply, err = money.Add(supply, amount)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reward_supply SET total = ? WHERE id = 1`, formatAmount(supply)); err != nil {
		return err
	}

	return tx.Commit()
}

// BalanceOf returns the address's reward-token balance.
func (t *RewardToken) BalanceOf(ctx context.Context, addr ledger.Address) (money.Amount, error) {
	return tokenAmount(ctx, t.db, `SELECT balance FROM reward_balances WHERE address = ?`, string(addr))
}

// TotalSupply returns the total amount of reward tokens ever minted.
func (t *RewardToken) TotalSupply(ctx context.Context) (money.Amount, error) {
	return tokenAmount(ctx, t.db, `SELECT total FROM reward_supply WHERE id = 1`)
}

func tokenAmount(ctx context.Context, q querier, query string, args ...interface{}) (money.Amount, error) {
	var s string
	err := q.QueryRowContext(ctx, query, args...).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseAmount(s)
}

// Ensure interface compliance.
var _ ports.RewardToken = (*RewardToken)(nil)
