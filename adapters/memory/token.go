package memory

import (
	"context"
	"sync"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// RewardToken is an in-memory reward-token ledger.
type RewardToken struct {
	mu       sync.RWMutex
	balances map[ledger.Address]money.Amount
	supply   money.Amount
}

// NewRewardToken creates a new in-memory reward-token ledger.
func NewRewardToken() *RewardToken {
	return &RewardToken{
		balances: make(map[ledger.Address]money.Amount),
	}
}

// Mint credits amount of reward tokens to the address.
func (t *RewardToken) Mint(ctx context.Context, to ledger.Address, amount money.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bal, err := money.Add(t.balances[to], amount)
	if err != nil {
		return err
	}
	supply, err := money.Add(t.supply, amount)
	if err != nil {
		return err
	}
	t.balances[to] = bal
	t.supply = supply
	return nil
}

// BalanceOf returns the address's reward-token balance.
func (t *RewardToken) BalanceOf(ctx context.Context, addr ledger.Address) (money.Amount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[addr], nil
}

// TotalSupply returns the total minted amount.
func (t *RewardToken) TotalSupply() money.Amount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// Ensure interface compliance.
var _ ports.RewardToken = (*RewardToken)(nil)
