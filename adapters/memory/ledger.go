// Package memory provides in-memory implementations of storage ports.
// Suitable for tests and single-process deployments without durability.
package memory

import (
	"context"
	"sync"

	"github.com/meterpay/meterpay/domain/approval"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// listingState holds per-listing accrual state: owed entries, the listing
// total and the working set of in-debt buyers.
//
// The working set is an index-addressable slice with a position map, so
// membership insert and removal-by-value (swap with last) are O(1) and a
// snapshot enumeration is a plain copy.
type listingState struct {
	owed   map[ledger.Address]money.Amount
	total  money.Amount
	set    []ledger.Address
	setIdx map[ledger.Address]int
}

func newListingState() *listingState {
	return &listingState{
		owed:   make(map[ledger.Address]money.Amount),
		setIdx: make(map[ledger.Address]int),
	}
}

func (ls *listingState) clone() *listingState {
	c := newListingState()
	for b, a := range ls.owed {
		c.owed[b] = a
	}
	c.total = ls.total
	c.set = append([]ledger.Address(nil), ls.set...)
	for b, i := range ls.setIdx {
		c.setIdx[b] = i
	}
	return c
}

func (ls *listingState) insert(buyer ledger.Address) {
	if _, ok := ls.setIdx[buyer]; ok {
		return
	}
	ls.setIdx[buyer] = len(ls.set)
	ls.set = append(ls.set, buyer)
}

func (ls *listingState) remove(buyer ledger.Address) {
	i, ok := ls.setIdx[buyer]
	if !ok {
		return
	}
	last := len(ls.set) - 1
	moved := ls.set[last]
	ls.set[i] = moved
	ls.setIdx[moved] = i
	ls.set = ls.set[:last]
	delete(ls.setIdx, buyer)
	delete(ls.owed, buyer)
}

// ledgerData is the full settlement state. Transactions mutate a deep copy
// and swap it in on commit, so a failed operation never leaves partial
// writes behind.
type ledgerData struct {
	credits   map[ledger.Address]money.Amount
	listings  map[string]*listingState
	approvals map[string]map[ledger.Address]approval.Approval
	stats     map[string]map[ledger.Address]ledger.BuyerStat
	feePool   money.Amount
	native    money.Amount
}

func newLedgerData() *ledgerData {
	return &ledgerData{
		credits:   make(map[ledger.Address]money.Amount),
		listings:  make(map[string]*listingState),
		approvals: make(map[string]map[ledger.Address]approval.Approval),
		stats:     make(map[string]map[ledger.Address]ledger.BuyerStat),
	}
}

func (d *ledgerData) clone() *ledgerData {
	c := newLedgerData()
	for b, a := range d.credits {
		c.credits[b] = a
	}
	for id, ls := range d.listings {
		c.listings[id] = ls.clone()
	}
	for id, m := range d.approvals {
		cm := make(map[ledger.Address]approval.Approval, len(m))
		for b, a := range m {
			cm[b] = a
		}
		c.approvals[id] = cm
	}
	for id, m := range d.stats {
		cm := make(map[ledger.Address]ledger.BuyerStat, len(m))
		for b, s := range m {
			cm[b] = s
		}
		c.stats[id] = cm
	}
	c.feePool = d.feePool
	c.native = d.native
	return c
}

func (d *ledgerData) listing(id string) *listingState {
	ls, ok := d.listings[id]
	if !ok {
		ls = newListingState()
		d.listings[id] = ls
	}
	return ls
}

func (d *ledgerData) workingSet(id string) []ledger.Address {
	ls, ok := d.listings[id]
	if !ok {
		return nil
	}
	return append([]ledger.Address(nil), ls.set...)
}

func (d *ledgerData) addCredits(buyer ledger.Address, delta money.Amount) error {
	sum, err := money.Add(d.credits[buyer], delta)
	if err != nil {
		return err
	}
	d.credits[buyer] = sum
	return nil
}

func (d *ledgerData) subCredits(buyer ledger.Address, delta money.Amount) error {
	bal := d.credits[buyer]
	if delta > bal {
		return ledger.ErrInsufficientBalance
	}
	d.credits[buyer] = bal - delta
	return nil
}

func (d *ledgerData) addOwed(listingID string, buyer ledger.Address, delta money.Amount) error {
	ls := d.listing(listingID)
	entry, err := money.Add(ls.owed[buyer], delta)
	if err != nil {
		return err
	}
	total, err := money.Add(ls.total, delta)
	if err != nil {
		return err
	}
	ls.owed[buyer] = entry
	ls.total = total
	if entry > 0 {
		ls.insert(buyer)
	}
	return nil
}

func (d *ledgerData) subOwed(listingID string, buyer ledger.Address, delta money.Amount) error {
	ls, ok := d.listings[listingID]
	if !ok || delta > ls.owed[buyer] {
		return ledger.ErrInsufficientBalance
	}
	ls.owed[buyer] -= delta
	ls.total -= delta
	if ls.owed[buyer] == 0 {
		ls.remove(buyer)
	}
	return nil
}

func (d *ledgerData) setApproval(listingID string, buyer ledger.Address, a approval.Approval) {
	m, ok := d.approvals[listingID]
	if !ok {
		m = make(map[ledger.Address]approval.Approval)
		d.approvals[listingID] = m
	}
	m[buyer] = a
}

func (d *ledgerData) setStat(listingID string, buyer ledger.Address, s ledger.BuyerStat) {
	m, ok := d.stats[listingID]
	if !ok {
		m = make(map[ledger.Address]ledger.BuyerStat)
		d.stats[listingID] = m
	}
	m[buyer] = s
}

// Ledger is an in-memory implementation of ports.Ledger.
//
// A transaction holds the store's write lock from Begin until Commit or
// Rollback, so transactions are strictly serial and reads never observe a
// half-applied settlement.
type Ledger struct {
	mu   sync.RWMutex
	data *ledgerData
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{data: newLedgerData()}
}

// CreditBalance returns the buyer's shared credits balance.
func (l *Ledger) CreditBalance(ctx context.Context, buyer ledger.Address) (money.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.credits[buyer], nil
}

// Owed returns the amount owed by buyer to listing.
func (l *Ledger) Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ls, ok := l.data.listings[listingID]; ok {
		return ls.owed[buyer], nil
	}
	return 0, nil
}

// TotalOwed returns the listing's aggregate owed amount.
func (l *Ledger) TotalOwed(ctx context.Context, listingID string) (money.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if ls, ok := l.data.listings[listingID]; ok {
		return ls.total, nil
	}
	return 0, nil
}

// WorkingSet returns a snapshot of the buyers with nonzero owed balance.
func (l *Ledger) WorkingSet(ctx context.Context, listingID string) ([]ledger.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.workingSet(listingID), nil
}

// Approval returns the buyer's approval for the listing.
func (l *Ledger) Approval(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.approvals[listingID][buyer], nil
}

// BuyerStat returns the settlement statistics for (listing, buyer).
func (l *Ledger) BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.stats[listingID][buyer], nil
}

// FeePool returns the accumulated network fees.
func (l *Ledger) FeePool(ctx context.Context) (money.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.feePool, nil
}

// NativeBalance returns the native value held by the service.
func (l *Ledger) NativeBalance(ctx context.Context) (money.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.native, nil
}

// Begin opens a read-write transaction.
func (l *Ledger) Begin(ctx context.Context) (ports.LedgerTx, error) {
	l.mu.Lock()
	return &ledgerTx{owner: l, data: l.data.clone()}, nil
}

// ledgerTx mutates a private copy of the store; Commit swaps it in.
type ledgerTx struct {
	owner *Ledger
	data  *ledgerData
	done  bool
}

func (t *ledgerTx) CreditBalance(ctx context.Context, buyer ledger.Address) (money.Amount, error) {
	return t.data.credits[buyer], nil
}

func (t *ledgerTx) Owed(ctx context.Context, listingID string, buyer ledger.Address) (money.Amount, error) {
	if ls, ok := t.data.listings[listingID]; ok {
		return ls.owed[buyer], nil
	}
	return 0, nil
}

func (t *ledgerTx) TotalOwed(ctx context.Context, listingID string) (money.Amount, error) {
	if ls, ok := t.data.listings[listingID]; ok {
		return ls.total, nil
	}
	return 0, nil
}

func (t *ledgerTx) WorkingSet(ctx context.Context, listingID string) ([]ledger.Address, error) {
	return t.data.workingSet(listingID), nil
}

func (t *ledgerTx) Approval(ctx context.Context, listingID string, buyer ledger.Address) (approval.Approval, error) {
	return t.data.approvals[listingID][buyer], nil
}

func (t *ledgerTx) BuyerStat(ctx context.Context, listingID string, buyer ledger.Address) (ledger.BuyerStat, error) {
	return t.data.stats[listingID][buyer], nil
}

func (t *ledgerTx) FeePool(ctx context.Context) (money.Amount, error) {
	return t.data.feePool, nil
}

func (t *ledgerTx) NativeBalance(ctx context.Context) (money.Amount, error) {
	return t.data.native, nil
}

func (t *ledgerTx) AddCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error {
	return t.data.addCredits(buyer, delta)
}

func (t *ledgerTx) SubCredits(ctx context.Context, buyer ledger.Address, delta money.Amount) error {
	return t.data.subCredits(buyer, delta)
}

func (t *ledgerTx) AddOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error {
	return t.data.addOwed(listingID, buyer, delta)
}

func (t *ledgerTx) SubOwed(ctx context.Context, listingID string, buyer ledger.Address, delta money.Amount) error {
	return t.data.subOwed(listingID, buyer, delta)
}

func (t *ledgerTx) SetApproval(ctx context.Context, listingID string, buyer ledger.Address, a approval.Approval) error {
	t.data.setApproval(listingID, buyer, a)
	return nil
}

func (t *ledgerTx) SetBuyerStat(ctx context.Context, listingID string, buyer ledger.Address, s ledger.BuyerStat) error {
	t.data.setStat(listingID, buyer, s)
	return nil
}

func (t *ledgerTx) AddFeePool(ctx context.Context, delta money.Amount) error {
	sum, err := money.Add(t.data.feePool, delta)
	if err != nil {
		return err
	}
	t.data.feePool = sum
	return nil
}

func (t *ledgerTx) SubFeePool(ctx context.Context, delta money.Amount) error {
	if delta > t.data.feePool {
		return ledger.ErrInsufficientBalance
	}
	t.data.feePool -= delta
	return nil
}

func (t *ledgerTx) AddNative(ctx context.Context, delta money.Amount) error {
	sum, err := money.Add(t.data.native, delta)
	if err != nil {
		return err
	}
	t.data.native = sum
	return nil
}

func (t *ledgerTx) SubNative(ctx context.Context, delta money.Amount) error {
	if delta > t.data.native {
		return ledger.ErrInsufficientBalance
	}
	t.data.native -= delta
	return nil
}

// Commit swaps the mutated copy in as the store's state.
func (t *ledgerTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.owner.data = t.data
	t.owner.mu.Unlock()
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *ledgerTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.owner.mu.Unlock()
	return nil
}

// Ensure interface compliance.
var (
	_ ports.Ledger   = (*Ledger)(nil)
	_ ports.LedgerTx = (*ledgerTx)(nil)
)
