package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/money"
	"github.com/meterpay/meterpay/ports"
)

// Transfer is one recorded outbound value transfer.
type Transfer struct {
	To     ledger.Address
	Amount money.Amount
}

// ValueTransfer records outbound native-value transfers in memory.
// It can be told to fail, which tests use to verify that settlements
// roll back when the payout leg fails.
type ValueTransfer struct {
	mu    sync.Mutex
	sent  []Transfer
	fail  bool
	total map[ledger.Address]money.Amount
}

// ErrTransferFailed is returned when the transfer has been forced to fail.
var ErrTransferFailed = errors.New("value transfer failed")

// NewValueTransfer creates a recording value-transfer adapter.
func NewValueTransfer() *ValueTransfer {
	return &ValueTransfer{
		total: make(map[ledger.Address]money.Amount),
	}
}

// Send records the transfer, or fails if failure mode is enabled.
func (v *ValueTransfer) Send(ctx context.Context, to ledger.Address, amount money.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.fail {
		return ErrTransferFailed
	}
	v.sent = append(v.sent, Transfer{To: to, Amount: amount})
	v.total[to] += amount
	return nil
}

// SetFail toggles failure mode.
func (v *ValueTransfer) SetFail(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fail = fail
}

// Sent returns a copy of all recorded transfers in order.
func (v *ValueTransfer) Sent() []Transfer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Transfer(nil), v.sent...)
}

// TotalTo returns the total amount sent to an address.
func (v *ValueTransfer) TotalTo(addr ledger.Address) money.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total[addr]
}

// Ensure interface compliance.
var _ ports.ValueTransfer = (*ValueTransfer)(nil)
