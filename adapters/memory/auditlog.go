package memory

import (
	"context"
	"sync"

	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/ports"
)

// AuditLog is an in-memory append-only audit log.
type AuditLog struct {
	mu      sync.RWMutex
	records []event.Record
}

// NewAuditLog creates a new in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append stores a record.
func (l *AuditLog) Append(ctx context.Context, rec event.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// Recent returns up to limit records, newest first.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]event.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]event.Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// ByType returns all records of one type, oldest first (for tests).
func (l *AuditLog) ByType(typ event.Type) []event.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []event.Record
	for _, r := range l.records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// Ensure interface compliance.
var _ ports.AuditLog = (*AuditLog)(nil)
