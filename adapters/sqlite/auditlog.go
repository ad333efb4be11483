package sqlite

import (
	"context"
	"time"

	"github.com/meterpay/meterpay/domain/event"
	"github.com/meterpay/meterpay/ports"
)

// AuditLog implements ports.AuditLog using SQLite.
type AuditLog struct {
	db *DB
}

// NewAuditLog creates a new SQLite audit log.
func NewAuditLog(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

// Append stores a record.
func (l *AuditLog) Append(ctx context.Context, rec event.Record) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, type, ts, listing_id, buyer, seller, caller,
			num_calls, amount, fee, reward, overdrafted, exceeded, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Type), rec.Timestamp.Unix(), rec.ListingID,
		string(rec.Buyer), string(rec.Seller), string(rec.Caller),
		rec.NumCalls, formatAmount(rec.Amount), formatAmount(rec.Fee), formatAmount(rec.Reward),
		rec.Overdrafted, rec.ExceededApproval, rec.Note)
	return err
}

// Recent returns up to limit records, newest first.
func (l *AuditLog) Recent(ctx context.Context, limit int) ([]event.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, ts, listing_id, buyer, seller, caller,
			num_calls, amount, fee, reward, overdrafted, exceeded, note
		FROM audit_log ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Record
	for rows.Next() {
		var (
			rec       event.Record
			typ       string
			ts        int64
			amountStr string
			feeStr    string
			rewardStr string
		)
		if err := rows.Scan(&rec.ID, &typ, &ts, &rec.ListingID,
			(*string)(&rec.Buyer), (*string)(&rec.Seller), (*string)(&rec.Caller),
			&rec.NumCalls, &amountStr, &feeStr, &rewardStr,
			&rec.Overdrafted, &rec.ExceededApproval, &rec.Note); err != nil {
			return nil, err
		}
		rec.Type = event.Type(typ)
		rec.Timestamp = time.Unix(ts, 0).UTC()
		if rec.Amount, err = parseAmount(amountStr); err != nil {
			return nil, err
		}
		if rec.Fee, err = parseAmount(feeStr); err != nil {
			return nil, err
		}
		if rec.Reward, err = parseAmount(rewardStr); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.AuditLog = (*AuditLog)(nil)
