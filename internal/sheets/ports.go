package sheets

import (
	"context"
	"time"

	"aarthik/internal/core"
)

// Row is one ledger transaction as mirrored to a spreadsheet. Version is the
// profile version the row was written at; mirrors ignore stale writes.
type Row struct {
	TransactionID string
	UserID        int64
	ProfileID     int64
	Timestamp     time.Time
	Type          core.TransactionType
	Category      string
	Description   string
	Amount        core.Money
	Recurrence    string
	Version       int64
}

// Ports for outbound adapters.
type (
	// LedgerMirror keeps a read-only copy of the ledger outside the database.
	LedgerMirror interface {
		// Upsert writes the row unless a newer version is already mirrored.
		Upsert(ctx context.Context, row Row) error
		// Delete removes the row. Removing a missing row is not an error.
		Delete(ctx context.Context, row Row) error
	}
)
