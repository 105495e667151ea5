package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aarthik/internal/amqp"
	"aarthik/internal/cache"
	"aarthik/internal/core"
	applog "aarthik/internal/log"
	"aarthik/internal/sheets"
	"aarthik/internal/storage"
)

// seenTTL bounds how long a handled event id is remembered. Redeliveries
// older than that still converge because mirrors ignore stale versions.
const seenTTL = 24 * time.Hour

// MirrorWorker applies ledger events to a ledger mirror.
type MirrorWorker struct {
	storage *storage.SQLiteRepository
	mirror  sheets.LedgerMirror
	seen    *cache.LRUCache[struct{}]
}

func NewMirrorWorker(storage *storage.SQLiteRepository, mirror sheets.LedgerMirror, seenSize int) *MirrorWorker {
	return &MirrorWorker{
		storage: storage,
		mirror:  mirror,
		seen:    cache.NewLRUCache[struct{}](seenSize, seenTTL),
	}
}

// HandleLedgerEvent mirrors one ledger event. Duplicate deliveries of the
// same event are acknowledged without touching the mirror.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	if _, dup := w.seen.Get(msg.EventID); dup {
		slog.DebugContext(ctx, "Skipping duplicate ledger event", applog.FieldEventID, msg.EventID)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldEventID, msg.EventID,
		applog.FieldType, msg.Type,
		applog.FieldTransactionID, msg.Transaction.ID,
		applog.FieldVersion, msg.Version)

	row := RowFromEvent(msg)
	var err error
	switch msg.Type {
	case storage.EventTransactionCreated, storage.EventTransactionUpdated:
		err = w.mirror.Upsert(ctx, row)
	case storage.EventTransactionDeleted:
		err = w.mirror.Delete(ctx, row)
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event type",
			applog.FieldEventID, msg.EventID,
			applog.FieldType, msg.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mirror %s: %w", msg.Type, err)
	}

	w.seen.Set(msg.EventID, struct{}{})
	return nil
}

// Backfill writes every live transaction to the mirror at the current
// profile version. It recovers a mirror that missed events while the
// worker was down.
func (w *MirrorWorker) Backfill(ctx context.Context) error {
	if w.storage == nil {
		return fmt.Errorf("backfill requires storage")
	}
	keys, err := w.storage.ListProfileKeys(ctx)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	synced, failed := 0, 0
	for _, k := range keys {
		p, err := w.storage.GetProfile(ctx, k.UserID, k.ProfileID)
		if err != nil {
			return fmt.Errorf("backfill profile %d/%d: %w", k.UserID, k.ProfileID, err)
		}
		txs, err := w.storage.ListTransactions(ctx, storage.TransactionQuery{UserID: k.UserID, ProfileID: k.ProfileID})
		if err != nil {
			return fmt.Errorf("backfill profile %d/%d: %w", k.UserID, k.ProfileID, err)
		}
		for _, t := range txs {
			if err := w.mirror.Upsert(ctx, RowFromTransaction(t, p.Version)); err != nil {
				slog.ErrorContext(ctx, "Failed to backfill transaction",
					"transaction_id", t.ID,
					"error", err)
				failed++
				continue
			}
			synced++
		}
	}

	slog.InfoContext(ctx, "Mirror backfill completed",
		"profiles", len(keys),
		"synced", synced,
		"errors", failed)
	return nil
}

// RowFromEvent converts the transaction carried by a ledger event to a mirror row.
func RowFromEvent(msg *amqp.LedgerEventMessage) sheets.Row {
	t := msg.Transaction
	return sheets.Row{
		TransactionID: t.ID,
		UserID:        msg.UserID,
		ProfileID:     msg.ProfileID,
		Timestamp:     t.Timestamp,
		Type:          core.TransactionType(t.Type),
		Category:      t.Category,
		Description:   t.Description,
		Amount:        t.Amount,
		Recurrence:    t.Recurrence,
		Version:       msg.Version,
	}
}

// RowFromTransaction converts a stored transaction to a mirror row.
func RowFromTransaction(t core.Transaction, version int64) sheets.Row {
	row := sheets.Row{
		TransactionID: t.ID,
		UserID:        t.UserID,
		ProfileID:     t.ProfileID,
		Timestamp:     t.Timestamp,
		Type:          t.Type,
		Category:      t.Category,
		Description:   t.Description,
		Amount:        t.Amount,
		Version:       version,
	}
	if t.Recurrence != nil {
		row.Recurrence = string(*t.Recurrence)
	}
	return row
}
