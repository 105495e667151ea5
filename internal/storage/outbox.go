package storage

import (
	"context"
	"fmt"
	"time"
)

// Ledger event types.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

// Outbox statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPublished  = "published"
	StatusFailed     = "failed"
)

// LedgerEvent is one outbox row. Payload is the serialized message.
type LedgerEvent struct {
	ID            int64
	EventID       string
	Type          string
	TransactionID string
	UserID        int64
	ProfileID     int64
	Payload       []byte
	Status        string
	Attempts      int64
	LastError     string
	CreatedAt     time.Time
}

// OutboxStats counts outbox rows per status.
type OutboxStats struct {
	Pending    int64
	Processing int64
	Published  int64
	Failed     int64
}

// AppendEvent writes an outbox row in the same transaction as the mutation.
func (l *LedgerTx) AppendEvent(ctx context.Context, e LedgerEvent, now time.Time) error {
	ts := formatTime(now)
	_, err := l.tx.ExecContext(ctx,
		`INSERT INTO ledger_events
			(event_id, event_type, transaction_id, user_id, profile_id, payload, status, created_at, next_attempt_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		e.EventID, e.Type, e.TransactionID, e.UserID, e.ProfileID, string(e.Payload), ts, ts)
	if err != nil {
		return fmt.Errorf("append ledger event: %w", err)
	}
	return nil
}

// DequeueEvents returns pending events that are due, oldest first.
func (r *SQLiteRepository) DequeueEvents(ctx context.Context, limit int, now time.Time) ([]LedgerEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, transaction_id, user_id, profile_id, payload,
			status, attempts, COALESCE(last_error, ''), created_at
		 FROM ledger_events
		 WHERE status = 'pending' AND next_attempt_at <= ?
		 ORDER BY id
		 LIMIT ?`, formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue ledger events: %w", err)
	}
	defer rows.Close()

	var out []LedgerEvent
	for rows.Next() {
		var (
			e         LedgerEvent
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.Type, &e.TransactionID, &e.UserID, &e.ProfileID,
			&payload, &e.Status, &e.Attempts, &e.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		e.Payload = []byte(payload)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEventProcessing claims a pending event. It reports false when another
// processor claimed it first.
func (r *SQLiteRepository) MarkEventProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'processing' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("mark event processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark event processing: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkEventPublished(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'published', processed_at = ?, last_error = NULL WHERE id = ?`,
		formatTime(now), id)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

// RetryEventLater puts an event back to pending with a delayed next attempt.
func (r *SQLiteRepository) RetryEventLater(ctx context.Context, id int64, lastErr string, next time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events
		 SET status = 'pending', attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		 WHERE id = ?`, lastErr, formatTime(next), id)
	if err != nil {
		return fmt.Errorf("increment event attempt: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkEventFailed(ctx context.Context, id int64, lastErr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events
		 SET status = 'failed', attempts = attempts + 1, last_error = ?, processed_at = ?
		 WHERE id = ?`, lastErr, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("mark event failed: %w", err)
	}
	return nil
}

// ResetStaleEvents returns events stuck in processing, e.g. after a crash, to pending.
func (r *SQLiteRepository) ResetStaleEvents(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'pending' WHERE status = 'processing'`); err != nil {
		return fmt.Errorf("reset stale events: %w", err)
	}
	return nil
}

// CleanupPublishedEvents deletes published events processed before cutoff.
func (r *SQLiteRepository) CleanupPublishedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ledger_events WHERE status = 'published' AND processed_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup published events: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedEvents resets every failed event for another round of attempts.
func (r *SQLiteRepository) RetryFailedEvents(ctx context.Context, now time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE ledger_events SET status = 'pending', attempts = 0, next_attempt_at = ?
		 WHERE status = 'failed'`, formatTime(now)); err != nil {
		return fmt.Errorf("retry failed events: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) OutboxStats(ctx context.Context) (OutboxStats, error) {
	var s OutboxStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'processing'), 0),
			COALESCE(SUM(status = 'published'), 0),
			COALESCE(SUM(status = 'failed'), 0)
		 FROM ledger_events`).Scan(&s.Pending, &s.Processing, &s.Published, &s.Failed)
	if err != nil {
		return OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	return s, nil
}

// RecordReminder stores that a bill reminder was sent. It reports false when
// the same (profile, bill, due date) reminder was already recorded.
func (r *SQLiteRepository) RecordReminder(ctx context.Context, key ProfileKey, billKey string, dueDate string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bill_reminders (user_id, profile_id, bill_key, due_date, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key.UserID, key.ProfileID, billKey, dueDate, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("record reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record reminder: %w", err)
	}
	return n == 1, nil
}

// ForgetReminder removes a recorded reminder so it can be sent again.
func (r *SQLiteRepository) ForgetReminder(ctx context.Context, key ProfileKey, billKey string, dueDate string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM bill_reminders WHERE user_id = ? AND profile_id = ? AND bill_key = ? AND due_date = ?`,
		key.UserID, key.ProfileID, billKey, dueDate); err != nil {
		return fmt.Errorf("forget reminder: %w", err)
	}
	return nil
}
