package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"aarthik/internal/core"
)

// LedgerTx exposes the primitives a ledger mutation needs inside one
// IMMEDIATE transaction. It is only valid inside WithLedgerTx.
type LedgerTx struct {
	tx *sql.Tx
}

// WithLedgerTx runs fn in a single write transaction. Any error rolls back
// every write fn made, including aggregate deltas and outbox events.
func (r *SQLiteRepository) WithLedgerTx(ctx context.Context, fn func(*LedgerTx) error) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&LedgerTx{tx: tx})
	})
}

func (l *LedgerTx) Profile(ctx context.Context, userID, profileID int64) (core.Profile, error) {
	p, err := scanProfile(l.tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ? AND profile_id = ?`,
		userID, profileID))
	if err != nil {
		return core.Profile{}, notFound(err, "profile")
	}
	return p, nil
}

// Transaction fetches a transaction scoped to its owning profile.
func (l *LedgerTx) Transaction(ctx context.Context, userID, profileID int64, id string) (core.Transaction, error) {
	t, err := scanTransaction(l.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE transaction_id = ? AND user_id = ? AND profile_id = ?`,
		id, userID, profileID))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

// FindTransaction fetches a transaction by id regardless of owner.
// Only used to detect replayed ids.
func (l *LedgerTx) FindTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(l.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

func (l *LedgerTx) InsertTransaction(ctx context.Context, t core.Transaction, now time.Time) error {
	ts := formatTime(now)
	_, err := l.tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ProfileID, string(t.Type), t.Category, t.Description,
		t.Amount.Cents, formatTime(t.Timestamp), nullRecurrence(t.Recurrence), ts, ts)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites the editable fields of a transaction.
func (l *LedgerTx) UpdateTransaction(ctx context.Context, t core.Transaction, now time.Time) error {
	res, err := l.tx.ExecContext(ctx,
		`UPDATE transactions
		 SET category = ?, description = ?, amount_cents = ?, recurrence = ?, updated_at = ?
		 WHERE transaction_id = ? AND user_id = ? AND profile_id = ?`,
		t.Category, t.Description, t.Amount.Cents, nullRecurrence(t.Recurrence), formatTime(now),
		t.ID, t.UserID, t.ProfileID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction: %w", core.ErrNotFound)
	}
	return nil
}

func (l *LedgerTx) DeleteTransaction(ctx context.Context, userID, profileID int64, id string) error {
	res, err := l.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE transaction_id = ? AND user_id = ? AND profile_id = ?`,
		id, userID, profileID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction: %w", core.ErrNotFound)
	}
	return nil
}

// ApplyDelta adds signed income and expense deltas to the profile aggregates
// in one conditional statement and bumps the profile version.
//
// When the balance would go negative the row is left untouched and
// core.ErrInsufficientBalance is returned. Totals are capped at
// maxTotalCents; a delta past the cap fails with core.ErrInvalidAmount.
func (l *LedgerTx) ApplyDelta(ctx context.Context, userID, profileID, incomeDelta, expenseDelta int64, now time.Time) (core.Profile, error) {
	balanceDelta := incomeDelta - expenseDelta
	p, err := scanProfile(l.tx.QueryRowContext(ctx,
		`UPDATE profiles SET
			total_income_cents  = total_income_cents + ?,
			total_expense_cents = total_expense_cents + ?,
			total_balance_cents = total_balance_cents + ?,
			version = version + 1,
			updated_at = ?
		 WHERE user_id = ? AND profile_id = ?
		   AND (? >= 0 OR total_balance_cents + ? >= 0)
		   AND total_income_cents + ? <= ?
		   AND total_expense_cents + ? <= ?
		 RETURNING `+profileColumns,
		incomeDelta, expenseDelta, balanceDelta, formatTime(now),
		userID, profileID, balanceDelta, balanceDelta,
		incomeDelta, int64(maxTotalCents), expenseDelta, int64(maxTotalCents)))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, fmt.Errorf("apply delta: %w", err)
	}

	var income, expense int64
	err = l.tx.QueryRowContext(ctx,
		`SELECT total_income_cents, total_expense_cents FROM profiles WHERE user_id = ? AND profile_id = ?`,
		userID, profileID).Scan(&income, &expense)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, fmt.Errorf("profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("check profile: %w", err)
	}
	if income > maxTotalCents-incomeDelta || expense > maxTotalCents-expenseDelta {
		return core.Profile{}, fmt.Errorf("%w: profile totals limit reached", core.ErrInvalidAmount)
	}
	return core.Profile{}, core.ErrInsufficientBalance
}

// Ceiling for each aggregate. Any single delta is bounded by core.MaxCents,
// so adding one to a capped total stays inside int64.
const maxTotalCents = 1 << 62

// SumLedger recomputes the aggregates of a profile from its live transactions.
func (l *LedgerTx) SumLedger(ctx context.Context, userID, profileID int64) (core.Totals, error) {
	var income, expense int64
	err := l.tx.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		 FROM transactions WHERE user_id = ? AND profile_id = ?`,
		userID, profileID).Scan(&income, &expense)
	if err != nil {
		return core.Totals{}, fmt.Errorf("sum ledger: %w", err)
	}
	return core.Totals{}.Apply(income, expense), nil
}

// OverwriteTotals replaces the cached aggregates of a profile.
func (l *LedgerTx) OverwriteTotals(ctx context.Context, userID, profileID int64, totals core.Totals, now time.Time) error {
	res, err := l.tx.ExecContext(ctx,
		`UPDATE profiles SET
			total_income_cents = ?, total_expense_cents = ?, total_balance_cents = ?,
			version = version + 1, updated_at = ?
		 WHERE user_id = ? AND profile_id = ?`,
		totals.Income.Cents, totals.Expense.Cents, totals.Balance.Cents, formatTime(now),
		userID, profileID)
	if err != nil {
		return fmt.Errorf("overwrite totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile: %w", core.ErrNotFound)
	}
	return nil
}

// TransactionQuery filters ListTransactions. Zero values disable a filter.
type TransactionQuery struct {
	UserID        int64
	ProfileID     int64
	Type          core.TransactionType
	From          time.Time // inclusive
	To            time.Time // exclusive
	RecurringOnly bool
	Limit         int
	NewestFirst   bool
}

// ListTransactions runs a secondary lookup by (user, profile, type, time range).
func (r *SQLiteRepository) ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?", "profile_id = ?"}
		args  = []any{q.UserID, q.ProfileID}
	)
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	if !q.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, formatTime(q.To))
	}
	if q.RecurringOnly {
		where = append(where, "recurrence IS NOT NULL")
	}

	order := "ASC"
	if q.NewestFirst {
		order = "DESC"
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY occurred_at ` + order + `, transaction_id ` + order
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction fetches a transaction scoped to its owning profile.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, profileID int64, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE transaction_id = ? AND user_id = ? AND profile_id = ?`,
		id, userID, profileID))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}
