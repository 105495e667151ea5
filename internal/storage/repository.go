package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"aarthik/internal/core"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so string order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database, applies migrations and returns a repository.
//
// Write transactions begin IMMEDIATE so concurrent writers queue on the
// database lock instead of failing on upgrade.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations first so the main pool never sees a partial schema
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (core.User, error) {
	var (
		u         core.User
		currency  string
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &currency, &u.ActiveProfileID, &createdAt); err != nil {
		return core.User{}, err
	}
	u.Currency = core.Currency(currency)
	t, err := parseTime(createdAt)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

const userColumns = `user_id, email, name, currency, active_profile_id, created_at`

func scanProfile(row scanner) (core.Profile, error) {
	var (
		p                    core.Profile
		createdAt, updatedAt string
	)
	err := row.Scan(&p.UserID, &p.ProfileID, &p.Name,
		&p.Totals.Income.Cents, &p.Totals.Expense.Cents, &p.Totals.Balance.Cents,
		&p.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Profile{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

const profileColumns = `user_id, profile_id, name,
	total_income_cents, total_expense_cents, total_balance_cents,
	version, created_at, updated_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		typ        string
		occurredAt string
		recurrence sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.ProfileID, &typ, &t.Category, &t.Description,
		&t.Amount.Cents, &occurredAt, &recurrence)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	if t.Timestamp, err = parseTime(occurredAt); err != nil {
		return core.Transaction{}, err
	}
	if recurrence.Valid {
		r := core.Recurrence(recurrence.String)
		t.Recurrence = &r
	}
	return t, nil
}

const transactionColumns = `transaction_id, user_id, profile_id, type, category, description,
	amount_cents, occurred_at, recurrence`

func nullRecurrence(r *core.Recurrence) sql.NullString {
	if r == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*r), Valid: true}
}

// notFound maps sql.ErrNoRows to core.ErrNotFound with context.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
