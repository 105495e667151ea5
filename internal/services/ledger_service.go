package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"aarthik/internal/amqp"
	"aarthik/internal/core"
	applog "aarthik/internal/log"
	"aarthik/internal/storage"
)

// DefaultRecentLimit is the number of transactions RecentTransactions returns by default.
const DefaultRecentLimit = 5

// ErrTransactionIDConflict is returned when a caller-supplied transaction id
// already belongs to a different transaction.
var ErrTransactionIDConflict = fmt.Errorf("%w: transaction id already in use", core.ErrInvalidArgument)

// Identity is the caller: a user acting on one of their profiles.
type Identity struct {
	UserID    int64
	ProfileID int64
}

// NewTransaction is the input of AddIncome and AddExpense.
type NewTransaction struct {
	// ID is an optional caller-chosen UUID. Replaying the same ID returns the
	// stored transaction without applying the amount twice.
	ID          string
	Category    string
	Description string
	Amount      core.Money
	Timestamp   time.Time // zero means now
	Recurrence  *core.Recurrence
}

// TransactionEdit replaces the editable fields of a transaction.
type TransactionEdit struct {
	Amount      core.Money
	Description string
	Category    string
	// Recurring nil keeps the current recurrence, false clears it and true
	// sets Recurrence (or keeps the current one when Recurrence is nil).
	Recurring  *bool
	Recurrence *core.Recurrence
}

// ListQuery filters ListTransactions.
type ListQuery struct {
	Type  core.TransactionType // empty means both
	Days  int                  // 0 means all time
	Limit int                  // 0 means no limit
}

// ReconcileReport describes a recomputation of profile aggregates.
type ReconcileReport struct {
	Before core.Totals `json:"before"`
	After  core.Totals `json:"after"`
	Drift  bool        `json:"drift"`
}

// LedgerService is the only writer of transactions and profile aggregates.
// Every mutation runs in one SQLite transaction together with its aggregate
// delta and outbox event.
type LedgerService struct {
	store *storage.SQLiteRepository
	locks *profileLocks
	now   func() time.Time
}

func NewLedgerService(store *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{
		store: store,
		locks: newProfileLocks(),
		now:   time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// AddIncome records an income and adds it to the income and balance totals.
func (s *LedgerService) AddIncome(ctx context.Context, id Identity, in NewTransaction) (core.Transaction, error) {
	t, err := s.add(ctx, id, core.Income, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add income: %w", err)
	}
	return t, nil
}

// AddExpense records an expense. It fails with core.ErrInsufficientBalance,
// writing nothing, when the amount exceeds the current balance.
func (s *LedgerService) AddExpense(ctx context.Context, id Identity, in NewTransaction) (core.Transaction, error) {
	t, err := s.add(ctx, id, core.Expense, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add expense: %w", err)
	}
	return t, nil
}

func (s *LedgerService) add(ctx context.Context, id Identity, typ core.TransactionType, in NewTransaction) (core.Transaction, error) {
	now := s.now().UTC()
	t := core.Transaction{
		ID:          strings.TrimSpace(in.ID),
		UserID:      id.UserID,
		ProfileID:   id.ProfileID,
		Type:        typ,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Timestamp:   in.Timestamp.UTC(),
		Recurrence:  in.Recurrence,
	}
	if in.Timestamp.IsZero() {
		t.Timestamp = now
	}
	replayable := t.ID != ""
	if replayable {
		if _, err := uuid.Parse(t.ID); err != nil {
			return core.Transaction{}, fmt.Errorf("%w: transaction id must be a UUID", core.ErrInvalidArgument)
		}
	} else {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	var (
		out    core.Transaction
		replay bool
	)
	err := s.store.WithLedgerTx(ctx, func(tx *storage.LedgerTx) error {
		if replayable {
			existing, err := tx.FindTransaction(ctx, t.ID)
			switch {
			case err == nil:
				if existing.UserID != id.UserID || existing.ProfileID != id.ProfileID || existing.Type != typ {
					return ErrTransactionIDConflict
				}
				out, replay = existing, true
				return nil
			case !errors.Is(err, core.ErrNotFound):
				return err
			}
		}

		income, expense := t.Contribution()
		p, err := tx.ApplyDelta(ctx, id.UserID, id.ProfileID, income, expense, now)
		if err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t, now); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, storage.EventTransactionCreated, t, p, now); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	if replay {
		slog.InfoContext(ctx, "Transaction replay ignored", txFields(applog.OpCreate, id, out)...)
		return out, nil
	}

	slog.InfoContext(ctx, "Transaction added", txFields(applog.OpCreate, id, out)...)
	return out, nil
}

func txFields(op string, id Identity, t core.Transaction) []any {
	return applog.NewFields().
		WithOperation(op).
		WithIdentity(id.UserID, id.ProfileID).
		WithTransaction(t.ID, string(t.Type), t.Category, t.Amount.Cents).
		ToSlice()
}

// EditTransaction updates a transaction of the caller's profile and applies
// the amount difference to the aggregates. A change that would leave the
// balance negative fails with core.ErrInsufficientBalance and changes nothing.
func (s *LedgerService) EditTransaction(ctx context.Context, id Identity, transactionID string, edit TransactionEdit) (core.Transaction, error) {
	if err := edit.Amount.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("edit transaction: %w", err)
	}
	now := s.now().UTC()

	unlock := s.locks.lock(id)
	defer unlock()

	var updated core.Transaction
	err := s.store.WithLedgerTx(ctx, func(tx *storage.LedgerTx) error {
		old, err := tx.Transaction(ctx, id.UserID, id.ProfileID, transactionID)
		if err != nil {
			return err
		}

		updated = old
		updated.Amount = edit.Amount
		updated.Category = strings.TrimSpace(edit.Category)
		updated.Description = strings.TrimSpace(edit.Description)
		if err := applyRecurrenceEdit(&updated, edit); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return err
		}

		delta := updated.Amount.Cents - old.Amount.Cents
		var incomeDelta, expenseDelta int64
		if old.Type == core.Income {
			incomeDelta = delta
		} else {
			expenseDelta = delta
		}
		p, err := tx.ApplyDelta(ctx, id.UserID, id.ProfileID, incomeDelta, expenseDelta, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, updated, now); err != nil {
			return err
		}
		return appendEvent(ctx, tx, storage.EventTransactionUpdated, updated, p, now)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("edit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", txFields(applog.OpUpdate, id, updated)...)
	return updated, nil
}

func applyRecurrenceEdit(t *core.Transaction, edit TransactionEdit) error {
	switch {
	case edit.Recurring == nil:
		if edit.Recurrence != nil {
			t.Recurrence = edit.Recurrence
		}
	case !*edit.Recurring:
		t.Recurrence = nil
	case edit.Recurrence != nil:
		t.Recurrence = edit.Recurrence
	case t.Recurrence == nil:
		return core.ErrInvalidRecurrence
	}
	return nil
}

// DeleteTransaction removes a transaction of the caller's profile and
// reverses its contribution to the aggregates.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id Identity, transactionID string) error {
	now := s.now().UTC()

	unlock := s.locks.lock(id)
	defer unlock()

	var removed core.Transaction
	err := s.store.WithLedgerTx(ctx, func(tx *storage.LedgerTx) error {
		old, err := tx.Transaction(ctx, id.UserID, id.ProfileID, transactionID)
		if err != nil {
			return err
		}
		income, expense := old.Contribution()
		p, err := tx.ApplyDelta(ctx, id.UserID, id.ProfileID, -income, -expense, now)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, id.UserID, id.ProfileID, transactionID); err != nil {
			return err
		}
		removed = old
		return appendEvent(ctx, tx, storage.EventTransactionDeleted, old, p, now)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", txFields(applog.OpDelete, id, removed)...)
	return nil
}

// Reconcile recomputes the profile aggregates from the live ledger and
// overwrites the cached values when they drifted.
func (s *LedgerService) Reconcile(ctx context.Context, id Identity) (ReconcileReport, error) {
	now := s.now().UTC()

	unlock := s.locks.lock(id)
	defer unlock()

	var report ReconcileReport
	err := s.store.WithLedgerTx(ctx, func(tx *storage.LedgerTx) error {
		p, err := tx.Profile(ctx, id.UserID, id.ProfileID)
		if err != nil {
			return err
		}
		sum, err := tx.SumLedger(ctx, id.UserID, id.ProfileID)
		if err != nil {
			return err
		}
		report = ReconcileReport{Before: p.Totals, After: sum, Drift: sum != p.Totals}
		if !report.Drift {
			return nil
		}
		return tx.OverwriteTotals(ctx, id.UserID, id.ProfileID, sum, now)
	})
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("reconcile profile: %w", err)
	}

	if report.Drift {
		fields := applog.NewFields().WithOperation(applog.OpReconcile).WithIdentity(id.UserID, id.ProfileID)
		slog.WarnContext(ctx, "Aggregate drift corrected", append(fields.ToSlice(),
			"cached_balance_cents", report.Before.Balance.Cents,
			"ledger_balance_cents", report.After.Balance.Cents)...)
	}
	return report, nil
}

// RecentTransactions returns the newest transactions of the profile.
func (s *LedgerService) RecentTransactions(ctx context.Context, id Identity, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.ListTransactions(ctx, id, ListQuery{Limit: limit})
}

// ListTransactions returns transactions of the profile newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, id Identity, q ListQuery) ([]core.Transaction, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	if q.Days < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("%w: negative window or limit", core.ErrInvalidArgument)
	}
	if _, err := s.store.GetProfile(ctx, id.UserID, id.ProfileID); err != nil {
		return nil, err
	}

	query := storage.TransactionQuery{
		UserID:      id.UserID,
		ProfileID:   id.ProfileID,
		Type:        q.Type,
		Limit:       q.Limit,
		NewestFirst: true,
	}
	if q.Days > 0 {
		query.From = core.StartOfDay(s.now()).AddDate(0, 0, -q.Days)
	}
	txs, err := s.store.ListTransactions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func appendEvent(ctx context.Context, tx *storage.LedgerTx, eventType string, t core.Transaction, p core.Profile, now time.Time) error {
	eventID := uuid.NewString()
	body, err := amqp.NewLedgerEventMessage(eventID, eventType, t, p, now).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	return tx.AppendEvent(ctx, storage.LedgerEvent{
		EventID:       eventID,
		Type:          eventType,
		TransactionID: t.ID,
		UserID:        p.UserID,
		ProfileID:     p.ProfileID,
		Payload:       body,
	}, now)
}
