package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"aarthik/internal/core"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), email, "Test", "USD", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestCreateUserHasDefaultProfile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "a@example.com")

	if u.ActiveProfileID != core.DefaultProfileID {
		t.Errorf("ActiveProfileID = %d, want %d", u.ActiveProfileID, core.DefaultProfileID)
	}
	p, err := repo.GetProfile(ctx, u.ID, core.DefaultProfileID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.Name != core.DefaultProfileName || p.Totals != (core.Totals{}) {
		t.Errorf("default profile = %+v", p)
	}

	if _, err := repo.CreateUser(ctx, "a@example.com", "Again", "USD", testNow); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestCreateProfileAllocatesUniqueIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "a@example.com")

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := repo.CreateProfile(ctx, u.ID, "Side", testNow)
			if err != nil {
				t.Errorf("CreateProfile() error = %v", err)
				return
			}
			ids <- p.ProfileID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if id < 2 || seen[id] {
			t.Errorf("profile id %d duplicated or reused the default id", id)
		}
		seen[id] = true
	}

	profiles, err := repo.ListProfiles(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}
	if len(profiles) != n+1 {
		t.Errorf("ListProfiles() returned %d profiles, want %d", len(profiles), n+1)
	}

	if _, err := repo.CreateProfile(ctx, 999, "Ghost", testNow); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("CreateProfile(unknown user) error = %v, want ErrNotFound", err)
	}
}

func TestSetActiveProfileChecksOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := newTestUser(t, repo, "alice@example.com")
	bob := newTestUser(t, repo, "bob@example.com")
	bobs, err := repo.CreateProfile(ctx, bob.ID, "Business", testNow)
	if err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	if _, err := repo.SetActiveProfile(ctx, alice.ID, bobs.ProfileID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("SetActiveProfile(foreign) error = %v, want ErrNotFound", err)
	}
	u, _ := repo.GetUser(ctx, alice.ID)
	if u.ActiveProfileID != core.DefaultProfileID {
		t.Errorf("active profile changed to %d after a refused switch", u.ActiveProfileID)
	}

	p, err := repo.SetActiveProfile(ctx, bob.ID, bobs.ProfileID)
	if err != nil || p.Name != "Business" {
		t.Fatalf("SetActiveProfile() = %+v, %v", p, err)
	}
}

func TestApplyDeltaRefusesNegativeBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "a@example.com")

	err := repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		_, err := tx.ApplyDelta(ctx, u.ID, 1, 5000, 0, testNow)
		return err
	})
	if err != nil {
		t.Fatalf("ApplyDelta(+income) error = %v", err)
	}

	expense := core.Transaction{
		ID: "tx-1", UserID: u.ID, ProfileID: 1, Type: core.Expense,
		Category: "Food", Amount: core.Money{Cents: 6000}, Timestamp: testNow,
	}
	err = repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		if err := tx.InsertTransaction(ctx, expense, testNow); err != nil {
			return err
		}
		_, err := tx.ApplyDelta(ctx, u.ID, 1, 0, 6000, testNow)
		return err
	})
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("ApplyDelta(overdraw) error = %v, want ErrInsufficientBalance", err)
	}

	p, _ := repo.GetProfile(ctx, u.ID, 1)
	if p.Totals.Balance.Cents != 5000 || p.Totals.Expense.Cents != 0 {
		t.Errorf("totals after refused delta = %+v", p.Totals)
	}
	if _, err := repo.GetTransaction(ctx, u.ID, 1, "tx-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("transaction insert was not rolled back: %v", err)
	}

	err = repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		_, err := tx.ApplyDelta(ctx, u.ID, 42, 100, 0, testNow)
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ApplyDelta(missing profile) error = %v, want ErrNotFound", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "a@example.com")
	weekly := core.Weekly

	txs := []core.Transaction{
		{ID: "a", Type: core.Income, Category: "Salary", Amount: core.Money{Cents: 100000}, Timestamp: testNow.AddDate(0, 0, -20)},
		{ID: "b", Type: core.Expense, Category: "Rent", Amount: core.Money{Cents: 40000}, Timestamp: testNow.AddDate(0, 0, -10)},
		{ID: "c", Type: core.Expense, Category: "Internet", Amount: core.Money{Cents: 3000}, Timestamp: testNow.AddDate(0, 0, -2), Recurrence: &weekly},
	}
	err := repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		for _, txn := range txs {
			txn.UserID, txn.ProfileID = u.ID, 1
			if err := tx.InsertTransaction(ctx, txn, testNow); err != nil {
				return err
			}
			income, expense := txn.Contribution()
			if _, err := tx.ApplyDelta(ctx, u.ID, 1, income, expense, testNow); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}

	tests := []struct {
		name string
		q    TransactionQuery
		want []string
	}{
		{"all oldest first", TransactionQuery{}, []string{"a", "b", "c"}},
		{"newest first limited", TransactionQuery{NewestFirst: true, Limit: 2}, []string{"c", "b"}},
		{"expenses only", TransactionQuery{Type: core.Expense}, []string{"b", "c"}},
		{"time window", TransactionQuery{From: testNow.AddDate(0, 0, -15), To: testNow}, []string{"b", "c"}},
		{"recurring only", TransactionQuery{RecurringOnly: true}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.UserID, tt.q.ProfileID = u.ID, 1
			got, err := repo.ListTransactions(ctx, tt.q)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListTransactions() returned %d rows, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("row %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := repo.ListTransactions(ctx, TransactionQuery{UserID: u.ID, ProfileID: 1, RecurringOnly: true})
	if got[0].Recurrence == nil || *got[0].Recurrence != core.Weekly {
		t.Errorf("recurrence not round-tripped: %+v", got[0])
	}

	var sum core.Totals
	_ = repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		sum, err = tx.SumLedger(ctx, u.ID, 1)
		return err
	})
	p, _ := repo.GetProfile(ctx, u.ID, 1)
	if sum != p.Totals {
		t.Errorf("SumLedger() = %+v, cached = %+v", sum, p.Totals)
	}
	if p.Version != int64(len(txs)) {
		t.Errorf("Version = %d, want %d", p.Version, len(txs))
	}

	keys, err := repo.ListProfilesWithRecurring(ctx)
	if err != nil || len(keys) != 1 || keys[0] != (ProfileKey{UserID: u.ID, ProfileID: 1}) {
		t.Errorf("ListProfilesWithRecurring() = %v, %v", keys, err)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "a@example.com")

	err := repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
		return tx.AppendEvent(ctx, LedgerEvent{
			EventID: "evt-1", Type: EventTransactionCreated, TransactionID: "tx-1",
			UserID: u.ID, ProfileID: 1, Payload: []byte(`{}`),
		}, testNow)
	})
	if err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	events, err := repo.DequeueEvents(ctx, 10, testNow)
	if err != nil || len(events) != 1 {
		t.Fatalf("DequeueEvents() = %v, %v", events, err)
	}
	id := events[0].ID

	claimed, err := repo.MarkEventProcessing(ctx, id)
	if err != nil || !claimed {
		t.Fatalf("MarkEventProcessing() = %v, %v", claimed, err)
	}
	if claimed, _ := repo.MarkEventProcessing(ctx, id); claimed {
		t.Error("second claim should fail")
	}

	if err := repo.RetryEventLater(ctx, id, "broker down", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("RetryEventLater() error = %v", err)
	}
	if events, _ := repo.DequeueEvents(ctx, 10, testNow); len(events) != 0 {
		t.Errorf("event should not be due before its next attempt, got %d", len(events))
	}
	events, _ = repo.DequeueEvents(ctx, 10, testNow.Add(2*time.Minute))
	if len(events) != 1 || events[0].Attempts != 1 || events[0].LastError != "broker down" {
		t.Fatalf("retried event = %+v", events)
	}

	if err := repo.MarkEventPublished(ctx, id, testNow); err != nil {
		t.Fatalf("MarkEventPublished() error = %v", err)
	}
	stats, err := repo.OutboxStats(ctx)
	if err != nil || stats.Published != 1 || stats.Pending != 0 {
		t.Errorf("OutboxStats() = %+v, %v", stats, err)
	}
	n, err := repo.CleanupPublishedEvents(ctx, testNow.Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("CleanupPublishedEvents() = %d, %v", n, err)
	}
}

func TestRecordReminderDedupes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	key := ProfileKey{UserID: 1, ProfileID: 1}

	first, err := repo.RecordReminder(ctx, key, "internet|fibre|weekly", "2025-03-16", testNow)
	if err != nil || !first {
		t.Fatalf("RecordReminder() = %v, %v", first, err)
	}
	again, err := repo.RecordReminder(ctx, key, "internet|fibre|weekly", "2025-03-16", testNow)
	if err != nil || again {
		t.Fatalf("RecordReminder(again) = %v, %v; want false", again, err)
	}
	if err := repo.ForgetReminder(ctx, key, "internet|fibre|weekly", "2025-03-16"); err != nil {
		t.Fatalf("ForgetReminder() error = %v", err)
	}
	if ok, _ := repo.RecordReminder(ctx, key, "internet|fibre|weekly", "2025-03-16", testNow); !ok {
		t.Error("reminder should be recordable after ForgetReminder")
	}
}

func TestApplyDeltaCapsTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	u := newTestUser(t, repo, "cap@example.com")

	apply := func(income int64) error {
		return repo.WithLedgerTx(ctx, func(tx *LedgerTx) error {
			_, err := tx.ApplyDelta(ctx, u.ID, 1, income, 0, testNow)
			return err
		})
	}

	if err := apply(maxTotalCents); err != nil {
		t.Fatalf("ApplyDelta(cap) error = %v", err)
	}
	if err := apply(1); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("ApplyDelta(past cap) error = %v, want ErrInvalidAmount", err)
	}

	p, err := repo.GetProfile(ctx, u.ID, 1)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.Totals.Income.Cents != maxTotalCents || p.Version != 1 {
		t.Errorf("profile after refused delta = %+v, version %d", p.Totals, p.Version)
	}
}
