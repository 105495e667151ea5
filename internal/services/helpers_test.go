package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"aarthik/internal/core"
	"aarthik/internal/storage"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestIdentity(t *testing.T, store *storage.SQLiteRepository, email string) Identity {
	t.Helper()
	u, err := store.CreateUser(context.Background(), email, "Test", "USD", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return Identity{UserID: u.ID, ProfileID: u.ActiveProfileID}
}

func dollars(n int64) core.Money {
	return core.Money{Cents: n * 100}
}

func recurrence(r core.Recurrence) *core.Recurrence {
	return &r
}

func totals(income, expense int64) core.Totals {
	return core.Totals{
		Income:  dollars(income),
		Expense: dollars(expense),
		Balance: dollars(income - expense),
	}
}

func mustProfile(t *testing.T, store *storage.SQLiteRepository, id Identity) core.Profile {
	t.Helper()
	p, err := store.GetProfile(context.Background(), id.UserID, id.ProfileID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	return p
}
