package memory

import (
	"context"
	"testing"
	"time"

	"aarthik/internal/core"
	"aarthik/internal/sheets"
)

func row(id string, version int64, cents int64) sheets.Row {
	return sheets.Row{
		TransactionID: id,
		UserID:        1,
		ProfileID:     1,
		Timestamp:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Type:          core.Expense,
		Category:      "Food",
		Amount:        core.Money{Cents: cents},
		Version:       version,
	}
}

func TestMemoryStoreUpsertKeepsNewest(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Upsert(ctx, row("a", 2, 500)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// stale redelivery
	if err := s.Upsert(ctx, row("a", 1, 100)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, ok := s.Get("a")
	if !ok || got.Amount.Cents != 500 {
		t.Fatalf("Get() = %+v, %v, want version 2", got, ok)
	}

	if err := s.Upsert(ctx, row("a", 3, 700)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got, _ := s.Get("a"); got.Amount.Cents != 700 {
		t.Errorf("Amount = %d, want 700", got.Amount.Cents)
	}
}

func TestMemoryStoreDeleteIsFinal(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Upsert(ctx, row("a", 1, 100)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.Delete(ctx, row("a", 2, 100)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Upsert(ctx, row("a", 1, 100)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("late upsert resurrected a deleted row")
	}
	if err := s.Delete(ctx, row("missing", 1, 1)); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestMemoryStoreRowsByProfile(t *testing.T) {
	s := New()
	ctx := context.Background()

	late := row("b", 1, 1)
	late.Timestamp = late.Timestamp.Add(time.Hour)
	other := row("c", 1, 1)
	other.ProfileID = 2

	for _, r := range []sheets.Row{late, row("a", 1, 1), other} {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	rows := s.Rows(1, 1)
	if len(rows) != 2 || rows[0].TransactionID != "a" || rows[1].TransactionID != "b" {
		t.Errorf("Rows() = %+v", rows)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}
