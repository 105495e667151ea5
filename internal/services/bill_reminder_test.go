package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"aarthik/internal/amqp"
	"aarthik/internal/core"
)

type fakeReminderPublisher struct {
	mu    sync.Mutex
	err   error
	sent  []*amqp.BillReminderMessage
	queue string
}

func (f *fakeReminderPublisher) PublishBillReminder(_ context.Context, queue string, msg *amqp.BillReminderMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.queue = queue
	f.sent = append(f.sent, msg)
	return nil
}

func TestReminderProcessor_SendsOncePerDueDate(t *testing.T) {
	store := newTestStore(t)
	id := newTestIdentity(t, store, "bills@example.com")
	ledger := NewLedgerService(store).WithClock(fixedClock)
	analytics := NewAnalyticsService(store, nil, nil).WithClock(fixedClock)
	ctx := context.Background()

	mustAdd(t, ledger, id, core.Income, "Salary", 500, testNow.AddDate(0, 0, -20))
	mustAddRecurring(t, ledger, id, "Utilities", "internet", core.Weekly, testNow.AddDate(0, 0, -6))
	mustAddRecurring(t, ledger, id, "Streaming", "music", core.Weekly, testNow.AddDate(0, 0, -10))

	pub := &fakeReminderPublisher{}
	processor := NewReminderProcessor(store, analytics, pub, "bill_reminders")

	sent, err := processor.ProcessDueBills(ctx, testNow)
	if err != nil {
		t.Fatalf("ProcessDueBills() error = %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	msg := pub.sent[0]
	if msg.Name != "internet" || msg.DueIn != "1 days" || msg.DueDate != "2025-03-16" || pub.queue != "bill_reminders" {
		t.Errorf("reminder = %+v queue %s", msg, pub.queue)
	}

	sent, err = processor.ProcessDueBills(ctx, testNow)
	if err != nil {
		t.Fatalf("ProcessDueBills() error = %v", err)
	}
	if sent != 0 {
		t.Errorf("second run sent = %d, want 0", sent)
	}
}

func TestReminderProcessor_RetriesAfterPublishFailure(t *testing.T) {
	store := newTestStore(t)
	id := newTestIdentity(t, store, "retry-bills@example.com")
	ledger := NewLedgerService(store).WithClock(fixedClock)
	analytics := NewAnalyticsService(store, nil, nil).WithClock(fixedClock)
	ctx := context.Background()

	mustAdd(t, ledger, id, core.Income, "Salary", 500, testNow.AddDate(0, 0, -20))
	mustAddRecurring(t, ledger, id, "Rent", "", core.Monthly, testNow.AddDate(0, 0, -28))

	pub := &fakeReminderPublisher{err: errors.New("circuit breaker is open")}
	processor := NewReminderProcessor(store, analytics, pub, "bill_reminders")

	if sent, err := processor.ProcessDueBills(ctx, testNow); err != nil || sent != 0 {
		t.Fatalf("ProcessDueBills() = %d, %v, want 0, nil", sent, err)
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	if sent, err := processor.ProcessDueBills(ctx, testNow); err != nil || sent != 1 {
		t.Errorf("ProcessDueBills() after recovery = %d, %v, want 1, nil", sent, err)
	}
}

func TestReminderProcessor_NotInitialized(t *testing.T) {
	processor := NewReminderProcessor(nil, nil, nil, "")
	if _, err := processor.ProcessDueBills(context.Background(), testNow); err == nil {
		t.Error("expected error from uninitialized processor")
	}
}
