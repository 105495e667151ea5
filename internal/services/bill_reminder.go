package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aarthik/internal/amqp"
	applog "aarthik/internal/log"
	"aarthik/internal/storage"
)

// ReminderPublisher delivers bill reminders to the notification queue.
type ReminderPublisher interface {
	PublishBillReminder(ctx context.Context, queue string, msg *amqp.BillReminderMessage) error
}

// ReminderProcessor sends one reminder per upcoming bill occurrence.
type ReminderProcessor struct {
	storage   *storage.SQLiteRepository
	analytics *AnalyticsService
	publisher ReminderPublisher
	queue     string
}

func NewReminderProcessor(storage *storage.SQLiteRepository, analytics *AnalyticsService, publisher ReminderPublisher, queue string) *ReminderProcessor {
	return &ReminderProcessor{
		storage:   storage,
		analytics: analytics,
		publisher: publisher,
		queue:     queue,
	}
}

// ProcessDueBills publishes reminders for every bill due within the upcoming
// window of any profile and returns how many were sent. A reminder that was
// already sent for the same due date is skipped.
func (p *ReminderProcessor) ProcessDueBills(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.analytics == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	now = now.UTC()

	keys, err := p.storage.ListProfilesWithRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("list profiles with recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Checking upcoming bills",
		"profiles", len(keys),
		"processing_date", now.Format("2006-01-02"))

	sent := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		bills, err := p.analytics.upcoming(ctx, Identity{UserID: key.UserID, ProfileID: key.ProfileID}, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to project bills",
				applog.NewFields().WithIdentity(key.UserID, key.ProfileID).WithError(err).ToSlice()...)
			continue
		}
		for _, b := range bills {
			ok, err := p.remind(ctx, key, b, now)
			if err != nil {
				fields := applog.NewFields().WithIdentity(key.UserID, key.ProfileID).WithError(err)
				slog.ErrorContext(ctx, "Failed to send bill reminder", append(fields.ToSlice(), "bill", b.Key)...)
				continue
			}
			if ok {
				sent++
			}
		}
	}
	return sent, nil
}

func (p *ReminderProcessor) remind(ctx context.Context, key storage.ProfileKey, b UpcomingBill, now time.Time) (bool, error) {
	dueDate := b.DueDate.Format("2006-01-02")
	first, err := p.storage.RecordReminder(ctx, key, b.Key, dueDate, now)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	msg := &amqp.BillReminderMessage{
		UserID:    key.UserID,
		ProfileID: key.ProfileID,
		BillKey:   b.Key,
		Name:      b.Name,
		Category:  b.Category,
		Amount:    b.Amount,
		DueDate:   dueDate,
		DueIn:     b.DueIn,
		Timestamp: now,
	}
	if err := p.publisher.PublishBillReminder(ctx, p.queue, msg); err != nil {
		// next run retries
		if ferr := p.storage.ForgetReminder(ctx, key, b.Key, dueDate); ferr != nil {
			slog.WarnContext(ctx, "Failed to forget unsent reminder", "bill", b.Key, "error", ferr)
		}
		return false, fmt.Errorf("publish reminder: %w", err)
	}
	return true, nil
}
