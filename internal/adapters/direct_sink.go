package adapters

import (
	"context"
	"log/slog"

	"aarthik/internal/amqp"
)

// EventHandler consumes one ledger event.
type EventHandler func(context.Context, *amqp.LedgerEventMessage) error

// DirectSink delivers outbox events straight to a handler in the same
// process. It replaces the broker when AMQP is not configured; a handler
// error leaves the event in the outbox for the next retry.
type DirectSink struct {
	handle EventHandler
}

func NewDirectSink(handle EventHandler) *DirectSink {
	return &DirectSink{handle: handle}
}

// PublishLedgerEvent implements services.EventSink
func (s *DirectSink) PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	return s.handle(ctx, msg)
}

// LogReminderPublisher logs bill reminders instead of queueing them.
type LogReminderPublisher struct {
	logger *slog.Logger
}

func NewLogReminderPublisher(logger *slog.Logger) *LogReminderPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReminderPublisher{logger: logger}
}

// PublishBillReminder implements services.ReminderPublisher
func (p *LogReminderPublisher) PublishBillReminder(ctx context.Context, queue string, msg *amqp.BillReminderMessage) error {
	p.logger.InfoContext(ctx, "Bill reminder",
		"queue", queue,
		"user_id", msg.UserID,
		"profile_id", msg.ProfileID,
		"bill", msg.BillKey,
		"due_date", msg.DueDate,
		"due_in", msg.DueIn)
	return nil
}
