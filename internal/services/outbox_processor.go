package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aarthik/internal/amqp"
	applog "aarthik/internal/log"
	"aarthik/internal/storage"
)

// EventSink receives committed ledger events.
type EventSink interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending events (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of events to publish per poll cycle (default: 50)
	BatchSize int

	// MaxRetries is the number of attempts before an event is marked failed (default: 5)
	MaxRetries int

	// RetryDelay is the first retry delay, doubled per attempt (default: 2s)
	RetryDelay time.Duration

	// CleanupInterval is how often to delete published events (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old published events must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultOutboxProcessorConfig returns sensible defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       50,
		MaxRetries:      5,
		RetryDelay:      2 * time.Second,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// OutboxProcessor relays ledger events from the outbox table to a sink.
// Delivery is at least once; consumers dedupe on the event id.
type OutboxProcessor struct {
	storage *storage.SQLiteRepository
	sink    EventSink
	config  OutboxProcessorConfig
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(storage *storage.SQLiteRepository, sink EventSink, config OutboxProcessorConfig) *OutboxProcessor {
	return &OutboxProcessor{
		storage: storage,
		sink:    sink,
		config:  config,
		now:     time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Events left in processing by a crashed run go back to pending
	if err := p.storage.ResetStaleEvents(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale outbox events", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Outbox processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *OutboxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupPublished(ctx)
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	events, err := p.storage.DequeueEvents(ctx, p.config.BatchSize, p.now())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue outbox events", "error", err)
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(events))

	published := 0
	for _, event := range events {
		if ctx.Err() != nil || p.stopping() {
			return published
		}

		claimed, err := p.storage.MarkEventProcessing(ctx, event.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to claim outbox event", "id", event.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if err := p.publish(ctx, event); err != nil {
			p.handleFailure(ctx, event, err)
			continue
		}
		p.handleSuccess(ctx, event)
		published++
	}
	return published
}

func (p *OutboxProcessor) stopping() bool {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func (p *OutboxProcessor) publish(ctx context.Context, event storage.LedgerEvent) error {
	msg, err := amqp.LedgerEventMessageFromJSON(event.Payload)
	if err != nil {
		return fmt.Errorf("decode event %s: %w", event.EventID, err)
	}
	if err := p.sink.PublishLedgerEvent(ctx, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventID, err)
	}
	return nil
}

func (p *OutboxProcessor) handleSuccess(ctx context.Context, event storage.LedgerEvent) {
	if err := p.storage.MarkEventPublished(ctx, event.ID, p.now()); err != nil {
		slog.ErrorContext(ctx, "Failed to mark event published", "id", event.ID, "error", err)
	}
}

// handleFailure schedules a retry with exponential backoff or marks the event failed.
func (p *OutboxProcessor) handleFailure(ctx context.Context, event storage.LedgerEvent, publishErr error) {
	attempt := event.Attempts + 1
	slog.WarnContext(ctx, "Outbox publish failed",
		"id", event.ID,
		applog.FieldEventID, event.EventID,
		"attempt", attempt,
		"error", publishErr)

	if attempt >= int64(p.config.MaxRetries) {
		if err := p.storage.MarkEventFailed(ctx, event.ID, publishErr.Error(), p.now()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event failed", "id", event.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Outbox event failed permanently after max retries",
			"id", event.ID,
			applog.FieldEventID, event.EventID,
			"attempts", attempt)
		return
	}

	next := p.now().Add(p.config.RetryDelay << event.Attempts)
	if err := p.storage.RetryEventLater(ctx, event.ID, publishErr.Error(), next); err != nil {
		slog.ErrorContext(ctx, "Failed to schedule event retry", "id", event.ID, "error", err)
	}
}

func (p *OutboxProcessor) cleanupPublished(ctx context.Context) {
	n, err := p.storage.CleanupPublishedEvents(ctx, p.now().Add(-p.config.CleanupAge))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup published events", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Published events cleaned up", "count", n)
	}
}

// Stats returns current outbox statistics
func (p *OutboxProcessor) Stats(ctx context.Context) (storage.OutboxStats, error) {
	return p.storage.OutboxStats(ctx)
}

// RetryFailed resets all failed events for retry
func (p *OutboxProcessor) RetryFailed(ctx context.Context) error {
	return p.storage.RetryFailedEvents(ctx, p.now())
}
