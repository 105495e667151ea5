package main

import (
	"context"
	"errors"
	"time"

	"aarthik/internal/adapters"
	"aarthik/internal/amqp"
	"aarthik/internal/backend"
	"aarthik/internal/cli"
	applog "aarthik/internal/log"
	"aarthik/internal/services"
	"aarthik/internal/worker"
)

const seenEvents = 10000

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentOutbox)
	logger.Info("Starting aarthik-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ApplyLogLevel(logger, cfg.LogLevel)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid ledger mirror configuration", "error", err)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentMirror).Logger).CreateMirror(ctx, mirrorCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize ledger mirror", "error", err, "mirror", mirrorCfg.Type)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}
	mirrorWorker := worker.NewMirrorWorker(store, result.Mirror, seenEvents)

	logger.Info("Performing startup mirror backfill...")
	if err := mirrorWorker.Backfill(ctx); err != nil {
		// the outbox replays whatever the backfill missed
		logger.Error("Mirror backfill failed", "error", err)
	}

	// Without a broker the relay hands events straight to the mirror worker.
	var sink services.EventSink = adapters.NewDirectSink(mirrorWorker.HandleLedgerEvent)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEventsQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", "error", err)
		}
		defer amqpClient.Close()
		sink = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPEventsQueue)
	} else {
		logger.Info("AMQP disabled - ledger events are mirrored in-process")
	}

	relay := services.NewOutboxProcessor(store, sink, services.OutboxProcessorConfig{
		PollInterval:    cfg.OutboxInterval,
		BatchSize:       cfg.OutboxBatchSize,
		MaxRetries:      cfg.OutboxMaxRetries,
		RetryDelay:      2 * time.Second,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	})
	if err := relay.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start outbox processor", "error", err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeLedgerEvents(ctx, mirrorWorker.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger event consumption failed", "error", err)
			}
			cancel()
		}()
	}

	shutdownCtx, _ := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) { cancel() })

	select {
	case <-shutdownCtx.Done():
	case <-ctx.Done():
		logger.Warn("Worker context cancelled, stopping")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := relay.Stop(stopCtx); err != nil {
		logger.Error("Outbox processor stop error", "error", err)
	}
	if stats, err := relay.Stats(stopCtx); err == nil {
		logger.Info("Outbox state at shutdown",
			"pending", stats.Pending,
			"failed", stats.Failed)
	}
	logger.Info("aarthik-worker stopped")
}
