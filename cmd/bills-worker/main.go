package main

import (
	"time"

	"aarthik/internal/adapters"
	"aarthik/internal/amqp"
	"aarthik/internal/cli"
	applog "aarthik/internal/log"
	"aarthik/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReminders)
	logger.Info("Starting bills-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ApplyLogLevel(logger, cfg.LogLevel)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	var publisher services.ReminderPublisher = adapters.NewLogReminderPublisher(logger.Logger)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRemindersQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", "error", err)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP client initialized - reminders go to the notification queue",
			"queue", cfg.AMQPRemindersQueue)
	} else {
		logger.Info("AMQP disabled - reminders are only logged")
	}

	strategies := services.FixedStrategies()
	if cfg.BillsCalendarAware {
		strategies = services.CalendarStrategies()
	}
	// The analytics cache is per process; the worker reads fresh views.
	analytics := services.NewAnalyticsService(store, services.NewBillProjector(strategies), nil)
	processor := services.NewReminderProcessor(store, analytics, publisher, cfg.AMQPRemindersQueue)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Bill reminder processor configured",
		"interval", cfg.BillsInterval,
		"calendar_aware", cfg.BillsCalendarAware)

	run := func(now time.Time) {
		count, err := processor.ProcessDueBills(ctx, now)
		if err != nil {
			logger.Error("Bill reminder processing failed", "error", err)
			return
		}
		logger.Info("Bill reminder processing complete",
			"reminders_sent", count,
			"next_check", now.Add(cfg.BillsInterval).Format("15:04:05"))
	}

	logger.Info("Running initial bill reminder processing...")
	run(time.Now())

	ticker := time.NewTicker(cfg.BillsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("bills-worker stopped")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
