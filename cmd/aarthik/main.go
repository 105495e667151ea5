package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"aarthik/internal/assistant"
	"aarthik/internal/auth"
	"aarthik/internal/cache"
	"aarthik/internal/cli"
	apphttp "aarthik/internal/http"
	applog "aarthik/internal/log"
	"aarthik/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ApplyLogLevel(logger, cfg.LogLevel)

	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	verifier, err := auth.NewVerifier(cfg.AuthJWTSecret)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize token verifier", "error", err)
	}
	var issuer *auth.Issuer
	if cfg.AuthIssueTokens {
		issuer, err = auth.NewIssuer(cfg.AuthJWTSecret, cfg.AuthTokenTTL)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize token issuer", "error", err)
		}
		logger.Warn("Signup issues bearer tokens, do not enable in production")
	}

	analyticsCache := cache.NewLRUCache[any](cfg.AnalyticsCacheSize, cfg.AnalyticsCacheTTL)
	caches := cache.NewManager()
	caches.Register(analyticsCache)
	caches.StartCleanup(cfg.AnalyticsCacheTTL)

	strategies := services.FixedStrategies()
	if cfg.BillsCalendarAware {
		strategies = services.CalendarStrategies()
	}
	analytics := services.NewAnalyticsService(store, services.NewBillProjector(strategies), analyticsCache)
	profiles := services.NewProfileService(store)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Ledger:             services.NewLedgerService(store),
		Analytics:          analytics,
		Profiles:           profiles,
		Chat:               services.NewChatService(analytics, profiles, assistant.RuleBased{}, 30*time.Second),
		Store:              store,
		Verifier:           verifier,
		Issuer:             issuer,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Caches:             caches,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting aarthik API", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", "error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
