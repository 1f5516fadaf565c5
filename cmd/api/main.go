// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Coursehub session edge.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (and .env when present).
//  3. Connect to Redis (token store, pending entitlements).
//  4. Connect to PostgreSQL and run migrations, when DATABASE_URL is set.
//  5. Build the marketplace client and the session, entitlement and purchase cores.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/coursehub/internal/api"
	"github.com/taibuivan/coursehub/internal/entitlement"
	"github.com/taibuivan/coursehub/internal/marketplace"
	"github.com/taibuivan/coursehub/internal/platform/config"
	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/metrics"
	"github.com/taibuivan/coursehub/internal/platform/migration"
	pgstore "github.com/taibuivan/coursehub/internal/platform/postgres"
	redisstore "github.com/taibuivan/coursehub/internal/platform/redis"
	"github.com/taibuivan/coursehub/internal/purchase"
	"github.com/taibuivan/coursehub/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("ledger_enabled", cfg.HasDatabase()),
	)

	// Startup dependencies must answer within 30s.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background workers stop with this context.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	health := api.HealthDependencies{
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}

	// ── 4. PostgreSQL ledger (optional) ───────────────────────────────────
	var recorder purchase.AttemptRecorder = purchase.NopRecorder{}
	if cfg.HasDatabase() {
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		recorder = purchase.NewPostgresLedger(pool)
		health.CheckDatabase = func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		}
	}

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	metrics.Register()

	client, err := marketplace.New(cfg.BackendURL, cfg.BackendTimeout, log)
	must(log, err, "build marketplace client")

	checker := entitlement.NewChecker(entitlement.NewRedisCache(rdb), cfg.PendingEntitlementTTL, log)

	registry := session.NewRegistry(session.RegistryDependencies{
		Stores:     session.NewRedisStores(rdb, cfg.SessionTTL, log),
		Backend:    client,
		Reconciler: checker,
		Logger:     log,
		IdleTTL:    cfg.SessionIdleTTL,
	})
	go registry.Run(appCtx)

	coordinator := purchase.NewCoordinator(purchase.Dependencies{
		Backend:         client,
		Entitlements:    checker,
		Recorder:        recorder,
		Logger:          log,
		VerifyTimeout:   cfg.VerifyTimeout,
		AllowUnverified: cfg.AllowUnverifiedPurchases,
		Development:     cfg.IsDevelopment(),
	})
	go coordinator.Run(appCtx)

	liveness, readiness := api.NewHealthHandlers(health, log)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Session: session.NewHandler(registry, client, session.CookieConfig{
			Name:   cfg.SessionCookieName,
			TTL:    cfg.SessionTTL,
			Secure: !cfg.IsDevelopment(),
		}),
		Entitlement: entitlement.NewHandler(registry, checker),
		Purchase:    purchase.NewHandler(registry, coordinator),
	}

	server := api.NewServer(appCtx, cfg, log, handlers)

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	// In-flight payment verifications need the full shutdown window.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}
	appCancel()

	log.Info("server_stopped_cleanly")
}

// newLogger builds the JSON logger with the global app attribute.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
