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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/emberloaf/loyalty/internal/auth"
	"github.com/emberloaf/loyalty/internal/codegen"
	"github.com/emberloaf/loyalty/internal/config"
	"github.com/emberloaf/loyalty/internal/dashboard"
	"github.com/emberloaf/loyalty/internal/handlers"
	"github.com/emberloaf/loyalty/internal/jobs"
	"github.com/emberloaf/loyalty/internal/metrics"
	"github.com/emberloaf/loyalty/internal/middleware"
	"github.com/emberloaf/loyalty/internal/repository"
	"github.com/emberloaf/loyalty/internal/router"
	"github.com/emberloaf/loyalty/internal/schema"
	"github.com/emberloaf/loyalty/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "loyalty", "env", cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := repository.Migrate(ctx, pool); err != nil {
		slog.Error("Loyalty schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	// Loyalty core
	store := repository.NewStore(pool)
	codes, err := codegen.New(cfg.NodeID, cfg.CodeSalt)
	if err != nil {
		slog.Error("Failed to create redemption code generator", "error", err)
		os.Exit(1)
	}
	ledger := services.NewLedger(store)
	engine := services.NewRedemptionEngine(store, codes, cfg.RedemptionTTL, logger)
	earner := services.NewEarner(store, ledger, cfg.Tiers, services.EarnRules{
		FirstOrderBonus: cfg.FirstOrderBonus,
		Location:        cfg.BusinessLocation,
	})
	accounts := services.NewAccounts(store, cfg.Tiers)
	catalog := services.NewCatalog(store)

	// Expiry sweep
	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewExpireRedemptionsWorker(engine, logger))

	riverClient, err := river.NewClient[pgx.Tx](riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{jobs.PeriodicExpiry(cfg.ExpirySweepInterval)},
		Logger:       logger,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// HTTP
	schemas, err := schema.New()
	if err != nil {
		slog.Error("Failed to compile request schemas", "error", err)
		os.Exit(1)
	}
	authSvc := auth.NewService(cfg.JWTSecret, cfg.JWTAudience)
	authHandler := auth.NewHandler(accounts, logger)
	dashHandler := dashboard.NewHandler(store, accounts, ledger, catalog, engine, logger)
	redeemHandler := &handlers.RedemptionHandler{Accounts: store, Engine: engine, Logger: logger}
	posHandler := &handlers.POSHandler{
		Accounts:     accounts,
		Earner:       earner,
		Engine:       engine,
		Schemas:      schemas,
		Logger:       logger,
		DefaultBonus: cfg.ReferralBonus,
	}

	mux := http.NewServeMux()
	router.New(mux, authSvc, authHandler, dashHandler, redeemHandler, middleware.NewRateLimiter(cfg.RedeemRatePerMinute, 3))
	RegisterPOSRoutes(mux, repository.NewStaffKeyRepo(pool), posHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			handlers.WriteErrorMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.Instrument(mux))

	// Start River client (runs the expiry sweep)
	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River shutdown failed", "error", err)
	}
}
