// Command warden runs the agent governance service: maturity-tier decision
// engine, confidence lifecycle, training workflow, and human intervention
// queue, fronted by a small REST API and a WebSocket event feed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	wshttp "github.com/Strob0t/Warden/internal/adapter/http"
	wsnats "github.com/Strob0t/Warden/internal/adapter/nats"
	"github.com/Strob0t/Warden/internal/adapter/otel"
	"github.com/Strob0t/Warden/internal/adapter/postgres"
	"github.com/Strob0t/Warden/internal/adapter/ristretto"
	"github.com/Strob0t/Warden/internal/adapter/ws"
	"github.com/Strob0t/Warden/internal/config"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/logger"
	"github.com/Strob0t/Warden/internal/resilience"
	"github.com/Strob0t/Warden/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCtl := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCtl.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := wsnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		hits, misses := cache.Stats()
		slog.Info("agent cache stats", "hits", hits, "misses", misses)
		cache.Close()
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	store := postgres.NewStore(pool)
	trail := postgres.NewAuditTrail(pool)
	roleDir := postgres.NewRoleDirectory(pool)

	retry := resilience.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	auditSvc := service.NewAuditService(trail, cfg.Audit.BufferSize, cfg.Audit.Workers, cfg.Audit.WriteTimeout)
	defer auditSvc.Close()

	governanceSvc := service.NewGovernanceService(store, auditSvc, cache, retry,
		cfg.Governance.DecideTimeout, cfg.Cache.AgentTTL)
	governanceSvc.SetQueue(queue)
	governanceSvc.SetBreaker(breaker)
	governanceSvc.SetHub(hub)
	governanceSvc.SetMetrics(metrics)

	confidenceSvc := service.NewConfidenceService(store, auditSvc, roleDir, retry)
	confidenceSvc.SetQueue(queue)
	confidenceSvc.SetHub(hub)
	confidenceSvc.SetMetrics(metrics)
	confidenceSvc.SetInvalidator(governanceSvc.InvalidateAgent)

	trainingSvc := service.NewTrainingService(store, confidenceSvc, auditSvc,
		cfg.Training.ComparablesTimeout, cfg.Training.HoursPerDay)
	trainingSvc.SetQueue(queue)
	trainingSvc.SetMetrics(metrics)

	interventionSvc := service.NewInterventionService(store, roleDir, auditSvc,
		intervention.Role(cfg.Governance.MinApproverRole))
	interventionSvc.SetQueue(queue)
	interventionSvc.SetHub(hub)
	interventionSvc.SetMetrics(metrics)

	// --- HTTP ---

	handlers := wshttp.NewHandlers(governanceSvc, confidenceSvc, trainingSvc,
		interventionSvc, auditSvc, hub, logCtl)

	r := chi.NewRouter()
	r.Use(wshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(wshttp.RequestID)
	r.Use(wshttp.Logger)
	r.Use(otel.Middleware)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	wshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
