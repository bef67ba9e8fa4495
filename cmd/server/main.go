// Package main is the entrypoint for the TerraLens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbitalscope/terralens/internal/api"
	"github.com/orbitalscope/terralens/internal/api/handler"
	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/orbitalscope/terralens/internal/cache"
	"github.com/orbitalscope/terralens/internal/config"
	"github.com/orbitalscope/terralens/internal/executor"
	"github.com/orbitalscope/terralens/internal/jobs"
	"github.com/orbitalscope/terralens/internal/metrics"
	"github.com/orbitalscope/terralens/internal/stats"
	"github.com/orbitalscope/terralens/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"scripts_dir", cfg.Analysis.ScriptsDir, "workers", cfg.Analysis.MaxConcurrent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and metrics
	pgStore := store.NewPostgresStore(pool)
	registry := prometheus.NewRegistry()
	jobMetrics := metrics.New(registry)

	// 6. Build the job service over the external-process executor
	invoker := executor.NewProcessInvoker(cfg.Analysis)
	jobService := jobs.NewService(pgStore, redisCache, invoker, jobMetrics, cfg.Analysis.MaxConcurrent)
	jobService.Start(ctx)
	defer jobService.Wait()

	statsService := stats.NewService(pgStore)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),

		SubmitHandler:   handler.NewSubmitHandler(jobService),
		PollHandler:     handler.NewPollHandler(jobService),
		BatchHandler:    handler.NewBatchHandler(jobService),
		ListJobsHandler: handler.NewListJobsHandler(jobService),

		ListAlertsHandler:  handler.NewListAlertsHandler(pgStore),
		UpdateAlertHandler: handler.NewUpdateAlertHandler(pgStore),

		TrendsHandler:   handler.NewTrendsHandler(statsService),
		HotspotsHandler: handler.NewHotspotsHandler(statsService),
		NearbyHandler:   handler.NewNearbyHandler(statsService),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
