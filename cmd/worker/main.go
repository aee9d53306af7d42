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

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelier-admin/atelier/internal/app"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/platform/cache"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/records/boards"
	"github.com/atelier-admin/atelier/internal/records/ingredients"
	"github.com/atelier-admin/atelier/internal/records/menus"
	"github.com/atelier-admin/atelier/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "worker")

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	contract, err := gateway.NewListContract()
	if err != nil {
		logger.Error("load list contract", slog.Any("error", err))
		os.Exit(1)
	}
	backend, err := gateway.New(gateway.Options{
		BaseURL:  cfg.BackendBaseURL,
		Timeout:  cfg.BackendTimeout,
		Contract: contract,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	queries := query.NewClient(query.Options{
		Store:        query.NewRedisStore(redisClient, cfg.QueryCacheTTL),
		Logger:       logger,
		FetchTimeout: cfg.QueryFetchTimeout,
		TTL:          cfg.QueryCacheTTL,
	})

	// Warmups load with the tokens of the session that asked for them and
	// refresh them through the same store the console uses.
	provider := identity.NewProvider(identity.NewService(backend), identity.NewTokenStore(redisClient, cfg.SessionTTL), logger)

	boardService := boards.NewService(backend, queries)
	ingredientService := ingredients.NewService(backend, queries)
	menuService := menus.NewService(backend, queries)

	queryJobs := &jobs.QueryJobs{
		Queries: queries,
		Warmers: []jobs.Warmer{
			{Resource: boards.Resource, Warm: boardService.Warm},
			{Resource: ingredients.Resource, Warm: ingredientService.Warm},
			{Resource: menus.Resource, Warm: menuService.Warm},
		},
		Sessions: provider,
		Logger:   logger,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQueryWarmup, Handler: queryJobs.HandleWarmup},
			{Type: jobs.TaskQueryInvalidate, Handler: queryJobs.HandleInvalidate},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metricsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// metricsRouter exposes the job collectors, which register on the default
// Prometheus registry.
func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
