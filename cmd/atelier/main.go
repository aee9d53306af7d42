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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-admin/atelier/internal/app"
	"github.com/atelier-admin/atelier/internal/audit"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/identity"
	"github.com/atelier-admin/atelier/internal/observability"
	"github.com/atelier-admin/atelier/internal/platform/cache"
	"github.com/atelier-admin/atelier/internal/platform/db"
	"github.com/atelier-admin/atelier/internal/query"
	"github.com/atelier-admin/atelier/internal/records/boards"
	"github.com/atelier-admin/atelier/internal/records/ingredients"
	"github.com/atelier-admin/atelier/internal/records/menus"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
	"github.com/atelier-admin/atelier/internal/view"
	"github.com/atelier-admin/atelier/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "atelier")

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

	var dbpool *pgxpool.Pool
	if cfg.AuditEnabled() {
		dbpool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
	}

	sessionManager := shared.NewSessionManager(redisClient, "atelier_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}
	pages := &screens.Pages{Templates: templates, CSRF: csrfManager, Logger: logger}

	metrics := observability.NewMetrics()

	contract, err := gateway.NewListContract()
	if err != nil {
		logger.Error("load list contract", slog.Any("error", err))
		os.Exit(1)
	}
	backend, err := gateway.New(gateway.Options{
		BaseURL:  cfg.BackendBaseURL,
		Timeout:  cfg.BackendTimeout,
		Contract: contract,
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	queries := query.NewClient(query.Options{
		Store:        query.NewRedisStore(redisClient, cfg.QueryCacheTTL),
		Recorder:     metrics,
		Logger:       logger,
		FetchTimeout: cfg.QueryFetchTimeout,
		TTL:          cfg.QueryCacheTTL,
	})
	go func() {
		if err := queries.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("query invalidation listener stopped", slog.Any("error", err))
		}
	}()

	var auditHandler *audit.Handler
	resources := []string{boards.Resource, ingredients.Resource, menus.Resource}
	if dbpool != nil {
		err := db.WithTx(ctx, dbpool, func(tx pgx.Tx) error {
			return audit.NewRepository(tx).EnsureSchema(ctx)
		})
		if err != nil {
			logger.Error("prepare audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		auditService := audit.NewService(audit.NewRepository(dbpool))
		unsubscribe := audit.Subscribe(queries.Bus(), auditService, logger)
		defer unsubscribe()
		auditHandler = audit.NewHandler(logger, auditService, pages, resources)
	} else {
		auditHandler = audit.NewHandler(logger, nil, pages, resources)
	}

	identityService := identity.NewService(backend)
	tokenStore := identity.NewTokenStore(redisClient, cfg.SessionTTL)
	provider := identity.NewProvider(identityService, tokenStore, logger)
	identityHandler := identity.NewHandler(logger, identityService, provider, templates, sessionManager, csrfManager)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	if cfg.WarmupOnSignIn {
		identityHandler.OnSignIn(func(ctx context.Context, sessionID string) {
			_, err := jobsClient.EnqueueWarmup(ctx, sessionID)
			if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				logger.Warn("enqueue sign-in warmup", slog.Any("error", err))
			}
		})
	}

	screenStore := screens.NewStore(cfg.ScreenIdleTTL)
	go screenStore.Run(ctx, time.Minute)

	boardsHandler := boards.NewHandler(logger, boards.NewService(backend, queries), pages, screenStore, cfg.QueryAwaitTimeout)
	ingredientsHandler := ingredients.NewHandler(logger, ingredients.NewService(backend, queries), pages, screenStore, cfg.QueryAwaitTimeout)
	menusHandler := menus.NewHandler(logger, menus.NewService(backend, queries), pages, screenStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pages:              pages,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Metrics:            metrics,
		IdentityHandler:    identityHandler,
		Provider:           provider,
		BoardsHandler:      boardsHandler,
		IngredientsHandler: ingredientsHandler,
		MenusHandler:       menusHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobs.NewHandler(inspector, logger),
		Ready: func(ctx context.Context) error {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return err
			}
			if dbpool != nil {
				return dbpool.Ping(ctx)
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
