package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kasira-pos/kasira-pos/internal/app"
	"github.com/kasira-pos/kasira-pos/internal/auth"
	"github.com/kasira-pos/kasira-pos/internal/catalog"
	"github.com/kasira-pos/kasira-pos/internal/inventory"
	"github.com/kasira-pos/kasira-pos/internal/observability"
	"github.com/kasira-pos/kasira-pos/internal/platform/cache"
	"github.com/kasira-pos/kasira-pos/internal/platform/db"
	"github.com/kasira-pos/kasira-pos/internal/rbac"
	"github.com/kasira-pos/kasira-pos/internal/sales"
	"github.com/kasira-pos/kasira-pos/internal/shared"
	"github.com/kasira-pos/kasira-pos/internal/users"
	"github.com/kasira-pos/kasira-pos/jobs"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookieName, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	ledger := inventory.NewLedger()
	inventoryService := inventory.NewService(pool, ledger, auditLogger, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	salesRepo := sales.NewRepository(pool, ledger)
	salesService := sales.NewService(salesRepo, auditLogger, logger)
	salesHandler := sales.NewHandler(logger, salesService, rbacMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		InventoryHandler: inventoryHandler,
		SalesHandler:     salesHandler,
		UsersHandler:     usersHandler,
		JobHandler:       jobHandler,
		Pool:             pool,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
