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
	"golang.org/x/crypto/bcrypt"

	"github.com/gasdist/stockledger/internal/app"
	"github.com/gasdist/stockledger/internal/auth"
	"github.com/gasdist/stockledger/internal/catalog"
	"github.com/gasdist/stockledger/internal/observability"
	"github.com/gasdist/stockledger/internal/platform/cache"
	"github.com/gasdist/stockledger/internal/platform/db"
	"github.com/gasdist/stockledger/internal/rbac"
	"github.com/gasdist/stockledger/internal/stock"
	"github.com/gasdist/stockledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	rbacService := rbac.NewService(rbac.DefaultRoles())
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	directory, err := auth.ParseDirectory(cfg.AuthUsers, bcrypt.DefaultCost)
	if err != nil {
		logger.Error("load users", slog.Any("error", err))
		os.Exit(1)
	}
	for _, role := range directory.Roles() {
		if !rbacService.HasRole(role) {
			logger.Error("unknown role in AUTH_USERS", slog.String("role", role))
			os.Exit(1)
		}
	}
	authService := auth.NewService(directory)

	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
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

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	notifier := stock.NewRedisNotifier(redisClient)
	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, catalogService, notifier, jobClient, stock.ServiceConfig{
		LowStockThreshold: cfg.StockLowThreshold,
		PendingThreshold:  cfg.StockPendingThreshold,
		RecentWindow:      cfg.StockRecentWindow,
	}, logger).WithMetrics(metrics)
	thresholds := stockService.Config()
	logger.Info("stock thresholds",
		slog.Int64("low_stock", thresholds.LowStockThreshold),
		slog.Int64("pending", thresholds.PendingThreshold),
		slog.Duration("recent_window", thresholds.RecentWindow),
	)
	stockHandler := stock.NewHandler(logger, stockService, notifier, rbacMiddleware).
		WithKeepAlive(cfg.StreamKeepAlive())

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		StockHandler:       stockHandler,
		CatalogHandler:     catalogHandler,
		JobHandler:         jobHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(rbacService, rbacMiddleware),
		Metrics:            metrics,
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
