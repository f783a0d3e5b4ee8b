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

	"github.com/gescom-app/gescom/internal/app"
	"github.com/gescom-app/gescom/internal/auth"
	"github.com/gescom-app/gescom/internal/billing"
	"github.com/gescom-app/gescom/internal/catalog"
	"github.com/gescom-app/gescom/internal/consolidation"
	"github.com/gescom-app/gescom/internal/customers"
	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/platform/cache"
	"github.com/gescom-app/gescom/internal/platform/db"
	"github.com/gescom-app/gescom/internal/shared"
	"github.com/gescom-app/gescom/report"
)

const revenueCacheTTL = 5 * time.Minute

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

	auditLogger := shared.NewAuditLogger(dbpool)

	tokenStore := auth.NewTokenStore(redisClient, cfg.AuthTokenSecret, cfg.AuthTokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), tokenStore)
	authHandler := auth.NewHandler(logger, authService)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	customerService := customers.NewService(customers.NewRepository(dbpool))
	customerHandler := customers.NewHandler(logger, customerService)

	documentRepo := documents.NewRepository(dbpool)
	documentService := documents.NewService(documentRepo, logger, documents.ServiceConfig{
		PaymentTermDays: cfg.PaymentTermDays,
	})
	documentService.SetStockAdjuster(catalogService)
	documentService.SetAuditRecorder(auditLogger)
	documentHandler := documents.NewHandler(logger, documentService)

	billingService := billing.NewService(billing.NewRepository(dbpool), logger)
	billingService.SetRevenueCache(billing.NewRevenueCache(redisClient, revenueCacheTTL))
	billingService.SetAuditRecorder(auditLogger)
	billingHandler := billing.NewHandler(logger, billingService)

	consolidationService := consolidation.NewService(documentRepo, logger, consolidation.Config{
		PaymentTermDays: cfg.PaymentTermDays,
	})
	consolidationService.SetAuditRecorder(auditLogger)
	consolidationHandler := consolidation.NewHandler(logger, consolidationService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, documentService, customerService, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AuthService:          authService,
		AuthHandler:          authHandler,
		DocumentHandler:      documentHandler,
		BillingHandler:       billingHandler,
		ConsolidationHandler: consolidationHandler,
		CatalogHandler:       catalogHandler,
		CustomerHandler:      customerHandler,
		ReportHandler:        reportHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
