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
	"golang.org/x/sync/errgroup"

	"github.com/aquatrack/aquatrack/internal/app"
	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/customers"
	"github.com/aquatrack/aquatrack/internal/expenses"
	"github.com/aquatrack/aquatrack/internal/observability"
	"github.com/aquatrack/aquatrack/internal/packaging"
	"github.com/aquatrack/aquatrack/internal/payments"
	"github.com/aquatrack/aquatrack/internal/platform/cache"
	"github.com/aquatrack/aquatrack/internal/platform/db"
	"github.com/aquatrack/aquatrack/internal/receipt"
	"github.com/aquatrack/aquatrack/internal/reports"
	"github.com/aquatrack/aquatrack/internal/sales"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/internal/stock"
	"github.com/aquatrack/aquatrack/internal/users"
	"github.com/aquatrack/aquatrack/jobs"
	"github.com/aquatrack/aquatrack/report"
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

	clock, err := shared.NewClock(cfg.BusinessTimezone)
	if err != nil {
		logger.Error("load business timezone", slog.Any("error", err))
		os.Exit(1)
	}

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

	usersRepo := users.NewRepository(dbpool)
	tokenStore := users.NewRedisTokenStore(redisClient)
	usersService := users.NewService(usersRepo, tokenStore, cfg.AuthTokenTTL, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, catalog.DefaultPackSizes())
	catalogHandler := catalog.NewHandler(logger, catalogService)

	ledger := stock.NewLedger(clock)
	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, catalogService)
	stockHandler := stock.NewHandler(logger, stockService)

	packagingRepo := packaging.NewRepository(dbpool)
	packagingService := packaging.NewService(packagingRepo, ledger, catalogService, clock)
	packagingHandler := packaging.NewHandler(logger, packagingService)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, ledger, catalogService, customersService, clock)
	salesHandler := sales.NewHandler(logger, salesService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init task client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("task client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewPaymentNotifier(jobsClient)

	paymentsRepo := payments.NewRepository(dbpool)
	paymentsService := payments.NewService(logger, paymentsRepo, notifier, clock)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	expensesRepo := expenses.NewRepository(dbpool)
	expensesService := expenses.NewService(expensesRepo, clock)
	expensesHandler := expenses.NewHandler(logger, expensesService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache, catalogService, clock)
	pdfClient := report.NewClient(cfg.GotenbergURL)
	reportsHandler := reports.NewHandler(logger, reportsService, pdfClient, reports.Business{
		Name:    cfg.BusinessName,
		Address: cfg.BusinessAddress,
		Phone:   cfg.BusinessPhone,
		Email:   cfg.BusinessEmail,
	})

	receiptContacts := make([]string, 0, 3)
	for _, line := range []string{cfg.BusinessAddress, cfg.BusinessPhone, cfg.BusinessEmail} {
		if line != "" {
			receiptContacts = append(receiptContacts, line)
		}
	}
	receiptRenderer := receipt.NewRenderer(receipt.Business{
		Name:         cfg.BusinessName,
		ContactLines: receiptContacts,
	}, clock)
	receiptHandler := receipt.NewHandler(logger, receiptRenderer, salesService, usersService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		UsersService:     usersService,
		UsersHandler:     usersHandler,
		CatalogHandler:   catalogHandler,
		StockHandler:     stockHandler,
		PackagingHandler: packagingHandler,
		SalesHandler:     salesHandler,
		PaymentsHandler:  paymentsHandler,
		CustomersHandler: customersHandler,
		ExpensesHandler:  expensesHandler,
		ReportsHandler:   reportsHandler,
		ReceiptHandler:   receiptHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		// Keeps the local report cache version in step with bumps
		// published by other processes.
		if err := reportsCache.ListenForInvalidation(groupCtx, ""); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("report cache listener", slog.Any("error", err))
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
