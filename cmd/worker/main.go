package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/aquatrack/aquatrack/internal/app"
	"github.com/aquatrack/aquatrack/internal/catalog"
	"github.com/aquatrack/aquatrack/internal/platform/cache"
	"github.com/aquatrack/aquatrack/internal/platform/db"
	"github.com/aquatrack/aquatrack/internal/reports"
	"github.com/aquatrack/aquatrack/internal/shared"
	"github.com/aquatrack/aquatrack/jobs"
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

	logger := app.NewLogger(cfg)

	clock, err := shared.NewClock(cfg.BusinessTimezone)
	if err != nil {
		logger.Error("load business timezone", slog.Any("error", err))
		os.Exit(1)
	}

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

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, catalog.DefaultPackSizes())
	reportsService := reports.NewService(reportsRepo, reportsCache, catalogService, clock)

	mailer := &jobs.SMTPMailer{
		Addr:     cfg.SMTPAddr(),
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Host:     cfg.SMTPHost,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypePaymentEmail, Handler: jobs.PaymentEmailHandler(logger, mailer, cfg.BusinessName)},
			{Type: jobs.TaskTypeReportWarmup, Handler: jobs.ReportWarmupHandler(logger, reportsService)},
		},
		Cron: []jobs.CronRegistration{
			// 03:15 UTC is early morning in the business timezone, so the
			// first till of the day reads warm summaries.
			{Spec: "15 3 * * *", Task: jobs.NewReportWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
