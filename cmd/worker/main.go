package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom/stockroom/internal/analytics/archive"
	"github.com/stockroom/stockroom/internal/analytics/export"
	"github.com/stockroom/stockroom/internal/app"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	"github.com/stockroom/stockroom/internal/platform/cache"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/jobs"
	"github.com/stockroom/stockroom/report"
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

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("resolve timezone", slog.Any("error", err))
		os.Exit(1)
	}

	var pool *pgxpool.Pool
	if cfg.SourceKind == app.SourcePostgres {
		pool, err = db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportService, err := app.NewReportService(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		logger.Error("init report service", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewWarmupJob(reportService, redisClient, logger, metrics)
	warmupJob.Location = loc

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
	}
	warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{TopN: cfg.ReportTopProducts})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cron := []jobs.CronRegistration{
		{Spec: cfg.WarmupSchedule, Task: warmupTask},
	}

	if cfg.ArchiveEnabled() {
		store, err := archive.New(ctx, archive.Options{
			Bucket:    cfg.ArchiveBucket,
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			PathStyle: cfg.ArchivePathStyle,
		})
		if err != nil {
			logger.Error("init archive store", slog.Any("error", err))
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Error("ensure archive bucket", slog.Any("error", err))
			os.Exit(1)
		}
		pdfClient := report.NewClient(cfg.GotenbergURL)
		if err := pdfClient.Ping(ctx); err != nil {
			logger.Warn("gotenberg unreachable, pdf snapshots will fail", slog.Any("error", err))
		}
		pdfExporter := export.NewPDFExporter(pdfClient, export.NewFormatter(cfg.ReportLocale, cfg.ReportCurrency))
		archiveJob := jobs.NewArchiveJob(reportService, store, pdfExporter, redisClient, logger, metrics)
		archiveJob.TopN = cfg.ReportTopProducts
		archiveJob.Location = loc
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskReportsArchive, Handler: archiveJob.Handle})

		archiveTask, err := jobs.NewArchiveTask(jobs.ArchivePayload{Formats: []string{"csv", "pdf"}})
		if err != nil {
			logger.Error("build archive task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.ArchiveSchedule, Task: archiveTask})
	} else {
		logger.Info("archive bucket not configured, snapshots disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers:    handlers,
		Cron:        cron,
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
