package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stockroom/stockroom/internal/analytics"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	"github.com/stockroom/stockroom/internal/platform/cache"
	"github.com/stockroom/stockroom/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportService is the part of the report service the jobs drive.
type ReportService interface {
	ProfitLoss(ctx context.Context, sel analytics.PeriodSelector) (analytics.Summary, error)
	History(ctx context.Context) ([]analytics.HistoricalPoint, error)
	Inventory(ctx context.Context, topN int) (analytics.Valuation, error)
	StockAlerts(ctx context.Context) ([]analytics.StockAlert, error)
	PreOrders(ctx context.Context) (analytics.PreOrderSummary, error)
	Report(ctx context.Context, sel analytics.PeriodSelector, topN int) (analytics.Report, error)
}

// generationReporter is implemented by services that track the newest
// dataset generation they have loaded.
type generationReporter interface {
	LatestGeneration() uint64
}

// WarmupJob pre-populates the report cache so dashboards load from Redis.
type WarmupJob struct {
	Reports  ReportService
	Redis    *redis.Client
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	LockTTL  time.Duration
	// Location is the report timezone the warmed periods are resolved in.
	Location *time.Location
	clock    func() time.Time
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(reports ReportService, client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{
		Reports:  reports,
		Redis:    client,
		Logger:   logger,
		Metrics:  metrics,
		LockTTL:  5 * time.Minute,
		Location: time.UTC,
		clock:    time.Now,
	}
}

// Handle processes reports:warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("reports warmup: %w: %w", err, asynq.SkipRetry)
		}
	}

	logger := jobLogger(j.Logger, TaskReportsWarmup)
	lock, err := acquire(ctx, j.Redis, TaskReportsWarmup, j.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		j.metrics().Skipped(TaskReportsWarmup)
		logger.Info("warmup already running elsewhere")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release warmup lock", slog.Any("error", err))
		}
	}()

	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() { resultErr = tracker.End(resultErr) }()

	start := time.Now()
	if err := j.warm(ctx, payload.TopN); err != nil {
		logger.Error("warm reports", slog.Any("error", err))
		return err
	}
	attrs := []any{slog.Duration("duration", time.Since(start))}
	if gr, ok := j.Reports.(generationReporter); ok {
		gen := gr.LatestGeneration()
		j.metrics().SetGeneration(gen)
		attrs = append(attrs, slog.Uint64("generation", gen))
	}
	logger.Info("completed reports warmup", attrs...)
	return nil
}

func (j *WarmupJob) warm(ctx context.Context, topN int) error {
	now := j.now()
	selectors := []analytics.PeriodSelector{
		{},
		analytics.Daily(now),
		analytics.Weekly(),
		analytics.Monthly(now.Month(), now.Year()),
		analytics.Yearly(now.Year()),
	}
	for _, sel := range selectors {
		if _, err := j.Reports.ProfitLoss(ctx, sel); err != nil {
			return fmt.Errorf("profit loss %s: %w", sel.Token(now), err)
		}
	}
	if _, err := j.Reports.Report(ctx, analytics.PeriodSelector{}, topN); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if _, err := j.Reports.History(ctx); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if _, err := j.Reports.Inventory(ctx, topN); err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	if _, err := j.Reports.StockAlerts(ctx); err != nil {
		return fmt.Errorf("stock alerts: %w", err)
	}
	if _, err := j.Reports.PreOrders(ctx); err != nil {
		return fmt.Errorf("preorders: %w", err)
	}
	return nil
}

func (j *WarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *WarmupJob) now() time.Time {
	return reportNow(j.clock, j.Location)
}

// reportNow reads clock in loc, falling back to the wall clock and UTC.
func reportNow(clock func() time.Time, loc *time.Location) time.Time {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return clock().In(loc)
}

// acquire takes the per-task lock. Without Redis every run proceeds.
func acquire(ctx context.Context, client *redis.Client, task string, ttl time.Duration) (*cache.Lock, error) {
	if client == nil {
		return nil, nil
	}
	return cache.Acquire(ctx, client, shared.ReportLockKey(task), ttl)
}

func jobLogger(logger *slog.Logger, task string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", task))
}
