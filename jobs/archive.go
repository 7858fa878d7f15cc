package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stockroom/stockroom/internal/analytics/archive"
	"github.com/stockroom/stockroom/internal/analytics/export"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	"github.com/stockroom/stockroom/internal/platform/cache"
)

// Uploader stores a rendered snapshot.
type Uploader interface {
	Put(ctx context.Context, name, ext, contentType string, body []byte) (archive.Object, error)
}

// PDFRenderer renders the report document.
type PDFRenderer interface {
	RenderReport(ctx context.Context, payload export.ReportPayload) ([]byte, error)
}

// ArchiveJob renders a report snapshot and uploads it to object storage.
type ArchiveJob struct {
	Reports  ReportService
	Uploader Uploader
	PDF      PDFRenderer
	Redis    *redis.Client
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	TopN     int
	LockTTL  time.Duration
	Location *time.Location
	clock    func() time.Time
}

// NewArchiveJob wires dependencies for the archive handler. pdf may be nil.
func NewArchiveJob(reports ReportService, uploader Uploader, pdf PDFRenderer, client *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ArchiveJob {
	return &ArchiveJob{
		Reports:  reports,
		Uploader: uploader,
		PDF:      pdf,
		Redis:    client,
		Logger:   logger,
		Metrics:  metrics,
		LockTTL:  15 * time.Minute,
		Location: time.UTC,
		clock:    time.Now,
	}
}

// Handle processes reports:archive tasks.
func (j *ArchiveJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil || j.Uploader == nil {
		return errors.New("reports archive: handler not configured")
	}
	var payload ArchivePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("reports archive: %w: %w", err, asynq.SkipRetry)
		}
	}
	now := j.now()
	sel, err := payload.Selector(now)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	token := sel.Token(now)
	logger := jobLogger(j.Logger, TaskReportsArchive).With(slog.String("period", token))

	lock, err := acquire(ctx, j.Redis, TaskReportsArchive, j.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		j.metrics().Skipped(TaskReportsArchive)
		logger.Info("archive already running elsewhere")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release archive lock", slog.Any("error", err))
		}
	}()

	tracker := j.metrics().Track(TaskReportsArchive)
	defer func() { resultErr = tracker.End(resultErr) }()

	report, err := j.Reports.Report(ctx, sel, j.TopN)
	if err != nil {
		logger.Error("build report", slog.Any("error", err))
		return err
	}
	name := "inventory-report-" + token

	if payload.wants("csv") {
		var buf bytes.Buffer
		if err := export.WriteReportCSV(&buf, report, token); err != nil {
			return fmt.Errorf("reports archive: csv: %w", err)
		}
		if err := j.upload(ctx, logger, name, "csv", "text/csv", buf.Bytes()); err != nil {
			return err
		}
	}
	if payload.wants("pdf") {
		if j.PDF == nil {
			logger.Warn("pdf requested but renderer not configured")
			return nil
		}
		pdf, err := j.PDF.RenderReport(ctx, export.ReportPayload{
			Title:       "Inventory Report",
			Period:      token,
			GeneratedAt: report.GeneratedAt,
			Report:      report,
		})
		if err != nil {
			return fmt.Errorf("reports archive: pdf: %w", err)
		}
		if err := j.upload(ctx, logger, name, "pdf", "application/pdf", pdf); err != nil {
			return err
		}
	}
	return nil
}

func (j *ArchiveJob) upload(ctx context.Context, logger *slog.Logger, name, ext, contentType string, body []byte) error {
	obj, err := j.Uploader.Put(ctx, name, ext, contentType, body)
	if err != nil {
		logger.Error("upload snapshot", slog.String("format", ext), slog.Any("error", err))
		return err
	}
	j.metrics().AddArchived(ext, obj.Size)
	logger.Info("archived snapshot", slog.String("key", obj.Key), slog.Int("bytes", obj.Size))
	return nil
}

func (j *ArchiveJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ArchiveJob) now() time.Time {
	return reportNow(j.clock, j.Location)
}
