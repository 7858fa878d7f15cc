package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/analytics/archive"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	"github.com/stockroom/stockroom/internal/shared"
)

type stubReports struct {
	mu      sync.Mutex
	calls   []string
	lastSel analytics.PeriodSelector
	err     error
}

func (s *stubReports) note(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubReports) ProfitLoss(ctx context.Context, sel analytics.PeriodSelector) (analytics.Summary, error) {
	s.note("profit_loss")
	return analytics.Summary{}, s.err
}

func (s *stubReports) History(ctx context.Context) ([]analytics.HistoricalPoint, error) {
	s.note("history")
	return nil, s.err
}

func (s *stubReports) Inventory(ctx context.Context, topN int) (analytics.Valuation, error) {
	s.note("inventory")
	return analytics.Valuation{}, s.err
}

func (s *stubReports) StockAlerts(ctx context.Context) ([]analytics.StockAlert, error) {
	s.note("stock_alerts")
	return nil, s.err
}

func (s *stubReports) PreOrders(ctx context.Context) (analytics.PreOrderSummary, error) {
	s.note("preorders")
	return analytics.PreOrderSummary{}, s.err
}

func (s *stubReports) Report(ctx context.Context, sel analytics.PeriodSelector, topN int) (analytics.Report, error) {
	s.note("report")
	s.mu.Lock()
	s.lastSel = sel
	s.mu.Unlock()
	return analytics.Report{Generation: 3, Summary: analytics.Summary{Revenue: 99}}, s.err
}

type memUploader struct {
	objects map[string][]byte
}

func (m *memUploader) Put(ctx context.Context, name, ext, contentType string, body []byte) (archive.Object, error) {
	key := name + "." + ext
	m.objects[key] = body
	return archive.Object{Key: key, Size: len(body)}, nil
}

var jobNow = time.Date(2025, time.March, 3, 2, 0, 0, 0, time.UTC)

func redisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWarmupComputesEveryView(t *testing.T) {
	_, client := redisClient(t)
	reports := &stubReports{}
	job := NewWarmupJob(reports, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return jobNow }

	task, err := NewWarmupTask(WarmupPayload{TopN: 5})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, reports.calls, 10)
	require.Contains(t, reports.calls, "preorders")
	require.Contains(t, reports.calls, "stock_alerts")
}

func TestWarmupSkipsWhenLocked(t *testing.T) {
	mr, client := redisClient(t)
	require.NoError(t, mr.Set(shared.ReportLockKey(TaskReportsWarmup), "other"))
	reports := &stubReports{}
	job := NewWarmupJob(reports, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, nil)))
	require.Empty(t, reports.calls)
	got, err := mr.Get(shared.ReportLockKey(TaskReportsWarmup))
	require.NoError(t, err)
	require.Equal(t, "other", got)
}

func TestWarmupPropagatesFailureAndReleasesLock(t *testing.T) {
	mr, client := redisClient(t)
	reports := &stubReports{err: errors.New("backend down")}
	job := NewWarmupJob(reports, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, nil))
	require.ErrorContains(t, err, "backend down")
	require.False(t, mr.Exists(shared.ReportLockKey(TaskReportsWarmup)))
}

func TestWarmupRejectsBadPayload(t *testing.T) {
	job := NewWarmupJob(&stubReports{}, nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestArchiveUploadsPreviousMonthCSV(t *testing.T) {
	_, client := redisClient(t)
	reports := &stubReports{}
	uploader := &memUploader{objects: map[string][]byte{}}
	job := NewArchiveJob(reports, uploader, nil, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return jobNow }

	task, err := NewArchiveTask(ArchivePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, analytics.Monthly(time.February, 2025), reports.lastSel)
	body, ok := uploader.objects["inventory-report-monthly-2025-02.csv"]
	require.True(t, ok, "expected csv snapshot, got %v", uploader.objects)
	require.Contains(t, string(body), "Period,monthly-2025-02")
	require.Contains(t, string(body), "Revenue,99.00")
}

func TestArchiveSkipsPDFWithoutRenderer(t *testing.T) {
	uploader := &memUploader{objects: map[string][]byte{}}
	job := NewArchiveJob(&stubReports{}, uploader, nil, nil, nil, nil)
	job.clock = func() time.Time { return jobNow }

	task, err := NewArchiveTask(ArchivePayload{Period: "yearly", Formats: []string{"pdf"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, uploader.objects)
}

func TestArchiveResolvesPreviousMonthInReportZone(t *testing.T) {
	reports := &stubReports{}
	uploader := &memUploader{objects: map[string][]byte{}}
	job := NewArchiveJob(reports, uploader, nil, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.Location = time.FixedZone("UTC+6", 6*3600)
	// Still February in UTC, already March 1st in the report zone.
	job.clock = func() time.Time { return time.Date(2025, time.February, 28, 20, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskReportsArchive, nil)))
	require.Equal(t, analytics.Monthly(time.February, 2025), reports.lastSel)
	require.Contains(t, uploader.objects, "inventory-report-monthly-2025-02.csv")
}

type generationReports struct {
	stubReports
	gen uint64
}

func (g *generationReports) LatestGeneration() uint64 { return g.gen }

func TestWarmupRecordsLatestGeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reports := &generationReports{gen: 7}
	job := NewWarmupJob(reports, nil, nil, jobmetrics.NewMetrics(reg))
	job.clock = func() time.Time { return jobNow }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, nil)))

	families, err := reg.Gather()
	require.NoError(t, err)
	var gauge float64
	found := false
	for _, mf := range families {
		if mf.GetName() == "stockroom_report_generation" {
			gauge = mf.GetMetric()[0].GetGauge().GetValue()
			found = true
		}
	}
	require.True(t, found)
	require.Equal(t, float64(7), gauge)
}

func TestArchivePayloadSelector(t *testing.T) {
	sel, err := ArchivePayload{Period: "all"}.Selector(jobNow)
	require.NoError(t, err)
	require.Equal(t, analytics.PeriodNone, sel.Kind)

	sel, err = ArchivePayload{Period: "Monthly", Month: 12, Year: 2024}.Selector(jobNow)
	require.NoError(t, err)
	require.Equal(t, analytics.Monthly(time.December, 2024), sel)

	sel, err = ArchivePayload{}.Selector(time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, analytics.Monthly(time.December, 2024), sel)

	_, err = ArchivePayload{Period: "monthly"}.Selector(jobNow)
	require.Error(t, err)
	_, err = ArchivePayload{Period: "hourly"}.Selector(jobNow)
	require.Error(t, err)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: QueueDefault}, nil
}

func TestHandlerTriggersJobs(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := chi.NewRouter()
	router.Route("/jobs", NewHandler(nil, NewClientWith(enq), nil).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), TaskReportsWarmup)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/archive", strings.NewReader(`{"period":"yearly","year":2024}`))
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, enq.tasks, 2)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/archive", strings.NewReader(`{"period":"hourly"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	enq.err = asynq.ErrDuplicateTask
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/warmup", nil))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"pending":0`)
}
