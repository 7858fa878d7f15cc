package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	archived   *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	generation prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddArchived counts bytes uploaded to the archive bucket per export format.
func (m *Metrics) AddArchived(format string, bytes int) {
	if m == nil || bytes <= 0 {
		return
	}
	m.archived.WithLabelValues(format).Add(float64(bytes))
}

// Skipped records a run that yielded because another worker held the lock.
func (m *Metrics) Skipped(job string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(job).Inc()
}

// SetGeneration records the newest dataset generation a job observed.
func (m *Metrics) SetGeneration(gen uint64) {
	if m == nil || m.generation == nil {
		return
	}
	m.generation.Set(float64(gen))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockroom_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	archived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_report_archive_bytes_total",
		Help: "Bytes of report snapshots uploaded to object storage.",
	}, []string{"format"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_jobs_skipped_total",
		Help: "Job runs skipped because another worker held the lock.",
	}, []string{"job"})
	generation := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stockroom_report_generation",
		Help: "Newest dataset generation loaded by the report warmup.",
	})
	registerer.MustRegister(runs, failures, duration, archived, skipped, generation)
	return &Metrics{runs: runs, failures: failures, duration: duration, archived: archived, skipped: skipped, generation: generation}
}
