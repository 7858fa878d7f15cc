package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom/stockroom/internal/analytics"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup recomputes the standard reports into the cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskReportsArchive uploads a report snapshot to object storage.
	TaskReportsArchive = "reports:archive"
)

// WarmupPayload selects how many top products the cached inventory view keeps.
type WarmupPayload struct {
	TopN int `json:"top_n,omitempty"`
}

// ArchivePayload describes the snapshot to upload. An empty Period archives
// the previous calendar month.
type ArchivePayload struct {
	Period  string   `json:"period,omitempty"`
	Month   int      `json:"month,omitempty"`
	Year    int      `json:"year,omitempty"`
	Formats []string `json:"formats,omitempty"`
}

// NewWarmupTask constructs a reports warmup task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, body, asynq.Queue(QueueDefault), asynq.Unique(5*time.Minute)), nil
}

// NewArchiveTask constructs a snapshot archive task.
func NewArchiveTask(payload ArchivePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsArchive, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Selector resolves the payload to a period selector relative to now.
func (p ArchivePayload) Selector(now time.Time) (analytics.PeriodSelector, error) {
	raw := strings.ToLower(strings.TrimSpace(p.Period))
	switch raw {
	case "":
		prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		return analytics.Monthly(prev.Month(), prev.Year()), nil
	case "all":
		return analytics.PeriodSelector{}, nil
	}
	year := p.Year
	if year == 0 {
		year = now.Year()
	}
	switch analytics.ParsePeriodKind(raw) {
	case analytics.PeriodDaily:
		return analytics.Daily(now), nil
	case analytics.PeriodWeekly:
		return analytics.Weekly(), nil
	case analytics.PeriodMonthly:
		if p.Month < 1 || p.Month > 12 {
			return analytics.PeriodSelector{}, fmt.Errorf("jobs: monthly archive needs a month between 1 and 12")
		}
		return analytics.Monthly(time.Month(p.Month), year), nil
	case analytics.PeriodYearly:
		return analytics.Yearly(year), nil
	default:
		return analytics.PeriodSelector{}, fmt.Errorf("jobs: unknown archive period %q", p.Period)
	}
}

func (p ArchivePayload) wants(format string) bool {
	if len(p.Formats) == 0 {
		return format == "csv"
	}
	for _, f := range p.Formats {
		if strings.EqualFold(strings.TrimSpace(f), format) {
			return true
		}
	}
	return false
}
