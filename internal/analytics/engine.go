package analytics

import "time"

// EstimatedExpenseRatio is the share of revenue booked as operating expense
// until real expense records are wired in. Reports label it as an estimate.
const EstimatedExpenseRatio = 0.10

// Engine holds the policy knobs for the report reducers. All methods are pure
// functions of their arguments plus the engine clock.
type Engine struct {
	ExpenseRatio float64
	Location     *time.Location
	Now          func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithExpenseRatio overrides the estimated expense ratio.
func WithExpenseRatio(ratio float64) EngineOption {
	return func(e *Engine) {
		if ratio >= 0 {
			e.ExpenseRatio = ratio
		}
	}
}

// WithLocation sets the timezone used for calendar day/month bucketing.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.Location = loc
		}
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.Now = now
		}
	}
}

// NewEngine returns an Engine with the default policy.
func NewEngine(opts ...EngineOption) Engine {
	e := Engine{
		ExpenseRatio: EstimatedExpenseRatio,
		Location:     time.Local,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e Engine) loc() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

func (e Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().In(e.loc())
	}
	return e.Now().In(e.loc())
}

func (e Engine) expenseShare(revenue float64) float64 {
	return revenue * e.ExpenseRatio
}

// dayKey returns the local calendar day of t as YYYY-MM-DD.
func (e Engine) dayKey(t Timestamp) string {
	return t.In(e.loc()).Format("2006-01-02")
}

func (e Engine) monthKey(t Timestamp) string {
	return t.In(e.loc()).Format("2006-01")
}

func ratioPercent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
