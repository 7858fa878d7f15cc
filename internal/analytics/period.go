package analytics

import (
	"fmt"
	"strings"
	"time"
)

// PeriodKind selects which sales participate in a calculation pass.
type PeriodKind string

const (
	PeriodNone    PeriodKind = ""
	PeriodDaily   PeriodKind = "daily"
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
	PeriodYearly  PeriodKind = "yearly"
)

const weeklyWindow = 7 * 24 * time.Hour

// PeriodSelector carries the kind-specific parameters. Date is used by daily,
// Month and Year by monthly, Year by yearly. Weekly is always relative to now.
type PeriodSelector struct {
	Kind  PeriodKind `json:"kind"`
	Date  time.Time  `json:"date,omitempty"`
	Month time.Month `json:"month,omitempty"`
	Year  int        `json:"year,omitempty"`
}

// Daily selects the calendar day of date.
func Daily(date time.Time) PeriodSelector {
	return PeriodSelector{Kind: PeriodDaily, Date: date}
}

// Weekly selects the trailing seven days.
func Weekly() PeriodSelector {
	return PeriodSelector{Kind: PeriodWeekly}
}

// Monthly selects a calendar month.
func Monthly(month time.Month, year int) PeriodSelector {
	return PeriodSelector{Kind: PeriodMonthly, Month: month, Year: year}
}

// Yearly selects a calendar year.
func Yearly(year int) PeriodSelector {
	return PeriodSelector{Kind: PeriodYearly, Year: year}
}

// Token renders a stable identifier used in cache keys and file names.
// Weekly tokens include the current day since the window moves with the clock.
func (p PeriodSelector) Token(now time.Time) string {
	switch p.Kind {
	case PeriodDaily:
		return "daily-" + p.Date.Format("2006-01-02")
	case PeriodWeekly:
		return "weekly-" + now.Format("2006-01-02")
	case PeriodMonthly:
		return fmt.Sprintf("monthly-%04d-%02d", p.Year, int(p.Month))
	case PeriodYearly:
		return fmt.Sprintf("yearly-%04d", p.Year)
	default:
		return "all"
	}
}

// ParsePeriodKind normalises user input. Unknown kinds map to PeriodNone.
func ParsePeriodKind(raw string) PeriodKind {
	switch PeriodKind(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodDaily:
		return PeriodDaily
	case PeriodWeekly:
		return PeriodWeekly
	case PeriodMonthly:
		return PeriodMonthly
	case PeriodYearly:
		return PeriodYearly
	default:
		return PeriodNone
	}
}

// FilterSales returns the sales that fall inside the selected period. Sales
// with an unusable createdAt are dropped by every dated filter. An empty or
// unrecognised kind returns a copy of the full collection.
func (e Engine) FilterSales(sales []Sale, sel PeriodSelector) []Sale {
	keep := e.periodPredicate(sel)
	if keep == nil {
		out := make([]Sale, len(sales))
		copy(out, sales)
		return out
	}
	out := make([]Sale, 0, len(sales))
	for _, sale := range sales {
		if !sale.CreatedAt.Valid {
			continue
		}
		if keep(sale.CreatedAt.In(e.loc())) {
			out = append(out, sale)
		}
	}
	return out
}

func (e Engine) periodPredicate(sel PeriodSelector) func(time.Time) bool {
	switch sel.Kind {
	case PeriodDaily:
		// The selector date is a civil date; its own calendar fields are compared.
		y, m, d := sel.Date.Date()
		return func(t time.Time) bool {
			ty, tm, td := t.Date()
			return ty == y && tm == m && td == d
		}
	case PeriodWeekly:
		cutoff := e.now().Add(-weeklyWindow)
		return func(t time.Time) bool {
			return !t.Before(cutoff)
		}
	case PeriodMonthly:
		return func(t time.Time) bool {
			return t.Year() == sel.Year && t.Month() == sel.Month
		}
	case PeriodYearly:
		return func(t time.Time) bool {
			return t.Year() == sel.Year
		}
	default:
		return nil
	}
}
