package analytics

import (
	"strconv"
	"time"
)

// pointPeriod renders a history point's month as YYYY-MM.
func pointPeriod(p HistoricalPoint) string {
	t, err := time.Parse("Jan 2006", p.Month+" "+strconv.Itoa(p.Year))
	if err != nil {
		return p.Month
	}
	return t.Format("2006-01")
}

func marginOf(revenue, cost, expenseRatio float64) float64 {
	return ratioPercent(MonthProfit(revenue, cost, expenseRatio), revenue)
}
