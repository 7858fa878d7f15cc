package svg

import (
	"html/template"

	"github.com/stockroom/stockroom/internal/analytics"
)

// ProfitTrend plots monthly profit across the trailing history. Loss months
// are marked in red.
func ProfitTrend(points []analytics.HistoricalPoint) (template.HTML, error) {
	labels, profit := make([]string, len(points)), make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Month
		profit[i] = p.Profit
	}
	return Line(DefaultWidth, DefaultHeight, profit, labels, LineOpts{
		Title:         "Profit Trend",
		Description:   "Monthly profit over the last twelve months",
		NegativeColor: "#dc2626",
		FillColor:     "rgba(37,99,235,0.12)",
		ShowDots:      true,
	})
}

// RevenueCost compares monthly revenue and cost of goods sold.
func RevenueCost(points []analytics.HistoricalPoint) (template.HTML, error) {
	labels := make([]string, len(points))
	revenue, cost := make([]float64, len(points)), make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.Month
		revenue[i] = p.Revenue
		cost[i] = p.Cost
	}
	return Bars(DefaultWidth, DefaultHeight, revenue, cost, labels, BarOpts{
		Title:        "Revenue vs Cost",
		Description:  "Monthly revenue against cost of goods sold",
		SeriesALabel: "Revenue",
		SeriesBLabel: "Cost",
		ColorA:       "#16a34a",
		ColorB:       "#f97316",
	})
}
