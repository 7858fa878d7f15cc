package analytics

import "time"

// HistoryMonths is the fixed length of the trailing monthly history.
const HistoryMonths = 12

// HistoricalPoint is one calendar month of the trailing history.
type HistoricalPoint struct {
	Month   string  `json:"month"`
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
	Cost    float64 `json:"cost"`
	Profit  float64 `json:"profit"`
	Margin  float64 `json:"margin"`
}

// MonthlyHistory builds the trailing twelve calendar months ending with the
// current month, oldest first. It ignores any period selection and always
// scans the full sales collection.
func (e Engine) MonthlyHistory(sales []Sale, products []Product) []HistoricalPoint {
	idx := indexProducts(products)
	now := e.now()
	loc := e.loc()

	type bucket struct {
		revenue float64
		cost    float64
	}
	buckets := make(map[string]*bucket, HistoryMonths)
	months := make([]time.Time, 0, HistoryMonths)
	for i := HistoryMonths - 1; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, loc)
		months = append(months, month)
		buckets[month.Format("2006-01")] = &bucket{}
	}

	for _, sale := range sales {
		if !sale.CreatedAt.Valid {
			continue
		}
		b, ok := buckets[e.monthKey(sale.CreatedAt)]
		if !ok {
			continue
		}
		b.revenue += sale.GrandTotal.Float()
		b.cost += idx.lineCost(sale)
	}

	points := make([]HistoricalPoint, 0, HistoryMonths)
	for _, month := range months {
		b := buckets[month.Format("2006-01")]
		points = append(points, e.historicalPoint(month, b.revenue, b.cost))
	}
	return points
}

func (e Engine) historicalPoint(month time.Time, revenue, cost float64) HistoricalPoint {
	profit := MonthProfit(revenue, cost, e.ExpenseRatio)
	return HistoricalPoint{
		Month:   month.Format("Jan"),
		Year:    month.Year(),
		Revenue: revenue,
		Cost:    cost,
		Profit:  profit,
		Margin:  ratioPercent(profit, revenue),
	}
}

// MonthProfit is revenue less cost less the estimated expense share.
func MonthProfit(revenue, cost, expenseRatio float64) float64 {
	return revenue - cost - revenue*expenseRatio
}
