package analytics

// Trend is the direction of net profit for the selected period.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// DayProfit identifies a calendar day and the profit booked on it.
// Date is empty when no dated sales were available.
type DayProfit struct {
	Date   string  `json:"date"`
	Profit float64 `json:"profit"`
}

// Summary is the profit/loss view over a filtered set of sales.
type Summary struct {
	Revenue           float64   `json:"revenue"`
	CostOfGoodsSold   float64   `json:"costOfGoodsSold"`
	GrossProfit       float64   `json:"grossProfit"`
	GrossMargin       float64   `json:"grossMargin"`
	Expenses          float64   `json:"expenses"`
	ExpensesEstimated bool      `json:"expensesEstimated"`
	NetProfit         float64   `json:"netProfit"`
	NetMargin         float64   `json:"netMargin"`
	ProfitPerSale     float64   `json:"profitPerSale"`
	DailyAverage      float64   `json:"dailyAverage"`
	MonthlyAverage    float64   `json:"monthlyAverage"`
	BestDay           DayProfit `json:"bestDay"`
	WorstDay          DayProfit `json:"worstDay"`
	Trend             Trend     `json:"trend"`
	SalesCount        int       `json:"salesCount"`
}

// Summarize derives the full profit/loss summary from already filtered sales.
func (e Engine) Summarize(sales []Sale, products []Product) Summary {
	idx := indexProducts(products)
	totals := reduceWith(sales, idx)

	s := Summary{
		Revenue:           totals.Revenue,
		CostOfGoodsSold:   totals.CostOfGoodsSold,
		ExpensesEstimated: true,
		SalesCount:        len(sales),
	}
	s.GrossProfit = s.Revenue - s.CostOfGoodsSold
	s.GrossMargin = ratioPercent(s.GrossProfit, s.Revenue)
	s.Expenses = e.expenseShare(s.Revenue)
	s.NetProfit = s.GrossProfit - s.Expenses
	s.NetMargin = ratioPercent(s.NetProfit, s.Revenue)
	if len(sales) > 0 {
		s.ProfitPerSale = s.NetProfit / float64(len(sales))
	}

	days := e.dailyProfits(sales, idx)
	s.DailyAverage = s.NetProfit / float64(max(len(days), 1))
	s.MonthlyAverage = s.NetProfit / float64(max(e.distinctMonths(sales), 1))
	s.BestDay, s.WorstDay = bestAndWorst(days)

	s.Trend = TrendDown
	if s.NetProfit >= 0 {
		s.Trend = TrendUp
	}
	return s
}

// dailyProfits groups per-line profit by local calendar day, in the order
// the days are first seen.
func (e Engine) dailyProfits(sales []Sale, idx productIndex) []DayProfit {
	days := make([]DayProfit, 0)
	position := make(map[string]int)
	for _, sale := range sales {
		if !sale.CreatedAt.Valid {
			continue
		}
		key := e.dayKey(sale.CreatedAt)
		revenue := sale.GrandTotal.Float()
		profit := revenue - idx.lineCost(sale) - e.expenseShare(revenue)
		if i, ok := position[key]; ok {
			days[i].Profit += profit
			continue
		}
		position[key] = len(days)
		days = append(days, DayProfit{Date: key, Profit: profit})
	}
	return days
}

func (e Engine) distinctMonths(sales []Sale) int {
	months := make(map[string]struct{})
	for _, sale := range sales {
		if !sale.CreatedAt.Valid {
			continue
		}
		months[e.monthKey(sale.CreatedAt)] = struct{}{}
	}
	return len(months)
}

// bestAndWorst keeps the first day encountered on ties.
func bestAndWorst(days []DayProfit) (DayProfit, DayProfit) {
	if len(days) == 0 {
		return DayProfit{}, DayProfit{}
	}
	best, worst := days[0], days[0]
	for _, day := range days[1:] {
		if day.Profit > best.Profit {
			best = day
		}
		if day.Profit < worst.Profit {
			worst = day
		}
	}
	return best, worst
}
