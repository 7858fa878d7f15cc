package analytics

// Table is a flat export table. Cells hold only strings, ints and float64s;
// currency formatting is left to the presentation layer.
type Table struct {
	Title  string
	Header []string
	Rows   [][]interface{}
}

// SummaryTable flattens a profit/loss summary into metric/value rows.
func SummaryTable(s Summary) Table {
	return Table{
		Title:  "Profit & Loss",
		Header: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Revenue", s.Revenue},
			{"Cost of Goods Sold", s.CostOfGoodsSold},
			{"Gross Profit", s.GrossProfit},
			{"Gross Margin %", s.GrossMargin},
			{"Expenses (Estimated)", s.Expenses},
			{"Net Profit", s.NetProfit},
			{"Net Margin %", s.NetMargin},
			{"Profit per Sale", s.ProfitPerSale},
			{"Daily Average", s.DailyAverage},
			{"Monthly Average", s.MonthlyAverage},
			{"Best Day", s.BestDay.Date},
			{"Best Day Profit", s.BestDay.Profit},
			{"Worst Day", s.WorstDay.Date},
			{"Worst Day Profit", s.WorstDay.Profit},
			{"Trend", string(s.Trend)},
			{"Sales Count", s.SalesCount},
		},
	}
}

// HistoryTable flattens the monthly history.
func HistoryTable(points []HistoricalPoint) Table {
	rows := make([][]interface{}, 0, len(points))
	for _, p := range points {
		rows = append(rows, []interface{}{p.Month, p.Year, p.Revenue, p.Cost, p.Profit, p.Margin})
	}
	return Table{
		Title:  "Monthly Trend",
		Header: []string{"Month", "Year", "Revenue", "Cost", "Profit", "Margin %"},
		Rows:   rows,
	}
}

// ValuationTable flattens the headline stock valuation figures.
func ValuationTable(v Valuation) Table {
	return Table{
		Title:  "Stock Valuation",
		Header: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Products", v.ProductCount},
			{"Total Quantity", v.TotalQuantity},
			{"Total Stock Value", v.TotalStockValue},
			{"Total Retail Value", v.TotalRetailValue},
			{"Potential Profit", v.TotalProfit},
			{"Profit Margin %", v.ProfitMargin},
			{"Low Stock", v.LowStockCount},
			{"Critical (<=3)", v.Bands.Critical},
			{"Very Low (<=5)", v.Bands.VeryLow},
			{"Low (<=10)", v.Bands.Low},
			{"Out of Stock", v.OutOfStockCount},
		},
	}
}

// CategoryTable flattens the category distribution.
func CategoryTable(categories []CategoryValue) Table {
	rows := make([][]interface{}, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []interface{}{c.Category, c.ProductCount, c.Value, c.Share})
	}
	return Table{
		Title:  "Stock Value by Category",
		Header: []string{"Category", "Products", "Value", "Share %"},
		Rows:   rows,
	}
}

// TopProductsTable flattens the most valuable products.
func TopProductsTable(products []ProductValue) Table {
	rows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		rows = append(rows, []interface{}{p.Name, p.Category, p.Quantity, p.StockValue, p.RetailValue})
	}
	return Table{
		Title:  "Top Products by Stock Value",
		Header: []string{"Product", "Category", "Quantity", "Stock Value", "Retail Value"},
		Rows:   rows,
	}
}
