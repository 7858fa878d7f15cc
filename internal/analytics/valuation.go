package analytics

import "sort"

// Stock thresholds for the low-stock bands. Bands are half-open on the left so
// they partition (0, LowStockThreshold] without gaps.
const (
	CriticalStockThreshold = 3
	VeryLowStockThreshold  = 5
	LowStockThreshold      = 10

	// DefaultTopProducts is used when the caller asks for a non-positive N.
	DefaultTopProducts = 10

	// UncategorizedLabel groups products without a category.
	UncategorizedLabel = "Uncategorized"
)

// StockLevel classifies a product's on-hand quantity.
type StockLevel string

const (
	StockOutOfStock StockLevel = "out_of_stock"
	StockCritical   StockLevel = "critical"
	StockVeryLow    StockLevel = "very_low"
	StockLow        StockLevel = "low"
	StockHealthy    StockLevel = "healthy"
	StockUnknown    StockLevel = "unknown"
)

// ClassifyStock places a quantity in its stock band. Missing, unparseable and
// negative quantities are StockUnknown so they fall outside every band.
func ClassifyStock(quantity Number) StockLevel {
	if !quantity.Valid {
		return StockUnknown
	}
	q := quantity.Value
	switch {
	case q == 0:
		return StockOutOfStock
	case q < 0:
		return StockUnknown
	case q <= CriticalStockThreshold:
		return StockCritical
	case q <= VeryLowStockThreshold:
		return StockVeryLow
	case q <= LowStockThreshold:
		return StockLow
	default:
		return StockHealthy
	}
}

// StockBands counts products per low-stock band.
type StockBands struct {
	Critical   int `json:"critical"`
	VeryLow    int `json:"veryLow"`
	Low        int `json:"low"`
	OutOfStock int `json:"outOfStock"`
}

// CategoryValue is the stock value held in one category.
type CategoryValue struct {
	Category     string  `json:"category"`
	Value        float64 `json:"value"`
	ProductCount int     `json:"productCount"`
	Share        float64 `json:"share"`
}

// ProductValue is a product's stock valuation.
type ProductValue struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Quantity    float64 `json:"quantity"`
	StockValue  float64 `json:"stockValue"`
	RetailValue float64 `json:"retailValue"`
}

// Valuation summarises the stock on hand at cost and at retail.
type Valuation struct {
	ProductCount         int             `json:"productCount"`
	TotalQuantity        float64         `json:"totalQuantity"`
	TotalStockValue      float64         `json:"totalStockValue"`
	TotalRetailValue     float64         `json:"totalRetailValue"`
	TotalProfit          float64         `json:"totalProfit"`
	ProfitMargin         float64         `json:"profitMargin"`
	LowStockCount        int             `json:"lowStockCount"`
	OutOfStockCount      int             `json:"outOfStockCount"`
	Bands                StockBands      `json:"bands"`
	CategoryDistribution []CategoryValue `json:"categoryDistribution"`
	TopProducts          []ProductValue  `json:"topProducts"`
}

// CategoryOf returns the product's category label with the fallback applied.
// Matching is exact and case sensitive.
func CategoryOf(p Product) string {
	if p.Category == nil || *p.Category == "" {
		return UncategorizedLabel
	}
	return *p.Category
}

// Valuate computes stock valuation figures from the product collection.
func (e Engine) Valuate(products []Product, topN int) Valuation {
	if topN <= 0 {
		topN = DefaultTopProducts
	}
	v := Valuation{ProductCount: len(products)}

	categories := make([]CategoryValue, 0)
	categoryPos := make(map[string]int)
	values := make([]ProductValue, 0, len(products))

	for _, p := range products {
		qty := p.Quantity.Float()
		stockValue := p.CostPrice.Float() * qty
		retailValue := p.Price.Float() * qty

		v.TotalQuantity += qty
		v.TotalStockValue += stockValue
		v.TotalRetailValue += retailValue

		switch ClassifyStock(p.Quantity) {
		case StockOutOfStock:
			v.OutOfStockCount++
			v.Bands.OutOfStock++
		case StockCritical:
			v.LowStockCount++
			v.Bands.Critical++
		case StockVeryLow:
			v.LowStockCount++
			v.Bands.VeryLow++
		case StockLow:
			v.LowStockCount++
			v.Bands.Low++
		}

		category := CategoryOf(p)
		if i, ok := categoryPos[category]; ok {
			categories[i].Value += stockValue
			categories[i].ProductCount++
		} else {
			categoryPos[category] = len(categories)
			categories = append(categories, CategoryValue{Category: category, Value: stockValue, ProductCount: 1})
		}

		values = append(values, ProductValue{
			ID:          p.ID,
			Name:        p.Name,
			Category:    category,
			Quantity:    qty,
			StockValue:  stockValue,
			RetailValue: retailValue,
		})
	}

	v.TotalProfit = v.TotalRetailValue - v.TotalStockValue
	v.ProfitMargin = ratioPercent(v.TotalProfit, v.TotalRetailValue)

	for i := range categories {
		categories[i].Share = ratioPercent(categories[i].Value, v.TotalStockValue)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Value > categories[j].Value
	})
	v.CategoryDistribution = categories

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].StockValue > values[j].StockValue
	})
	if len(values) > topN {
		values = values[:topN]
	}
	v.TopProducts = values
	return v
}

// StockAlert is a product that needs restocking attention.
type StockAlert struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Quantity float64    `json:"quantity"`
	Level    StockLevel `json:"level"`
}

// StockAlerts lists out-of-stock and low-stock products, lowest quantity first.
func (e Engine) StockAlerts(products []Product) []StockAlert {
	alerts := make([]StockAlert, 0)
	for _, p := range products {
		level := ClassifyStock(p.Quantity)
		switch level {
		case StockOutOfStock, StockCritical, StockVeryLow, StockLow:
		default:
			continue
		}
		alerts = append(alerts, StockAlert{
			ID:       p.ID,
			Name:     p.Name,
			Category: CategoryOf(p),
			Quantity: p.Quantity.Float(),
			Level:    level,
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Quantity < alerts[j].Quantity
	})
	return alerts
}
