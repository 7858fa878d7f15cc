package analytics

// Totals is the output of the cost/revenue reducer.
type Totals struct {
	Revenue         float64 `json:"revenue"`
	CostOfGoodsSold float64 `json:"costOfGoodsSold"`
}

// productIndex maps product identifiers to the first product carrying them.
type productIndex map[string]Product

func indexProducts(products []Product) productIndex {
	idx := make(productIndex, len(products))
	for _, p := range products {
		if _, seen := idx[p.ID]; seen {
			continue
		}
		idx[p.ID] = p
	}
	return idx
}

// lineCost is costPrice x productQty for the referenced product, or 0 when the
// product is no longer in the catalogue.
func (idx productIndex) lineCost(sale Sale) float64 {
	product, ok := idx[sale.ProductID]
	if !ok {
		return 0
	}
	return product.CostPrice.Float() * sale.ProductQty.Float()
}

// Reduce sums revenue (grandTotal) and cost of goods sold over sales.
// Sales whose product is missing contribute revenue but no cost.
func (e Engine) Reduce(sales []Sale, products []Product) Totals {
	return reduceWith(sales, indexProducts(products))
}

func reduceWith(sales []Sale, idx productIndex) Totals {
	var totals Totals
	for _, sale := range sales {
		totals.Revenue += sale.GrandTotal.Float()
		totals.CostOfGoodsSold += idx.lineCost(sale)
	}
	return totals
}
