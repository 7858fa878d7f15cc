package analytics

// PreOrderSummary aggregates pre-orders that have not been converted to sales.
type PreOrderSummary struct {
	Active      int     `json:"active"`
	Converted   int     `json:"converted"`
	Quantity    float64 `json:"quantity"`
	TotalAmount float64 `json:"totalAmount"`
	PaidAmount  float64 `json:"paidAmount"`
	DueAmount   float64 `json:"dueAmount"`
}

// ActivePreOrders drops pre-orders already converted to a sale.
func ActivePreOrders(preorders []PreOrder) []PreOrder {
	out := make([]PreOrder, 0, len(preorders))
	for _, po := range preorders {
		if po.ConvertedToSale {
			continue
		}
		out = append(out, po)
	}
	return out
}

// SummarizePreOrders totals the active pre-order book.
func SummarizePreOrders(preorders []PreOrder) PreOrderSummary {
	active := ActivePreOrders(preorders)
	s := PreOrderSummary{Active: len(active), Converted: len(preorders) - len(active)}
	for _, po := range active {
		s.Quantity += po.ProductQTY.Float()
		s.TotalAmount += po.TotalAmount.Float()
		s.PaidAmount += po.PaidAmount.Float()
		s.DueAmount += po.DueAmount.Float()
	}
	return s
}
