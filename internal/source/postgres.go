package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/platform/db"
)

const (
	productsQuery = `SELECT id, name, category, cost_price, price, quantity, created_at, updated_at
FROM products ORDER BY created_at, id`
	salesQuery = `SELECT id, product_id, product_name, product_qty, grand_total, paid_amount, due, created_at
FROM sales ORDER BY created_at, id`
	preOrdersQuery = `SELECT customer_name, product_name, product_qty, total_amount, paid_amount, due_amount,
       converted_to_sale, created_at
FROM pre_orders ORDER BY created_at`
)

// PostgresSource reads the collections from the inventory database inside a
// single repeatable-read snapshot.
type PostgresSource struct {
	pool        db.Beginner
	generations *Generations
}

// NewPostgresSource constructs the source. g may be nil.
func NewPostgresSource(pool db.Beginner, g *Generations) *PostgresSource {
	if g == nil {
		g = &Generations{}
	}
	return &PostgresSource{pool: pool, generations: g}
}

// Load implements analytics.Source.
func (s *PostgresSource) Load(ctx context.Context) (analytics.Dataset, error) {
	var ds analytics.Dataset
	err := db.WithReadTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if ds.Products, err = loadProducts(ctx, tx); err != nil {
			return err
		}
		if ds.Sales, err = loadSales(ctx, tx); err != nil {
			return err
		}
		ds.PreOrders, err = loadPreOrders(ctx, tx)
		return err
	})
	if err != nil {
		return analytics.Dataset{}, err
	}
	ds.Generation = s.generations.Next()
	ds.FetchedAt = time.Now()
	return ds, nil
}

func loadProducts(ctx context.Context, tx pgx.Tx) ([]analytics.Product, error) {
	rows, err := tx.Query(ctx, productsQuery)
	if err != nil {
		return nil, fmt.Errorf("source: query products: %w", err)
	}
	defer rows.Close()
	out := make([]analytics.Product, 0)
	for rows.Next() {
		var (
			p                    analytics.Product
			cost, price, qty     decimal.NullDecimal
			createdAt, updatedAt *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &cost, &price, &qty, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("source: scan product: %w", err)
		}
		p.CostPrice, p.Price, p.Quantity = number(cost), number(price), number(qty)
		p.CreatedAt, p.UpdatedAt = timestamp(createdAt), timestamp(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadSales(ctx context.Context, tx pgx.Tx) ([]analytics.Sale, error) {
	rows, err := tx.Query(ctx, salesQuery)
	if err != nil {
		return nil, fmt.Errorf("source: query sales: %w", err)
	}
	defer rows.Close()
	out := make([]analytics.Sale, 0)
	for rows.Next() {
		var (
			s                     analytics.Sale
			qty, total, paid, due decimal.NullDecimal
			createdAt             *time.Time
		)
		if err := rows.Scan(&s.ID, &s.ProductID, &s.ProductName, &qty, &total, &paid, &due, &createdAt); err != nil {
			return nil, fmt.Errorf("source: scan sale: %w", err)
		}
		s.ProductQty, s.GrandTotal, s.PaidAmount, s.Due = number(qty), number(total), number(paid), number(due)
		s.CreatedAt = timestamp(createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadPreOrders(ctx context.Context, tx pgx.Tx) ([]analytics.PreOrder, error) {
	rows, err := tx.Query(ctx, preOrdersQuery)
	if err != nil {
		return nil, fmt.Errorf("source: query pre_orders: %w", err)
	}
	defer rows.Close()
	out := make([]analytics.PreOrder, 0)
	for rows.Next() {
		var (
			po                    analytics.PreOrder
			qty, total, paid, due decimal.NullDecimal
			createdAt             *time.Time
		)
		if err := rows.Scan(&po.CustomerName, &po.ProductName, &qty, &total, &paid, &due, &po.ConvertedToSale, &createdAt); err != nil {
			return nil, fmt.Errorf("source: scan pre_order: %w", err)
		}
		po.ProductQTY, po.TotalAmount, po.PaidAmount, po.DueAmount = number(qty), number(total), number(paid), number(due)
		po.CreatedAt = timestamp(createdAt)
		out = append(out, po)
	}
	return out, rows.Err()
}

func number(d decimal.NullDecimal) analytics.Number {
	if !d.Valid {
		return analytics.Number{}
	}
	return analytics.Num(analytics.ParseOrZero(d.Decimal))
}

func timestamp(t *time.Time) analytics.Timestamp {
	if t == nil {
		return analytics.Timestamp{}
	}
	return analytics.At(*t)
}
