package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultLoadTimeout bounds a shared dataset load, which is detached from the
// request that started it.
const defaultLoadTimeout = 30 * time.Second

// ErrNoSource is returned when the service has nowhere to load records from.
var ErrNoSource = errors.New("analytics: source not configured")

// Source loads one complete fetch generation of the three collections.
// Implementations must never return a partially loaded Dataset.
type Source interface {
	Load(ctx context.Context) (Dataset, error)
}

// Report bundles every view computed from a single dataset.
type Report struct {
	Generation  uint64            `json:"generation"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Period      PeriodSelector    `json:"period"`
	Summary     Summary           `json:"summary"`
	History     []HistoricalPoint `json:"history"`
	Valuation   Valuation         `json:"valuation"`
	PreOrders   PreOrderSummary   `json:"preOrders"`
}

// BuildReport runs every reducer over one dataset.
func (e Engine) BuildReport(ds Dataset, sel PeriodSelector, topN int) Report {
	return Report{
		Generation:  ds.Generation,
		GeneratedAt: e.now(),
		Period:      sel,
		Summary:     e.Summarize(e.FilterSales(ds.Sales, sel), ds.Products),
		History:     e.MonthlyHistory(ds.Sales, ds.Products),
		Valuation:   e.Valuate(ds.Products, topN),
		PreOrders:   SummarizePreOrders(ds.PreOrders),
	}
}

// Service coordinates dataset loading, the engine and the cache layer.
type Service struct {
	source Source
	engine Engine
	cache  *Cache
	group  singleflight.Group
	latest atomic.Uint64

	loadTimeout time.Duration
}

// NewService wires a Source with an Engine and a Cache helper. cache may be nil.
func NewService(source Source, engine Engine, cache *Cache) *Service {
	return &Service{source: source, engine: engine, cache: cache, loadTimeout: defaultLoadTimeout}
}

// Engine exposes the policy the service computes with.
func (s *Service) Engine() Engine {
	return s.engine
}

// Cache exposes the cache helper, possibly nil.
func (s *Service) Cache() *Cache {
	return s.cache
}

// LatestGeneration is the newest dataset generation observed by the service.
func (s *Service) LatestGeneration() uint64 {
	return s.latest.Load()
}

// Dataset loads a fresh dataset from the source.
func (s *Service) Dataset(ctx context.Context) (Dataset, error) {
	if s.source == nil {
		return Dataset{}, ErrNoSource
	}
	ds, err := s.source.Load(ctx)
	if err != nil {
		return Dataset{}, err
	}
	for {
		cur := s.latest.Load()
		if ds.Generation <= cur || s.latest.CompareAndSwap(cur, ds.Generation) {
			break
		}
	}
	return ds, nil
}

// ProfitLoss returns the summary for the selected period.
func (s *Service) ProfitLoss(ctx context.Context, sel PeriodSelector) (Summary, error) {
	var out Summary
	err := s.fetch(ctx, keyProfitLoss(sel.Token(s.engine.now())), &out, func(ds Dataset) interface{} {
		return s.engine.Summarize(s.engine.FilterSales(ds.Sales, sel), ds.Products)
	})
	return out, err
}

// History returns the trailing twelve-month history.
func (s *Service) History(ctx context.Context) ([]HistoricalPoint, error) {
	var out []HistoricalPoint
	err := s.fetch(ctx, keyHistory(s.engine.now().Format("2006-01")), &out, func(ds Dataset) interface{} {
		return s.engine.MonthlyHistory(ds.Sales, ds.Products)
	})
	return out, err
}

// Inventory returns the stock valuation with the top N products.
func (s *Service) Inventory(ctx context.Context, topN int) (Valuation, error) {
	if topN <= 0 {
		topN = DefaultTopProducts
	}
	var out Valuation
	err := s.fetch(ctx, keyInventory(topN), &out, func(ds Dataset) interface{} {
		return s.engine.Valuate(ds.Products, topN)
	})
	return out, err
}

// StockAlerts returns every low or out-of-stock product.
func (s *Service) StockAlerts(ctx context.Context) ([]StockAlert, error) {
	var out []StockAlert
	err := s.fetch(ctx, keyStockAlerts(), &out, func(ds Dataset) interface{} {
		return s.engine.StockAlerts(ds.Products)
	})
	return out, err
}

// PreOrders returns the active pre-order book summary.
func (s *Service) PreOrders(ctx context.Context) (PreOrderSummary, error) {
	var out PreOrderSummary
	err := s.fetch(ctx, keyPreOrders(), &out, func(ds Dataset) interface{} {
		return SummarizePreOrders(ds.PreOrders)
	})
	return out, err
}

// Report computes every view from a single dataset.
func (s *Service) Report(ctx context.Context, sel PeriodSelector, topN int) (Report, error) {
	if topN <= 0 {
		topN = DefaultTopProducts
	}
	var out Report
	err := s.fetch(ctx, keyReport(sel.Token(s.engine.now()), topN), &out, func(ds Dataset) interface{} {
		return s.engine.BuildReport(ds, sel, topN)
	})
	return out, err
}

// fetch resolves key from the cache or computes it from one fresh dataset.
// Concurrent misses on the same versioned key share a single load. The load
// outlives any one caller and is bounded by the service load timeout.
func (s *Service) fetch(ctx context.Context, keyBase string, dest interface{}, compute func(Dataset) interface{}) error {
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	shared := func(ctx context.Context) (interface{}, error) {
		ch := s.group.DoChan(key, func() (interface{}, error) {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
			defer cancel()
			ds, err := s.Dataset(loadCtx)
			if err != nil {
				return nil, err
			}
			return compute(ds), nil
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.Val, res.Err
		}
	}
	return s.cache.FetchJSON(ctx, key, dest, shared)
}

func (s *Service) timeout() time.Duration {
	if s.loadTimeout <= 0 {
		return defaultLoadTimeout
	}
	return s.loadTimeout
}
