package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/source"
)

// NewReportSource picks the record source named by SOURCE_KIND. pool is only
// required for the postgres source.
func NewReportSource(cfg *Config, pool *pgxpool.Pool) (analytics.Source, error) {
	generations := &source.Generations{}
	switch cfg.SourceKind {
	case SourcePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres source requires a database pool")
		}
		return source.NewPostgresSource(pool, generations), nil
	case SourceHTTP, "":
		return source.NewHTTPSource(cfg.SourceBaseURL, cfg.SourceTimeout, source.WithGenerations(generations)), nil
	default:
		return nil, fmt.Errorf("unknown SOURCE_KIND %q", cfg.SourceKind)
	}
}

// NewReportService assembles the engine, cache and source into the report
// service shared by the web server and the worker. client may be nil, in
// which case every request recomputes.
func NewReportService(ctx context.Context, cfg *Config, pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger) (*analytics.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	src, err := NewReportSource(cfg, pool)
	if err != nil {
		return nil, err
	}
	engine := analytics.NewEngine(
		analytics.WithLocation(loc),
		analytics.WithExpenseRatio(cfg.ReportExpenseRatio),
	)
	var cache *analytics.Cache
	if client != nil {
		cache = analytics.NewCache(client, cfg.ReportCacheTTL)
		if err := cache.ListenForInvalidation(ctx, analytics.BumpChannel); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
	}
	return analytics.NewService(src, engine, cache), nil
}
