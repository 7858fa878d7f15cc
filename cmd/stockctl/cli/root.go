// Package cli implements stockctl, the operator tool for computing reports
// from the command line and triggering background report jobs.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/platform/db"
	"github.com/stockroom/stockroom/internal/source"
	"github.com/stockroom/stockroom/jobs"
)

// Settings is the resolved stockctl configuration. Flags win over
// STOCKROOM_* environment variables, which win over the config file.
type Settings struct {
	SourceKind    string
	SourceURL     string
	SourceTimeout time.Duration
	PGDSN         string
	Timezone      string
	ExpenseRatio  float64
	TopN          int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Output        string
}

// Location resolves the configured report timezone.
func (s Settings) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Reports is the report surface the commands print.
type Reports interface {
	ProfitLoss(ctx context.Context, sel analytics.PeriodSelector) (analytics.Summary, error)
	History(ctx context.Context) ([]analytics.HistoricalPoint, error)
	Inventory(ctx context.Context, topN int) (analytics.Valuation, error)
}

// JobQueue submits background jobs.
type JobQueue interface {
	EnqueueWarmup(ctx context.Context, payload jobs.WarmupPayload) (*asynq.TaskInfo, error)
	EnqueueArchive(ctx context.Context, payload jobs.ArchivePayload) (*asynq.TaskInfo, error)
	Close() error
}

// Deps lets tests replace the outside world. Zero values use real backends.
type Deps struct {
	Stdout  io.Writer
	Now     func() time.Time
	Reports func(ctx context.Context, s Settings) (Reports, func(), error)
	Jobs    func(s Settings) (JobQueue, error)
}

func (d Deps) withDefaults() Deps {
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Reports == nil {
		d.Reports = openReports
	}
	if d.Jobs == nil {
		d.Jobs = func(s Settings) (JobQueue, error) {
			return jobs.NewClient(asynq.RedisClientOpt{Addr: s.RedisAddr, Password: s.RedisPassword, DB: s.RedisDB}), nil
		}
	}
	return d
}

// NewRootCommand builds the stockctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	deps = deps.withDefaults()
	v := viper.New()
	settings := &Settings{}

	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Inventory report toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings(v, settings)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "config file path (yaml, json or toml)")
	flags.String("source-kind", "http", "record source: http or postgres")
	flags.String("source-url", "http://127.0.0.1:5000/api", "base URL of the inventory backend")
	flags.Duration("source-timeout", 15*time.Second, "timeout for each backend request")
	flags.String("pg-dsn", "", "postgres DSN for the postgres source")
	flags.String("timezone", "Local", "IANA timezone for period boundaries")
	flags.Float64("expense-ratio", 0.10, "estimated expenses as a fraction of revenue")
	flags.Int("top", 10, "number of top products in the inventory view")
	flags.String("redis-addr", "127.0.0.1:6379", "redis address of the job queue")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.StringP("output", "o", "csv", "output format: csv or json")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("STOCKROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newSummaryCmd(deps, settings),
		newHistoryCmd(deps, settings),
		newInventoryCmd(deps, settings),
		newJobsCmd(deps, settings),
	)
	return root
}

func loadSettings(v *viper.Viper, s *Settings) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	*s = Settings{
		SourceKind:    strings.ToLower(strings.TrimSpace(v.GetString("source-kind"))),
		SourceURL:     v.GetString("source-url"),
		SourceTimeout: v.GetDuration("source-timeout"),
		PGDSN:         v.GetString("pg-dsn"),
		Timezone:      v.GetString("timezone"),
		ExpenseRatio:  v.GetFloat64("expense-ratio"),
		TopN:          v.GetInt("top"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		Output:        strings.ToLower(v.GetString("output")),
	}
	switch s.Output {
	case "csv", "json":
	default:
		return fmt.Errorf("unknown output format %q", s.Output)
	}
	if s.ExpenseRatio < 0 || s.ExpenseRatio >= 1 {
		return fmt.Errorf("expense ratio must be in [0,1), got %v", s.ExpenseRatio)
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// openReports builds an uncached report service over the configured source.
func openReports(ctx context.Context, s Settings) (Reports, func(), error) {
	loc, err := s.Location()
	if err != nil {
		return nil, nil, err
	}
	engine := analytics.NewEngine(analytics.WithLocation(loc), analytics.WithExpenseRatio(s.ExpenseRatio))
	switch s.SourceKind {
	case "postgres":
		if s.PGDSN == "" {
			return nil, nil, fmt.Errorf("--pg-dsn is required for the postgres source")
		}
		pool, err := db.New(ctx, s.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return nil, nil, err
		}
		src := source.NewPostgresSource(pool, &source.Generations{})
		return analytics.NewService(src, engine, nil), pool.Close, nil
	case "http", "":
		src := source.NewHTTPSource(s.SourceURL, s.SourceTimeout)
		return analytics.NewService(src, engine, nil), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", s.SourceKind)
	}
}
