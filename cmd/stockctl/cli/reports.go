package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/analytics/export"
)

type periodFlags struct {
	period string
	date   string
	month  int
	year   int
}

func (p periodFlags) selector(now time.Time) (analytics.PeriodSelector, error) {
	if p.period == "" || p.period == "all" {
		return analytics.PeriodSelector{}, nil
	}
	year := p.year
	if year == 0 {
		year = now.Year()
	}
	switch analytics.ParsePeriodKind(p.period) {
	case analytics.PeriodDaily:
		if p.date == "" {
			return analytics.Daily(now), nil
		}
		day, err := time.Parse("2006-01-02", p.date)
		if err != nil {
			return analytics.PeriodSelector{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		return analytics.Daily(day), nil
	case analytics.PeriodWeekly:
		return analytics.Weekly(), nil
	case analytics.PeriodMonthly:
		month := p.month
		if month == 0 {
			month = int(now.Month())
		}
		if month < 1 || month > 12 {
			return analytics.PeriodSelector{}, fmt.Errorf("--month must be between 1 and 12")
		}
		return analytics.Monthly(time.Month(month), year), nil
	case analytics.PeriodYearly:
		return analytics.Yearly(year), nil
	default:
		return analytics.PeriodSelector{}, fmt.Errorf("unknown period %q", p.period)
	}
}

func newSummaryCmd(deps Deps, s *Settings) *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the profit and loss summary for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := deps.Now()
			sel, err := pf.selector(now)
			if err != nil {
				return err
			}
			reports, closeFn, err := deps.Reports(cmd.Context(), *s)
			if err != nil {
				return err
			}
			defer closeFn()
			summary, err := reports.ProfitLoss(cmd.Context(), sel)
			if err != nil {
				return err
			}
			token := sel.Token(now)
			if s.Output == "json" {
				return writeJSON(deps.Stdout, map[string]interface{}{"period": token, "summary": summary})
			}
			return export.WriteSummaryCSV(deps.Stdout, summary, token)
		},
	}
	cmd.Flags().StringVar(&pf.period, "period", "all", "all, daily, weekly, monthly or yearly")
	cmd.Flags().StringVar(&pf.date, "date", "", "day for the daily period (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&pf.month, "month", 0, "month for the monthly period (default current)")
	cmd.Flags().IntVar(&pf.year, "year", 0, "year for monthly and yearly periods (default current)")
	return cmd
}

func newHistoryCmd(deps Deps, s *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the trailing twelve months of revenue, cost and profit",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, closeFn, err := deps.Reports(cmd.Context(), *s)
			if err != nil {
				return err
			}
			defer closeFn()
			points, err := reports.History(cmd.Context())
			if err != nil {
				return err
			}
			if s.Output == "json" {
				return writeJSON(deps.Stdout, points)
			}
			return export.WriteHistoryCSV(deps.Stdout, points)
		},
	}
}

func newInventoryCmd(deps Deps, s *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Print stock valuation, category split and top products",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, closeFn, err := deps.Reports(cmd.Context(), *s)
			if err != nil {
				return err
			}
			defer closeFn()
			valuation, err := reports.Inventory(cmd.Context(), s.TopN)
			if err != nil {
				return err
			}
			if s.Output == "json" {
				return writeJSON(deps.Stdout, valuation)
			}
			return export.WriteValuationCSV(deps.Stdout, valuation)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
