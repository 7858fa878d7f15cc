package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/stockroom/stockroom/internal/analytics"
)

// WriteTable serialises a single export table, header first.
func WriteTable(w io.Writer, table analytics.Table) error {
	writer := csv.NewWriter(w)
	if err := writeTable(writer, table); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteSummaryCSV serialises the profit/loss summary for a period.
func WriteSummaryCSV(w io.Writer, summary analytics.Summary, period string) error {
	table := analytics.SummaryTable(summary)
	table.Rows = append([][]interface{}{{"Period", period}}, table.Rows...)
	return WriteTable(w, table)
}

// WriteHistoryCSV emits the trailing monthly history.
func WriteHistoryCSV(w io.Writer, points []analytics.HistoricalPoint) error {
	return WriteTable(w, analytics.HistoryTable(points))
}

// WriteValuationCSV emits headline figures, the category split and the top
// products as consecutive tables separated by a blank record.
func WriteValuationCSV(w io.Writer, valuation analytics.Valuation) error {
	return writeTables(w,
		analytics.ValuationTable(valuation),
		analytics.CategoryTable(valuation.CategoryDistribution),
		analytics.TopProductsTable(valuation.TopProducts),
	)
}

// WriteReportCSV emits every section of a full report.
func WriteReportCSV(w io.Writer, report analytics.Report, period string) error {
	summary := analytics.SummaryTable(report.Summary)
	summary.Rows = append([][]interface{}{{"Period", period}}, summary.Rows...)
	return writeTables(w,
		summary,
		analytics.HistoryTable(report.History),
		analytics.ValuationTable(report.Valuation),
		analytics.CategoryTable(report.Valuation.CategoryDistribution),
		analytics.TopProductsTable(report.Valuation.TopProducts),
	)
}

func writeTables(w io.Writer, tables ...analytics.Table) error {
	writer := csv.NewWriter(w)
	for i, table := range tables {
		if i > 0 {
			if err := writer.Write([]string{""}); err != nil {
				return err
			}
		}
		if table.Title != "" {
			if err := writer.Write([]string{table.Title}); err != nil {
				return err
			}
		}
		if err := writeTable(writer, table); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(writer *csv.Writer, table analytics.Table) error {
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// formatCell renders plain values. Floats keep two decimals without grouping
// so spreadsheets parse them as numbers.
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
