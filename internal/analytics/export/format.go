package export

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders money and percentages for human-facing exports.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter builds a formatter for the given BCP 47 locale tag and
// currency symbol. Unknown tags fall back to English.
func NewFormatter(locale, symbol string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if symbol == "" {
		symbol = "$"
	}
	return Formatter{printer: message.NewPrinter(tag), symbol: symbol}
}

func (f Formatter) p() *message.Printer {
	if f.printer == nil {
		return message.NewPrinter(language.English)
	}
	return f.printer
}

// Money renders an amount with grouping and two decimals, e.g. $1,234.50.
func (f Formatter) Money(v float64) string {
	rounded := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	symbol := f.symbol
	if symbol == "" {
		symbol = "$"
	}
	return sign + symbol + f.p().Sprintf("%.2f", rounded)
}

// Percent renders a ratio already expressed in percent, e.g. 33.33%.
func (f Formatter) Percent(v float64) string {
	return f.p().Sprintf("%.2f%%", v)
}

// Quantity renders a count with grouping and no decimals when integral.
func (f Formatter) Quantity(v float64) string {
	if v == float64(int64(v)) {
		return f.p().Sprintf("%d", int64(v))
	}
	return f.p().Sprintf("%.2f", v)
}
