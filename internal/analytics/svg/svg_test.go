package svg

import (
	"strings"
	"testing"

	"github.com/stockroom/stockroom/internal/analytics"
)

func TestLineProducesSVG(t *testing.T) {
	html, err := Line(400, 200, []float64{100, -50, 150}, []string{"Jan", "Feb", "Mar"}, LineOpts{
		Title:         "Profit",
		Description:   "Monthly profit",
		NegativeColor: "#dc2626",
		ShowDots:      true,
	})
	if err != nil {
		t.Fatalf("line renderer error: %v", err)
	}
	output := string(html)
	if !strings.HasPrefix(output, "<svg") || !strings.HasSuffix(output, "</svg>") {
		t.Fatalf("expected svg output, got %s", output)
	}
	if !strings.Contains(output, "<path") {
		t.Fatalf("expected path element in svg")
	}
	if !strings.Contains(output, `aria-labelledby="profit-line-title profit-line-desc"`) {
		t.Fatalf("expected accessibility attributes, got %s", output)
	}
	if strings.Count(output, `fill="#dc2626"`) != 1 {
		t.Fatalf("expected exactly one loss marker")
	}
}

func TestLineRejectsMismatchedLabels(t *testing.T) {
	if _, err := Line(400, 200, []float64{1, 2}, []string{"Jan"}, LineOpts{}); err == nil {
		t.Fatalf("expected label mismatch error")
	}
	if _, err := Line(400, 200, nil, nil, LineOpts{}); err == nil {
		t.Fatalf("expected empty series error")
	}
	if _, err := Line(40, 40, []float64{1}, []string{"Jan"}, LineOpts{Padding: 30}); err != errViewport {
		t.Fatalf("expected viewport error, got %v", err)
	}
}

func TestBarsProducesSVG(t *testing.T) {
	html, err := Bars(420, 220, []float64{500, 600}, []float64{300, 320}, []string{"Jan", "Feb"}, BarOpts{
		Title:        "Revenue vs Cost",
		SeriesALabel: "Revenue",
		SeriesBLabel: "Cost",
	})
	if err != nil {
		t.Fatalf("bars renderer error: %v", err)
	}
	output := string(html)
	// Two bars per label plus two legend swatches.
	if got := strings.Count(output, "<rect"); got != 6 {
		t.Fatalf("expected 6 rects, got %d", got)
	}
	if !strings.Contains(output, "Revenue") || !strings.Contains(output, "Cost") {
		t.Fatalf("expected legend labels")
	}
}

func TestFrameBarStaysInsidePlot(t *testing.T) {
	f, err := newFrame(300, 200, 20, 4, "", "", -100, 100)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	top, h := f.bar(100)
	if !almostEqual(top, f.pad) || !almostEqual(top+h, f.y(0)) {
		t.Fatalf("positive bar out of place: top=%v h=%v", top, h)
	}
	top, h = f.bar(-100)
	if !almostEqual(top, f.y(0)) || !almostEqual(top+h, f.bottom()) {
		t.Fatalf("negative bar out of place: top=%v h=%v", top, h)
	}
}

func TestHistoryCharts(t *testing.T) {
	points := []analytics.HistoricalPoint{
		{Month: "Jan", Year: 2025, Revenue: 1000, Cost: 600, Profit: 400},
		{Month: "Feb", Year: 2025},
		{Month: "Mar", Year: 2025, Revenue: 200, Cost: 260, Profit: -60},
	}
	line, err := ProfitTrend(points)
	if err != nil {
		t.Fatalf("profit trend: %v", err)
	}
	if !strings.Contains(string(line), ">Feb</text>") {
		t.Fatalf("expected month labels in profit chart")
	}
	bars, err := RevenueCost(points)
	if err != nil {
		t.Fatalf("revenue cost: %v", err)
	}
	if !strings.Contains(string(bars), `aria-label="Cost Mar"`) {
		t.Fatalf("expected cost bar for March, got %s", bars)
	}
}
