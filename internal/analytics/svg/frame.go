package svg

import (
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
)

var errViewport = errors.New("svg: viewport too small")

// frame holds the plotting area shared by every chart kind. The value range
// always includes zero so losses render below the baseline.
type frame struct {
	width, height int
	pad           float64
	plotW, plotH  float64
	lo, hi        float64
	ticks         int
	axis, grid    string
}

func newFrame(width, height int, padding float64, ticks int, axis, grid string, lo, hi float64) (frame, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if padding <= 0 {
		padding = DefaultPadding
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	f := frame{
		width:  width,
		height: height,
		pad:    padding,
		plotW:  float64(width) - 2*padding,
		plotH:  float64(height) - 2*padding,
		lo:     math.Min(lo, 0),
		hi:     math.Max(hi, 0),
		ticks:  ticks,
		axis:   fallback(axis, "#475569"),
		grid:   fallback(grid, "#cbd5e1"),
	}
	if f.plotW <= 0 || f.plotH <= 0 {
		return frame{}, errViewport
	}
	if almostEqual(f.hi, f.lo) {
		f.hi = f.lo + 1
	}
	return f, nil
}

func (f frame) bottom() float64 { return f.pad + f.plotH }

func (f frame) y(v float64) float64 {
	return f.bottom() - (v-f.lo)*f.plotH/(f.hi-f.lo)
}

func (f frame) open(b *strings.Builder, kind, title, desc string) {
	titleID := makeID(title, kind+"-title")
	descID := makeID(title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, f.width, f.height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(title))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(desc))
}

func (f frame) gridLines(b *strings.Builder) {
	for i := 0; i <= f.ticks; i++ {
		v := f.lo + (f.hi-f.lo)*float64(i)/float64(f.ticks)
		y := f.y(v)
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, f.pad, y, f.pad+f.plotW, y, f.grid)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.pad-6, y+4, f.axis, formatTick(v))
	}
}

// axes draws the vertical axis and the zero baseline.
func (f frame) axes(b *strings.Builder) {
	zero := f.y(0)
	fmt.Fprintf(b, `<g stroke="%s" aria-hidden="true">`, f.axis)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.pad, f.pad, f.pad, f.bottom())
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.pad, zero, f.pad+f.plotW, zero)
	b.WriteString("</g>")
}

func (f frame) label(b *strings.Builder, x float64, text string) {
	fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, f.bottom()+14, f.axis, template.HTMLEscapeString(text))
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func bounds(series ...[]float64) (lo, hi float64) {
	first := true
	for _, s := range series {
		for _, v := range s {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
