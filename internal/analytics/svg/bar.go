package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders a grouped bar chart comparing two series.
func Bars(width, height int, seriesA, seriesB []float64, labels []string, opts BarOpts) (template.HTML, error) {
	if len(seriesA) == 0 && len(seriesB) == 0 {
		return "", fmt.Errorf("svg: at least one series required")
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	if len(seriesA) > 0 && len(seriesA) != len(labels) {
		return "", fmt.Errorf("svg: seriesA length must match labels")
	}
	if len(seriesB) > 0 && len(seriesB) != len(labels) {
		return "", fmt.Errorf("svg: seriesB length must match labels")
	}
	lo, hi := bounds(seriesA, seriesB)
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, lo, hi)
	if err != nil {
		return "", err
	}
	series := []struct {
		values []float64
		color  string
		label  string
		offset float64
	}{
		{seriesA, fallback(opts.ColorA, "#0ea5e9"), fallback(opts.SeriesALabel, "Series A"), 0.3},
		{seriesB, fallback(opts.ColorB, "#f97316"), fallback(opts.SeriesBLabel, "Series B"), 1.4},
	}

	group := f.plotW / float64(len(labels))
	barW := group / 3

	var b strings.Builder
	f.open(&b, "bar", fallback(opts.Title, "Bar chart"), fallback(opts.Description, "Grouped bar comparison"))
	f.gridLines(&b)
	f.axes(&b)
	for i, label := range labels {
		x := f.pad + float64(i)*group
		for _, s := range series {
			if len(s.values) == 0 {
				continue
			}
			top, h := f.bar(s.values[i])
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`,
				x+barW*s.offset, top, barW, h, s.color, template.HTMLEscapeString(s.label), template.HTMLEscapeString(label))
		}
		f.label(&b, x+group/2, label)
	}

	legendX := f.pad
	legendY := math.Max(f.pad-12, 12)
	for _, s := range series {
		if len(s.values) == 0 {
			continue
		}
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, legendX, legendY-8, s.color)
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, legendX+14, legendY, f.axis, template.HTMLEscapeString(s.label))
		legendX += 90
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// bar returns the top edge and height of a bar for v, clipped to the plot.
func (f frame) bar(v float64) (top, height float64) {
	zero := f.y(0)
	end := f.y(v)
	top = math.Min(zero, end)
	height = math.Abs(zero - end)
	if top < f.pad {
		height -= f.pad - top
		top = f.pad
	}
	if top+height > f.bottom() {
		height = f.bottom() - top
	}
	return top, math.Max(height, 0)
}
