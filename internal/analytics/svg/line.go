package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders a line chart for series. Points below zero are drawn with
// NegativeColor when set.
func Line(width, height int, series []float64, labels []string, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	lo, hi := bounds(series)
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, lo, hi)
	if err != nil {
		return "", err
	}
	stroke := fallback(opts.StrokeColor, "#2563eb")
	negative := fallback(opts.NegativeColor, stroke)
	fill := opts.FillColor

	xs := make([]float64, len(series))
	for i := range series {
		if len(series) == 1 {
			xs[i] = f.pad + f.plotW/2
			continue
		}
		xs[i] = f.pad + float64(i)*f.plotW/float64(len(series)-1)
	}

	var path strings.Builder
	for i, v := range series {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xs[i], f.y(v))
	}
	d := strings.TrimSpace(path.String())

	var b strings.Builder
	f.open(&b, "line", fallback(opts.Title, "Line chart"), fallback(opts.Description, "Trend data"))
	f.gridLines(&b)
	f.axes(&b)
	if fill != "" {
		zero := f.y(0)
		fmt.Fprintf(&b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" stroke="none" aria-hidden="true"></path>`, d, xs[len(xs)-1], zero, xs[0], zero, fill)
	}
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`, d, stroke)
	if opts.ShowDots {
		for i, v := range series {
			color := stroke
			if v < 0 {
				color = negative
			}
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, xs[i], f.y(v), color)
		}
	}
	for i, label := range labels {
		f.label(&b, xs[i], label)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
