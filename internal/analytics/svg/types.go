package svg

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title         string
	Description   string
	StrokeColor   string
	NegativeColor string
	FillColor     string
	AxisColor     string
	GridColor     string
	Padding       float64
	ShowDots      bool
	TickCount     int
}

// BarOpts customises the grouped bar renderer.
type BarOpts struct {
	Title        string
	Description  string
	SeriesALabel string
	SeriesBLabel string
	ColorA       string
	ColorB       string
	AxisColor    string
	GridColor    string
	Padding      float64
	TickCount    int
}

// Defaults for the report charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5
)
