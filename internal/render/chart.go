package render

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/state"
)

var ErrNothingToRender = errors.New("no visible data to render")

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

type Options struct {
	Title     string
	Width     int
	Height    int
	Format    Format
	Theme     state.Theme
	LineStyle state.LineStyle
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Theme == "" {
		o.Theme = state.ThemeLight
	}
	if o.LineStyle == "" {
		o.LineStyle = state.LineSolid
	}
	return o
}

func dashArray(ls state.LineStyle) []float64 {
	switch ls {
	case state.LineDashed:
		return []float64{8, 4}
	case state.LineDotted:
		return []float64{2, 3}
	default:
		return nil
	}
}

// Series builds one time series per visible variation from a display
// window. Gaps are skipped and a lone point is widened so go-chart can draw it.
func Series(window []pipeline.Bucket, variations []dataset.Variation, visible pipeline.VisibleSet, opts Options) []chart.Series {
	opts = opts.withDefaults()

	var series []chart.Series
	for i, v := range variations {
		if !visible.Has(v.Name) {
			continue
		}

		var xs []time.Time
		var ys []float64
		for _, b := range window {
			if rate, ok := b.RateOf(v.Name); ok {
				xs = append(xs, b.Start)
				ys = append(ys, rate)
			}
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(12*time.Hour))
			ys = append(ys, ys[0])
		}

		color := drawingColor(ColorFor(i, opts.Theme))
		series = append(series, chart.TimeSeries{
			Name:    v.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor:     color,
				StrokeWidth:     2,
				StrokeDashArray: dashArray(opts.LineStyle),
				DotColor:        color,
				DotWidth:        2.5,
			},
		})
	}
	return series
}

// Chart writes the window as an image in opts.Format.
func Chart(w io.Writer, window []pipeline.Bucket, variations []dataset.Variation, visible pipeline.VisibleSet, opts Options) error {
	opts = opts.withDefaults()

	series := Series(window, variations, visible, opts)
	if len(series) == 0 {
		return ErrNothingToRender
	}

	colors := colorsFor(opts.Theme)
	text := drawingColor(colors.text)
	axisStyle := chart.Style{FontColor: text, StrokeColor: drawingColor(colors.grid)}

	ch := chart.Chart{
		Title:      opts.Title,
		TitleStyle: chart.Style{FontColor: text},
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{
			FillColor: drawingColor(colors.background),
			Padding:   chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: chart.Style{FillColor: drawingColor(colors.background)},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
			Style:          axisStyle,
		},
		YAxis: chart.YAxis{
			Name:      "Conversion rate (%)",
			NameStyle: chart.Style{FontColor: text},
			Style:     axisStyle,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f)
				}
				return ""
			},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch, chart.Style{
		FillColor: drawingColor(colors.background),
		FontColor: text,
	})}

	provider := chart.PNG
	if opts.Format == FormatSVG {
		provider = chart.SVG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPNG, "":
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("invalid image format %q (use png or svg)", s)
	}
}
