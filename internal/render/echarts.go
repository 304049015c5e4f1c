package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trackline/internal/lap"
)

// WriteHTML renders the scene as an interactive go-echarts page. The path is
// drawn as a scatter of samples with the marker on top.
func (s Scene) WriteHTML(w io.Writer) error {
	if !s.Viewport.Valid() {
		return ErrInvalidViewport
	}

	path := make([]opts.ScatterData, 0, len(s.Points)+1)
	for _, p := range s.Points {
		x, y := s.flip(p)
		path = append(path, opts.ScatterData{Value: []interface{}{x, y}})
	}

	subtitle := fmt.Sprintf("%d samples, %dx%d", len(s.Points), s.Viewport.Width, s.Viewport.Height)
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: s.Title,
			Width:     fmt.Sprintf("%dpx", s.Viewport.Width),
			Height:    fmt.Sprintf("%dpx", s.Viewport.Height),
		}),
		charts.WithTitleOpts(opts.Title{Title: s.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: s.Viewport.Width}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: s.Viewport.Height}),
	)
	scatter.AddSeries("track", path, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	if s.Marker != nil {
		x, y := s.flip(s.Marker.Point())
		scatter.AddSeries("marker", []opts.ScatterData{{Value: []interface{}{x, y}}},
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	}
	return scatter.Render(w)
}

// WriteLapChart renders timed laps as a bar chart. Untimed laps are skipped.
func WriteLapChart(w io.Writer, title string, events []lap.Event) error {
	var (
		labels []string
		bars   []opts.BarData
	)
	for _, e := range events {
		if !e.Timed() {
			continue
		}
		labels = append(labels, fmt.Sprintf("L%d", e.Lap))
		bars = append(bars, opts.BarData{Value: *e.LapTimeSeconds})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d timed laps", len(bars))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
	)
	bar.SetXAxis(labels).AddSeries("lap time", bars)
	return bar.Render(w)
}
