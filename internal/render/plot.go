// Package render draws normalised tracks and marker positions headlessly:
// PNG frames with gonum/plot and interactive HTML with go-echarts.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/geom"
)

// ErrInvalidViewport is returned for scenes with no drawable area.
var ErrInvalidViewport = errors.New("render: invalid viewport")

// headingLength is the length of the heading tick in viewport units.
const headingLength = 18.0

var (
	trackColor   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	markerColor  = color.RGBA{R: 230, G: 40, B: 40, A: 255}
	startColor   = color.RGBA{R: 40, G: 160, B: 70, A: 255}
	headingColor = color.RGBA{R: 230, G: 120, B: 40, A: 255}
)

// Scene is one frame: a closed path in viewport coordinates and an optional
// marker sample.
type Scene struct {
	Title    string
	Viewport geom.Viewport
	Points   []geom.Point
	Marker   *arclen.Sample
}

// flip converts screen coordinates (y down) to plot coordinates (y up).
func (s Scene) flip(p geom.Point) (float64, float64) {
	return p.X, float64(s.Viewport.Height) - p.Y
}

func (s Scene) pathXYs() plotter.XYs {
	if len(s.Points) == 0 {
		return nil
	}
	xys := make(plotter.XYs, 0, len(s.Points)+1)
	for _, p := range s.Points {
		x, y := s.flip(p)
		xys = append(xys, plotter.XY{X: x, Y: y})
	}
	// Close the loop.
	xys = append(xys, xys[0])
	return xys
}

// Plot builds a gonum plot of the scene with the axes hidden and the data
// range fixed to the viewport.
func (s Scene) Plot() (*plot.Plot, error) {
	if !s.Viewport.Valid() {
		return nil, ErrInvalidViewport
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Min, p.X.Max = 0, float64(s.Viewport.Width)
	p.Y.Min, p.Y.Max = 0, float64(s.Viewport.Height)
	p.HideAxes()

	if xys := s.pathXYs(); len(xys) > 1 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to build track line: %w", err)
		}
		line.Color = trackColor
		line.Width = vg.Points(3)
		p.Add(line)

		start, err := plotter.NewScatter(xys[:1])
		if err != nil {
			return nil, fmt.Errorf("failed to build start marker: %w", err)
		}
		start.GlyphStyle.Shape = draw.BoxGlyph{}
		start.GlyphStyle.Color = startColor
		start.GlyphStyle.Radius = vg.Points(4)
		p.Add(start)
	}

	if s.Marker != nil {
		x, y := s.flip(s.Marker.Point())
		// Screen angles turn clockwise; negate for the y-up plot.
		hx := x + headingLength*math.Cos(-s.Marker.Angle)
		hy := y + headingLength*math.Sin(-s.Marker.Angle)
		heading, err := plotter.NewLine(plotter.XYs{{X: x, Y: y}, {X: hx, Y: hy}})
		if err != nil {
			return nil, fmt.Errorf("failed to build heading: %w", err)
		}
		heading.Color = headingColor
		heading.Width = vg.Points(2)
		p.Add(heading)

		marker, err := plotter.NewScatter(plotter.XYs{{X: x, Y: y}})
		if err != nil {
			return nil, fmt.Errorf("failed to build marker: %w", err)
		}
		marker.GlyphStyle.Shape = draw.CircleGlyph{}
		marker.GlyphStyle.Color = markerColor
		marker.GlyphStyle.Radius = vg.Points(6)
		p.Add(marker)
	}
	return p, nil
}

// WritePNG renders the scene as a PNG sized to the viewport at 96 dpi.
func (s Scene) WritePNG(w io.Writer) error {
	p, err := s.Plot()
	if err != nil {
		return err
	}
	width := vg.Length(s.Viewport.Width) * vg.Inch / 96
	height := vg.Length(s.Viewport.Height) * vg.Inch / 96
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
