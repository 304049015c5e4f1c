package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Precision selects how Normalize emits coordinates.
type Precision int

const (
	// FullPrecision keeps float coordinates. Geometry consumers should use
	// this: rounding can collapse neighbouring samples into zero-length
	// segments.
	FullPrecision Precision = iota
	// PixelPrecision rounds coordinates to whole pixels for display.
	PixelPrecision
)

func (p Precision) String() string {
	if p == PixelPrecision {
		return "pixel"
	}
	return "full"
}

// ParsePrecision maps "pixel" to PixelPrecision; anything else is full precision.
func ParsePrecision(s string) Precision {
	if s == "pixel" {
		return PixelPrecision
	}
	return FullPrecision
}

// Bounds returns the bounding box of points as (minX, minY, maxX, maxY).
// ok is false for an empty slice.
func Bounds(points []Point) (minX, minY, maxX, maxY float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, 0, 0, false
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return floats.Min(xs), floats.Min(ys), floats.Max(xs), floats.Max(ys), true
}

// Normalize maps points into the padded viewport, preserving aspect ratio and
// centring the scaled bounding box. Data extents are floored at 1 so single
// points and collinear inputs do not divide by zero. An empty input returns
// an empty slice.
func Normalize(points []Point, vp Viewport, prec Precision) []Point {
	if len(points) == 0 {
		return []Point{}
	}

	minX, minY, maxX, maxY, _ := Bounds(points)

	dataW := math.Max(1, maxX-minX)
	dataH := math.Max(1, maxY-minY)

	pad := float64(vp.Padding)
	targetW := math.Max(1, float64(vp.Width)-2*pad)
	targetH := math.Max(1, float64(vp.Height)-2*pad)
	scale := math.Min(targetW/dataW, targetH/dataH)

	offsetX := pad + (targetW-dataW*scale)/2
	offsetY := pad + (targetH-dataH*scale)/2

	out := make([]Point, len(points))
	for i, p := range points {
		x := (p.X-minX)*scale + offsetX
		y := (p.Y-minY)*scale + offsetY
		if prec == PixelPrecision {
			x = math.Round(x)
			y = math.Round(y)
		}
		out[i] = Point{X: x, Y: y}
	}
	return out
}
