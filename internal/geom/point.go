// Package geom holds the 2D primitives shared by the path geometry packages:
// points, viewports and the viewport normaliser.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a plain 2D coordinate. Points compare by value.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

func fromVec(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// Scale returns p multiplied by f.
func (p Point) Scale(f float64) Point { return fromVec(r2.Scale(f, p.vec())) }

// Add returns p+q.
func (p Point) Add(q Point) Point { return fromVec(r2.Add(p.vec(), q.vec())) }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return fromVec(r2.Sub(p.vec(), q.vec())) }

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 { return r2.Norm(r2.Sub(q.vec(), p.vec())) }

// Lerp returns the point a fraction t of the way from p to q.
func (p Point) Lerp(q Point, t float64) Point {
	return fromVec(r2.Add(p.vec(), r2.Scale(t, r2.Sub(q.vec(), p.vec()))))
}

// Heading returns the direction of travel from p to q in radians.
func (p Point) Heading(q Point) float64 { return math.Atan2(q.Y-p.Y, q.X-p.X) }

// IsFinite reports whether both coordinates are finite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Viewport is a target rectangle in display units with an inner margin.
type Viewport struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Padding int `json:"padding"`
}

// Center returns the midpoint of the viewport.
func (v Viewport) Center() Point {
	return Point{X: float64(v.Width) / 2, Y: float64(v.Height) / 2}
}

// MaxViewportDimension bounds viewport width, height and padding.
const MaxViewportDimension = 8192

// Valid reports whether the viewport has positive dimensions and a
// non-negative padding, none of them above MaxViewportDimension.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0 && v.Padding >= 0 &&
		v.Width <= MaxViewportDimension && v.Height <= MaxViewportDimension && v.Padding <= MaxViewportDimension
}

// Inner returns the padded drawing area as (minX, minY, maxX, maxY).
func (v Viewport) Inner() (float64, float64, float64, float64) {
	p := float64(v.Padding)
	return p, p, float64(v.Width) - p, float64(v.Height) - p
}
