// Package curve generates smooth closed centrelines from a small cyclic set
// of anchor points.
//
// Generate evaluates a uniform Catmull-Rom spline through the anchors, lets
// an optional Perturbation add small pure offsets for visual variety, then
// resamples the dense result by index to exactly the requested number of
// points. The output is a pure function of its inputs.
package curve

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/interp"
	bez "honnef.co/go/curve"

	"github.com/banshee-data/trackline/internal/geom"
)

const (
	// DefaultSampleCount is the number of output points used when the caller
	// does not ask for a specific count.
	DefaultSampleCount = 400
	// MinAnchors is the smallest anchor set that gives every span a full
	// p0..p3 neighbourhood.
	MinAnchors = 4
	// MinPerSegment is the floor on spline samples per anchor span.
	MinPerSegment = 3
	// MaxSampleCount is the largest centreline Generate will build.
	MaxSampleCount = 10000
)

var (
	// ErrInvalidAnchorSet is returned when fewer than MinAnchors anchors are supplied.
	ErrInvalidAnchorSet = errors.New("invalid anchor set")
	// ErrSampleCount is returned for a sample count above MaxSampleCount.
	ErrSampleCount = errors.New("sample count too large")
)

// Perturbation returns an offset added to the spline at span segment and
// parameter t in [0,1). Implementations must be pure functions of their
// arguments.
type Perturbation func(segment int, t float64) geom.Point

// CatmullRom evaluates the uniform Catmull-Rom cubic between p1 and p2 at t.
func CatmullRom(p0, p1, p2, p3 geom.Point, t float64) geom.Point {
	b := SpanBezier(p0, p1, p2, p3).Eval(t)
	return geom.Point{X: b.X, Y: b.Y}
}

// SpanBezier returns the span p1..p2 of a uniform Catmull-Rom spline as the
// equivalent cubic Bézier. The inner control points sit a sixth of the
// neighbour chord away from each end.
func SpanBezier(p0, p1, p2, p3 geom.Point) bez.CubicBez {
	c1 := p1.Add(p2.Sub(p0).Scale(1.0 / 6))
	c2 := p2.Sub(p3.Sub(p1).Scale(1.0 / 6))
	return bez.CubicBez{
		P0: bez.Pt(p1.X, p1.Y),
		P1: bez.Pt(c1.X, c1.Y),
		P2: bez.Pt(c2.X, c2.Y),
		P3: bez.Pt(p2.X, p2.Y),
	}
}

// PerSegment returns the number of spline samples taken per anchor span.
func PerSegment(anchors, n int) int {
	if anchors <= 0 {
		return MinPerSegment
	}
	return max(MinPerSegment, n/anchors)
}

// Dense samples the closed spline through anchors without resampling. It
// returns len(anchors)*PerSegment(len(anchors), n) points.
func Dense(anchors []geom.Point, n int, perturb Perturbation) ([]geom.Point, error) {
	if len(anchors) < MinAnchors {
		return nil, fmt.Errorf("%w: need at least %d anchors, got %d", ErrInvalidAnchorSet, MinAnchors, len(anchors))
	}
	if n <= 0 {
		n = DefaultSampleCount
	}
	if n > MaxSampleCount {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrSampleCount, n, MaxSampleCount)
	}

	// Wrap the first three anchors so the seam spans have neighbours.
	closed := make([]geom.Point, 0, len(anchors)+3)
	closed = append(closed, anchors...)
	closed = append(closed, anchors[0], anchors[1], anchors[2])

	segments := len(anchors)
	perSeg := PerSegment(segments, n)

	dense := make([]geom.Point, 0, segments*perSeg)
	for s := 0; s < segments; s++ {
		for i := 0; i < perSeg; i++ {
			t := float64(i) / float64(perSeg)
			p := CatmullRom(closed[s], closed[s+1], closed[s+2], closed[s+3], t)
			if perturb != nil {
				p = p.Add(perturb(s, t))
			}
			dense = append(dense, p)
		}
	}
	return dense, nil
}

// Generate returns exactly n points tracing a closed smooth curve through
// anchors in order. n <= 0 selects DefaultSampleCount.
func Generate(anchors []geom.Point, n int, perturb Perturbation) ([]geom.Point, error) {
	if n <= 0 {
		n = DefaultSampleCount
	}
	dense, err := Dense(anchors, n, perturb)
	if err != nil {
		return nil, err
	}
	return ResampleByIndex(dense, n)
}

// ResampleByIndex resamples a closed sequence to n points spaced evenly by
// index (not by arc length). Output i interpolates between the two samples
// around position i/n*len(src), wrapping from the last sample to the first.
func ResampleByIndex(src []geom.Point, n int) ([]geom.Point, error) {
	if n <= 0 || len(src) == 0 {
		return []geom.Point{}, nil
	}
	if len(src) == 1 {
		out := make([]geom.Point, n)
		for i := range out {
			out[i] = src[0]
		}
		return out, nil
	}

	// Close the sequence by repeating the first sample at x = len(src).
	xs := make([]float64, len(src)+1)
	px := make([]float64, len(src)+1)
	py := make([]float64, len(src)+1)
	for i, p := range src {
		xs[i] = float64(i)
		px[i] = p.X
		py[i] = p.Y
	}
	xs[len(src)] = float64(len(src))
	px[len(src)] = src[0].X
	py[len(src)] = src[0].Y

	var fx, fy interp.PiecewiseLinear
	if err := fx.Fit(xs, px); err != nil {
		return nil, fmt.Errorf("fit x: %w", err)
	}
	if err := fy.Fit(xs, py); err != nil {
		return nil, fmt.Errorf("fit y: %w", err)
	}

	out := make([]geom.Point, n)
	total := float64(len(src))
	for i := 0; i < n; i++ {
		idx := float64(i) / float64(n) * total
		out[i] = geom.Point{X: fx.Predict(idx), Y: fy.Predict(idx)}
	}
	return out, nil
}
