// Package arclen parametrises a polyline by arc length so that a progress
// value in [0,1) resolves to a position and heading.
//
// An Index is built once per point sequence and is read-only afterwards; it
// may be shared by any number of readers. Resolution is total: degenerate
// paths return a best-effort single-point sample instead of failing, so a
// momentarily empty path cannot crash a render loop.
package arclen

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/trackline/internal/geom"
)

// MinSegmentLength floors segment lengths so duplicate points never cause a
// division by zero.
const MinSegmentLength = 1e-5

// Segment is one straight piece of the path.
type Segment struct {
	A      geom.Point `json:"a"`
	B      geom.Point `json:"b"`
	Length float64    `json:"length"`
}

// Sample is a resolved position on the path.
type Sample struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Angle        float64 `json:"angle"` // radians, tangent of the containing segment
	SegmentIndex int     `json:"segment_index"`
	LocalT       float64 `json:"local_t"`
}

// Point returns the sample position.
func (s Sample) Point() geom.Point { return geom.Point{X: s.X, Y: s.Y} }

// Index holds per-segment lengths and their running totals.
type Index struct {
	Segments    []Segment `json:"segments"`
	TotalLength float64   `json:"total_length"`

	cumulative []float64
	first      geom.Point
	hasFirst   bool
	fallback   geom.Point
}

// BuildIndex indexes points as an open polyline of len(points)-1 segments.
// Fewer than two points give an empty, degenerate index.
func BuildIndex(points []geom.Point) *Index {
	return build(points, false)
}

// BuildLoopIndex indexes points as a closed loop, adding the segment from
// the last point back to the first.
func BuildLoopIndex(points []geom.Point) *Index {
	return build(points, true)
}

func build(points []geom.Point, closed bool) *Index {
	idx := &Index{}
	if len(points) > 0 {
		idx.first = points[0]
		idx.hasFirst = true
	}
	if len(points) < 2 {
		return idx
	}

	n := len(points) - 1
	if closed {
		n++
	}
	idx.Segments = make([]Segment, n)
	lengths := make([]float64, n)
	for i := 0; i < n; i++ {
		a := points[i]
		b := points[(i+1)%len(points)]
		l := a.Distance(b)
		if l == 0 {
			l = MinSegmentLength
		}
		idx.Segments[i] = Segment{A: a, B: b, Length: l}
		lengths[i] = l
	}

	idx.cumulative = floats.CumSum(make([]float64, n), lengths)
	idx.TotalLength = idx.cumulative[n-1]
	return idx
}

// WithFallback sets the point returned when the index holds no points at
// all, typically the centre of the viewport. It returns idx.
func (idx *Index) WithFallback(p geom.Point) *Index {
	idx.fallback = p
	return idx
}

// Len returns the number of segments.
func (idx *Index) Len() int { return len(idx.Segments) }

// Degenerate reports whether the index has no segments to resolve against.
func (idx *Index) Degenerate() bool { return len(idx.Segments) == 0 }

// SegmentLengthSum adds the individual segment lengths. It equals
// TotalLength up to floating point tolerance.
func (idx *Index) SegmentLengthSum() float64 {
	lengths := make([]float64, len(idx.Segments))
	for i, s := range idx.Segments {
		lengths[i] = s.Length
	}
	return floats.Sum(lengths)
}

// Cumulative returns the running arc length at the end of each segment.
func (idx *Index) Cumulative() []float64 {
	return append([]float64(nil), idx.cumulative...)
}

// Wrap maps any finite progress into [0,1). Non-finite input maps to 0.
func Wrap(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	w := p - math.Floor(p)
	if w >= 1 {
		// p - floor(p) rounds up to 1 for tiny negative p.
		return 0
	}
	return w
}

// Resolve maps progress to a position on the path. The first segment whose
// cumulative length reaches the target distance wins, so a target exactly on
// a boundary belongs to the earlier segment.
func (idx *Index) Resolve(progress float64) Sample {
	if s, ok := idx.degenerateSample(); ok {
		return s
	}

	target := Wrap(progress) * idx.TotalLength
	i := sort.SearchFloat64s(idx.cumulative, target)
	if i >= len(idx.Segments) {
		return idx.endSample()
	}
	before := 0.0
	if i > 0 {
		before = idx.cumulative[i-1]
	}
	return idx.sampleAt(i, (target-before)/idx.Segments[i].Length)
}

// ResolveLinear is the reference single-pass scan. It returns the same
// result as Resolve in O(segments) time.
func (idx *Index) ResolveLinear(progress float64) Sample {
	if s, ok := idx.degenerateSample(); ok {
		return s
	}

	target := Wrap(progress) * idx.TotalLength
	acc := 0.0
	for i, seg := range idx.Segments {
		if acc+seg.Length >= target {
			return idx.sampleAt(i, (target-acc)/seg.Length)
		}
		acc += seg.Length
	}
	return idx.endSample()
}

func (idx *Index) degenerateSample() (Sample, bool) {
	if len(idx.Segments) == 0 {
		p := idx.fallback
		if idx.hasFirst {
			p = idx.first
		}
		return Sample{X: p.X, Y: p.Y}, true
	}
	if idx.TotalLength == 0 || math.IsNaN(idx.TotalLength) || math.IsInf(idx.TotalLength, 0) {
		return Sample{X: idx.first.X, Y: idx.first.Y}, true
	}
	return Sample{}, false
}

func (idx *Index) sampleAt(i int, localT float64) Sample {
	seg := idx.Segments[i]
	p := seg.A.Lerp(seg.B, localT)
	return Sample{
		X:            p.X,
		Y:            p.Y,
		Angle:        seg.A.Heading(seg.B),
		SegmentIndex: i,
		LocalT:       localT,
	}
}

func (idx *Index) endSample() Sample {
	last := len(idx.Segments) - 1
	seg := idx.Segments[last]
	return Sample{
		X:            seg.B.X,
		Y:            seg.B.Y,
		Angle:        seg.A.Heading(seg.B),
		SegmentIndex: last,
		LocalT:       1,
	}
}
