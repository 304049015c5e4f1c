package curve

import (
	"math"

	"github.com/banshee-data/trackline/internal/geom"
)

// WobbleParams configures Wobble. Phase is measured in spans, so s+t runs
// from 0 to the anchor count around the lap.
type WobbleParams struct {
	Amplitude      float64 `json:"amplitude" yaml:"amplitude"`
	Frequency      float64 `json:"frequency" yaml:"frequency"`
	CrossAmplitude float64 `json:"cross_amplitude" yaml:"cross_amplitude"`
	CrossFrequency float64 `json:"cross_frequency" yaml:"cross_frequency"`
}

// Wobble offsets x by a sinusoid whose sign alternates per span and y by a
// second, independent sinusoid. It imitates quick direction changes through
// a flowing corner complex.
func Wobble(p WobbleParams) Perturbation {
	return func(segment int, t float64) geom.Point {
		phase := float64(segment) + t
		sign := -1.0
		if segment%2 != 0 {
			sign = 1.0
		}
		return geom.Point{
			X: math.Sin(phase*p.Frequency) * p.Amplitude * sign,
			Y: math.Cos(phase*p.CrossFrequency) * p.CrossAmplitude,
		}
	}
}

// RadialParams configures Radial.
type RadialParams struct {
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Spin      float64 `json:"spin" yaml:"spin"`
}

// Radial pushes the line along a rotating direction by a sinusoidal radius.
func Radial(p RadialParams) Perturbation {
	return func(segment int, t float64) geom.Point {
		phase := float64(segment) + t
		r := math.Sin(phase*p.Frequency) * p.Amplitude
		return geom.Point{
			X: r * math.Cos(phase*p.Spin),
			Y: r * math.Sin(phase*p.Spin),
		}
	}
}

// Compose sums the offsets of several perturbations. Nil entries are skipped.
func Compose(ps ...Perturbation) Perturbation {
	var live []Perturbation
	for _, p := range ps {
		if p != nil {
			live = append(live, p)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(segment int, t float64) geom.Point {
		var sum geom.Point
		for _, p := range live {
			sum = sum.Add(p(segment, t))
		}
		return sum
	}
}
