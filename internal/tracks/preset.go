// Package tracks holds the named circuit presets: descriptive metadata for
// every known track and anchor geometry for the ones that can be animated.
package tracks

import (
	"errors"
	"fmt"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
)

var (
	// ErrUnknownTrack is returned for an id that is not registered.
	ErrUnknownTrack = errors.New("unknown track")
	// ErrNoGeometry is returned when a track has metadata but no anchors.
	ErrNoGeometry = errors.New("track has no geometry")
)

// Series groups tracks by racing category.
type Series string

const (
	SeriesF1     Series = "f1"
	SeriesMotoGP Series = "motogp"
	SeriesDrone  Series = "drone"
	SeriesCustom Series = "custom"
)

// Preset describes one circuit.
type Preset struct {
	ID             string  `json:"id" yaml:"id"`
	Name           string  `json:"name" yaml:"name"`
	Series         Series  `json:"series" yaml:"series"`
	Country        string  `json:"country,omitempty" yaml:"country"`
	Location       string  `json:"location,omitempty" yaml:"location"`
	Laps           int     `json:"laps,omitempty" yaml:"laps"`
	LengthKm       float64 `json:"length_km,omitempty" yaml:"length_km"`
	Turns          int     `json:"turns,omitempty" yaml:"turns"`
	BestLapSeconds float64 `json:"best_lap_seconds,omitempty" yaml:"best_lap_seconds"`
	StraightsKm    float64 `json:"straights_km,omitempty" yaml:"straights_km"`

	Anchors []geom.Point        `json:"anchors,omitempty" yaml:"anchors"`
	Wobble  *curve.WobbleParams `json:"wobble,omitempty" yaml:"wobble"`
	Radial  *curve.RadialParams `json:"radial,omitempty" yaml:"radial"`
}

// HasGeometry reports whether the preset carries anchors.
func (p Preset) HasGeometry() bool { return len(p.Anchors) > 0 }

// RaceDistanceKm is the full race length, laps times lap length.
func (p Preset) RaceDistanceKm() float64 {
	return float64(p.Laps) * p.LengthKm
}

// Perturbation returns the composed offsets configured for the preset, or
// nil for a plain spline.
func (p Preset) Perturbation() curve.Perturbation {
	var w, r curve.Perturbation
	if p.Wobble != nil {
		w = curve.Wobble(*p.Wobble)
	}
	if p.Radial != nil {
		r = curve.Radial(*p.Radial)
	}
	return curve.Compose(w, r)
}

// Generate builds the n-point centreline for the preset.
func (p Preset) Generate(n int) ([]geom.Point, error) {
	if !p.HasGeometry() {
		return nil, fmt.Errorf("%w: %s", ErrNoGeometry, p.ID)
	}
	pts, err := curve.Generate(p.Anchors, n, p.Perturbation())
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", p.ID, err)
	}
	return pts, nil
}

// Validate checks the preset can be registered. A preset may omit anchors
// entirely, but a partial anchor set is rejected.
func (p Preset) Validate() error {
	if p.ID == "" {
		return errors.New("track id must not be empty")
	}
	if p.HasGeometry() && len(p.Anchors) < curve.MinAnchors {
		return fmt.Errorf("track %s: %w: need at least %d anchors, got %d",
			p.ID, curve.ErrInvalidAnchorSet, curve.MinAnchors, len(p.Anchors))
	}
	for i, a := range p.Anchors {
		if !a.IsFinite() {
			return fmt.Errorf("track %s: anchor %d is not finite", p.ID, i)
		}
	}
	if p.Laps < 0 || p.Turns < 0 || p.LengthKm < 0 || p.BestLapSeconds < 0 {
		return fmt.Errorf("track %s: metadata must be non-negative", p.ID)
	}
	return nil
}
