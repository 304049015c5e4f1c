package sim

import (
	"errors"
	"fmt"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/monitoring"
	"github.com/banshee-data/trackline/internal/tracks"
)

// Geometry is one immutable build of a track for a viewport. Sessions
// publish it atomically, so readers always see a consistent set of points
// and index.
type Geometry struct {
	TrackID     string         `json:"track_id"`
	SampleCount int            `json:"sample_count"`
	Viewport    geom.Viewport  `json:"viewport"`
	Precision   geom.Precision `json:"-"`
	Points      []geom.Point   `json:"points"`
	Index       *arclen.Index  `json:"-"`
}

// Degenerate reports whether the geometry has no path to follow.
func (g *Geometry) Degenerate() bool { return g.Index.Degenerate() }

// Resolve maps progress to a position on this geometry.
func (g *Geometry) Resolve(progress float64) arclen.Sample {
	return g.Index.Resolve(progress)
}

// BuildGeometry generates, normalises and indexes track id. A track without
// anchors yields an empty path that resolves to the viewport centre.
func BuildGeometry(cache *tracks.Cache, id string, samples int, vp geom.Viewport, prec geom.Precision) (*Geometry, error) {
	if !vp.Valid() {
		return nil, fmt.Errorf("%w: %dx%d padding %d", ErrInvalidViewport, vp.Width, vp.Height, vp.Padding)
	}

	raw, err := cache.Points(id, samples)
	switch {
	case errors.Is(err, tracks.ErrNoGeometry):
		monitoring.Logf("track %s has no geometry; marker will sit at the viewport centre", id)
		raw = nil
	case err != nil:
		return nil, err
	}

	pts := geom.Normalize(raw, vp, prec)
	return &Geometry{
		TrackID:     id,
		SampleCount: samples,
		Viewport:    vp,
		Precision:   prec,
		Points:      pts,
		Index:       arclen.BuildLoopIndex(pts).WithFallback(vp.Center()),
	}, nil
}
