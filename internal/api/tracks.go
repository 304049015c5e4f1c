package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/tracks"
	"github.com/banshee-data/trackline/internal/units"
)

// TrackSummary is the catalogue entry for one preset.
type TrackSummary struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Series         tracks.Series `json:"series"`
	Country        string        `json:"country,omitempty"`
	Location       string        `json:"location,omitempty"`
	LengthKm       float64       `json:"length_km,omitempty"`
	Laps           int           `json:"laps,omitempty"`
	RaceDistanceKm float64       `json:"race_distance_km,omitempty"`
	BestLapSeconds float64       `json:"best_lap_seconds,omitempty"`
	BestLapText    string        `json:"best_lap_text,omitempty"`
	BestLapSpeed   float64       `json:"best_lap_speed,omitempty"`
	SpeedUnits     string        `json:"speed_units,omitempty"`
	HasGeometry    bool          `json:"has_geometry"`
}

func (s *Server) summarize(p tracks.Preset) TrackSummary {
	ts := TrackSummary{
		ID:             p.ID,
		Name:           p.Name,
		Series:         p.Series,
		Country:        p.Country,
		Location:       p.Location,
		LengthKm:       p.LengthKm,
		Laps:           p.Laps,
		RaceDistanceKm: p.RaceDistanceKm(),
		BestLapSeconds: p.BestLapSeconds,
		HasGeometry:    p.HasGeometry(),
	}
	if p.BestLapSeconds > 0 {
		ts.BestLapText = units.FormatLapTime(p.BestLapSeconds)
		if p.LengthKm > 0 {
			ts.BestLapSpeed = units.AverageLapSpeed(p.LengthKm, p.BestLapSeconds, s.units)
			ts.SpeedUnits = s.units
		}
	}
	return ts
}

// Outline is a normalised track ready to draw.
type Outline struct {
	TrackID     string        `json:"track_id"`
	Viewport    geom.Viewport `json:"viewport"`
	Precision   string        `json:"precision"`
	SampleCount int           `json:"sample_count"`
	PathLength  float64       `json:"path_length"`
	Degenerate  bool          `json:"degenerate"`
	Points      []geom.Point  `json:"points"`
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	series := tracks.Series(r.URL.Query().Get("series"))
	presets := s.cache.Registry().List(series)
	out := make([]TrackSummary, 0, len(presets))
	for _, p := range presets {
		out = append(out, s.summarize(p))
	}
	writeJSONOK(w, out)
}

// trackRoutes dispatches /api/tracks/{id}[/outline|/position].
func (s *Server) trackRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tracks/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		notFound(w, "not found")
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		p, err := s.cache.Registry().Get(id)
		if err != nil {
			notFound(w, err.Error())
			return
		}
		writeJSONOK(w, p)
		return
	}

	switch parts[1] {
	case "outline":
		s.trackOutline(w, r, id)
	case "position":
		s.trackPosition(w, r, id)
	default:
		notFound(w, "not found")
	}
}

// buildGeometry resolves query parameters and builds a fresh geometry for
// id, writing the error response itself on failure.
func (s *Server) buildGeometry(w http.ResponseWriter, r *http.Request, id string) (*sim.Geometry, bool) {
	vp, prec, samples, msg := s.parseViewport(r)
	if msg != "" {
		badRequest(w, msg)
		return nil, false
	}
	g, err := sim.BuildGeometry(s.cache, id, samples, vp, prec)
	switch {
	case errors.Is(err, tracks.ErrUnknownTrack):
		notFound(w, err.Error())
		return nil, false
	case err != nil:
		internalServerError(w, fmt.Sprintf("failed to build track: %v", err))
		return nil, false
	}
	return g, true
}

func (s *Server) trackOutline(w http.ResponseWriter, r *http.Request, id string) {
	g, ok := s.buildGeometry(w, r, id)
	if !ok {
		return
	}
	writeJSONOK(w, Outline{
		TrackID:     g.TrackID,
		Viewport:    g.Viewport,
		Precision:   g.Precision.String(),
		SampleCount: g.SampleCount,
		PathLength:  g.Index.TotalLength,
		Degenerate:  g.Degenerate(),
		Points:      g.Points,
	})
}

func (s *Server) trackPosition(w http.ResponseWriter, r *http.Request, id string) {
	p, err := strconv.ParseFloat(r.URL.Query().Get("progress"), 64)
	if err != nil {
		badRequest(w, "invalid 'progress' parameter")
		return
	}
	g, ok := s.buildGeometry(w, r, id)
	if !ok {
		return
	}
	writeJSONOK(w, struct {
		TrackID  string        `json:"track_id"`
		Progress float64       `json:"progress"`
		Position arclen.Sample `json:"position"`
	}{g.TrackID, arclen.Wrap(p), g.Resolve(p)})
}
