// Package api serves the session, the track catalogue and the lap store
// over HTTP as JSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/db"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/tracks"
	"github.com/banshee-data/trackline/internal/version"
)

// LapStore is the read side of the lap database.
type LapStore interface {
	ListLaps(ctx context.Context, f db.LapFilter) ([]db.LapRow, error)
	BestLap(ctx context.Context, trackID string) (db.LapRow, error)
}

// Server exposes one session. store may be nil, in which case lap queries
// fall back to the session's in-memory history.
type Server struct {
	session *sim.Session
	cache   *tracks.Cache
	store   LapStore
	units   string
}

// NewServer returns a server over session. Track geometry is read through
// cache so outline requests share the session's generated points.
func NewServer(session *sim.Session, cache *tracks.Cache, store LapStore, units string) *Server {
	return &Server{
		session: session,
		cache:   cache,
		store:   store,
		units:   units,
	}
}

// ServeMux returns the JSON routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/tracks", s.listTracks)
	mux.HandleFunc("/api/tracks/", s.trackRoutes)
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/start", s.startSession)
	mux.HandleFunc("/api/session/stop", s.stopSession)
	mux.HandleFunc("/api/session/reset", s.resetSession)
	mux.HandleFunc("/api/session/track", s.selectTrack)
	mux.HandleFunc("/api/session/viewport", s.setViewport)
	mux.HandleFunc("/api/session/setup", s.applySetup)
	mux.HandleFunc("/api/session/laps", s.sessionLaps)
	mux.HandleFunc("/api/session/frame.png", s.framePNG)
	mux.HandleFunc("/api/laps", s.listLaps)
	mux.HandleFunc("/api/laps/best", s.bestLap)
	return mux
}

// AttachDebugRoutes mounts the chart pages on the tsweb debugger for mux.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("track", "Track outline and marker (echarts)", http.HandlerFunc(s.debugTrack))
	debug.Handle("laps", "Lap times for the current run (echarts)", http.HandlerFunc(s.debugLaps))
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// parseLimit reads a positive limit query parameter. Missing means def.
func parseLimit(r *http.Request, def int) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseViewport reads width, height, padding, precision and samples from the
// query, falling back to the session's current geometry.
func (s *Server) parseViewport(r *http.Request) (geom.Viewport, geom.Precision, int, string) {
	cur := s.session.Geometry()
	vp, prec, samples := cur.Viewport, cur.Precision, cur.SampleCount
	q := r.URL.Query()

	for _, f := range []struct {
		name     string
		dst      *int
		min, max int
	}{
		{"width", &vp.Width, 1, geom.MaxViewportDimension},
		{"height", &vp.Height, 1, geom.MaxViewportDimension},
		{"padding", &vp.Padding, 0, geom.MaxViewportDimension},
		{"samples", &samples, 1, curve.MaxSampleCount},
	} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < f.min || n > f.max {
			return vp, prec, samples, fmt.Sprintf("invalid '%s' parameter: want %d to %d", f.name, f.min, f.max)
		}
		*f.dst = n
	}
	switch p := q.Get("precision"); p {
	case "":
	case "pixel", "full":
		prec = geom.ParsePrecision(p)
	default:
		return vp, prec, samples, "invalid 'precision' parameter"
	}
	if !vp.Valid() {
		return vp, prec, samples, "viewport has no drawable area"
	}
	return vp, prec, samples, ""
}
