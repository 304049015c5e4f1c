package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/lap"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/render"
	"github.com/banshee-data/trackline/internal/security"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/tracks"
)

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSONOK(w, s.session.Snapshot())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.session.Start()
	writeJSONOK(w, s.session.Snapshot())
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.session.Stop()
	writeJSONOK(w, s.session.Snapshot())
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.session.Reset(); err != nil {
		if errors.Is(err, progress.ErrResetWhileRunning) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		internalServerError(w, err.Error())
		return
	}
	writeJSONOK(w, s.session.Snapshot())
}

func (s *Server) selectTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req struct {
		TrackID string `json:"track_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TrackID == "" {
		badRequest(w, "track_id is required")
		return
	}
	if err := s.session.SelectTrack(req.TrackID); err != nil {
		if errors.Is(err, tracks.ErrUnknownTrack) {
			notFound(w, err.Error())
			return
		}
		internalServerError(w, fmt.Sprintf("failed to select track: %v", err))
		return
	}
	writeJSONOK(w, s.session.Snapshot())
}

type viewportRequest struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Padding     int    `json:"padding"`
	Precision   string `json:"precision"`
	SampleCount int    `json:"sample_count"`
}

func (s *Server) setViewport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req viewportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Precision != "" && req.Precision != "pixel" && req.Precision != "full" {
		badRequest(w, "precision must be 'pixel' or 'full'")
		return
	}
	if req.SampleCount < 0 || req.SampleCount > curve.MaxSampleCount {
		badRequest(w, fmt.Sprintf("sample_count must be between 0 and %d", curve.MaxSampleCount))
		return
	}

	vp := geom.Viewport{Width: req.Width, Height: req.Height, Padding: req.Padding}
	prec := s.session.Geometry().Precision
	if req.Precision != "" {
		prec = geom.ParsePrecision(req.Precision)
	}
	if err := s.session.SetViewport(vp, prec); err != nil {
		if errors.Is(err, sim.ErrInvalidViewport) {
			badRequest(w, err.Error())
			return
		}
		internalServerError(w, err.Error())
		return
	}
	if req.SampleCount > 0 {
		if err := s.session.SetSampleCount(req.SampleCount); err != nil {
			internalServerError(w, err.Error())
			return
		}
	}
	writeJSONOK(w, s.session.Snapshot())
}

var maxRunMinutes = sim.MaxRunDuration.Minutes()

type setupRequest struct {
	progress.Setup
	BaseSpeed  *float64 `json:"base_speed,omitempty"`
	RunMinutes *float64 `json:"run_minutes,omitempty"`
}

// SetupResponse carries the updated snapshot and any values that were
// replaced with neutral defaults.
type SetupResponse struct {
	Snapshot sim.Snapshot `json:"snapshot"`
	Warnings []string     `json:"warnings"`
}

func (s *Server) applySetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	req := setupRequest{Setup: s.session.Snapshot().Setup}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RunMinutes != nil && !(*req.RunMinutes >= 0 && *req.RunMinutes <= maxRunMinutes) {
		badRequest(w, fmt.Sprintf("run_minutes must be between 0 and %g", maxRunMinutes))
		return
	}

	warnings := s.session.ApplySetup(req.Setup)
	if req.BaseSpeed != nil {
		warnings = append(warnings, s.session.SetBaseSpeed(*req.BaseSpeed)...)
	}
	if req.RunMinutes != nil {
		s.session.SetRunDuration(time.Duration(*req.RunMinutes * float64(time.Minute)))
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSONOK(w, SetupResponse{Snapshot: s.session.Snapshot(), Warnings: warnings})
}

func (s *Server) sessionLaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := parseLimit(r, 0)
	if !ok {
		badRequest(w, "invalid 'limit' parameter")
		return
	}
	events := s.session.Laps(limit)
	if events == nil {
		events = []lap.Event{}
	}
	writeJSONOK(w, struct {
		SessionID string      `json:"session_id"`
		Laps      []lap.Event `json:"laps"`
		Summary   lap.Summary `json:"summary"`
	}{s.session.ID(), events, lap.Summarize(s.session.Laps(0))})
}

// scene captures the published geometry and the last frame's marker.
func (s *Server) scene() render.Scene {
	g := s.session.Geometry()
	snap := s.session.Snapshot()
	marker := snap.Position
	return render.Scene{
		Title:    fmt.Sprintf("%s %s", g.TrackID, snap.ProgressText),
		Viewport: g.Viewport,
		Points:   g.Points,
		Marker:   &marker,
	}
}

func (s *Server) framePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var buf bytes.Buffer
	if err := s.scene().WritePNG(&buf); err != nil {
		internalServerError(w, fmt.Sprintf("failed to render frame: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.png", security.SanitizeFilename(s.session.Geometry().TrackID)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) debugTrack(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.scene().WriteHTML(&buf); err != nil {
		internalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) debugLaps(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	title := "Lap times " + s.session.Geometry().TrackID
	if err := render.WriteLapChart(&buf, title, s.session.Laps(0)); err != nil {
		internalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
