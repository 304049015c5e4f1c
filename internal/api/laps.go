package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/trackline/internal/db"
	"github.com/banshee-data/trackline/internal/units"
)

// LapView is a stored lap with display fields.
type LapView struct {
	db.LapRow
	LapTimeText string `json:"lap_time_text,omitempty"`
}

func (s *Server) lapView(r db.LapRow) LapView {
	v := LapView{LapRow: r}
	if r.LapTimeSeconds != nil {
		v.LapTimeText = units.FormatLapTime(*r.LapTimeSeconds)
	}
	return v
}

// listLaps returns stored laps filtered by session_id, track_id and timed.
// Without a store it serves the current run from memory.
func (s *Server) listLaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, ok := parseLimit(r, db.DefaultLapLimit)
	if !ok {
		badRequest(w, "invalid 'limit' parameter")
		return
	}
	q := r.URL.Query()

	var rows []db.LapRow
	if s.store == nil {
		rows = s.memoryLaps(limit)
	} else {
		var err error
		rows, err = s.store.ListLaps(r.Context(), db.LapFilter{
			SessionID: q.Get("session_id"),
			TrackID:   q.Get("track_id"),
			TimedOnly: q.Get("timed") == "true",
			Limit:     limit,
		})
		if err != nil {
			internalServerError(w, fmt.Sprintf("failed to list laps: %v", err))
			return
		}
	}

	out := make([]LapView, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.lapView(row))
	}
	writeJSONOK(w, out)
}

// memoryLaps converts the session history to rows, newest first.
func (s *Server) memoryLaps(limit int) []db.LapRow {
	snap := s.session.Snapshot()
	events := s.session.Laps(limit)
	rows := make([]db.LapRow, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		rows = append(rows, db.LapRow{
			SessionID:      snap.SessionID,
			TrackID:        snap.TrackID,
			Lap:            e.Lap,
			LapTimeSeconds: e.LapTimeSeconds,
			ProgressAtWrap: e.ProgressAtWrap,
			RecordedAt:     e.At,
			Setup:          snap.Setup,
		})
	}
	return rows
}

func (s *Server) bestLap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "lap store disabled")
		return
	}
	trackID := r.URL.Query().Get("track_id")
	if trackID == "" {
		trackID = s.session.Geometry().TrackID
	}
	row, err := s.store.BestLap(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, db.ErrNoLaps) {
			notFound(w, err.Error())
			return
		}
		internalServerError(w, fmt.Sprintf("failed to query best lap: %v", err))
		return
	}
	writeJSONOK(w, s.lapView(row))
}
