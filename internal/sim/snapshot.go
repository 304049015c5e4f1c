package sim

import (
	"time"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/lap"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/units"
)

// Snapshot is a point-in-time view of a session for display.
type Snapshot struct {
	SessionID      string           `json:"session_id"`
	TrackID        string           `json:"track_id"`
	State          string           `json:"state"`
	Progress       float64          `json:"progress"`
	ProgressText   string           `json:"progress_text"`
	Position       arclen.Sample    `json:"position"`
	Degenerate     bool             `json:"degenerate"`
	Viewport       geom.Viewport    `json:"viewport"`
	Precision      string           `json:"precision"`
	SampleCount    int              `json:"sample_count"`
	PathLength     float64          `json:"path_length"`
	Setup          progress.Setup   `json:"setup"`
	Factors        progress.Factors `json:"factors"`
	BaseSpeed      float64          `json:"base_speed"`
	EffectiveSpeed float64          `json:"effective_speed"`
	Laps           int              `json:"laps"`
	LastLapSeconds *float64         `json:"last_lap_seconds"`
	LastLapText    string           `json:"last_lap_text,omitempty"`
	Summary        lap.Summary      `json:"summary"`
	RunSeconds     *float64         `json:"run_seconds"`       // nil when indefinite
	RemainingSecs  *float64         `json:"remaining_seconds"` // nil when indefinite
	RemainingText  string           `json:"remaining_text"`
	EstimatedLaps  int              `json:"estimated_laps"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() Snapshot {
	g := s.Geometry()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Charge the running countdown so the remaining time is current.
	if s.driver.State() == progress.Running && s.countDownLocked(s.clock.Now()) {
		s.expireLocked()
	}

	p := s.driver.Progress()
	snap := Snapshot{
		SessionID:      s.id,
		TrackID:        g.TrackID,
		State:          s.driver.State().String(),
		Progress:       p,
		ProgressText:   units.FormatProgress(p),
		Position:       g.Resolve(p),
		Degenerate:     g.Degenerate(),
		Viewport:       g.Viewport,
		Precision:      g.Precision.String(),
		SampleCount:    g.SampleCount,
		PathLength:     g.Index.TotalLength,
		Setup:          s.setup,
		Factors:        s.driver.Factors(),
		BaseSpeed:      s.driver.BaseSpeed(),
		EffectiveSpeed: s.driver.EffectiveSpeed(),
		Laps:           s.detector.Laps(),
		Summary:        lap.Summarize(s.laps),
		UpdatedAt:      s.frame.At,
	}
	if n := len(s.laps); n > 0 && s.laps[n-1].LapTimeSeconds != nil {
		v := *s.laps[n-1].LapTimeSeconds
		snap.LastLapSeconds = &v
		snap.LastLapText = units.FormatLapTime(v)
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}

	var remaining *time.Duration
	if s.runDuration > 0 {
		run := s.runDuration.Seconds()
		left := s.remaining.Seconds()
		snap.RunSeconds = &run
		snap.RemainingSecs = &left
		r := s.remaining
		remaining = &r
		snap.EstimatedLaps = units.EstimatedLaps(s.runDuration.Minutes())
	}
	snap.RemainingText = units.FormatCountdown(remaining)
	return snap
}
