package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/trackline/internal/lap"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/sim"
)

// ErrNoLaps is returned when a query that needs at least one timed lap
// finds none.
var ErrNoLaps = errors.New("no timed laps")

var _ sim.LapSink = (*DB)(nil)

// DefaultLapLimit caps list queries that do not set a limit.
const DefaultLapLimit = 100

// LapRow is a stored lap.
type LapRow struct {
	ID             int64          `json:"id"`
	SessionID      string         `json:"session_id"`
	TrackID        string         `json:"track_id"`
	Lap            int            `json:"lap"`
	LapTimeSeconds *float64       `json:"lap_time_seconds"`
	ProgressAtWrap float64        `json:"progress_at_wrap"`
	RecordedAt     time.Time      `json:"recorded_at"`
	Setup          progress.Setup `json:"setup"`
}

// Event converts the row back to a lap event.
func (r LapRow) Event() lap.Event {
	return lap.Event{
		Lap:            r.Lap,
		LapTimeSeconds: r.LapTimeSeconds,
		ProgressAtWrap: r.ProgressAtWrap,
		At:             r.RecordedAt,
	}
}

// LapFilter narrows ListLaps. Empty fields match everything.
type LapFilter struct {
	SessionID string
	TrackID   string
	TimedOnly bool
	Limit     int
}

// SessionRow summarises the laps stored for one run.
type SessionRow struct {
	SessionID string    `json:"session_id"`
	TrackID   string    `json:"track_id"`
	FirstLap  time.Time `json:"first_lap"`
	LastLap   time.Time `json:"last_lap"`
	LapCount  int       `json:"lap_count"`
}

// RecordLap stores a completed lap and bumps its session summary. It
// satisfies sim.LapSink.
func (db *DB) RecordLap(ctx context.Context, rec sim.LapRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lap insert: %w", err)
	}
	defer tx.Rollback()

	var lapTime sql.NullFloat64
	if rec.Event.LapTimeSeconds != nil {
		lapTime = sql.NullFloat64{Float64: *rec.Event.LapTimeSeconds, Valid: true}
	}
	at := rec.Event.At.UnixNano()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO laps (
			session_id, track_id, lap, lap_time_s, progress_at_wrap, recorded_unix_nanos,
			tyre, session_type, fuel_kg, difficulty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.TrackID, rec.Event.Lap, lapTime, rec.Event.ProgressAtWrap, at,
		rec.Setup.Tyre, rec.Setup.Session, rec.Setup.FuelKg, rec.Setup.Difficulty,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lap %d of %s: %w", rec.Event.Lap, rec.SessionID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, track_id, first_lap_unix_nanos, last_lap_unix_nanos, lap_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (session_id) DO UPDATE SET
			last_lap_unix_nanos = excluded.last_lap_unix_nanos,
			lap_count = lap_count + 1`,
		rec.SessionID, rec.TrackID, at, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", rec.SessionID, err)
	}
	return tx.Commit()
}

const lapColumns = `lap_id, session_id, track_id, lap, lap_time_s, progress_at_wrap,
	recorded_unix_nanos, tyre, session_type, fuel_kg, difficulty`

// ListLaps returns stored laps, newest first.
func (db *DB) ListLaps(ctx context.Context, f LapFilter) ([]LapRow, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.TrackID != "" {
		where = append(where, "track_id = ?")
		args = append(args, f.TrackID)
	}
	if f.TimedOnly {
		where = append(where, "lap_time_s IS NOT NULL")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLapLimit
	}

	q := "SELECT " + lapColumns + " FROM laps"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY recorded_unix_nanos DESC, lap_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query laps: %w", err)
	}
	defer rows.Close()

	var out []LapRow
	for rows.Next() {
		r, err := scanLap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BestLap returns the fastest timed lap on track. It returns ErrNoLaps when
// the track has no timed laps.
func (db *DB) BestLap(ctx context.Context, trackID string) (LapRow, error) {
	row := db.QueryRowContext(ctx, "SELECT "+lapColumns+`
		FROM laps
		WHERE track_id = ? AND lap_time_s IS NOT NULL
		ORDER BY lap_time_s ASC, lap_id ASC
		LIMIT 1`, trackID)
	r, err := scanLap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LapRow{}, fmt.Errorf("%w on %s", ErrNoLaps, trackID)
	}
	return r, err
}

// ListSessions returns session summaries, most recently active first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = DefaultLapLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, track_id, first_lap_unix_nanos, last_lap_unix_nanos, lap_count
		FROM sessions
		ORDER BY last_lap_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var (
			s           SessionRow
			first, last int64
		)
		if err := rows.Scan(&s.SessionID, &s.TrackID, &first, &last, &s.LapCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.FirstLap = time.Unix(0, first).UTC()
		s.LastLap = time.Unix(0, last).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLap(s scanner) (LapRow, error) {
	var (
		r       LapRow
		lapTime sql.NullFloat64
		at      int64
	)
	err := s.Scan(&r.ID, &r.SessionID, &r.TrackID, &r.Lap, &lapTime, &r.ProgressAtWrap,
		&at, &r.Setup.Tyre, &r.Setup.Session, &r.Setup.FuelKg, &r.Setup.Difficulty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan lap: %w", err)
	}
	if lapTime.Valid {
		v := lapTime.Float64
		r.LapTimeSeconds = &v
	}
	r.RecordedAt = time.Unix(0, at).UTC()
	return r, nil
}
