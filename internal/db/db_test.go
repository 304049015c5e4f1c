package db

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackline/internal/lap"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/timeutil"
)

var base = time.Date(2026, 7, 6, 14, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "laps.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(f float64) *float64 { return &f }

func record(session, track string, n int, lapTime *float64, at time.Time) sim.LapRecord {
	return sim.LapRecord{
		SessionID: session,
		TrackID:   track,
		Event:     lap.Event{Lap: n, LapTimeSeconds: lapTime, ProgressAtWrap: 0.95, At: at},
		Setup:     progress.DefaultSetup(),
	}
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest, version)

	// Up again is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='sessions'").Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MigrateTo(latest))
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
}

func TestOpenDB_NoSchema(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestRecordLap_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordLap(ctx, record("s1", "monza", 1, nil, base)))
	require.NoError(t, db.RecordLap(ctx, record("s1", "monza", 2, floatPtr(81.25), base.Add(81250*time.Millisecond))))

	laps, err := db.ListLaps(ctx, LapFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, laps, 2)

	// Newest first.
	assert.Equal(t, 2, laps[0].Lap)
	require.NotNil(t, laps[0].LapTimeSeconds)
	assert.Equal(t, 81.25, *laps[0].LapTimeSeconds)
	assert.Nil(t, laps[1].LapTimeSeconds, "first wrap has no lap time")

	want := lap.Event{Lap: 1, ProgressAtWrap: 0.95, At: base}
	if diff := cmp.Diff(want, laps[1].Event()); diff != "" {
		t.Errorf("Event() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, progress.DefaultSetup(), laps[1].Setup)
}

func TestRecordLap_DuplicateRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordLap(ctx, record("s1", "monza", 1, nil, base)))
	err := db.RecordLap(ctx, record("s1", "monza", 1, nil, base))
	assert.Error(t, err)

	sessions, err := db.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].LapCount, "failed insert must not bump the session")
}

func TestListLaps_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	at := base
	for i, rec := range []sim.LapRecord{
		record("a", "monza", 1, nil, at),
		record("a", "monza", 2, floatPtr(80), at.Add(80*time.Second)),
		record("a", "monza", 3, floatPtr(79), at.Add(159*time.Second)),
		record("b", "spa", 1, nil, at.Add(200*time.Second)),
		record("b", "spa", 2, floatPtr(106), at.Add(306*time.Second)),
	} {
		if err := db.RecordLap(ctx, rec); err != nil {
			t.Fatalf("RecordLap %d failed: %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter LapFilter
		want   int
	}{
		{"all", LapFilter{}, 5},
		{"track", LapFilter{TrackID: "monza"}, 3},
		{"timed", LapFilter{TimedOnly: true}, 3},
		{"track timed", LapFilter{TrackID: "spa", TimedOnly: true}, 1},
		{"limit", LapFilter{Limit: 2}, 2},
		{"unknown session", LapFilter{SessionID: "zzz"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			laps, err := db.ListLaps(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, laps, tt.want)
		})
	}

	sessions, err := db.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].LapCount)
	assert.Equal(t, 3, sessions[1].LapCount)
	assert.Equal(t, base, sessions[1].FirstLap)
	assert.Equal(t, base.Add(159*time.Second), sessions[1].LastLap)
}

func TestBestLap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.BestLap(ctx, "monza")
	assert.True(t, errors.Is(err, ErrNoLaps))

	require.NoError(t, db.RecordLap(ctx, record("a", "monza", 1, nil, base)))
	_, err = db.BestLap(ctx, "monza")
	assert.ErrorIs(t, err, ErrNoLaps, "untimed laps never count")

	require.NoError(t, db.RecordLap(ctx, record("a", "monza", 2, floatPtr(81.2), base.Add(time.Minute))))
	require.NoError(t, db.RecordLap(ctx, record("a", "monza", 3, floatPtr(79.9), base.Add(2*time.Minute))))
	require.NoError(t, db.RecordLap(ctx, record("b", "spa", 2, floatPtr(60), base.Add(3*time.Minute))))

	best, err := db.BestLap(ctx, "monza")
	require.NoError(t, err)
	assert.Equal(t, 3, best.Lap)
	assert.Equal(t, 79.9, *best.LapTimeSeconds)
}

func TestSessionFeedsStore(t *testing.T) {
	db := newTestDB(t)
	clock := timeutil.NewMockClock(base)
	setup := progress.Setup{Tyre: "medium", Session: "race", FuelKg: progress.MinFuelKg, Difficulty: "normal"}

	s, err := sim.New(sim.Options{Clock: clock, Sink: db, BaseSpeed: 0.05, Setup: &setup}, "monza")
	require.NoError(t, err)
	s.Start()
	for i := 0; i < 50; i++ {
		clock.Advance(time.Second / 60)
		s.Step(context.Background())
	}

	laps, err := db.ListLaps(context.Background(), LapFilter{SessionID: s.ID()})
	require.NoError(t, err)
	require.Len(t, laps, 2)
	assert.NotNil(t, laps[0].LapTimeSeconds)
	assert.Nil(t, laps[1].LapTimeSeconds)
	assert.Equal(t, setup, laps[0].Setup)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordLap(context.Background(), record("a", "monza", 1, nil, base)))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(body[:16]))
}
