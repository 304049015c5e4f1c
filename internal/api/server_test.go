package api

import (
	"context"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/db"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/monitoring"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/sim"
	"github.com/banshee-data/trackline/internal/testutil"
	"github.com/banshee-data/trackline/internal/timeutil"
	"github.com/banshee-data/trackline/internal/tracks"
	"github.com/banshee-data/trackline/internal/units"
)

var epoch = time.Date(2026, 7, 6, 14, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	handler http.Handler
	session *sim.Session
	clock   *timeutil.MockClock
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	cache := tracks.NewCache(tracks.Builtin())
	setup := progress.Setup{Tyre: "medium", Session: "race", FuelKg: progress.MinFuelKg, Difficulty: "normal"}

	opts := sim.Options{Clock: clock, Cache: cache, BaseSpeed: 0.05, Setup: &setup}
	var store LapStore
	if withStore {
		d, err := db.NewDB(filepath.Join(t.TempDir(), "laps.db"))
		require.NoError(t, err)
		t.Cleanup(func() { d.Close() })
		opts.Sink = d
		store = d
	}

	s, err := sim.New(opts, "monza")
	require.NoError(t, err)
	srv := NewServer(s, cache, store, units.KPH)
	return &fixture{server: srv, handler: srv.ServeMux(), session: s, clock: clock}
}

func (f *fixture) step(n int) {
	for i := 0; i < n; i++ {
		f.clock.Advance(time.Second / 60)
		f.session.Step(context.Background())
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(f.handler, testutil.NewJSONRequest(t, method, path, body))
}

func TestVersion(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/version", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	got := testutil.DecodeJSON[map[string]string](t, rec)
	assert.Equal(t, "dev", got["version"])
}

func TestTracks_List(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/tracks", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	all := testutil.DecodeJSON[[]TrackSummary](t, rec)
	assert.Len(t, all, 20)
	assert.Equal(t, "monza", all[0].ID)
	assert.True(t, all[0].HasGeometry)

	rec = f.do(t, http.MethodGet, "/api/tracks?series=motogp", nil)
	motogp := testutil.DecodeJSON[[]TrackSummary](t, rec)
	assert.Len(t, motogp, 8)
	for _, ts := range motogp {
		assert.Equal(t, tracks.SeriesMotoGP, ts.Series)
	}

	rec = f.do(t, http.MethodPost, "/api/tracks", nil)
	testutil.AssertStatusCode(t, rec, http.StatusMethodNotAllowed)
}

func TestTracks_SummaryFields(t *testing.T) {
	f := newFixture(t, false)
	p, err := tracks.Builtin().Get("spa")
	require.NoError(t, err)

	ts := f.server.summarize(p)
	assert.Equal(t, p.RaceDistanceKm(), ts.RaceDistanceKm)
	assert.Equal(t, units.FormatLapTime(p.BestLapSeconds), ts.BestLapText)
	assert.InDelta(t, p.LengthKm/p.BestLapSeconds*3600, ts.BestLapSpeed, 1e-9)
	assert.Equal(t, units.KPH, ts.SpeedUnits)
}

func TestTracks_Get(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/tracks/spa", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	p := testutil.DecodeJSON[tracks.Preset](t, rec)
	assert.Equal(t, "spa", p.ID)
	assert.NotEmpty(t, p.Anchors)

	rec = f.do(t, http.MethodGet, "/api/tracks/imola", nil)
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)

	rec = f.do(t, http.MethodGet, "/api/tracks/monza/elevation", nil)
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)
}

func TestTracks_Outline(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/tracks/monza/outline?width=400&height=300&padding=10&precision=pixel&samples=100", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	out := testutil.DecodeJSON[Outline](t, rec)
	require.Len(t, out.Points, 100)
	assert.Equal(t, "pixel", out.Precision)
	assert.False(t, out.Degenerate)
	assert.Greater(t, out.PathLength, 0.0)
	for _, p := range out.Points {
		assert.Equal(t, math.Round(p.X), p.X)
		assert.Equal(t, math.Round(p.Y), p.Y)
		assert.True(t, p.X >= 10 && p.X <= 390 && p.Y >= 10 && p.Y <= 290)
	}

	// Defaults come from the session geometry.
	rec = f.do(t, http.MethodGet, "/api/tracks/spa/outline", nil)
	out = testutil.DecodeJSON[Outline](t, rec)
	assert.Len(t, out.Points, 400)
	assert.Equal(t, 800, out.Viewport.Width)

	rec = f.do(t, http.MethodGet, "/api/tracks/sgp/outline", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	out = testutil.DecodeJSON[Outline](t, rec)
	assert.True(t, out.Degenerate)
	assert.Empty(t, out.Points)

	for _, q := range []string{"width=0", "height=abc", "padding=-1", "samples=0", "precision=subpixel"} {
		rec = f.do(t, http.MethodGet, "/api/tracks/monza/outline?"+q, nil)
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
	}

	rec = f.do(t, http.MethodGet, "/api/tracks/imola/outline", nil)
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)
}

func TestTracks_OutlineLimits(t *testing.T) {
	f := newFixture(t, false)

	for _, q := range []string{
		"samples=2000000000",
		fmt.Sprintf("samples=%d", curve.MaxSampleCount+1),
		fmt.Sprintf("width=%d", geom.MaxViewportDimension+1),
		"height=99999999",
		fmt.Sprintf("padding=%d", geom.MaxViewportDimension+1),
	} {
		rec := f.do(t, http.MethodGet, "/api/tracks/monza/outline?"+q, nil)
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "invalid", q)
	}

	rec := f.do(t, http.MethodGet, "/api/tracks/monza/position?progress=0.5&samples=2000000000", nil)
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tracks/monza/outline?samples=%d", curve.MaxSampleCount), nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Len(t, testutil.DecodeJSON[Outline](t, rec).Points, curve.MaxSampleCount)
}

func TestTracks_Position(t *testing.T) {
	f := newFixture(t, false)

	outline := testutil.DecodeJSON[Outline](t, f.do(t, http.MethodGet, "/api/tracks/monza/outline", nil))

	rec := f.do(t, http.MethodGet, "/api/tracks/monza/position?progress=0", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	got := testutil.DecodeJSON[struct {
		Progress float64       `json:"progress"`
		Position arclen.Sample `json:"position"`
	}](t, rec)
	assert.Equal(t, outline.Points[0], got.Position.Point())

	rec = f.do(t, http.MethodGet, "/api/tracks/monza/position?progress=1.25", nil)
	got = testutil.DecodeJSON[struct {
		Progress float64       `json:"progress"`
		Position arclen.Sample `json:"position"`
	}](t, rec)
	assert.InDelta(t, 0.25, got.Progress, 1e-12)

	rec = f.do(t, http.MethodGet, "/api/tracks/monza/position", nil)
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/tracks/sgp/position?progress=0.5", nil)
	got = testutil.DecodeJSON[struct {
		Progress float64       `json:"progress"`
		Position arclen.Sample `json:"position"`
	}](t, rec)
	assert.Equal(t, 400.0, got.Position.X)
	assert.Equal(t, 300.0, got.Position.Y)
}

func TestSession_Lifecycle(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/session", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	snap := testutil.DecodeJSON[sim.Snapshot](t, rec)
	assert.Equal(t, "stopped", snap.State)
	assert.Equal(t, "monza", snap.TrackID)

	rec = f.do(t, http.MethodGet, "/api/session/start", nil)
	testutil.AssertStatusCode(t, rec, http.StatusMethodNotAllowed)

	rec = f.do(t, http.MethodPost, "/api/session/start", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "running", testutil.DecodeJSON[sim.Snapshot](t, rec).State)

	f.step(10)

	rec = f.do(t, http.MethodPost, "/api/session/reset", nil)
	testutil.AssertStatusCode(t, rec, http.StatusConflict)

	rec = f.do(t, http.MethodPost, "/api/session/stop", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	stopped := testutil.DecodeJSON[sim.Snapshot](t, rec)
	assert.Equal(t, "stopped", stopped.State)
	assert.Greater(t, stopped.Progress, 0.0)

	rec = f.do(t, http.MethodPost, "/api/session/reset", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	reset := testutil.DecodeJSON[sim.Snapshot](t, rec)
	assert.Zero(t, reset.Progress)
	assert.NotEqual(t, snap.SessionID, reset.SessionID)
}

func TestSession_SelectTrack(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/session/track", map[string]string{"track_id": "spa"})
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "spa", testutil.DecodeJSON[sim.Snapshot](t, rec).TrackID)

	rec = f.do(t, http.MethodPut, "/api/session/track", map[string]string{"track_id": "imola"})
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)

	rec = f.do(t, http.MethodPut, "/api/session/track", map[string]string{})
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodPut, "/api/session/track", map[string]string{"track": "spa"})
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodPost, "/api/session/track", map[string]string{"track_id": "spa"})
	testutil.AssertStatusCode(t, rec, http.StatusMethodNotAllowed)

	assert.Equal(t, "spa", f.session.Geometry().TrackID)
}

func TestSession_Viewport(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/session/viewport", viewportRequest{
		Width: 640, Height: 480, Padding: 20, Precision: "pixel", SampleCount: 200,
	})
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	snap := testutil.DecodeJSON[sim.Snapshot](t, rec)
	assert.Equal(t, 640, snap.Viewport.Width)
	assert.Equal(t, "pixel", snap.Precision)
	assert.Equal(t, 200, snap.SampleCount)

	rec = f.do(t, http.MethodPut, "/api/session/viewport", viewportRequest{Width: 0, Height: 480})
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodPut, "/api/session/viewport", viewportRequest{Width: 10, Height: 10, Precision: "half"})
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	assert.Equal(t, 640, f.session.Geometry().Viewport.Width)
}

func TestSession_ViewportLimits(t *testing.T) {
	f := newFixture(t, false)

	for _, req := range []viewportRequest{
		{Width: geom.MaxViewportDimension + 1, Height: 480},
		{Width: 640, Height: 2000000000},
		{Width: 640, Height: 480, Padding: geom.MaxViewportDimension + 1},
		{Width: 640, Height: 480, SampleCount: curve.MaxSampleCount + 1},
		{Width: 640, Height: 480, SampleCount: 2000000000},
	} {
		rec := f.do(t, http.MethodPut, "/api/session/viewport", req)
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
	}

	g := f.session.Geometry()
	assert.Equal(t, 800, g.Viewport.Width)
	assert.Equal(t, curve.DefaultSampleCount, g.SampleCount)

	rec := f.do(t, http.MethodGet, "/api/session/frame.png", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
}

func TestSession_Setup(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{
		"tyre": "soft", "difficulty": "hard", "run_minutes": 2,
	})
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	resp := testutil.DecodeJSON[SetupResponse](t, rec)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "soft", resp.Snapshot.Setup.Tyre)
	assert.Equal(t, "race", resp.Snapshot.Setup.Session, "unset fields keep their value")
	require.NotNil(t, resp.Snapshot.RunSeconds)
	assert.Equal(t, 120.0, *resp.Snapshot.RunSeconds)
	assert.InDelta(t, 0.05*1.03*1.2, resp.Snapshot.EffectiveSpeed, 1e-12)

	rec = f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{"tyre": "slick"})
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	resp = testutil.DecodeJSON[SetupResponse](t, rec)
	assert.Len(t, resp.Warnings, 1)

	rec = f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{"run_minutes": -1})
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	for _, minutes := range []float64{181, 1e300} {
		rec = f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{"run_minutes": minutes})
		testutil.AssertStatusCode(t, rec, http.StatusBadRequest)
	}
	assert.Equal(t, 120.0, *f.session.Snapshot().RunSeconds)

	rec = f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{"run_minutes": 180})
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, 10800.0, *f.session.Snapshot().RunSeconds)

	rec = f.do(t, http.MethodPut, "/api/session/setup", map[string]interface{}{"tyre": "medium", "base_speed": -3})
	resp = testutil.DecodeJSON[SetupResponse](t, rec)
	assert.Len(t, resp.Warnings, 1)
	assert.Equal(t, progress.DefaultBaseSpeed, resp.Snapshot.BaseSpeed)
}

func TestLaps_FromMemory(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.step(50)

	rec := f.do(t, http.MethodGet, "/api/laps", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	laps := testutil.DecodeJSON[[]LapView](t, rec)
	require.Len(t, laps, 2)
	assert.Equal(t, 2, laps[0].Lap)
	assert.NotEmpty(t, laps[0].LapTimeText)
	assert.Nil(t, laps[1].LapTimeSeconds)

	rec = f.do(t, http.MethodGet, "/api/laps?limit=1", nil)
	assert.Len(t, testutil.DecodeJSON[[]LapView](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/laps?limit=x", nil)
	testutil.AssertStatusCode(t, rec, http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/laps/best", nil)
	testutil.AssertStatusCode(t, rec, http.StatusServiceUnavailable)

	rec = f.do(t, http.MethodGet, "/api/session/laps", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	sl := testutil.DecodeJSON[struct {
		Laps []struct {
			Lap int `json:"lap"`
		} `json:"laps"`
		Summary struct {
			Laps      int `json:"laps"`
			TimedLaps int `json:"timed_laps"`
		} `json:"summary"`
	}](t, rec)
	assert.Len(t, sl.Laps, 2)
	assert.Equal(t, 1, sl.Summary.TimedLaps)
}

func TestLaps_FromStore(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/laps/best", nil)
	testutil.AssertStatusCode(t, rec, http.StatusNotFound)

	f.session.Start()
	f.step(70)

	rec = f.do(t, http.MethodGet, "/api/laps?track_id=monza", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	laps := testutil.DecodeJSON[[]LapView](t, rec)
	require.Len(t, laps, 3)
	assert.Equal(t, f.session.ID(), laps[0].SessionID)

	rec = f.do(t, http.MethodGet, "/api/laps?timed=true", nil)
	assert.Len(t, testutil.DecodeJSON[[]LapView](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/api/laps?track_id=spa", nil)
	assert.Empty(t, testutil.DecodeJSON[[]LapView](t, rec))

	rec = f.do(t, http.MethodGet, "/api/laps/best?track_id=monza", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	best := testutil.DecodeJSON[LapView](t, rec)
	require.NotNil(t, best.LapTimeSeconds)
	assert.InDelta(t, 1.0/3, *best.LapTimeSeconds, 0.02)
}

func TestFramePNG(t *testing.T) {
	f := newFixture(t, false)
	f.session.Start()
	f.step(5)

	rec := f.do(t, http.MethodGet, "/api/session/frame.png", nil)
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline; filename=monza.png", rec.Header().Get("Content-Disposition"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
}

func TestDebugRoutes(t *testing.T) {
	f := newFixture(t, false)
	mux := http.NewServeMux()
	f.server.AttachDebugRoutes(mux)

	for _, path := range []string{"/debug/track", "/debug/laps"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := testutil.Serve(mux, req)
		testutil.AssertStatusCode(t, rec, http.StatusOK)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"), path)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	rec := &monitoring.Recorder{}
	original := monitoring.Logf
	monitoring.SetLogger(rec.Logf)
	t.Cleanup(func() { monitoring.Logf = original })

	f := newFixture(t, false)
	h := LoggingMiddleware(f.handler)
	resp := testutil.Serve(h, httptest.NewRequest(http.MethodGet, "/api/tracks/imola", nil))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	lines := rec.Lines()
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "404")
	assert.Contains(t, last, "/api/tracks/imola")
}
