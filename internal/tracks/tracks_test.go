package tracks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
)

func TestBuiltin_Catalogue(t *testing.T) {
	t.Parallel()
	reg := Builtin()

	assert.Equal(t, []string{"monza", "silverstone", "spa", "silverstone_mgp"}, reg.WithGeometry())
	assert.Len(t, reg.List(SeriesF1), 6)
	assert.Len(t, reg.List(SeriesMotoGP), 8)
	assert.Len(t, reg.List(SeriesDrone), 6)
	assert.Equal(t, 20, reg.Len())

	monza, err := reg.Get("monza")
	require.NoError(t, err)
	assert.Equal(t, 53, monza.Laps)
	assert.Equal(t, 78.450, monza.BestLapSeconds)
	assert.InDelta(t, 307.029, monza.RaceDistanceKm(), 1e-9)
	assert.Nil(t, monza.Perturbation())

	sil, err := reg.Get("silverstone")
	require.NoError(t, err)
	assert.NotNil(t, sil.Perturbation())
}

func TestRegistry_UnknownTrack(t *testing.T) {
	t.Parallel()
	_, err := Builtin().Get("nurburgring")
	assert.True(t, errors.Is(err, ErrUnknownTrack))
}

func TestPreset_GenerateWithoutGeometry(t *testing.T) {
	t.Parallel()
	p, err := Builtin().Get("sgp")
	require.NoError(t, err)
	_, err = p.Generate(400)
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestPreset_GenerateMatchesCurve(t *testing.T) {
	t.Parallel()
	p, err := Builtin().Get("spa")
	require.NoError(t, err)

	got, err := p.Generate(400)
	require.NoError(t, err)
	want, err := curve.Generate(spaAnchors, 400, curve.Radial(curve.RadialParams{Amplitude: 1.6, Frequency: 3, Spin: 2.3}))
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("spa geometry mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_RegisterValidates(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry()
	require.NoError(t, err)

	err = reg.Register(Preset{ID: "tri", Anchors: []geom.Point{{X: 0}, {X: 1}, {Y: 1}}})
	assert.ErrorIs(t, err, curve.ErrInvalidAnchorSet)

	assert.Error(t, reg.Register(Preset{Name: "nameless"}))
	assert.Error(t, reg.Register(Preset{ID: "neg", Laps: -1}))

	require.NoError(t, reg.Register(Preset{ID: "a", Name: "first"}))
	require.NoError(t, reg.Register(Preset{ID: "b"}))
	require.NoError(t, reg.Register(Preset{ID: "a", Name: "replaced"}))

	list := reg.List("")
	require.Len(t, list, 2)
	assert.Equal(t, "replaced", list[0].Name)
	assert.Equal(t, "b", list[1].ID)
}

const customYAML = `
tracks:
  - id: oval
    name: Test Oval
    laps: 10
    length_km: 2.5
    anchors:
      - {x: 0, y: 0}
      - {x: 100, y: 0}
      - {x: 100, y: 50}
      - {x: 0, y: 50}
    wobble:
      amplitude: 0.5
      frequency: 2
  - id: meta-only
    name: Metadata Only
    series: motogp
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	presets, err := ParseYAML(strings.NewReader(customYAML))
	require.NoError(t, err)
	require.Len(t, presets, 2)

	oval := presets[0]
	assert.Equal(t, SeriesCustom, oval.Series)
	assert.Len(t, oval.Anchors, 4)
	require.NotNil(t, oval.Wobble)
	assert.Equal(t, 0.5, oval.Wobble.Amplitude)
	assert.Equal(t, SeriesMotoGP, presets[1].Series)

	pts, err := oval.Generate(100)
	require.NoError(t, err)
	assert.Len(t, pts, 100)
}

func TestParseYAML_Errors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"too few anchors": "tracks:\n  - id: x\n    anchors: [{x: 0, y: 0}, {x: 1, y: 1}]\n",
		"unknown field":   "tracks:\n  - id: x\n    colour: red\n",
		"duplicate":       "tracks:\n  - id: x\n  - id: x\n",
		"missing id":      "tracks:\n  - name: nobody\n",
		"not yaml":        "tracks: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseYAML(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	presets, err := ParseYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, presets)
}

func TestLoadYAMLFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(good, []byte(customYAML), 0o644))

	reg := Builtin()
	n, err := reg.LoadFile(good)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = reg.Get("oval")
	assert.NoError(t, err)

	bad := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(bad, []byte(customYAML), 0o644))
	_, err = LoadYAMLFile(bad)
	assert.ErrorContains(t, err, "extension")

	_, err = LoadYAMLFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestMarshalYAML_RoundTrip(t *testing.T) {
	t.Parallel()
	reg := Builtin()
	want := reg.List(SeriesF1)[:3]

	data, err := MarshalYAML(want)
	require.NoError(t, err)
	got, err := ParseYAML(strings.NewReader(string(data)))
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_HitsAndInvalidation(t *testing.T) {
	t.Parallel()
	c := NewCache(Builtin())

	a, err := c.Points("monza", 400)
	require.NoError(t, err)
	b, err := c.Points("monza", 400)
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0])
	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// A new sample count replaces the entry for that track.
	dense, err := c.Points("monza", 1000)
	require.NoError(t, err)
	assert.Len(t, dense, 1000)
	assert.Equal(t, 1, c.Len())

	_, err = c.Points("spa", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	c.Invalidate("spa")
	assert.Equal(t, 1, c.Len())

	_, err = c.Points("lasvegas", 400)
	assert.ErrorIs(t, err, ErrNoGeometry)
	_, err = c.Points("nowhere", 400)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()
	c := NewCache(Builtin())

	var wg sync.WaitGroup
	results := make([][]geom.Point, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pts, err := c.Points("silverstone", 400)
			assert.NoError(t, err)
			results[i] = pts
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
}
