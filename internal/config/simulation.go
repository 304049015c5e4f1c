package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/progress"
)

// DefaultConfigPath is the path to the canonical simulation defaults file.
const DefaultConfigPath = "config/simulation.defaults.json"

// Defaults applied by the Get* methods when a field is omitted.
const (
	DefaultListen          = "localhost:8080"
	DefaultDBPath          = "trackline.db"
	DefaultTrack           = "monza"
	DefaultSampleCount     = 400
	DefaultViewportWidth   = 800
	DefaultViewportHeight  = 600
	DefaultViewportPadding = 40
	DefaultPrecision       = "full"
	DefaultTargetFPS       = 60
	DefaultMaxElapsed      = 250 * time.Millisecond
	DefaultBaseSpeed       = 0.0006
	DefaultFuelKg          = 50.0
)

// MaxRunMinutes is the longest timed run a config may request.
const MaxRunMinutes = 180.0

// SimConfig is the root configuration of a simulation instance. The schema
// matches the PUT /api/session/* payloads where they overlap so the same
// JSON keys serve startup and runtime updates.
type SimConfig struct {
	// Service
	Listen      *string `json:"listen,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	PresetsFile *string `json:"presets_file,omitempty"` // optional extra YAML presets
	RecordLaps  *bool   `json:"record_laps,omitempty"`

	// Geometry
	Track           *string `json:"track_id,omitempty"`
	SampleCount     *int    `json:"sample_count,omitempty"`
	ViewportWidth   *int    `json:"width,omitempty"`
	ViewportHeight  *int    `json:"height,omitempty"`
	ViewportPadding *int    `json:"padding,omitempty"`
	Precision       *string `json:"precision,omitempty"` // "full" or "pixel"

	// Timing
	TargetFPS  *int     `json:"target_fps,omitempty"`
	MaxElapsed *string  `json:"max_elapsed,omitempty"` // duration string like "250ms"
	BaseSpeed  *float64 `json:"base_speed,omitempty"`
	RunMinutes *float64 `json:"run_minutes,omitempty"` // 0 runs until stopped

	// Setup
	Tyre       *string  `json:"tyre,omitempty"`
	Session    *string  `json:"session,omitempty"`
	FuelKg     *float64 `json:"fuel_kg,omitempty"`
	Difficulty *string  `json:"difficulty,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySimConfig returns a SimConfig with every field unset.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// LoadSimConfig loads a SimConfig from a JSON file. The file must have a
// .json extension and be at most 1MB. Omitted fields keep their defaults.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. It panics if the file cannot be loaded and is
// intended for tests and binaries started from the repository.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that set values are usable.
func (c *SimConfig) Validate() error {
	if c.SampleCount != nil && *c.SampleCount < 0 {
		return fmt.Errorf("sample_count must be non-negative, got %d", *c.SampleCount)
	}
	if c.SampleCount != nil && *c.SampleCount > curve.MaxSampleCount {
		return fmt.Errorf("sample_count must be at most %d, got %d", curve.MaxSampleCount, *c.SampleCount)
	}
	for name, v := range map[string]*int{
		"width":  c.ViewportWidth,
		"height": c.ViewportHeight,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
		if v != nil && *v > geom.MaxViewportDimension {
			return fmt.Errorf("%s must be at most %d, got %d", name, geom.MaxViewportDimension, *v)
		}
	}
	if c.ViewportPadding != nil && (*c.ViewportPadding < 0 || *c.ViewportPadding > geom.MaxViewportDimension) {
		return fmt.Errorf("padding must be between 0 and %d, got %d", geom.MaxViewportDimension, *c.ViewportPadding)
	}
	if c.Precision != nil && *c.Precision != "" && *c.Precision != "full" && *c.Precision != "pixel" {
		return fmt.Errorf("precision must be \"full\" or \"pixel\", got %q", *c.Precision)
	}
	if c.TargetFPS != nil && (*c.TargetFPS <= 0 || *c.TargetFPS > 240) {
		return fmt.Errorf("target_fps must be between 1 and 240, got %d", *c.TargetFPS)
	}
	if c.MaxElapsed != nil && *c.MaxElapsed != "" {
		d, err := time.ParseDuration(*c.MaxElapsed)
		if err != nil {
			return fmt.Errorf("invalid max_elapsed '%s': %w", *c.MaxElapsed, err)
		}
		if d <= 0 {
			return fmt.Errorf("max_elapsed must be positive, got %s", d)
		}
	}
	if c.BaseSpeed != nil && !(*c.BaseSpeed > 0) {
		return fmt.Errorf("base_speed must be positive, got %v", *c.BaseSpeed)
	}
	if c.RunMinutes != nil && *c.RunMinutes < 0 {
		return fmt.Errorf("run_minutes must be non-negative, got %v", *c.RunMinutes)
	}
	if c.RunMinutes != nil && *c.RunMinutes > MaxRunMinutes {
		return fmt.Errorf("run_minutes must be at most %v, got %v", MaxRunMinutes, *c.RunMinutes)
	}
	if c.FuelKg != nil && *c.FuelKg < 0 {
		return fmt.Errorf("fuel_kg must be non-negative, got %v", *c.FuelKg)
	}
	return nil
}

// GetListen returns the HTTP listen address.
func (c *SimConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns the SQLite database path.
func (c *SimConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetPresetsFile returns the optional YAML presets path, or "".
func (c *SimConfig) GetPresetsFile() string {
	if c.PresetsFile == nil {
		return ""
	}
	return *c.PresetsFile
}

// GetRecordLaps reports whether completed laps are persisted.
func (c *SimConfig) GetRecordLaps() bool {
	if c.RecordLaps == nil {
		return true
	}
	return *c.RecordLaps
}

// GetTrack returns the initial track id.
func (c *SimConfig) GetTrack() string {
	if c.Track == nil || *c.Track == "" {
		return DefaultTrack
	}
	return *c.Track
}

// GetSampleCount returns the centreline sample count.
func (c *SimConfig) GetSampleCount() int {
	if c.SampleCount == nil || *c.SampleCount == 0 {
		return DefaultSampleCount
	}
	return *c.SampleCount
}

// GetViewportWidth returns the viewport width in pixels.
func (c *SimConfig) GetViewportWidth() int {
	if c.ViewportWidth == nil {
		return DefaultViewportWidth
	}
	return *c.ViewportWidth
}

// GetViewportHeight returns the viewport height in pixels.
func (c *SimConfig) GetViewportHeight() int {
	if c.ViewportHeight == nil {
		return DefaultViewportHeight
	}
	return *c.ViewportHeight
}

// GetViewportPadding returns the viewport padding in pixels.
func (c *SimConfig) GetViewportPadding() int {
	if c.ViewportPadding == nil {
		return DefaultViewportPadding
	}
	return *c.ViewportPadding
}

// GetPrecision returns "full" or "pixel".
func (c *SimConfig) GetPrecision() string {
	if c.Precision == nil || *c.Precision == "" {
		return DefaultPrecision
	}
	return *c.Precision
}

// GetTargetFPS returns the tick rate of the session loop.
func (c *SimConfig) GetTargetFPS() int {
	if c.TargetFPS == nil {
		return DefaultTargetFPS
	}
	return *c.TargetFPS
}

// GetTickInterval returns the period between session ticks.
func (c *SimConfig) GetTickInterval() time.Duration {
	return time.Second / time.Duration(c.GetTargetFPS())
}

// GetMaxElapsed parses and returns the per-tick elapsed-time cap.
func (c *SimConfig) GetMaxElapsed() time.Duration {
	if c.MaxElapsed == nil || *c.MaxElapsed == "" {
		return DefaultMaxElapsed
	}
	d, err := time.ParseDuration(*c.MaxElapsed)
	if err != nil || d <= 0 {
		return DefaultMaxElapsed // default on parse error
	}
	return d
}

// GetBaseSpeed returns the progress gained per 60 fps frame.
func (c *SimConfig) GetBaseSpeed() float64 {
	if c.BaseSpeed == nil {
		return DefaultBaseSpeed
	}
	return *c.BaseSpeed
}

// GetRunDuration returns how long a started session runs before stopping
// itself. Zero means indefinitely.
func (c *SimConfig) GetRunDuration() time.Duration {
	if c.RunMinutes == nil {
		return 0
	}
	return time.Duration(*c.RunMinutes * float64(time.Minute))
}

// GetTyre returns the tyre compound.
func (c *SimConfig) GetTyre() string {
	if c.Tyre == nil || *c.Tyre == "" {
		return "medium"
	}
	return *c.Tyre
}

// GetSession returns the session type.
func (c *SimConfig) GetSession() string {
	if c.Session == nil || *c.Session == "" {
		return "race"
	}
	return *c.Session
}

// GetFuelKg returns the fuel load in kilograms.
func (c *SimConfig) GetFuelKg() float64 {
	if c.FuelKg == nil {
		return DefaultFuelKg
	}
	return *c.FuelKg
}

// GetDifficulty returns the difficulty level.
func (c *SimConfig) GetDifficulty() string {
	if c.Difficulty == nil || *c.Difficulty == "" {
		return "normal"
	}
	return *c.Difficulty
}

// GetViewport returns the configured viewport.
func (c *SimConfig) GetViewport() geom.Viewport {
	return geom.Viewport{
		Width:   c.GetViewportWidth(),
		Height:  c.GetViewportHeight(),
		Padding: c.GetViewportPadding(),
	}
}

// GetSetup returns the configured car and session setup.
func (c *SimConfig) GetSetup() progress.Setup {
	return progress.Setup{
		Tyre:       c.GetTyre(),
		Session:    c.GetSession(),
		FuelKg:     c.GetFuelKg(),
		Difficulty: c.GetDifficulty(),
	}
}

// GetGeomPrecision returns the precision as a geom.Precision.
func (c *SimConfig) GetGeomPrecision() geom.Precision {
	return geom.ParsePrecision(c.GetPrecision())
}
