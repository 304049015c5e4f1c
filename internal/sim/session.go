// Package sim runs a single animated lap session: one track geometry, one
// progress driver and one lap detector advanced by a shared tick source.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/lap"
	"github.com/banshee-data/trackline/internal/monitoring"
	"github.com/banshee-data/trackline/internal/progress"
	"github.com/banshee-data/trackline/internal/timeutil"
	"github.com/banshee-data/trackline/internal/tracks"
)

// ErrInvalidViewport is returned for a viewport with non-positive dimensions.
var ErrInvalidViewport = errors.New("invalid viewport")

const (
	// DefaultLapHistory bounds the lap events kept in memory per run.
	DefaultLapHistory = 500
	// MaxRunDuration is the longest timed run.
	MaxRunDuration = 180 * time.Minute
)

// LapRecord is a completed lap handed to a LapSink.
type LapRecord struct {
	SessionID string
	TrackID   string
	Event     lap.Event
	Setup     progress.Setup
}

// LapSink persists completed laps. Errors are logged and never stop the
// tick loop.
type LapSink interface {
	RecordLap(ctx context.Context, rec LapRecord) error
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	Clock        timeutil.Clock
	Cache        *tracks.Cache
	Sink         LapSink
	SampleCount  int
	Viewport     geom.Viewport
	Precision    geom.Precision
	TickInterval time.Duration
	MaxElapsed   time.Duration
	BaseSpeed    float64
	RunDuration  time.Duration // zero runs until stopped
	Setup        *progress.Setup
	LapHistory   int
}

func (o *Options) applyDefaults() {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.Cache == nil {
		o.Cache = tracks.NewCache(tracks.Builtin())
	}
	if o.SampleCount <= 0 {
		o.SampleCount = curve.DefaultSampleCount
	}
	if o.Viewport == (geom.Viewport{}) {
		o.Viewport = geom.Viewport{Width: 800, Height: 600, Padding: 40}
	}
	if o.TickInterval <= 0 {
		o.TickInterval = timeutil.FrameInterval(60)
	}
	if o.MaxElapsed <= 0 {
		o.MaxElapsed = progress.DefaultMaxElapsed
	}
	if o.BaseSpeed == 0 {
		o.BaseSpeed = progress.DefaultBaseSpeed
	}
	if o.LapHistory <= 0 {
		o.LapHistory = DefaultLapHistory
	}
	o.RunDuration = min(max(o.RunDuration, 0), MaxRunDuration)
}

// Frame is the result of one tick.
type Frame struct {
	Progress float64       `json:"progress"`
	Position arclen.Sample `json:"position"`
	At       time.Time     `json:"at"`
	Lap      *lap.Event    `json:"lap,omitempty"`
}

// Session owns the timeline of one simulated car. Commands (Start, Stop,
// SelectTrack and so on) may be called from any goroutine; Step is called by
// a single tick loop.
type Session struct {
	opts   Options
	clock  timeutil.Clock
	cache  *tracks.Cache
	driver *progress.Driver

	geometry atomic.Pointer[Geometry]
	buildMu  sync.Mutex // serialises geometry rebuilds

	mu          sync.Mutex
	id          string
	detector    *lap.Detector
	laps        []lap.Event
	frame       Frame
	setup       progress.Setup
	runDuration time.Duration
	remaining   time.Duration
	timerMark   time.Time
	startedAt   time.Time
}

// New builds a stopped session on trackID.
func New(opts Options, trackID string) (*Session, error) {
	opts.applyDefaults()
	s := &Session{
		opts:        opts,
		clock:       opts.Clock,
		cache:       opts.Cache,
		driver:      progress.NewDriver(opts.Clock, progress.WithMaxElapsed(opts.MaxElapsed)),
		id:          uuid.New().String(),
		detector:    lap.NewDetector(),
		runDuration: opts.RunDuration,
		remaining:   opts.RunDuration,
	}
	// An invalid base speed is replaced with the default and already logged.
	_ = s.driver.SetBaseSpeed(opts.BaseSpeed)

	setup := progress.DefaultSetup()
	if opts.Setup != nil {
		setup = *opts.Setup
	}
	if warnings := s.ApplySetup(setup); len(warnings) > 0 {
		monitoring.Warnf("session setup: %v", warnings)
	}

	g, err := BuildGeometry(s.cache, trackID, opts.SampleCount, opts.Viewport, opts.Precision)
	if err != nil {
		return nil, err
	}
	s.geometry.Store(g)
	s.frame = Frame{Position: g.Resolve(0), At: s.clock.Now()}
	return s, nil
}

// ID returns the current run id. Reset and SelectTrack start a new run.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Geometry returns the published geometry. It is never nil.
func (s *Session) Geometry() *Geometry { return s.geometry.Load() }

// State returns the driver state.
func (s *Session) State() progress.State { return s.driver.State() }

// Start begins or resumes the run. A finite run whose time has elapsed
// restarts its countdown.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver.State() == progress.Running {
		return
	}
	now := s.clock.Now()
	if s.runDuration > 0 && s.remaining <= 0 {
		s.remaining = s.runDuration
	}
	s.timerMark = now
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	s.driver.Start()
}

// Stop freezes the run. It is safe to call at any time.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(s.clock.Now())
}

func (s *Session) stopLocked(now time.Time) {
	if s.driver.State() == progress.Running {
		s.countDownLocked(now)
	}
	s.driver.Stop()
}

// countDownLocked charges the time since timerMark against the run timer.
// It reports whether a finite run has just expired.
func (s *Session) countDownLocked(now time.Time) bool {
	if s.runDuration <= 0 {
		return false
	}
	elapsed := now.Sub(s.timerMark)
	s.timerMark = now
	if elapsed > 0 {
		s.remaining -= elapsed
	}
	if s.remaining <= 0 {
		s.remaining = 0
		return true
	}
	return false
}

// expireLocked stops a run whose countdown has reached zero.
func (s *Session) expireLocked() {
	monitoring.Logf("session %s: run time elapsed after %d laps", s.id, s.detector.Laps())
	s.driver.Stop()
}

// Reset returns the car to the start line and clears lap history. It fails
// with progress.ErrResetWhileRunning unless the session is stopped.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.driver.Reset(); err != nil {
		return err
	}
	s.resetRunLocked()
	return nil
}

func (s *Session) resetRunLocked() {
	s.id = uuid.New().String()
	s.detector.Reset()
	s.laps = nil
	s.remaining = s.runDuration
	s.startedAt = time.Time{}
	s.frame = Frame{Position: s.Geometry().Resolve(0), At: s.clock.Now()}
}

// SelectTrack stops the session, switches to track id and starts a new run
// at progress 0. On error the current track is kept.
func (s *Session) SelectTrack(id string) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	cur := s.Geometry()
	g, err := BuildGeometry(s.cache, id, cur.SampleCount, cur.Viewport, cur.Precision)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(s.clock.Now())
	s.geometry.Store(g)
	if err := s.driver.Reset(); err != nil {
		return err
	}
	s.resetRunLocked()
	return nil
}

// SetViewport rebuilds the geometry for vp and publishes it. Progress is
// kept, so a running marker continues from the same fraction of the lap.
func (s *Session) SetViewport(vp geom.Viewport, prec geom.Precision) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	cur := s.Geometry()
	g, err := BuildGeometry(s.cache, cur.TrackID, cur.SampleCount, vp, prec)
	if err != nil {
		return err
	}
	s.geometry.Store(g)
	return nil
}

// SetSampleCount regenerates the current track at n samples. Counts above
// curve.MaxSampleCount are rejected.
func (s *Session) SetSampleCount(n int) error {
	if n > curve.MaxSampleCount {
		return fmt.Errorf("%w: %d exceeds %d", curve.ErrSampleCount, n, curve.MaxSampleCount)
	}
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	cur := s.Geometry()
	if n <= 0 {
		n = curve.DefaultSampleCount
	}
	g, err := BuildGeometry(s.cache, cur.TrackID, n, cur.Viewport, cur.Precision)
	if err != nil {
		return err
	}
	s.geometry.Store(g)
	return nil
}

// ApplySetup converts setup into speed factors and installs them. Unknown
// names and invalid values are applied as 1.0 and returned as warnings.
func (s *Session) ApplySetup(setup progress.Setup) []string {
	var warnings []string
	factors, err := setup.Factors()
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := s.driver.SetFactors(factors); err != nil {
		warnings = append(warnings, err.Error())
	}
	s.mu.Lock()
	s.setup = setup
	s.mu.Unlock()
	return warnings
}

// SetBaseSpeed changes the base speed, returning a warning if the value was
// replaced.
func (s *Session) SetBaseSpeed(v float64) []string {
	if err := s.driver.SetBaseSpeed(v); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// SetRunDuration sets the length of a timed run. Zero runs until stopped.
// The countdown restarts from d. Durations are clamped to MaxRunDuration.
func (s *Session) SetRunDuration(d time.Duration) {
	d = min(max(d, 0), MaxRunDuration)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runDuration = d
	s.remaining = d
	s.timerMark = s.clock.Now()
}

// Position resolves progress against the current geometry.
func (s *Session) Position(p float64) arclen.Sample {
	return s.Geometry().Resolve(p)
}

// Step advances the session by one tick and returns the new frame. Lap
// events are recorded in history and passed to the sink; sink errors are
// logged. A finite run that expires stops the session.
func (s *Session) Step(ctx context.Context) Frame {
	s.mu.Lock()
	p, _ := s.driver.Tick()
	g := s.Geometry()
	now := s.clock.Now()
	frame := Frame{Progress: p, Position: g.Resolve(p), At: now}
	running := s.driver.State() == progress.Running

	var rec *LapRecord
	if running {
		if ev, ok := s.detector.Observe(p, now); ok {
			frame.Lap = &ev
			s.laps = append(s.laps, ev)
			if over := len(s.laps) - s.opts.LapHistory; over > 0 {
				s.laps = append([]lap.Event(nil), s.laps[over:]...)
			}
			rec = &LapRecord{SessionID: s.id, TrackID: g.TrackID, Event: ev, Setup: s.setup}
		}
		if s.countDownLocked(now) {
			s.expireLocked()
		}
	}
	s.frame = frame
	s.mu.Unlock()

	if rec != nil && s.opts.Sink != nil {
		if err := s.opts.Sink.RecordLap(ctx, *rec); err != nil {
			monitoring.Logf("session %s: failed to record lap %d: %v", rec.SessionID, rec.Event.Lap, err)
		}
	}
	return frame
}

// Run ticks the session every TickInterval until ctx is cancelled. Stopped
// sessions keep ticking so a later Start resumes without restarting the loop.
func (s *Session) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.Step(ctx)
		}
	}
}

// Laps returns up to limit of the most recent lap events, oldest first.
// limit <= 0 returns all retained laps.
func (s *Session) Laps(limit int) []lap.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	laps := s.laps
	if limit > 0 && len(laps) > limit {
		laps = laps[len(laps)-limit:]
	}
	return append([]lap.Event(nil), laps...)
}

// LastFrame returns the most recent frame.
func (s *Session) LastFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}
