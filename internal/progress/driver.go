// Package progress advances a normalised lap position over wall-clock time.
//
// A Driver is a two-state machine. While Running, every Tick converts the
// time since the previous tick into 60 fps frames and moves progress forward
// by the effective speed per frame. Stop freezes progress in place and Reset
// returns it to the start line, but only while stopped.
package progress

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/monitoring"
	"github.com/banshee-data/trackline/internal/timeutil"
)

const (
	// DefaultBaseSpeed is the progress gained per 60 fps frame before factors.
	DefaultBaseSpeed = 0.0006
	// DefaultMaxElapsed caps the time credited to a single tick.
	DefaultMaxElapsed = 250 * time.Millisecond
	// frameMs is the duration of one reference frame at 60 fps.
	frameMs = 1000.0 / 60.0
	// maxSafeAdvance is the largest per-tick step lap detection tolerates.
	maxSafeAdvance = 0.8
)

var (
	// ErrNonFiniteSpeedFactor reports a speed value that was zero, negative,
	// NaN or infinite and has been replaced with a safe default.
	ErrNonFiniteSpeedFactor = errors.New("non-finite speed factor")
	// ErrResetWhileRunning is returned when Reset is requested on a running driver.
	ErrResetWhileRunning = errors.New("cannot reset while running")
)

// State is the driver run state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Factors maps factor names to positive multipliers.
type Factors map[string]float64

// Product multiplies all factors together. An empty set yields 1.
func (f Factors) Product() float64 {
	p := 1.0
	for _, v := range f {
		p *= v
	}
	return p
}

// Wrap maps progress into [0,1).
func Wrap(p float64) float64 { return arclen.Wrap(p) }

// Driver is safe for concurrent use.
type Driver struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	state      State
	progress   float64
	baseSpeed  float64
	factors    Factors
	maxElapsed time.Duration
	last       time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxElapsed overrides DefaultMaxElapsed. Non-positive values are ignored.
func WithMaxElapsed(d time.Duration) Option {
	return func(dr *Driver) {
		if d > 0 {
			dr.maxElapsed = d
		}
	}
}

// WithBaseSpeed sets the initial base speed. Invalid values fall back to
// DefaultBaseSpeed.
func WithBaseSpeed(s float64) Option {
	return func(dr *Driver) {
		if valid(s) {
			dr.baseSpeed = s
		}
	}
}

// NewDriver returns a stopped driver at progress 0. A nil clock uses the
// real clock.
func NewDriver(clock timeutil.Clock, opts ...Option) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	d := &Driver{
		clock:      clock,
		baseSpeed:  DefaultBaseSpeed,
		factors:    Factors{},
		maxElapsed: DefaultMaxElapsed,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start moves the driver to Running. The first tick measures time from now.
// Starting a running driver is a no-op.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		return
	}
	d.state = Running
	d.last = d.clock.Now()
}

// Stop freezes progress. It is safe to call at any time.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Stopped
}

// Reset returns progress to 0. It fails with ErrResetWhileRunning unless the
// driver is stopped.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		return ErrResetWhileRunning
	}
	d.progress = 0
	return nil
}

// State returns the current run state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Progress returns the current progress in [0,1).
func (d *Driver) Progress() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Tick advances progress by the time elapsed since the previous tick. It
// returns the new progress and whether it moved. A stopped driver returns its
// frozen progress unchanged.
func (d *Driver) Tick() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Running {
		return d.progress, false
	}

	now := d.clock.Now()
	elapsed := now.Sub(d.last)
	d.last = now
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > d.maxElapsed {
		elapsed = d.maxElapsed
	}

	frames := float64(elapsed) / float64(time.Millisecond) / frameMs
	advance := d.effectiveSpeedLocked() * frames
	if advance >= maxSafeAdvance {
		monitoring.Warnf("progress step %.3f exceeds %.1f per tick; lap detection may miss wraps", advance, maxSafeAdvance)
	}
	d.progress = Wrap(d.progress + advance)
	return d.progress, advance > 0
}

// EffectiveSpeed returns the base speed multiplied by every factor.
func (d *Driver) EffectiveSpeed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.effectiveSpeedLocked()
}

func (d *Driver) effectiveSpeedLocked() float64 {
	return d.baseSpeed * d.factors.Product()
}

// BaseSpeed returns the current base speed.
func (d *Driver) BaseSpeed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseSpeed
}

// Factors returns a copy of the active factors.
func (d *Driver) Factors() Factors {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(Factors, len(d.factors))
	for k, v := range d.factors {
		out[k] = v
	}
	return out
}

// SetBaseSpeed replaces the base speed. An invalid value is replaced with
// DefaultBaseSpeed and an error wrapping ErrNonFiniteSpeedFactor is returned
// as a warning; the substitute is applied regardless.
func (d *Driver) SetBaseSpeed(s float64) error {
	var err error
	if !valid(s) {
		err = fmt.Errorf("%w: base speed %v replaced with %v", ErrNonFiniteSpeedFactor, s, DefaultBaseSpeed)
		monitoring.Warnf("%v", err)
		s = DefaultBaseSpeed
	}
	d.mu.Lock()
	d.baseSpeed = s
	d.mu.Unlock()
	return err
}

// SetFactors replaces the whole factor set. Invalid entries are clamped to
// 1.0 and reported together in one error wrapping ErrNonFiniteSpeedFactor;
// the clamped set is applied regardless.
func (d *Driver) SetFactors(f Factors) error {
	clean, err := Sanitize(f)
	if err != nil {
		monitoring.Warnf("%v", err)
	}
	d.mu.Lock()
	d.factors = clean
	d.mu.Unlock()
	return err
}

// SetFactor sets a single named factor, clamping it like SetFactors.
func (d *Driver) SetFactor(name string, v float64) error {
	clean, err := Sanitize(Factors{name: v})
	if err != nil {
		monitoring.Warnf("%v", err)
	}
	d.mu.Lock()
	if d.factors == nil {
		d.factors = Factors{}
	}
	d.factors[name] = clean[name]
	d.mu.Unlock()
	return err
}

// Sanitize returns a copy of f with invalid values replaced by 1.0. The
// returned error names every replaced factor and wraps ErrNonFiniteSpeedFactor.
func Sanitize(f Factors) (Factors, error) {
	out := make(Factors, len(f))
	var bad []string
	for k, v := range f {
		if !valid(v) {
			bad = append(bad, fmt.Sprintf("%s=%v", k, v))
			v = 1.0
		}
		out[k] = v
	}
	if len(bad) == 0 {
		return out, nil
	}
	sort.Strings(bad)
	return out, fmt.Errorf("%w: %s clamped to 1.0", ErrNonFiniteSpeedFactor, strings.Join(bad, ", "))
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
