// Package lap detects completed laps from a stream of progress values.
package lap

import "time"

// Wrap thresholds. A lap completes when progress moves from above WrapHigh
// to below WrapLow in a single observation, so the driver must advance less
// than WrapHigh-WrapLow per tick.
const (
	WrapHigh = 0.9
	WrapLow  = 0.1
)

// Event is emitted once per detected wrap.
type Event struct {
	Lap            int       `json:"lap"`
	LapTimeSeconds *float64  `json:"lap_time_seconds"` // nil for the first wrap
	ProgressAtWrap float64   `json:"progress_at_wrap"`
	At             time.Time `json:"at"`
}

// Timed reports whether the event carries a lap time.
func (e Event) Timed() bool { return e.LapTimeSeconds != nil }

// Detector is a pure observer over successive progress values. It is not
// safe for concurrent use; the owner of the tick loop calls Observe.
type Detector struct {
	primed   bool
	prev     float64
	lastWrap time.Time
	hasWrap  bool
	laps     int
}

// NewDetector returns an unprimed detector.
func NewDetector() *Detector { return &Detector{} }

// Observe feeds the next progress value observed at now. It returns the lap
// event and true when a wrap is detected. The first call only primes the
// detector.
func (d *Detector) Observe(cur float64, now time.Time) (Event, bool) {
	defer func() {
		d.prev = cur
		d.primed = true
	}()
	if !d.primed {
		return Event{}, false
	}
	if !(d.prev > WrapHigh && cur < WrapLow) {
		return Event{}, false
	}

	d.laps++
	ev := Event{Lap: d.laps, ProgressAtWrap: cur, At: now}
	if d.hasWrap {
		secs := now.Sub(d.lastWrap).Seconds()
		ev.LapTimeSeconds = &secs
	}
	d.lastWrap = now
	d.hasWrap = true
	return ev, true
}

// Laps returns the number of wraps seen since the last Reset.
func (d *Detector) Laps() int { return d.laps }

// LastWrap returns the time of the most recent wrap, if any.
func (d *Detector) LastWrap() (time.Time, bool) { return d.lastWrap, d.hasWrap }

// Reset clears all state so the next Observe primes again.
func (d *Detector) Reset() { *d = Detector{} }
