// Package units formats lap times, countdowns and lap speeds for display.
package units

import (
	"fmt"
	"math"
	"time"
)

// Speed unit names accepted by ConvertSpeed.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed in metres per second to targetUnits.
// Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// AverageLapSpeed returns the mean speed over a lap of lengthKm completed in
// lapSeconds, in targetUnits. It returns 0 for a non-positive lap time.
func AverageLapSpeed(lengthKm, lapSeconds float64, targetUnits string) float64 {
	if lapSeconds <= 0 || math.IsNaN(lapSeconds) {
		return 0
	}
	return ConvertSpeed(lengthKm*1000/lapSeconds, targetUnits)
}

// FormatLapTime renders seconds as m:ss.mmm, for example 1:18.450.
func FormatLapTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "-:--.---"
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

// FormatCountdown renders a remaining duration as mm:ss. A nil duration
// means the run is indefinite and renders as "∞".
func FormatCountdown(remaining *time.Duration) string {
	if remaining == nil {
		return "∞"
	}
	s := int64(*remaining / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// FormatProgress renders progress in [0,1) as a percentage with one decimal.
func FormatProgress(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// EstimatedLaps is the rough lap count shown for a timed run: a third of a
// lap per minute, at least one.
func EstimatedLaps(runMinutes float64) int {
	return max(1, int(math.Round(runMinutes*0.33)))
}
