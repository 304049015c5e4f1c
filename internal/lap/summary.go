package lap

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the timed laps of a run.
type Summary struct {
	Laps      int     `json:"laps"`       // all wraps, timed or not
	TimedLaps int     `json:"timed_laps"` // wraps that carried a lap time
	Best      float64 `json:"best_seconds"`
	Last      float64 `json:"last_seconds"`
	Mean      float64 `json:"mean_seconds"`
	StdDev    float64 `json:"stddev_seconds"`
	BestLap   int     `json:"best_lap"`
}

// Times extracts the lap times from events in order, skipping untimed ones.
func Times(events []Event) []float64 {
	var out []float64
	for _, e := range events {
		if e.LapTimeSeconds != nil {
			out = append(out, *e.LapTimeSeconds)
		}
	}
	return out
}

// Summarize computes lap statistics. StdDev is zero with fewer than two
// timed laps.
func Summarize(events []Event) Summary {
	s := Summary{Laps: len(events)}
	times := Times(events)
	s.TimedLaps = len(times)
	if len(times) == 0 {
		return s
	}

	s.Best = floats.Min(times)
	s.Last = times[len(times)-1]
	s.Mean = stat.Mean(times, nil)
	if len(times) > 1 {
		s.StdDev = stat.StdDev(times, nil)
	}
	for _, e := range events {
		if e.LapTimeSeconds != nil && *e.LapTimeSeconds == s.Best {
			s.BestLap = e.Lap
			break
		}
	}
	return s
}
