package tracks

import (
	"github.com/banshee-data/trackline/internal/curve"
	"github.com/banshee-data/trackline/internal/geom"
)

// Anchor layouts are approximations for visualisation, not surveyed geometry.
var (
	monzaAnchors = []geom.Point{
		{X: 0, Y: 0},     // start of front straight
		{X: 320, Y: -10}, // first chicane
		{X: 480, Y: 40},
		{X: 620, Y: 140}, // Lesmo
		{X: 560, Y: 260},
		{X: 420, Y: 320}, // Ascari
		{X: 240, Y: 300},
		{X: 140, Y: 200},
		{X: 180, Y: 80},
		{X: 260, Y: 20}, // finish line
	}

	silverstoneAnchors = []geom.Point{
		{X: 0, Y: 0},
		{X: 140, Y: -30}, // Copse
		{X: 260, Y: -10},
		{X: 360, Y: 40},  // Maggots
		{X: 420, Y: 110}, // Becketts
		{X: 360, Y: 200}, // Chapel
		{X: 240, Y: 240}, // Hangar straight
		{X: 120, Y: 220},
		{X: 40, Y: 160},
		{X: 20, Y: 80},
	}

	spaAnchors = []geom.Point{
		{X: 0, Y: 0},
		{X: 120, Y: -40}, // Eau Rouge
		{X: 220, Y: -20},
		{X: 350, Y: 40},
		{X: 420, Y: 140},
		{X: 520, Y: 240}, // Kemmel
		{X: 640, Y: 300},
		{X: 520, Y: 360},
		{X: 360, Y: 340},
		{X: 200, Y: 240},
	}
)

func builtinPresets() []Preset {
	return []Preset{
		// Formula 1
		{
			ID: "monza", Name: "Monza", Series: SeriesF1, Country: "Italy", Location: "Monza, Italy",
			Laps: 53, LengthKm: 5.793, Turns: 11, BestLapSeconds: 78.450, StraightsKm: 1.1,
			Anchors: monzaAnchors,
		},
		{
			ID: "silverstone", Name: "Silverstone", Series: SeriesF1, Country: "United Kingdom", Location: "Silverstone, United Kingdom",
			Laps: 52, LengthKm: 5.891, Turns: 18, BestLapSeconds: 87.325, StraightsKm: 0.9,
			Anchors: silverstoneAnchors,
			Wobble:  &curve.WobbleParams{Amplitude: 1.2, Frequency: 6, CrossAmplitude: 0.8, CrossFrequency: 4},
		},
		{
			ID: "spa", Name: "Spa-Francorchamps", Series: SeriesF1, Country: "Belgium", Location: "Stavelot, Belgium",
			Laps: 44, LengthKm: 7.004, Turns: 19, BestLapSeconds: 106.286, StraightsKm: 1.4,
			Anchors: spaAnchors,
			Radial:  &curve.RadialParams{Amplitude: 1.6, Frequency: 3, Spin: 2.3},
		},
		{
			ID: "sgp", Name: "Singapore", Series: SeriesF1, Country: "Singapore", Location: "Marina Bay, Singapore",
			Laps: 61, LengthKm: 5.063, Turns: 23, BestLapSeconds: 88.062, StraightsKm: 0.6,
		},
		{
			ID: "lasvegas", Name: "Las Vegas", Series: SeriesF1, Country: "USA", Location: "Las Vegas, USA",
			Laps: 50, LengthKm: 6.12, Turns: 17, BestLapSeconds: 93.891, StraightsKm: 1.2,
		},
		{
			ID: "yas", Name: "Yas Marina", Series: SeriesF1, Country: "UAE", Location: "Yas Island, Abu Dhabi",
			Laps: 55, LengthKm: 5.281, Turns: 21, BestLapSeconds: 89.234, StraightsKm: 1.2,
		},

		// MotoGP
		{
			ID: "losail", Name: "Losail", Series: SeriesMotoGP, Country: "Qatar", Location: "Doha, Qatar",
			Laps: 22, LengthKm: 5.380, Turns: 16, BestLapSeconds: 94.082, StraightsKm: 1.1,
		},
		{
			ID: "jerez", Name: "Jerez", Series: SeriesMotoGP, Country: "Spain", Location: "Jerez de la Frontera, Spain",
			Laps: 25, LengthKm: 4.423, Turns: 13, BestLapSeconds: 87.325, StraightsKm: 0.9,
		},
		{
			ID: "mugello", Name: "Mugello", Series: SeriesMotoGP, Country: "Italy", Location: "Mugello, Italy",
			Laps: 20, LengthKm: 5.245, Turns: 15, BestLapSeconds: 91.456, StraightsKm: 1.1,
		},
		{
			ID: "assen", Name: "Assen", Series: SeriesMotoGP, Country: "Netherlands", Location: "Assen, Netherlands",
			Laps: 26, LengthKm: 4.542, Turns: 18, BestLapSeconds: 89.234, StraightsKm: 0.7,
		},
		{
			ID: "silverstone_mgp", Name: "Silverstone", Series: SeriesMotoGP, Country: "United Kingdom", Location: "Silverstone, United Kingdom",
			Laps: 20, LengthKm: 5.900, Turns: 18, BestLapSeconds: 96.567, StraightsKm: 1.0,
			Anchors: silverstoneAnchors,
			Wobble:  &curve.WobbleParams{Amplitude: 1.2, Frequency: 6, CrossAmplitude: 0.8, CrossFrequency: 4},
		},
		{
			ID: "phillipisland", Name: "Phillip Island", Series: SeriesMotoGP, Country: "Australia", Location: "Phillip Island, Australia",
			Laps: 27, LengthKm: 4.445, Turns: 12, BestLapSeconds: 88.891, StraightsKm: 0.8,
		},
		{
			ID: "motegi", Name: "Motegi", Series: SeriesMotoGP, Country: "Japan", Location: "Motegi, Japan",
			Laps: 24, LengthKm: 4.801, Turns: 14, BestLapSeconds: 92.123, StraightsKm: 0.6,
		},
		{
			ID: "algarve", Name: "Algarve", Series: SeriesMotoGP, Country: "Portugal", Location: "Portimão, Portugal",
			Laps: 25, LengthKm: 4.592, Turns: 15, BestLapSeconds: 90.345, StraightsKm: 0.9,
		},

		// Drone circuits carry names only.
		{ID: "skyline", Name: "Skyline Circuit", Series: SeriesDrone, Location: "Urban"},
		{ID: "desert", Name: "Desert Rings", Series: SeriesDrone, Location: "Desert"},
		{ID: "citysweep", Name: "City Sweep", Series: SeriesDrone, Location: "City"},
		{ID: "canyon", Name: "Canyon Run", Series: SeriesDrone, Location: "Canyon"},
		{ID: "forest", Name: "Forest Drift", Series: SeriesDrone, Location: "Forest"},
		{ID: "island", Name: "Island Loop", Series: SeriesDrone, Location: "Island"},
	}
}
