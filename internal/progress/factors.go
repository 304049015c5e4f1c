package progress

import (
	"fmt"
	"math"
	"strings"
)

// Factor names used by Setup.
const (
	FactorTyre       = "tyre"
	FactorSession    = "session"
	FactorFuel       = "fuel"
	FactorDifficulty = "difficulty"
)

// Fuel load bounds in kilograms and the slowdown at a full tank.
const (
	MinFuelKg        = 5.0
	MaxFuelKg        = 120.0
	FullFuelSlowdown = 0.13
)

var tyreFactors = map[string]float64{
	"soft":   1.03,
	"medium": 1.0,
	"hard":   0.97,
}

var sessionFactors = map[string]float64{
	"practice":   0.9,
	"qualifying": 1.15,
	"race":       1.0,
}

var difficultyFactors = map[string]float64{
	"easy":   0.9,
	"normal": 1.0,
	"hard":   1.2,
}

func lookup(table map[string]float64, kind, name string) (float64, error) {
	if v, ok := table[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v, nil
	}
	return 1.0, fmt.Errorf("unknown %s %q", kind, name)
}

// TyreFactor returns the multiplier for a tyre compound (soft, medium, hard).
// Unknown compounds return 1.0 and an error.
func TyreFactor(compound string) (float64, error) {
	return lookup(tyreFactors, "tyre compound", compound)
}

// SessionFactor returns the multiplier for a session type (practice,
// qualifying, race).
func SessionFactor(session string) (float64, error) {
	return lookup(sessionFactors, "session type", session)
}

// DifficultyFactor returns the multiplier for a difficulty level (easy,
// normal, hard).
func DifficultyFactor(level string) (float64, error) {
	return lookup(difficultyFactors, "difficulty", level)
}

// FuelFactor returns the slowdown for a fuel load. The load is clamped to
// [MinFuelKg, MaxFuelKg]; an empty tank gives 1.0 and a full one 0.87.
func FuelFactor(kg float64) float64 {
	if math.IsNaN(kg) {
		kg = MinFuelKg
	}
	kg = min(max(kg, MinFuelKg), MaxFuelKg)
	return 1 - ((kg-MinFuelKg)/(MaxFuelKg-MinFuelKg))*FullFuelSlowdown
}

// Setup is a car and session configuration chosen by the user.
type Setup struct {
	Tyre       string  `json:"tyre"`
	Session    string  `json:"session"`
	FuelKg     float64 `json:"fuel_kg"`
	Difficulty string  `json:"difficulty"`
}

// DefaultSetup is a medium-tyre race at normal difficulty with 50 kg fuel.
func DefaultSetup() Setup {
	return Setup{Tyre: "medium", Session: "race", FuelKg: 50, Difficulty: "normal"}
}

// Factors converts the setup into named multipliers. Unknown names yield 1.0
// for that factor and are reported in the returned error; the factor set is
// always complete.
func (s Setup) Factors() (Factors, error) {
	f := Factors{FactorFuel: FuelFactor(s.FuelKg)}
	var errs []string

	var err error
	if f[FactorTyre], err = TyreFactor(s.Tyre); err != nil {
		errs = append(errs, err.Error())
	}
	if f[FactorSession], err = SessionFactor(s.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if f[FactorDifficulty], err = DifficultyFactor(s.Difficulty); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return f, fmt.Errorf("setup: %s", strings.Join(errs, "; "))
	}
	return f, nil
}
