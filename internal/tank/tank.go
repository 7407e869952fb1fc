package tank

// tank.go = physical model of a box shaped water tank.
// all lengths are millimeters, all flows are liters per second

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// LiterToCubicMM is how many cubic millimeters fit in one liter
const LiterToCubicMM = 1_000_000.0

// State is one snapshot of the tank. It is a plain value: every tick
// produces a new State and published snapshots are never mutated.
type State struct {
	Level        float64 `json:"level"`         // water level, mm
	Areal        float64 `json:"areal"`         // horizontal cross-section, mm^2
	Height       float64 `json:"height"`        // tank height, mm (also wire ceiling for Level)
	Inflow       float64 `json:"inflow"`        // current sampled inflow, l/s
	InflowMean   float64 `json:"inflow_mean"`   // mean of the inflow process, l/s
	InflowStdDev float64 `json:"inflow_stddev"` // stddev of the inflow process, l/s
	Outflow      float64 `json:"outflow"`       // commanded outflow, l/s
	MaxOutflow   float64 `json:"max_outflow"`   // wire ceiling for Outflow
	MaxInflow    float64 `json:"max_inflow"`    // wire ceiling for Inflow
	SetLevel     float64 `json:"set_level"`     // wanted level, mm (informational)
}

// Default returns the tank the server starts with when nothing is configured.
func Default() State {
	return State{
		Level:        1000,
		Areal:        1_000_000,
		Height:       2000,
		Inflow:       20,
		InflowMean:   20,
		InflowStdDev: 3,
		Outflow:      20,
		MaxOutflow:   40,
		MaxInflow:    40,
		SetLevel:     1000,
	}
}

// New validates the parameters and returns them as the initial State.
func New(s State) (State, error) {
	var errs []error
	if s.Areal <= 0 {
		errs = append(errs, fmt.Errorf("areal must be > 0, got %v", s.Areal))
	}
	if s.Height <= 0 {
		errs = append(errs, fmt.Errorf("height must be > 0, got %v", s.Height))
	}
	if s.MaxOutflow <= 0 {
		errs = append(errs, fmt.Errorf("max outflow must be > 0, got %v", s.MaxOutflow))
	}
	if s.MaxInflow <= 0 {
		errs = append(errs, fmt.Errorf("max inflow must be > 0, got %v", s.MaxInflow))
	}
	if s.InflowStdDev < 0 {
		errs = append(errs, fmt.Errorf("inflow stddev must be >= 0, got %v", s.InflowStdDev))
	}
	if len(errs) > 0 {
		return State{}, fmt.Errorf("invalid tank: %w", errors.Join(errs...))
	}
	s.Outflow = ClampOutflow(s.Outflow, s.MaxOutflow)
	return s, nil
}

// SampleInflow draws one inflow value from N(InflowMean, InflowStdDev).
// Negative draws are returned as-is.
func SampleInflow(s State, rng *rand.Rand) float64 {
	return s.InflowMean + rng.NormFloat64()*s.InflowStdDev
}

// AdvanceLevel integrates the mass balance over dtSeconds:
// volume = areal*level + (inflow-outflow)*dt*1e6, level = volume/areal
func AdvanceLevel(s State, outflow, dtSeconds float64) float64 {
	volume := s.Areal*s.Level + (s.Inflow-outflow)*dtSeconds*LiterToCubicMM
	return volume / s.Areal
}

// ClampOutflow bounds an outflow to [0, limit].
func ClampOutflow(outflow, limit float64) float64 {
	if outflow < 0 {
		return 0
	}
	if outflow > limit {
		return limit
	}
	return outflow
}

// Step returns the state after one tick with the given commanded outflow.
// The receiver is left untouched.
func (s State) Step(rng *rand.Rand, outflow, dtSeconds float64) State {
	next := s
	next.Outflow = ClampOutflow(outflow, s.MaxOutflow)
	next.Inflow = SampleInflow(s, rng)
	next.Level = AdvanceLevel(next, next.Outflow, dtSeconds)
	return next
}

// Volume is the capacity of the tank in mm^3.
func (s State) Volume() float64 {
	return s.Areal * s.Height
}

// Fill is the level as a fraction of the tank height.
func (s State) Fill() float64 {
	return s.Level / s.Height
}
