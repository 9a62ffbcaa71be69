package models

import (
	"math"
)

// Parameter keys understood by the solver. Masses of the four body parts are
// given in grams; everything else is SI.
const (
	ParamMassTop      = "mass_top"
	ParamStiffnessTop = "stiffness_top"
	ParamDampingTop   = "damping_top"
	ParamAreaTop      = "area_top"

	ParamMassBack      = "mass_back"
	ParamStiffnessBack = "stiffness_back"
	ParamDampingBack   = "damping_back"
	ParamAreaBack      = "area_back"

	ParamMassSides      = "mass_sides"
	ParamStiffnessSides = "stiffness_sides"
	ParamDampingSides   = "damping_sides"
	ParamAreaSides      = "area_sides"

	ParamMassAir    = "mass_air"
	ParamDampingAir = "damping_air"
	ParamAreaHole   = "area_hole"
	ParamVolumeAir  = "volume_air"

	ParamDrivingForce = "driving_force"
	ParamModelOrder   = "model_order"

	// Atmosphere overrides stamped by the atmosphere boundary.
	ParamAirDensity   = "air_density"
	ParamSpeedOfSound = "speed_of_sound"
)

// GramMassKeys lists the mass parameters that arrive in grams at the API and
// are converted to kilograms before they reach the solver.
var GramMassKeys = []string{ParamMassAir, ParamMassTop, ParamMassBack, ParamMassSides}

// PhysicalParameters is a flat mapping of named scalars describing one guitar
// body. Callers own it; the solver only reads from it.
type PhysicalParameters map[string]float64

// Value returns the parameter and whether it is present.
func (p PhysicalParameters) Value(key string) (float64, bool) {
	v, ok := p[key]
	return v, ok
}

// Float returns the parameter, or NaN when it is absent.
func (p PhysicalParameters) Float(key string) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return math.NaN()
}

// FiniteOr returns the parameter when it is present and finite, otherwise def.
func (p PhysicalParameters) FiniteOr(key string, def float64) float64 {
	v, ok := p[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// Clone returns an independent copy.
func (p PhysicalParameters) Clone() PhysicalParameters {
	out := make(PhysicalParameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to v.
func (p PhysicalParameters) With(key string, v float64) PhysicalParameters {
	out := p.Clone()
	out[key] = v
	return out
}

// Merge returns a copy of p with every entry of override applied on top.
func (p PhysicalParameters) Merge(override PhysicalParameters) PhysicalParameters {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// InKilograms returns a copy with every GramMassKeys entry divided by 1000.
func (p PhysicalParameters) InKilograms() PhysicalParameters {
	out := p.Clone()
	for _, k := range GramMassKeys {
		if v, ok := out[k]; ok {
			out[k] = v / 1000
		}
	}
	return out
}

// DefaultParameters returns the reference steel-string body. With these values
// the 4-DOF model places the air, top and back resonances near 92, 185 and
// 240 Hz.
func DefaultParameters() PhysicalParameters {
	return PhysicalParameters{
		ParamMassTop:      50,
		ParamStiffnessTop: 38000,
		ParamDampingTop:   1.8,
		ParamAreaTop:      0.0395,

		ParamMassBack:      90,
		ParamStiffnessBack: 180000,
		ParamDampingBack:   2.6,
		ParamAreaBack:      0.04,

		ParamMassSides:      1000,
		ParamStiffnessSides: 2e7,
		ParamDampingSides:   40,
		ParamAreaSides:      0.008,

		ParamMassAir:    0.4,
		ParamDampingAir: 0.012,
		ParamAreaHole:   0.00567,
		ParamVolumeAir:  0.0145,

		ParamDrivingForce: 0.4,
		ParamModelOrder:   4,
	}
}
