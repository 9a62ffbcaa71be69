package solver

import (
	"math"

	"github.com/RMahshie/tonewood/pkg/models"
)

// Sea-level ISA fallbacks used when no atmosphere override is supplied.
const (
	DefaultAirDensity   = 1.205 // kg/m³
	DefaultSpeedOfSound = 340.0 // m/s
)

// Part is one plate-like oscillator in SI units.
type Part struct {
	Mass      float64 // kg
	Stiffness float64 // N/m, intrinsic
	Damping   float64 // N·s/m
	Area      float64 // m²
}

// Cavity is the Helmholtz air piston in the sound hole.
type Cavity struct {
	Mass     float64 // kg
	Damping  float64 // N·s/m
	HoleArea float64 // m²
	Volume   float64 // m³
}

// Body is the solver-side view of PhysicalParameters: SI units, atmosphere
// resolved, model order decoded.
type Body struct {
	Top    Part
	Back   Part
	Sides  Part
	Air    Cavity
	Force  float64
	Order  ModelOrder
	Rho    float64
	C      float64
	params models.PhysicalParameters
}

// NewBody adapts caller parameters to solver units. Masses of the body parts
// are converted from grams to kilograms and the atmosphere is resolved from
// the air_density/speed_of_sound overrides, falling back to ISA sea level.
func NewBody(p models.PhysicalParameters) (Body, error) {
	order, err := decodeOrder(p)
	if err != nil {
		return Body{}, err
	}
	kg := p.InKilograms()
	b := Body{
		Top:   readPart(kg, models.ParamMassTop, models.ParamStiffnessTop, models.ParamDampingTop, models.ParamAreaTop),
		Back:  readPart(kg, models.ParamMassBack, models.ParamStiffnessBack, models.ParamDampingBack, models.ParamAreaBack),
		Sides: readPart(kg, models.ParamMassSides, models.ParamStiffnessSides, models.ParamDampingSides, models.ParamAreaSides),
		Air: Cavity{
			Mass:     kg.Float(models.ParamMassAir),
			Damping:  p.Float(models.ParamDampingAir),
			HoleArea: p.Float(models.ParamAreaHole),
			Volume:   p.Float(models.ParamVolumeAir),
		},
		Force:  p.Float(models.ParamDrivingForce),
		Order:  order,
		Rho:    p.FiniteOr(models.ParamAirDensity, DefaultAirDensity),
		C:      p.FiniteOr(models.ParamSpeedOfSound, DefaultSpeedOfSound),
		params: p,
	}
	return b, nil
}

func readPart(p models.PhysicalParameters, mass, stiffness, damping, area string) Part {
	return Part{
		Mass:      p.Float(mass),
		Stiffness: p.Float(stiffness),
		Damping:   p.Float(damping),
		Area:      p.Float(area),
	}
}

func decodeOrder(p models.PhysicalParameters) (ModelOrder, error) {
	v, ok := p.Value(models.ParamModelOrder)
	if !ok || math.IsNaN(v) {
		return ModelUnspecified, nil
	}
	// an absent key means unspecified; an explicit value must name an order
	if v != math.Trunc(v) || v < float64(ModelAirOnly) || v > float64(ModelTripole) {
		return 0, unsupportedOrder(v)
	}
	return ModelOrder(v), nil
}

// Kappa is the cavity's acoustic stiffness coefficient ρc²/V.
func (b Body) Kappa() float64 {
	return b.Rho * b.C * b.C / b.Air.Volume
}

// pressureScale converts a displacement amplitude times area into radiated
// pressure at the microphone: ω²·ρ/(4π·r).
func (b Body) pressureScale(omega float64) float64 {
	return omega * omega * b.Rho / (4 * math.Pi * MicDistance)
}
