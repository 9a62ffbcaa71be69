package solver

import (
	"fmt"
	"math"
	"sync"

	"github.com/RMahshie/tonewood/pkg/models"
)

// ExtensionDefaults are the values an extension DOF takes when the caller
// supplies no override.
type ExtensionDefaults struct {
	Mass        float64
	Stiffness   float64
	Damping     float64
	Area        float64
	Efficiency  float64
	Coupling    float64 // spring to the top plate
	AirCoupling float64 // spring to the air piston, 0 for none
}

// Extension registers an additional top-plate mode DOF. Defaults derives its
// fallback values from the existing parts; they are rough heuristics that
// place the mode in a plausible range, not physical derivations.
type Extension struct {
	ID       string
	MinOrder ModelOrder
	Defaults func(b Body) ExtensionDefaults
}

var extensionTable = []Extension{
	{
		// Cross-dipole mode of the top, typically 300–400 Hz, radiating poorly.
		ID:       models.ChannelDipole,
		MinOrder: ModelDipole,
		Defaults: func(b Body) ExtensionDefaults {
			return ExtensionDefaults{
				Mass:       0.35 * b.Top.Mass,
				Stiffness:  2.2 * b.Top.Stiffness,
				Damping:    0.5 * b.Top.Damping,
				Area:       0.25 * b.Top.Area,
				Efficiency: 0.3,
				Coupling:   0.1 * b.Top.Stiffness,
			}
		},
	},
	{
		// Long-tripole mode, just below the top of the default sweep.
		ID:       models.ChannelTripole,
		MinOrder: ModelTripole,
		Defaults: func(b Body) ExtensionDefaults {
			return ExtensionDefaults{
				Mass:       0.25 * b.Top.Mass,
				Stiffness:  3.0 * b.Top.Stiffness,
				Damping:    0.5 * b.Top.Damping,
				Area:       0.2 * b.Top.Area,
				Efficiency: 0.6,
				Coupling:   0.1 * b.Top.Stiffness,
			}
		},
	},
}

var (
	extensionsOnce sync.Once
	extensionsErr  error
)

// registeredExtensions returns the extension table, validating it on first use.
func registeredExtensions() ([]Extension, error) {
	extensionsOnce.Do(func() {
		extensionsErr = validateExtensions(extensionTable)
	})
	return extensionTable, extensionsErr
}

func validateExtensions(exts []Extension) error {
	seen := map[string]bool{
		models.ChannelTop:   true,
		models.ChannelSides: true,
		models.ChannelBack:  true,
		models.ChannelAir:   true,
	}
	prev := ModelFourDOF
	for _, ext := range exts {
		if ext.ID == "" {
			return fmt.Errorf("extension with empty id")
		}
		if seen[ext.ID] {
			return fmt.Errorf("extension %q registered twice", ext.ID)
		}
		seen[ext.ID] = true
		if ext.Defaults == nil {
			return fmt.Errorf("extension %q has no defaults", ext.ID)
		}
		if ext.MinOrder <= prev || ext.MinOrder > ModelTripole {
			return fmt.Errorf("extension %q: min order %d out of sequence", ext.ID, ext.MinOrder)
		}
		prev = ext.MinOrder
	}
	return nil
}

// Override keys for an extension id, e.g. mass_dipole or coupling_air_dipole.
// Extension masses are in kilograms.
func extensionKey(field, id string) string {
	return field + "_" + id
}

// resolve builds the DOF and its couplings to top and air, taking each value
// from the parameters when finite and from the defaults otherwise.
func (e Extension) resolve(b Body) (DOF, float64, float64) {
	d := e.Defaults(b)
	pick := func(field string, def float64) float64 {
		if b.params == nil {
			return def
		}
		v, ok := b.params.Value(extensionKey(field, e.ID))
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	}

	dof := DOF{
		ID:         e.ID,
		Mass:       pick("mass", d.Mass),
		Stiffness:  pick("stiffness", d.Stiffness),
		Damping:    pick("damping", d.Damping),
		Area:       pick("area", d.Area),
		Efficiency: pick("efficiency", d.Efficiency),
	}
	return dof, pick("coupling", d.Coupling), pick("coupling_air", d.AirCoupling)
}
