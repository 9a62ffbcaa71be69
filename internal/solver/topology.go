package solver

import (
	"math"

	"github.com/RMahshie/tonewood/pkg/models"
)

// couplingEpsilon is the magnitude below which a coupling is treated as absent.
const couplingEpsilon = 1e-12

// DOF is one lumped oscillator of the network. Stiffness already includes the
// cavity augmentation κ·A² where it applies.
type DOF struct {
	ID         string  `json:"id"`
	Mass       float64 `json:"mass"`
	Stiffness  float64 `json:"stiffness"`
	Damping    float64 `json:"damping"`
	Area       float64 `json:"area"`
	Efficiency float64 `json:"efficiency"`
}

// Coupling is a symmetric spring between two DOFs.
type Coupling struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Stiffness float64 `json:"stiffness"`
}

// Topology is an oscillator graph ready for the generalized solver.
type Topology struct {
	DOFs      []DOF      `json:"dofs"`
	Couplings []Coupling `json:"couplings"`
	Driven    string     `json:"driven"`
}

// BuildTopology assembles the default top/sides/back/air network and appends
// the extension DOFs enabled by the body's model order.
func BuildTopology(b Body) (Topology, error) {
	exts, err := registeredExtensions()
	if err != nil {
		return Topology{}, err
	}

	kappa := b.Kappa()
	t := Topology{
		Driven: models.ChannelTop,
		DOFs: []DOF{
			{ID: models.ChannelTop, Mass: b.Top.Mass, Stiffness: b.Top.Stiffness + kappa*b.Top.Area*b.Top.Area, Damping: b.Top.Damping, Area: b.Top.Area, Efficiency: 1},
			{ID: models.ChannelSides, Mass: b.Sides.Mass, Stiffness: b.Sides.Stiffness + kappa*b.Sides.Area*b.Sides.Area, Damping: b.Sides.Damping, Area: b.Sides.Area, Efficiency: 1},
			{ID: models.ChannelBack, Mass: b.Back.Mass, Stiffness: b.Back.Stiffness + kappa*b.Back.Area*b.Back.Area, Damping: b.Back.Damping, Area: b.Back.Area, Efficiency: 1},
			{ID: models.ChannelAir, Mass: b.Air.Mass, Stiffness: kappa * b.Air.HoleArea * b.Air.HoleArea, Damping: b.Air.Damping, Area: b.Air.HoleArea, Efficiency: 1},
		},
		Couplings: []Coupling{
			{Source: models.ChannelTop, Target: models.ChannelSides, Stiffness: b.Top.Stiffness},
			{Source: models.ChannelSides, Target: models.ChannelBack, Stiffness: b.Back.Stiffness},
			{Source: models.ChannelTop, Target: models.ChannelAir, Stiffness: kappa * b.Top.Area * b.Air.HoleArea},
			{Source: models.ChannelBack, Target: models.ChannelAir, Stiffness: kappa * b.Back.Area * b.Air.HoleArea},
			{Source: models.ChannelSides, Target: models.ChannelAir, Stiffness: kappa * b.Back.Area * b.Top.Area},
		},
	}

	for _, ext := range exts {
		if b.Order < ext.MinOrder {
			continue
		}
		dof, toTop, toAir := ext.resolve(b)
		t.DOFs = append(t.DOFs, dof)
		t.Couplings = append(t.Couplings, Coupling{Source: ext.ID, Target: models.ChannelTop, Stiffness: toTop})
		if toAir != 0 {
			t.Couplings = append(t.Couplings, Coupling{Source: ext.ID, Target: models.ChannelAir, Stiffness: toAir})
		}
	}

	t.Couplings = retainCouplings(t.Couplings)
	return t, nil
}

// retainCouplings drops couplings whose stiffness is non-finite or ≈0.
func retainCouplings(cs []Coupling) []Coupling {
	out := cs[:0]
	for _, c := range cs {
		if math.IsNaN(c.Stiffness) || math.IsInf(c.Stiffness, 0) || math.Abs(c.Stiffness) < couplingEpsilon {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (t Topology) indexOf() map[string]int {
	idx := make(map[string]int, len(t.DOFs))
	for i, d := range t.DOFs {
		idx[d.ID] = i
	}
	return idx
}
