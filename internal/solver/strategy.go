package solver

import (
	"fmt"

	"github.com/RMahshie/tonewood/pkg/models"
)

// ModelOrder selects how many oscillators take part in the body model.
type ModelOrder int

const (
	ModelUnspecified ModelOrder = iota
	ModelAirOnly
	ModelTopAir
	ModelTopBackAir
	ModelFourDOF
	ModelDipole
	ModelTripole
)

func (o ModelOrder) String() string {
	switch o {
	case ModelUnspecified:
		return "unspecified"
	case ModelAirOnly:
		return "air"
	case ModelTopAir:
		return "top+air"
	case ModelTopBackAir:
		return "top+back+air"
	case ModelFourDOF:
		return "4dof"
	case ModelDipole:
		return "4dof+dipole"
	case ModelTripole:
		return "4dof+dipole+tripole"
	}
	return fmt.Sprintf("ModelOrder(%d)", int(o))
}

// Strategy produces a frequency response for a body over a sweep axis.
type Strategy interface {
	Name() string
	Order() ModelOrder
	Solve(b Body, axis []float64) (*models.FrequencyResponse, error)
}

// StrategyFor is the single place where a model order is mapped to a solver:
// 1..3 use the matching closed form, unspecified and 4 the legacy 4-DOF closed
// form, 5 and 6 the generalized solver with extension DOFs.
func StrategyFor(order ModelOrder) (Strategy, error) {
	switch order {
	case ModelAirOnly:
		return airOnly, nil
	case ModelTopAir:
		return topAir, nil
	case ModelTopBackAir:
		return topBackAir, nil
	case ModelUnspecified, ModelFourDOF:
		return legacyFour, nil
	case ModelDipole, ModelTripole:
		return generalized{order: order}, nil
	}
	return nil, unsupportedOrder(float64(order))
}

// LegacyStrategy returns the 4-DOF closed form regardless of requested order.
func LegacyStrategy() Strategy {
	return legacyFour
}

// GeneralizedStrategy solves the builder topology for the given order with
// Gaussian elimination. Orders below 5 build the default 4-node network.
func GeneralizedStrategy(order ModelOrder) Strategy {
	return generalized{order: order}
}

// generalized builds the oscillator graph and solves it numerically at every ω.
type generalized struct {
	order ModelOrder
}

func (g generalized) Order() ModelOrder { return g.order }

func (g generalized) Name() string { return "generalized/" + g.order.String() }

func (g generalized) Solve(b Body, axis []float64) (*models.FrequencyResponse, error) {
	b.Order = g.order
	topo, err := BuildTopology(b)
	if err != nil {
		return nil, err
	}
	channels, err := SweepTopology(topo, b, axis)
	if err != nil {
		return nil, err
	}

	resp := &models.FrequencyResponse{}
	for _, name := range []string{models.ChannelTotal, models.ChannelTop, models.ChannelBack, models.ChannelAir, models.ChannelSides, models.ChannelDipole, models.ChannelTripole} {
		if s, ok := channels[name]; ok {
			resp.SetChannel(name, s)
		}
	}
	return resp, nil
}
