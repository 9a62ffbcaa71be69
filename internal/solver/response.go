package solver

import (
	"github.com/RMahshie/tonewood/pkg/models"
)

// ComputeResponse sweeps the default 0–500 Hz axis for the given parameters.
// Masses of the body parts are expected in grams.
func ComputeResponse(p models.PhysicalParameters) (*models.FrequencyResponse, error) {
	return ComputeResponseOnAxis(p, DefaultAxis())
}

// ComputeResponseOnAxis is ComputeResponse over a caller-supplied axis.
func ComputeResponseOnAxis(p models.PhysicalParameters, axis []float64) (*models.FrequencyResponse, error) {
	body, err := NewBody(p)
	if err != nil {
		return nil, err
	}
	s, err := StrategyFor(body.Order)
	if err != nil {
		return nil, err
	}
	return s.Solve(body, axis)
}

// ComputeWithStrategy runs a specific strategy, ignoring the model order in p.
func ComputeWithStrategy(s Strategy, p models.PhysicalParameters, axis []float64) (*models.FrequencyResponse, error) {
	body, err := NewBody(p)
	if err != nil {
		return nil, err
	}
	return s.Solve(body, axis)
}
