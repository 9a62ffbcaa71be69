package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/RMahshie/tonewood/pkg/models"
)

const (
	// MicDistance is the reference microphone distance in meters.
	MicDistance = 1.0
	// PRef is the reference pressure for dB SPL (20 µPa).
	PRef = 20e-6
	// FloorDB replaces undefined or non-positive pressure levels.
	FloorDB = -140.0

	DefaultSweepStart = 0.0
	DefaultSweepEnd   = 500.0
	DefaultSweepStep  = 0.1
)

var (
	// ErrSingularSystem is returned when a pivot of the generalized solver falls
	// below the singularity threshold.
	ErrSingularSystem = errors.New("singular system")
	// ErrUnsupportedModelOrder is returned for model orders outside 1..6.
	ErrUnsupportedModelOrder = errors.New("unsupported model order")
	// ErrUnknownDOF is returned when a coupling or the driven id names a DOF
	// that is not part of the topology.
	ErrUnknownDOF = errors.New("unknown degree of freedom")
	// ErrInvalidAxis is returned for sweep bounds that describe no points.
	ErrInvalidAxis = errors.New("invalid frequency axis")
)

func unsupportedOrder(v float64) error {
	return fmt.Errorf("%w: %v", ErrUnsupportedModelOrder, v)
}

// FrequencyAxis returns the inclusive sweep f1, f1+step, ..., f2 with every
// value rounded to four decimals.
func FrequencyAxis(f1, f2, step float64) ([]float64, error) {
	if !(step > 0) || math.IsInf(step, 0) || math.IsNaN(f1) || math.IsNaN(f2) || math.IsInf(f1, 0) || math.IsInf(f2, 0) || f2 < f1 {
		return nil, fmt.Errorf("%w: f1=%v f2=%v step=%v", ErrInvalidAxis, f1, f2, step)
	}
	n := int(math.Floor((f2-f1)/step+1e-9)) + 1
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = roundTo4(f1 + float64(i)*step)
	}
	return axis, nil
}

// DefaultAxis returns the 0–500 Hz sweep at 0.1 Hz.
func DefaultAxis() []float64 {
	axis, _ := FrequencyAxis(DefaultSweepStart, DefaultSweepEnd, DefaultSweepStep)
	return axis
}

func roundTo4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// ToDB converts a complex pressure to dB re PRef, flooring non-positive or
// non-finite magnitudes at FloorDB.
func ToDB(p complex128) float64 {
	m := Abs(p)
	if !(m > 0) || math.IsInf(m, 0) {
		return FloorDB
	}
	db := 20 * math.Log10(m/PRef)
	if math.IsNaN(db) || math.IsInf(db, 0) {
		return FloorDB
	}
	return db
}

func angular(f float64) float64 {
	return 2 * math.Pi * f
}

func newSeries(axis []float64) models.Series {
	s := make(models.Series, len(axis))
	for i, f := range axis {
		s[i].Frequency = f
	}
	return s
}

// floorSeries is emitted for channels that do not take part in a model.
func floorSeries(axis []float64) models.Series {
	s := newSeries(axis)
	for i := range s {
		s[i].Magnitude = FloorDB
	}
	return s
}
