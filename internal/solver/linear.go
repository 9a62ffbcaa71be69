package solver

import (
	"fmt"

	"github.com/RMahshie/tonewood/pkg/models"
)

// pivotThreshold is the smallest pivot magnitude accepted before the system
// is reported as singular.
const pivotThreshold = 1e-12

// SystemMatrix assembles the complex dynamic stiffness matrix of t at ω:
// diagonal k − m·ω² + i·c·ω, and −k mirrored for every coupling.
func SystemMatrix(t Topology, omega float64) ([][]complex128, error) {
	idx := t.indexOf()
	n := len(t.DOFs)
	a := make([][]complex128, n)
	for i, d := range t.DOFs {
		a[i] = make([]complex128, n)
		a[i][i] = complex(d.Stiffness-d.Mass*omega*omega, d.Damping*omega)
	}
	for _, c := range t.Couplings {
		i, ok := idx[c.Source]
		if !ok {
			return nil, fmt.Errorf("%w: coupling source %q", ErrUnknownDOF, c.Source)
		}
		j, ok := idx[c.Target]
		if !ok {
			return nil, fmt.Errorf("%w: coupling target %q", ErrUnknownDOF, c.Target)
		}
		a[i][j] -= re(c.Stiffness)
		a[j][i] -= re(c.Stiffness)
	}
	return a, nil
}

// SolveAt returns the complex displacement of every DOF of t when the driven
// DOF is pushed with the given force at angular frequency ω.
func SolveAt(t Topology, omega, force float64) ([]complex128, error) {
	driven := t.Driven
	if driven == "" {
		driven = models.ChannelTop
	}
	d, ok := t.indexOf()[driven]
	if !ok {
		return nil, fmt.Errorf("%w: driven %q", ErrUnknownDOF, driven)
	}

	a, err := SystemMatrix(t, omega)
	if err != nil {
		return nil, err
	}
	rhs := make([]complex128, len(t.DOFs))
	rhs[d] = re(force)
	return SolveLinear(a, rhs)
}

// SolveLinear solves a·x = b by Gaussian elimination with partial pivoting on
// complex magnitude. a and b are overwritten.
func SolveLinear(a [][]complex128, b []complex128) ([]complex128, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		best := Abs(a[col][col])
		for r := col + 1; r < n; r++ {
			if m := Abs(a[r][col]); m > best {
				best = m
				pivot = r
			}
		}
		// NaN pivots fall through so non-finite input ends up on the dB floor.
		if best < pivotThreshold {
			return nil, fmt.Errorf("%w: column %d pivot magnitude %g", ErrSingularSystem, col, best)
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}

		for r := col + 1; r < n; r++ {
			if a[r][col] == 0 {
				continue
			}
			factor := Div(a[r][col], a[col][col])
			for k := col; k < n; k++ {
				a[r][k] -= factor * a[col][k]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]complex128, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for k := i + 1; k < n; k++ {
			sum -= a[i][k] * x[k]
		}
		x[i] = Div(sum, a[i][i])
	}
	return x, nil
}

// SweepTopology solves t at every frequency of axis and returns one dB series
// per DOF plus "total". Each radiating DOF contributes x·A·η·ω²·ρ/(4π·r);
// DOFs without area emit the floor series.
func SweepTopology(t Topology, b Body, axis []float64) (map[string]models.Series, error) {
	out := make(map[string]models.Series, len(t.DOFs)+1)
	for _, d := range t.DOFs {
		if d.Area > 0 {
			out[d.ID] = newSeries(axis)
		} else {
			out[d.ID] = floorSeries(axis)
		}
	}
	total := newSeries(axis)
	out[models.ChannelTotal] = total

	for i, f := range axis {
		omega := angular(f)
		x, err := SolveAt(t, omega, b.Force)
		if err != nil {
			return nil, fmt.Errorf("solve at %.4f Hz: %w", f, err)
		}
		scale := b.pressureScale(omega)

		var sum complex128
		for j, d := range t.DOFs {
			if !(d.Area > 0) {
				continue
			}
			p := Scale(x[j], d.Area*d.Efficiency*scale)
			sum += p
			out[d.ID][i].Magnitude = ToDB(p)
		}
		total[i].Magnitude = ToDB(sum)
	}
	return out, nil
}
