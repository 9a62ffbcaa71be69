package solver

import "math"

// invertFloor is the smallest squared magnitude Invert will divide by.
const invertFloor = 1e-30

// Addition, subtraction and multiplication use Go's complex128 operators
// directly. The helpers below cover the operations whose behavior we pin down
// ourselves.

// Scale multiplies z by a real factor.
func Scale(z complex128, s float64) complex128 {
	return complex(real(z)*s, imag(z)*s)
}

// Invert returns 1/z. The squared magnitude is floored at 1e-30 so the result
// is always finite for finite input.
func Invert(z complex128) complex128 {
	d := real(z)*real(z) + imag(z)*imag(z)
	if d < invertFloor {
		d = invertFloor
	}
	return complex(real(z)/d, -imag(z)/d)
}

// Div returns a/b as a times the floored inverse of b.
func Div(a, b complex128) complex128 {
	return a * Invert(b)
}

// Abs returns the magnitude of z.
func Abs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}
