package solver

import (
	"github.com/RMahshie/tonewood/pkg/models"
)

// Channel slots shared by the closed-form kernels.
const (
	slotTop = iota
	slotBack
	slotAir
	slotSides
	numSlots
)

var slotChannels = [numSlots]string{models.ChannelTop, models.ChannelBack, models.ChannelAir, models.ChannelSides}

// amplitudes holds the complex displacement of each body slot at one ω.
type amplitudes [numSlots]complex128

// closedFormKernel evaluates one fixed topology at a single angular frequency.
type closedFormKernel func(b Body, omega float64) amplitudes

// closedForm solves one of the hand-expanded 1..4 DOF topologies.
type closedForm struct {
	order  ModelOrder
	active [numSlots]bool
	kernel closedFormKernel
}

var (
	airOnly    = closedForm{order: ModelAirOnly, active: [numSlots]bool{slotAir: true}, kernel: solveAirOnly}
	topAir     = closedForm{order: ModelTopAir, active: [numSlots]bool{slotTop: true, slotAir: true}, kernel: solveTopAir}
	topBackAir = closedForm{order: ModelTopBackAir, active: [numSlots]bool{slotTop: true, slotBack: true, slotAir: true}, kernel: solveTopBackAir}
	legacyFour = closedForm{order: ModelFourDOF, active: [numSlots]bool{true, true, true, true}, kernel: solveFourDOF}
)

func (s closedForm) Order() ModelOrder { return s.order }

func (s closedForm) Name() string { return "closed-form/" + s.order.String() }

func (s closedForm) Solve(b Body, axis []float64) (*models.FrequencyResponse, error) {
	areas := [numSlots]float64{b.Top.Area, b.Back.Area, b.Air.HoleArea, b.Sides.Area}

	var series [numSlots]models.Series
	for slot := range series {
		if s.active[slot] {
			series[slot] = newSeries(axis)
		} else {
			series[slot] = floorSeries(axis)
		}
	}
	total := newSeries(axis)

	for i, f := range axis {
		omega := angular(f)
		x := s.kernel(b, omega)
		scale := b.pressureScale(omega)

		var sum complex128
		for slot := 0; slot < numSlots; slot++ {
			if !s.active[slot] {
				continue
			}
			p := Scale(x[slot], areas[slot]*scale)
			sum += p
			series[slot][i].Magnitude = ToDB(p)
		}
		total[i].Magnitude = ToDB(sum)
	}

	resp := &models.FrequencyResponse{Total: total}
	for slot, name := range slotChannels {
		resp.SetChannel(name, series[slot])
	}
	return resp, nil
}

// impedance is m·(ω₀²−ω²) + i·c·ω with ω₀² = (k + κ·A²)/m.
func impedance(mass, stiffness, damping, kappa, area, omega float64) complex128 {
	w0sq := (stiffness + kappa*area*area) / mass
	return complex(mass*(w0sq-omega*omega), damping*omega)
}

func re(x float64) complex128 { return complex(x, 0) }

func det2(a, b, c, d complex128) complex128 {
	return a*d - b*c
}

func det3(a, b, c, d, e, f, g, h, i complex128) complex128 {
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

// solveAirOnly drives the Helmholtz piston on its own.
func solveAirOnly(b Body, omega float64) amplitudes {
	kappa := b.Kappa()
	za := impedance(b.Air.Mass, 0, b.Air.Damping, kappa, b.Air.HoleArea, omega)

	var x amplitudes
	x[slotAir] = Div(re(b.Force), za)
	return x
}

// solveTopAir is the classic two-oscillator model: top driven, coupled to the
// cavity through κ·A_top·A_hole.
func solveTopAir(b Body, omega float64) amplitudes {
	kappa := b.Kappa()
	zt := impedance(b.Top.Mass, b.Top.Stiffness, b.Top.Damping, kappa, b.Top.Area, omega)
	za := impedance(b.Air.Mass, 0, b.Air.Damping, kappa, b.Air.HoleArea, omega)
	kta := re(kappa * b.Top.Area * b.Air.HoleArea)
	f := re(b.Force)

	d := det2(zt, -kta, -kta, za)

	var x amplitudes
	x[slotTop] = Div(det2(f, -kta, 0, za), d)
	x[slotAir] = Div(det2(zt, f, -kta, 0), d)
	return x
}

// solveTopBackAir adds the back plate, coupled to the top only through the air.
func solveTopBackAir(b Body, omega float64) amplitudes {
	kappa := b.Kappa()
	zt := impedance(b.Top.Mass, b.Top.Stiffness, b.Top.Damping, kappa, b.Top.Area, omega)
	zb := impedance(b.Back.Mass, b.Back.Stiffness, b.Back.Damping, kappa, b.Back.Area, omega)
	za := impedance(b.Air.Mass, 0, b.Air.Damping, kappa, b.Air.HoleArea, omega)
	kta := re(kappa * b.Top.Area * b.Air.HoleArea)
	kba := re(kappa * b.Back.Area * b.Air.HoleArea)
	f := re(b.Force)

	d := det3(
		zt, 0, -kta,
		0, zb, -kba,
		-kta, -kba, za,
	)

	var x amplitudes
	x[slotTop] = Div(det3(
		f, 0, -kta,
		0, zb, -kba,
		0, -kba, za,
	), d)
	x[slotBack] = Div(det3(
		zt, f, -kta,
		0, 0, -kba,
		-kta, 0, za,
	), d)
	x[slotAir] = Div(det3(
		zt, 0, f,
		0, zb, 0,
		-kta, -kba, 0,
	), d)
	return x
}

// solveFourDOF is the legacy top/sides/back/air model. Rows and columns are
// ordered top, sides, back, air; top and back share no direct spring. The
// determinant is kept in its expanded nine-term form so results match the
// reference model term for term.
func solveFourDOF(b Body, omega float64) amplitudes {
	kappa := b.Kappa()
	zt := impedance(b.Top.Mass, b.Top.Stiffness, b.Top.Damping, kappa, b.Top.Area, omega)
	zs := impedance(b.Sides.Mass, b.Sides.Stiffness, b.Sides.Damping, kappa, b.Sides.Area, omega)
	zb := impedance(b.Back.Mass, b.Back.Stiffness, b.Back.Damping, kappa, b.Back.Area, omega)
	za := impedance(b.Air.Mass, 0, b.Air.Damping, kappa, b.Air.HoleArea, omega)

	kts := re(b.Top.Stiffness)
	ksb := re(b.Back.Stiffness)
	kta := re(kappa * b.Top.Area * b.Air.HoleArea)
	kba := re(kappa * b.Back.Area * b.Air.HoleArea)
	ksa := re(kappa * b.Back.Area * b.Top.Area)
	f := re(b.Force)

	cross := kts*kba - ksb*kta
	d := zt*zs*zb*za -
		zt*zs*kba*kba -
		zt*zb*ksa*ksa -
		zt*za*ksb*ksb -
		zs*zb*kta*kta -
		zb*za*kts*kts +
		cross*cross -
		2*zb*kts*ksa*kta -
		2*zt*ksb*kba*ksa

	// Cramer's rule with the force on the top row reduces every numerator to
	// the force times a cofactor of the first row.
	var x amplitudes
	x[slotTop] = Div(f*det3(
		zs, -ksb, -ksa,
		-ksb, zb, -kba,
		-ksa, -kba, za,
	), d)
	x[slotSides] = Div(-f*det3(
		-kts, -ksb, -ksa,
		0, zb, -kba,
		-kta, -kba, za,
	), d)
	x[slotBack] = Div(f*det3(
		-kts, zs, -ksa,
		0, -ksb, -kba,
		-kta, -ksa, za,
	), d)
	x[slotAir] = Div(-f*det3(
		-kts, zs, -ksb,
		0, -ksb, zb,
		-kta, -ksa, -kba,
	), d)
	return x
}
