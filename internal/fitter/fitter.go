// Package fitter inverts observed resonance peaks back into body parameters
// with a warm-started coordinate descent over the response solver.
package fitter

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/RMahshie/tonewood/internal/solver"
	"github.com/RMahshie/tonewood/pkg/models"
)

// Mode names a resonance the fitter can target.
type Mode string

const (
	ModeAir  Mode = "air"
	ModeTop  Mode = "top"
	ModeBack Mode = "back"
)

// Modes lists the fit modes in evaluation order.
var Modes = []Mode{ModeAir, ModeTop, ModeBack}

// Target maps a mode to its desired peak frequency in Hz. Missing, NaN and
// non-positive entries are not part of the fit.
type Target map[Mode]float64

// Band is an inclusive frequency range searched for a mode's peak.
type Band struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Bounds limits a tweakable parameter.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ClampDirective pins a parameter to one side of its baseline value.
type ClampDirective string

const (
	ClampNone    ClampDirective = ""
	ClampFloor   ClampDirective = "floor"   // never below baseline
	ClampCeiling ClampDirective = "ceiling" // never above baseline
)

// Evaluator is the objective function: the response for a parameter set.
type Evaluator func(p models.PhysicalParameters, axis []float64) (*models.FrequencyResponse, error)

const (
	DefaultMaxIter = 12
	stepFraction   = 0.03
)

// DefaultTweakIDs are the parameters moved by coordinate descent.
var DefaultTweakIDs = []string{
	models.ParamStiffnessTop,
	models.ParamStiffnessBack,
	models.ParamVolumeAir,
	models.ParamAreaHole,
}

// DefaultBands returns the peak search bands. They are configuration, not
// derived from the body.
func DefaultBands() map[Mode]Band {
	return map[Mode]Band{
		ModeAir:  {Lo: 50, Hi: 140},
		ModeTop:  {Lo: 140, Hi: 212},
		ModeBack: {Lo: 212, Hi: 320},
	}
}

// DefaultBounds returns the search bounds of the default tweakable parameters.
func DefaultBounds() map[string]Bounds {
	return map[string]Bounds{
		models.ParamStiffnessTop:  {Min: 10000, Max: 150000},
		models.ParamStiffnessBack: {Min: 40000, Max: 500000},
		models.ParamVolumeAir:     {Min: 0.008, Max: 0.03},
		models.ParamAreaHole:      {Min: 0.002, Max: 0.012},
	}
}

// Options tune a fit. Zero values select the defaults.
type Options struct {
	MaxIter  int
	TweakIDs []string
	Bounds   map[string]Bounds
	Clamp    map[string]ClampDirective
	Bands    map[Mode]Band
	Axis     []float64
	Evaluate Evaluator
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if len(o.TweakIDs) == 0 {
		o.TweakIDs = DefaultTweakIDs
	}
	if o.Bounds == nil {
		o.Bounds = DefaultBounds()
	}
	if o.Bands == nil {
		o.Bands = DefaultBands()
	}
	if len(o.Axis) == 0 {
		o.Axis = solver.DefaultAxis()
	}
	if o.Evaluate == nil {
		o.Evaluate = solver.ComputeResponseOnAxis
	}
	return o
}

// Result is the best parameter set found and its response.
type Result struct {
	RawParameters models.PhysicalParameters `json:"raw_parameters"`
	Response      *models.FrequencyResponse  `json:"response"`
	Peaks         map[Mode]float64           `json:"peaks"`
	Error         float64                    `json:"error"`
	BaselineError float64                    `json:"baseline_error"`
	Iterations    int                        `json:"iterations"`
	Evaluations   int                        `json:"evaluations"`
}

// candidate is one evaluated parameter set.
type candidate struct {
	params models.PhysicalParameters
	resp   *models.FrequencyResponse
	peaks  map[Mode]float64
	err    float64
}

type search struct {
	target   Target
	baseline models.PhysicalParameters
	opts     Options
	evals    int
}

// Fit searches parameter space so the response peaks land on target. It
// returns nil when no target is supplied or the baseline cannot be evaluated
// to a finite error.
func Fit(target Target, baseline models.PhysicalParameters, opts Options) *Result {
	target = target.supplied()
	if len(target) == 0 {
		return nil
	}
	s := &search{target: target, baseline: baseline.Clone(), opts: opts.withDefaults()}

	base := s.evaluate(s.baseline)
	if math.IsInf(base.err, 0) || math.IsNaN(base.err) {
		return nil
	}

	best := base
	if warm := s.evaluate(s.warmStart(base)); warm.err < best.err {
		best = warm
	}

	rounds := 0
	for rounds < s.opts.MaxIter {
		rounds++
		improved := false
		for _, id := range s.opts.TweakIDs {
			v, ok := best.params.Value(id)
			if !ok {
				continue
			}
			var trial *candidate
			for _, factor := range []float64{1 + stepFraction, 1 - stepFraction} {
				c := s.evaluate(best.params.With(id, s.clamp(id, v*factor)))
				if trial == nil || c.err < trial.err {
					trial = c
				}
			}
			if trial.err < best.err {
				best = trial
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	return &Result{
		RawParameters: best.params,
		Response:      best.resp,
		Peaks:         best.peaks,
		Error:         best.err,
		BaselineError: base.err,
		Iterations:    rounds,
		Evaluations:   s.evals,
	}
}

// warmStart scales the stiffnesses by the squared frequency ratio and the
// cavity volume by its inverse, since f ∝ √k and f ∝ 1/√V.
func (s *search) warmStart(base *candidate) models.PhysicalParameters {
	p := base.params.Clone()
	scale := func(mode Mode, id string, inverse bool) {
		want, ok := s.target[mode]
		got := base.peaks[mode]
		v, has := p.Value(id)
		if !ok || !has || !(got > 0) {
			return
		}
		ratio := want / got
		if inverse {
			ratio = got / want
		}
		p[id] = s.clamp(id, v*ratio*ratio)
	}
	scale(ModeTop, models.ParamStiffnessTop, false)
	scale(ModeBack, models.ParamStiffnessBack, false)
	scale(ModeAir, models.ParamVolumeAir, true)
	return p
}

// clamp applies the parameter bounds and any baseline floor/ceiling.
func (s *search) clamp(id string, v float64) float64 {
	if b, ok := s.opts.Bounds[id]; ok {
		v = math.Min(math.Max(v, b.Min), b.Max)
	}
	base, ok := s.baseline.Value(id)
	if !ok {
		return v
	}
	switch s.opts.Clamp[id] {
	case ClampFloor:
		v = math.Max(v, base)
	case ClampCeiling:
		v = math.Min(v, base)
	}
	return v
}

func (s *search) evaluate(p models.PhysicalParameters) *candidate {
	s.evals++
	c := &candidate{params: p, err: math.Inf(1)}
	resp, err := s.opts.Evaluate(p, s.opts.Axis)
	if err != nil || resp == nil {
		return c
	}
	c.resp = resp
	c.peaks = DetectPeaks(resp.Total, s.opts.Bands)
	c.err = s.target.squaredError(c.peaks)
	return c
}

// DetectPeaks returns, per band, the frequency of the highest dB value within
// it. Bands containing no points map to NaN.
func DetectPeaks(s models.Series, bands map[Mode]Band) map[Mode]float64 {
	peaks := make(map[Mode]float64, len(bands))
	for mode, band := range bands {
		peaks[mode] = peakIn(s, band)
	}
	return peaks
}

func peakIn(s models.Series, band Band) float64 {
	lo, hi := -1, -1
	for i, p := range s {
		if p.Frequency < band.Lo || p.Frequency > band.Hi {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 {
		return math.NaN()
	}
	mags := s[lo : hi+1].Magnitudes()
	return s[lo+floats.MaxIdx(mags)].Frequency
}

// squaredError sums (achieved − target)² over the supplied modes. A mode with
// no detectable peak makes the error infinite.
func (t Target) squaredError(peaks map[Mode]float64) float64 {
	var sum float64
	for _, mode := range t.modes() {
		want := t[mode]
		got, ok := peaks[mode]
		if !ok || math.IsNaN(got) {
			return math.Inf(1)
		}
		d := got - want
		sum += d * d
	}
	return sum
}

// modes returns the target's modes in Modes order followed by any others
// sorted, so the error sum is evaluated in the same order on every call.
func (t Target) modes() []Mode {
	out := make([]Mode, 0, len(t))
	for _, mode := range Modes {
		if _, ok := t[mode]; ok {
			out = append(out, mode)
		}
	}
	var extra []Mode
	for mode := range t {
		if !slices.Contains(Modes, mode) {
			extra = append(extra, mode)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func (t Target) supplied() Target {
	out := make(Target, len(t))
	for mode, f := range t {
		if f > 0 && !math.IsInf(f, 0) {
			out[mode] = f
		}
	}
	return out
}
