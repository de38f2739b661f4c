package activity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// #region errors

// ErrInvalidActivity is returned when the relation parameters cannot produce a real ratio.
var ErrInvalidActivity = errors.New("activity: invalid relation parameters")

// #endregion errors

// #region params

// Params are the coefficients of the piecewise rotation-activity power law
// of Johnstone et al. (2021).
type Params struct {
	Beta1 float64 // exponent below saturation
	Beta2 float64 // exponent at and above saturation
	RoSat float64 // saturation Rossby number
	RXSat float64 // Lx/Lbol at saturation
}

// Estimate is a published mean with its one-sigma uncertainty.
type Estimate struct {
	Mean float64
	Std  float64
}

// J21 holds the Johnstone et al. (2021) fitted values.
var J21 = struct {
	Beta1, Beta2, RoSat, RXSat Estimate
}{
	Beta1: Estimate{Mean: -0.135, Std: 0.030},
	Beta2: Estimate{Mean: -1.889, Std: 0.079},
	RoSat: Estimate{Mean: 0.0605, Std: 0.00331},
	RXSat: Estimate{Mean: 5.135e-4, Std: 3.320e-5},
}

// J21Params returns the J21 means as Params.
func J21Params() Params {
	return Params{
		Beta1: J21.Beta1.Mean,
		Beta2: J21.Beta2.Mean,
		RoSat: J21.RoSat.Mean,
		RXSat: J21.RXSat.Mean,
	}
}

// Validate rejects a non-positive saturation threshold, for which the
// coefficients are a power of a non-positive base.
func (p Params) Validate() error {
	if !(p.RoSat > 0) {
		return fmt.Errorf("RoSat %g must be positive: %w", p.RoSat, ErrInvalidActivity)
	}
	return nil
}

// Coefficients returns C1 = RXsat/RoSat^beta1 and C2 = RXsat/RoSat^beta2.
func (p Params) Coefficients() (c1, c2 float64) {
	c1 = p.RXSat / math.Pow(p.RoSat, p.Beta1)
	c2 = p.RXSat / math.Pow(p.RoSat, p.Beta2)
	return c1, c2
}

// #endregion params

// #region ratio

// Ratio returns Lx/Lbol for a single Rossby number. A Rossby number equal to
// RoSat takes the saturated branch.
func (p Params) Ratio(ro float64) float64 {
	c1, c2 := p.Coefficients()
	if ro < p.RoSat {
		return c1 * math.Pow(ro, p.Beta1)
	}
	return c2 * math.Pow(ro, p.Beta2)
}

// RatioSeries applies Ratio to every element of ro.
func (p Params) RatioSeries(ro []float64) []float64 {
	c1, c2 := p.Coefficients()
	out := make([]float64, len(ro))
	for i, r := range ro {
		if r < p.RoSat {
			out[i] = c1 * math.Pow(r, p.Beta1)
		} else {
			out[i] = c2 * math.Pow(r, p.Beta2)
		}
	}
	return out
}

// XRayLuminosity multiplies the activity ratio by bolometric luminosity
// row by row. Both slices must be the same length.
func XRayLuminosity(ratio, lbol []float64) []float64 {
	out := make([]float64, len(ratio))
	for i := range ratio {
		out[i] = ratio[i] * lbol[i]
	}
	return out
}

// #endregion ratio

// #region rossby-scale

// RossbyScale rescales simulator Rossby numbers before the saturation test.
type RossbyScale float64

const (
	// NoRescale leaves Rossby numbers as produced by the simulator.
	NoRescale RossbyScale = 1
	// JohnstoneRescale converts to the convective turnover convention of Johnstone et al. (2021).
	JohnstoneRescale RossbyScale = 0.95 / 2.11
)

// ParseRossbyScale resolves "none", "johnstone" or a numeric factor.
func ParseRossbyScale(s string) (RossbyScale, error) {
	switch s {
	case "", "none":
		return NoRescale, nil
	case "johnstone":
		return JohnstoneRescale, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !(f > 0) {
		return 0, fmt.Errorf("rossby scale %q: expected none, johnstone or a positive number", s)
	}
	return RossbyScale(f), nil
}

// Apply returns a rescaled copy of ro.
func (s RossbyScale) Apply(ro []float64) []float64 {
	out := make([]float64, len(ro))
	for i, r := range ro {
		out[i] = r * float64(s)
	}
	return out
}

// #endregion rossby-scale
