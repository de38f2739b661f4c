package prior

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrDimension is returned when a vector does not match the space's dimension.
var ErrDimension = errors.New("prior: dimension mismatch")

// #region prior

// Prior is a normal prior when both Mean and Std are set, uniform over its
// Bound otherwise.
type Prior struct {
	Mean *float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std  *float64 `json:"std,omitempty" yaml:"std,omitempty"`
}

// Normal returns a normal prior.
func Normal(mean, std float64) Prior {
	return Prior{Mean: &mean, Std: &std}
}

// Uniform returns a uniform prior.
func Uniform() Prior {
	return Prior{}
}

// IsNormal reports whether p has both a mean and a standard deviation.
func (p Prior) IsNormal() bool {
	return p.Mean != nil && p.Std != nil
}

// Bound is a closed parameter interval.
type Bound struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether x lies inside b.
func (b Bound) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

// Width returns Max - Min.
func (b Bound) Width() float64 {
	return b.Max - b.Min
}

// BoundsAround returns mean +/- sigma*std clipped to [gridMin, gridMax].
// Pass infinities to leave a side unclipped.
func BoundsAround(mean, std, sigma, gridMin, gridMax float64) Bound {
	return Bound{
		Min: math.Max(mean-sigma*std, gridMin),
		Max: math.Min(mean+sigma*std, gridMax),
	}
}

// #endregion prior

// #region space

// Space is an ordered set of named parameters with priors and bounds.
type Space struct {
	Labels []string `json:"labels"`
	Priors []Prior  `json:"priors"`
	Bounds []Bound  `json:"bounds"`
}

// Dim returns the number of parameters.
func (s Space) Dim() int {
	return len(s.Bounds)
}

// Validate checks that labels, priors and bounds line up and that every
// bound and standard deviation is usable.
func (s Space) Validate() error {
	if len(s.Priors) != len(s.Bounds) || len(s.Labels) != len(s.Bounds) {
		return fmt.Errorf("%d labels, %d priors, %d bounds: %w", len(s.Labels), len(s.Priors), len(s.Bounds), ErrDimension)
	}
	for i, b := range s.Bounds {
		if !(b.Max > b.Min) {
			return fmt.Errorf("%s: empty bound [%g, %g]", s.Labels[i], b.Min, b.Max)
		}
		if p := s.Priors[i]; p.IsNormal() && !(*p.Std > 0) {
			return fmt.Errorf("%s: prior std %g must be positive", s.Labels[i], *p.Std)
		}
	}
	return nil
}

// LnPrior returns the log prior density of x: -Inf outside the bounds, the
// sum of normal log densities for normal parameters, and 0 contribution
// from uniform ones.
func (s Space) LnPrior(x []float64) (float64, error) {
	if len(x) != s.Dim() {
		return math.Inf(-1), fmt.Errorf("got %d values for %d parameters: %w", len(x), s.Dim(), ErrDimension)
	}
	lp := 0.0
	for i, v := range x {
		if !s.Bounds[i].Contains(v) {
			return math.Inf(-1), nil
		}
		if p := s.Priors[i]; p.IsNormal() {
			z := (v - *p.Mean) / *p.Std
			lp += -0.5*z*z - math.Log(*p.Std*math.Sqrt(2*math.Pi))
		}
	}
	return lp, nil
}

// Transform maps a point of the unit hypercube onto the space. Uniform
// parameters are scaled linearly onto their bounds; normal parameters use
// the inverse CDF of the normal truncated to the bounds.
func (s Space) Transform(u []float64) ([]float64, error) {
	if len(u) != s.Dim() {
		return nil, fmt.Errorf("got %d values for %d parameters: %w", len(u), s.Dim(), ErrDimension)
	}
	out := make([]float64, len(u))
	for i, ui := range u {
		b := s.Bounds[i]
		p := s.Priors[i]
		if !p.IsNormal() {
			out[i] = b.Min + ui*b.Width()
			continue
		}
		out[i] = truncatedNormalPPF(ui, *p.Mean, *p.Std, b)
	}
	return out, nil
}

// Sample draws n points from the prior restricted to the bounds.
func (s Space) Sample(rng *rand.Rand, n int) [][]float64 {
	samples := make([][]float64, n)
	u := make([]float64, s.Dim())
	for i := range samples {
		for j := range u {
			u[j] = rng.Float64()
		}
		// Transform only fails on a dimension mismatch
		samples[i], _ = s.Transform(u)
	}
	return samples
}

// #endregion space

// #region normal

func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

func normalPPF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

func truncatedNormalPPF(u, mean, std float64, b Bound) float64 {
	lo := normalCDF((b.Min - mean) / std)
	hi := normalCDF((b.Max - mean) / std)
	x := mean + std*normalPPF(lo+u*(hi-lo))
	// clamp rounding at the tails
	return math.Min(math.Max(x, b.Min), b.Max)
}

// #endregion normal
