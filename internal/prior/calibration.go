package prior

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// #region settings

// Settings describe the calibration prior for one star.
type Settings struct {
	Mass        activity.Estimate // Msun
	SigmaFactor float64           // bound half-width in standard deviations
	MassGrid    Bound             // simulator mass grid, Msun
	ProtInit    Bound             // initial rotation period, days
	Age         Bound             // Gyr
}

// DefaultSettings returns 5-sigma bounds on the stellar mass clipped to the
// [0.07, 1.4] Msun grid, with uniform 0.1-12 day initial periods and
// 0.1-12 Gyr ages.
func DefaultSettings(mass activity.Estimate) Settings {
	return Settings{
		Mass:        mass,
		SigmaFactor: 5,
		MassGrid:    Bound{Min: 0.07, Max: 1.4},
		ProtInit:    Bound{Min: 0.1, Max: 12},
		Age:         Bound{Min: 0.1, Max: 12},
	}
}

// InUnits converts the ProtInit bounds from days and the Age bounds from Gyr
// into the units theta carries those parameters in.
func (s Settings) InUnits(prot, age units.Unit) (Settings, error) {
	var err error
	if s.ProtInit, err = s.ProtInit.convert(units.Day, prot); err != nil {
		return Settings{}, fmt.Errorf("initial period bounds: %w", err)
	}
	if s.Age, err = s.Age.convert(units.Gyr, age); err != nil {
		return Settings{}, fmt.Errorf("age bounds: %w", err)
	}
	return s, nil
}

func (b Bound) convert(from, to units.Unit) (Bound, error) {
	f, err := from.Factor(to)
	if err != nil {
		return Bound{}, err
	}
	return Bound{Min: b.Min * f, Max: b.Max * f}, nil
}

// #endregion settings

// #region calibration

// Calibration builds the seven-parameter space: a normal mass prior, uniform
// initial period and age, and normal priors on the J21 activity coefficients.
func Calibration(s Settings) (Space, error) {
	if !(s.SigmaFactor > 0) {
		return Space{}, fmt.Errorf("sigma factor %g must be positive", s.SigmaFactor)
	}
	inf := math.Inf(1)
	around := func(e activity.Estimate) Bound {
		return BoundsAround(e.Mean, e.Std, s.SigmaFactor, -inf, inf)
	}
	j := activity.J21

	space := Space{
		Labels: model.Labels[:],
		Priors: []Prior{
			Normal(s.Mass.Mean, s.Mass.Std),
			Uniform(),
			Uniform(),
			Normal(j.Beta1.Mean, j.Beta1.Std),
			Normal(j.Beta2.Mean, j.Beta2.Std),
			Normal(j.RoSat.Mean, j.RoSat.Std),
			Normal(j.RXSat.Mean, j.RXSat.Std),
		},
		Bounds: []Bound{
			BoundsAround(s.Mass.Mean, s.Mass.Std, s.SigmaFactor, s.MassGrid.Min, s.MassGrid.Max),
			s.ProtInit,
			s.Age,
			around(j.Beta1),
			around(j.Beta2),
			around(j.RoSat),
			around(j.RXSat),
		},
	}
	if err := space.Validate(); err != nil {
		return Space{}, fmt.Errorf("calibration prior: %w", err)
	}
	return space, nil
}

// #endregion calibration
