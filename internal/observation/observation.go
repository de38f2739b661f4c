package observation

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// #region quantity-kind

// Kind names an observable that can be compared to the final row of a track.
type Kind string

const (
	Lbol  Kind = "lbol"
	LXUV  Kind = "lxuv"
	LXRay Kind = "lxray"
	Prot  Kind = "prot"
	Age   Kind = "age"
)

// Kinds lists the observables in fit order.
var Kinds = []Kind{Lbol, LXUV, LXRay, Prot, Age}

// DefaultUnit is the unit used for an observable when no constraint supplies one.
func DefaultUnit(k Kind) units.Unit {
	switch k {
	case Prot:
		return units.Day
	case Age:
		return units.Gyr
	default:
		return units.Lsun
	}
}

// #endregion quantity-kind

// #region constraint

// Constraint is an observed mean with its uncertainty. Lower and Upper are
// set for asymmetric errors; otherwise Std applies on both sides.
type Constraint struct {
	Mean  float64
	Std   float64
	Lower float64
	Upper float64
	Unit  units.Unit
}

// Symmetric builds a constraint with equal errors on both sides.
func Symmetric(mean, std float64, u units.Unit) Constraint {
	return Constraint{Mean: mean, Std: std, Unit: u}
}

// Asymmetric builds a constraint with distinct lower and upper errors.
// Both errors are magnitudes; a negative lower error is taken as its absolute value.
func Asymmetric(mean, lower, upper float64, u units.Unit) Constraint {
	return Constraint{Mean: mean, Lower: math.Abs(lower), Upper: math.Abs(upper), Unit: u}
}

// IsAsymmetric reports whether distinct lower/upper errors are set.
func (c Constraint) IsAsymmetric() bool {
	return c.Std == 0 && (c.Lower != 0 || c.Upper != 0)
}

// Sigma returns the error applicable to a simulated value: the side of the
// residual for asymmetric constraints, Std otherwise.
func (c Constraint) Sigma(simulated float64) float64 {
	if !c.IsAsymmetric() {
		return c.Std
	}
	if simulated < c.Mean {
		return c.Lower
	}
	return c.Upper
}

// Validate rejects constraints without a positive error.
func (c Constraint) Validate() error {
	if c.IsAsymmetric() {
		if !(c.Lower > 0) || !(c.Upper > 0) {
			return fmt.Errorf("asymmetric errors must be positive (lower %g, upper %g)", c.Lower, c.Upper)
		}
		return nil
	}
	if !(c.Std > 0) {
		return fmt.Errorf("std %g must be positive", c.Std)
	}
	return nil
}

// To converts the constraint into target, scaling mean and errors together.
func (c Constraint) To(target units.Unit) (Constraint, error) {
	f, err := c.Unit.Factor(target)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{
		Mean:  c.Mean * f,
		Std:   c.Std * f,
		Lower: c.Lower * f,
		Upper: c.Upper * f,
		Unit:  target,
	}, nil
}

// #endregion constraint

// #region optional

// Optional is a constraint that may be absent. An absent constraint is
// excluded from the fit.
type Optional struct {
	c  Constraint
	ok bool
}

// Some wraps a present constraint.
func Some(c Constraint) Optional {
	return Optional{c: c, ok: true}
}

// None is an absent constraint.
func None() Optional {
	return Optional{}
}

// Get returns the constraint and whether it is present.
func (o Optional) Get() (Constraint, bool) {
	return o.c, o.ok
}

// Present reports whether the constraint is set.
func (o Optional) Present() bool {
	return o.ok
}

// #endregion optional

// #region set

// Set holds the observational data for one star.
type Set struct {
	Star  string
	Lbol  Optional
	LXUV  Optional
	LXRay Optional
	Prot  Optional
	Age   Optional
}

// Get returns the optional constraint for k.
func (s Set) Get(k Kind) Optional {
	switch k {
	case Lbol:
		return s.Lbol
	case LXUV:
		return s.LXUV
	case LXRay:
		return s.LXRay
	case Prot:
		return s.Prot
	case Age:
		return s.Age
	}
	return None()
}

// Put sets the optional constraint for k.
func (s *Set) Put(k Kind, o Optional) {
	switch k {
	case Lbol:
		s.Lbol = o
	case LXUV:
		s.LXUV = o
	case LXRay:
		s.LXRay = o
	case Prot:
		s.Prot = o
	case Age:
		s.Age = o
	}
}

// ParseKind resolves an observable name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown observable %q", name)
}

// Unit returns the unit an observable is reported in: the constraint's own
// unit when present, the default otherwise.
func (s Set) Unit(k Kind) units.Unit {
	if c, ok := s.Get(k).Get(); ok && !c.Unit.IsZero() {
		return c.Unit
	}
	return DefaultUnit(k)
}

// Count returns the number of present constraints.
func (s Set) Count() int {
	n := 0
	for _, k := range Kinds {
		if s.Get(k).Present() {
			n++
		}
	}
	return n
}

// Validate checks every present constraint.
func (s Set) Validate() error {
	for _, k := range Kinds {
		c, ok := s.Get(k).Get()
		if !ok {
			continue
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%s constraint: %w", k, err)
		}
		if c.Unit.Dimension != DefaultUnit(k).Dimension {
			return fmt.Errorf("%s constraint: unit %q: %w", k, c.Unit, units.ErrIncompatibleUnits)
		}
	}
	return nil
}

// #endregion set
