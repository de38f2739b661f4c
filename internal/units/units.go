package units

import (
	"errors"
	"fmt"
	"strings"
)

// #region errors

// ErrIncompatibleUnits is returned when converting between different dimensions.
var ErrIncompatibleUnits = errors.New("units: incompatible dimensions")

// ErrUnknownUnit is returned by Parse for an unrecognised symbol.
var ErrUnknownUnit = errors.New("units: unknown unit")

// #endregion errors

// #region unit

// Dimension names the physical dimension a unit measures.
type Dimension string

const (
	Dimensionless Dimension = "dimensionless"
	Luminosity    Dimension = "luminosity"
	Length        Dimension = "length"
	Mass          Dimension = "mass"
	Time          Dimension = "time"
	Flux          Dimension = "flux"
)

// Unit is a named physical unit with its CGS scale factor.
type Unit struct {
	Symbol    string
	Dimension Dimension
	CGSScale  float64 // value of 1 Unit expressed in the CGS base unit
}

// String returns the unit symbol.
func (u Unit) String() string {
	return u.Symbol
}

// IsZero reports whether u is the unset Unit.
func (u Unit) IsZero() bool {
	return u.Symbol == "" && u.CGSScale == 0
}

// Factor returns the multiplier converting a value in u to a value in target.
func (u Unit) Factor(target Unit) (float64, error) {
	if u.Dimension != target.Dimension {
		return 0, fmt.Errorf("%s to %s: %w", u.Symbol, target.Symbol, ErrIncompatibleUnits)
	}
	if u.Symbol == target.Symbol {
		return 1, nil
	}
	return u.CGSScale / target.CGSScale, nil
}

// #endregion unit

// #region catalogue

// Nominal solar values follow IAU 2015 Resolution B3.
var (
	One = Unit{Symbol: "", Dimension: Dimensionless, CGSScale: 1}

	ErgPerSec = Unit{Symbol: "erg/s", Dimension: Luminosity, CGSScale: 1}
	Watt      = Unit{Symbol: "W", Dimension: Luminosity, CGSScale: 1e7}
	Lsun      = Unit{Symbol: "Lsun", Dimension: Luminosity, CGSScale: 3.828e33}

	Centimeter = Unit{Symbol: "cm", Dimension: Length, CGSScale: 1}
	Meter      = Unit{Symbol: "m", Dimension: Length, CGSScale: 100}
	Rsun       = Unit{Symbol: "Rsun", Dimension: Length, CGSScale: 6.957e10}

	Gram = Unit{Symbol: "g", Dimension: Mass, CGSScale: 1}
	Kg   = Unit{Symbol: "kg", Dimension: Mass, CGSScale: 1e3}
	Msun = Unit{Symbol: "Msun", Dimension: Mass, CGSScale: 1.988409870698051e33}

	Second = Unit{Symbol: "s", Dimension: Time, CGSScale: 1}
	Day    = Unit{Symbol: "day", Dimension: Time, CGSScale: 86400}
	Year   = Unit{Symbol: "yr", Dimension: Time, CGSScale: 365.25 * 86400}
	Myr    = Unit{Symbol: "Myr", Dimension: Time, CGSScale: 1e6 * 365.25 * 86400}
	Gyr    = Unit{Symbol: "Gyr", Dimension: Time, CGSScale: 1e9 * 365.25 * 86400}

	ErgPerSecCm2 = Unit{Symbol: "erg/s/cm2", Dimension: Flux, CGSScale: 1}
)

var bySymbol = map[string]Unit{}

func init() {
	for _, u := range []Unit{
		One, ErgPerSec, Watt, Lsun, Centimeter, Meter, Rsun, Gram, Kg, Msun,
		Second, Day, Year, Myr, Gyr, ErgPerSecCm2,
	} {
		bySymbol[strings.ToLower(u.Symbol)] = u
	}
	aliases := map[string]Unit{
		"dimensionless": One,
		"erg / s":       ErgPerSec,
		"solLum":        Lsun,
		"solRad":        Rsun,
		"solMass":       Msun,
		"d":             Day,
		"days":          Day,
		"year":          Year,
		"years":         Year,
	}
	for k, u := range aliases {
		bySymbol[strings.ToLower(k)] = u
	}
}

// Parse resolves a unit symbol such as "Lsun", "erg/s" or "Gyr".
func Parse(symbol string) (Unit, error) {
	u, ok := bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return Unit{}, fmt.Errorf("%q: %w", symbol, ErrUnknownUnit)
	}
	return u, nil
}

// #endregion catalogue
