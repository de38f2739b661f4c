package units

import "math"

// #region quantity

// Quantity is a scalar value tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q is shorthand for constructing a Quantity.
func Q(v float64, u Unit) Quantity {
	return Quantity{Value: v, Unit: u}
}

// To converts q into target.
func (q Quantity) To(target Unit) (Quantity, error) {
	f, err := q.Unit.Factor(target)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: q.Value * f, Unit: target}, nil
}

// CGS returns the magnitude of q in CGS base units.
func (q Quantity) CGS() float64 {
	return q.Value * q.Unit.CGSScale
}

// #endregion quantity

// #region series

// Series is a time-ordered column of values sharing one unit.
type Series struct {
	Values []float64
	Unit   Unit
}

// Len returns the number of rows.
func (s Series) Len() int {
	return len(s.Values)
}

// Last returns the final row, or NaN for an empty series.
func (s Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// To returns a converted copy of s.
func (s Series) To(target Unit) (Series, error) {
	f, err := s.Unit.Factor(target)
	if err != nil {
		return Series{}, err
	}
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v * f
	}
	return Series{Values: out, Unit: target}, nil
}

// CGS returns the values of s in CGS base units.
func (s Series) CGS() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v * s.Unit.CGSScale
	}
	return out
}

// #endregion series
