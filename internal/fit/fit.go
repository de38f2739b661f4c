package fit

import (
	"encoding/json"
	"math"

	"github.com/danielpatrickdp/xuvcal/internal/observation"
)

// #region types

// Finals are the last-row simulated values keyed by observable, each
// expressed in the unit of the matching constraint.
type Finals map[observation.Kind]float64

// Term is one normalized squared residual.
type Term struct {
	Kind      observation.Kind `json:"kind"`
	Simulated float64          `json:"simulated"`
	Observed  float64          `json:"observed"`
	Sigma     float64          `json:"sigma"`
	Chi2      float64          `json:"chi2"`
}

// termJSON is the wire form of Term. Non-finite values are written as null.
type termJSON struct {
	Kind      observation.Kind `json:"kind"`
	Simulated *float64         `json:"simulated"`
	Observed  *float64         `json:"observed"`
	Sigma     *float64         `json:"sigma"`
	Chi2      *float64         `json:"chi2"`
}

// MarshalJSON writes NaN and infinite fields as null.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(termJSON{
		Kind:      t.Kind,
		Simulated: finiteOrNil(t.Simulated),
		Observed:  finiteOrNil(t.Observed),
		Sigma:     finiteOrNil(t.Sigma),
		Chi2:      finiteOrNil(t.Chi2),
	})
}

// UnmarshalJSON reads null fields back as NaN.
func (t *Term) UnmarshalJSON(data []byte) error {
	var raw termJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Term{
		Kind:      raw.Kind,
		Simulated: valueOrNaN(raw.Simulated),
		Observed:  valueOrNaN(raw.Observed),
		Sigma:     valueOrNaN(raw.Sigma),
		Chi2:      valueOrNaN(raw.Chi2),
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func valueOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// #endregion types

// #region score

// Score returns one chi-squared term per present constraint, in the order
// of observation.Kinds. Absent constraints contribute no term.
func Score(obs observation.Set, finals Finals) []Term {
	terms := make([]Term, 0, obs.Count())
	for _, k := range observation.Kinds {
		c, ok := obs.Get(k).Get()
		if !ok {
			continue
		}
		sim := finals[k]
		sigma := c.Sigma(sim)
		terms = append(terms, Term{
			Kind:      k,
			Simulated: sim,
			Observed:  c.Mean,
			Sigma:     sigma,
			Chi2:      Chi2(sim, c.Mean, sigma),
		})
	}
	return terms
}

// Chi2 returns (simulated - mean)^2 / sigma^2.
func Chi2(simulated, mean, sigma float64) float64 {
	d := simulated - mean
	return d * d / (sigma * sigma)
}

// ChiSquared sums the terms.
func ChiSquared(terms []Term) float64 {
	var sum float64
	for _, t := range terms {
		sum += t.Chi2
	}
	return sum
}

// LnLike returns -0.5 times the summed chi-squared. A NaN sum maps to -Inf
// so samplers treat the point as impossible rather than propagating NaN.
func LnLike(terms []Term) float64 {
	chi2 := ChiSquared(terms)
	if math.IsNaN(chi2) {
		return math.Inf(-1)
	}
	return -0.5 * chi2
}

// Values returns the chi-squared values of terms in order.
func Values(terms []Term) []float64 {
	out := make([]float64, len(terms))
	for i, t := range terms {
		out[i] = t.Chi2
	}
	return out
}

// #endregion score
