package fit

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/units"
)

func fullSet() observation.Set {
	return observation.Set{
		Star:  "Trappist-1",
		Lbol:  observation.Some(observation.Symmetric(5.22e-4, 0.19e-4, units.Lsun)),
		LXUV:  observation.Some(observation.Symmetric(5.22e-8, 0.19e-9, units.Lsun)),
		LXRay: observation.Some(observation.Symmetric(4.43e27, 7.88e26, units.ErgPerSec)),
		Prot:  observation.Some(observation.Symmetric(3.295, 0.003, units.Day)),
		Age:   observation.Some(observation.Symmetric(7.6, 2.2, units.Gyr)),
	}
}

func TestScore_PerfectMatchIsZero(t *testing.T) {
	obs := fullSet()
	finals := Finals{
		observation.Lbol:  5.22e-4,
		observation.LXUV:  5.22e-8,
		observation.LXRay: 4.43e27,
		observation.Prot:  3.295,
		observation.Age:   7.6,
	}

	terms := Score(obs, finals)
	for _, term := range terms {
		if term.Chi2 != 0 {
			t.Errorf("%s: expected exactly 0, got %g", term.Kind, term.Chi2)
		}
	}
	if ChiSquared(terms) != 0 {
		t.Errorf("expected total 0, got %g", ChiSquared(terms))
	}
	if LnLike(terms) != 0 {
		t.Errorf("expected lnlike 0, got %g", LnLike(terms))
	}
}

func TestScore_TermCountMatchesPresentConstraints(t *testing.T) {
	cases := []struct {
		name string
		obs  observation.Set
		want int
	}{
		{"none", observation.Set{}, 0},
		{"lbol+lxray", observation.Set{
			Lbol:  observation.Some(observation.Symmetric(0.029, 0.002, units.Lsun)),
			LXRay: observation.Some(observation.Symmetric(4.43e27, 7.88e26, units.ErgPerSec)),
		}, 2},
		{"lbol+prot", observation.Set{
			Lbol: observation.Some(observation.Symmetric(0.029, 0.002, units.Lsun)),
			Prot: observation.Some(observation.Symmetric(21.54, 0.49, units.Day)),
		}, 2},
		{"all", fullSet(), 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			terms := Score(tc.obs, Finals{})
			if len(terms) != tc.want {
				t.Errorf("expected %d terms, got %d", tc.want, len(terms))
			}
		})
	}
}

func TestScore_OrderFollowsKinds(t *testing.T) {
	terms := Score(fullSet(), Finals{})
	for i, k := range observation.Kinds {
		if terms[i].Kind != k {
			t.Errorf("term %d: expected %s, got %s", i, k, terms[i].Kind)
		}
	}
}

func TestScore_NormalizedResidual(t *testing.T) {
	obs := observation.Set{
		Prot: observation.Some(observation.Symmetric(21.54, 0.49, units.Day)),
	}
	terms := Score(obs, Finals{observation.Prot: 21.54 + 2*0.49})
	if math.Abs(terms[0].Chi2-4) > 1e-9 {
		t.Errorf("expected chi2 4 for a 2-sigma residual, got %g", terms[0].Chi2)
	}
	if math.Abs(LnLike(terms)+2) > 1e-9 {
		t.Errorf("expected lnlike -2, got %g", LnLike(terms))
	}
}

func TestLnLike_NaNIsNegInf(t *testing.T) {
	terms := []Term{{Chi2: math.NaN()}}
	if !math.IsInf(LnLike(terms), -1) {
		t.Errorf("expected -Inf, got %g", LnLike(terms))
	}
}

func TestValues(t *testing.T) {
	got := Values([]Term{{Chi2: 1}, {Chi2: 2.5}})
	if len(got) != 2 || got[0] != 1 || got[1] != 2.5 {
		t.Errorf("unexpected values %v", got)
	}
}

func TestTermJSON_NonFiniteAsNull(t *testing.T) {
	in := []Term{
		{Kind: observation.LXRay, Simulated: math.NaN(), Observed: 4.43e27, Sigma: 7.88e26, Chi2: math.NaN()},
		{Kind: observation.Lbol, Simulated: math.Inf(1), Observed: 0.03, Sigma: 0.002, Chi2: 0.25},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"chi2":null`) {
		t.Errorf("expected null chi2 in %s", data)
	}

	var out []Term
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Kind != observation.LXRay {
		t.Fatalf("unexpected terms %+v", out)
	}
	if !math.IsNaN(out[0].Simulated) || !math.IsNaN(out[0].Chi2) {
		t.Errorf("expected NaN fields, got %+v", out[0])
	}
	if out[0].Observed != 4.43e27 || out[1].Chi2 != 0.25 {
		t.Errorf("finite fields changed: %+v", out)
	}
	if !math.IsNaN(out[1].Simulated) {
		t.Errorf("expected +Inf to read back as NaN, got %g", out[1].Simulated)
	}
}
