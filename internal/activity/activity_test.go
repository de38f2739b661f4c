package activity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParams() Params {
	return Params{Beta1: -0.135, Beta2: -1.889, RoSat: 0.0605, RXSat: 5.135e-4}
}

func TestRatio_SaturatedBranchAtThreshold(t *testing.T) {
	p := sampleParams()
	_, c2 := p.Coefficients()

	got := p.Ratio(p.RoSat)
	assert.Equal(t, c2*math.Pow(p.RoSat, p.Beta2), got)
}

func TestRatio_BranchSelection(t *testing.T) {
	p := sampleParams()
	c1, c2 := p.Coefficients()

	below := 0.01
	above := 0.5
	assert.Equal(t, c1*math.Pow(below, p.Beta1), p.Ratio(below))
	assert.Equal(t, c2*math.Pow(above, p.Beta2), p.Ratio(above))
}

func TestRatio_ContinuousAtThreshold(t *testing.T) {
	p := sampleParams()
	c1, c2 := p.Coefficients()

	left := c1 * math.Pow(p.RoSat, p.Beta1)
	right := c2 * math.Pow(p.RoSat, p.Beta2)
	assert.InEpsilon(t, left, right, 1e-12)
	assert.InEpsilon(t, p.RXSat, left, 1e-12)
}

func TestRatio_DecreasesAboveSaturation(t *testing.T) {
	p := sampleParams()
	assert.Greater(t, p.Ratio(0.1), p.Ratio(1.0))
	assert.Greater(t, p.Ratio(0.001), p.Ratio(0.05))
}

func TestRatioSeries_MatchesRatio(t *testing.T) {
	p := sampleParams()
	ro := []float64{0.001, 0.03, p.RoSat, 0.2, 2.5}

	got := p.RatioSeries(ro)
	require.Len(t, got, len(ro))
	for i, r := range ro {
		assert.Equal(t, p.Ratio(r), got[i], "row %d", i)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, sampleParams().Validate())

	p := sampleParams()
	p.RoSat = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidActivity)

	p.RoSat = math.NaN()
	assert.ErrorIs(t, p.Validate(), ErrInvalidActivity)
}

func TestXRayLuminosity(t *testing.T) {
	got := XRayLuminosity([]float64{1e-3, 1e-4}, []float64{2, 4})
	assert.InDeltaSlice(t, []float64{2e-3, 4e-4}, got, 1e-18)
}

func TestFluxRoundTrip(t *testing.T) {
	for _, tc := range []struct{ l, r float64 }{
		{3.828e33, 6.957e10},
		{1.2e27, 1.4e10},
		{5, 0.5},
	} {
		back := FluxToLuminosity(LuminosityToFlux(tc.l, tc.r), tc.r)
		assert.InEpsilon(t, tc.l, back, 1e-14)
	}
}

func TestEUVFlux_UnitFlux(t *testing.T) {
	want := math.Pow(10, 2.04) + math.Pow(10, -0.341+0.920*2.04)
	assert.InEpsilon(t, want, EUVFlux(1), 1e-12)
}

func TestEUVFlux_NonPositive(t *testing.T) {
	assert.True(t, math.IsNaN(EUVFlux(-1)))
	assert.Equal(t, 0.0, EUVFlux(0))
}

func TestEUVLuminosity_ComposesFluxRelation(t *testing.T) {
	lx, r := 4.43e27, 0.48*6.957e10
	want := FluxToLuminosity(EUVFlux(LuminosityToFlux(lx, r)), r)
	assert.Equal(t, want, EUVLuminosity(lx, r))

	series := EUVLuminositySeries([]float64{lx, lx}, []float64{r, r})
	assert.Equal(t, []float64{want, want}, series)
}

func TestParseRossbyScale(t *testing.T) {
	s, err := ParseRossbyScale("none")
	require.NoError(t, err)
	assert.Equal(t, NoRescale, s)

	s, err = ParseRossbyScale("johnstone")
	require.NoError(t, err)
	assert.InEpsilon(t, 0.95/2.11, float64(s), 1e-15)

	s, err = ParseRossbyScale("0.5")
	require.NoError(t, err)
	assert.Equal(t, RossbyScale(0.5), s)

	_, err = ParseRossbyScale("-2")
	assert.Error(t, err)
	_, err = ParseRossbyScale("fast")
	assert.Error(t, err)
}

func TestRossbyScaleApply(t *testing.T) {
	in := []float64{2.11, 4.22}
	out := JohnstoneRescale.Apply(in)
	assert.InDeltaSlice(t, []float64{0.95, 1.9}, out, 1e-12)
	assert.Equal(t, 2.11, in[0])
}
