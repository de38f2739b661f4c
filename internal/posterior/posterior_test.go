package posterior

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/xuvcal/internal/evolution"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/sweep"
	"github.com/danielpatrickdp/xuvcal/internal/units"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

func TestDraw_WithoutReplacement(t *testing.T) {
	samples := make([][]float64, 50)
	for i := range samples {
		samples[i] = []float64{float64(i)}
	}
	draws, err := Draw(rand.New(rand.NewPCG(1, 1)), samples, 20)
	require.NoError(t, err)
	require.Len(t, draws, 20)

	seen := map[float64]bool{}
	for _, d := range draws {
		assert.False(t, seen[d[0]], "row %v drawn twice", d)
		seen[d[0]] = true
	}

	// copies, not aliases
	draws[0][0] = -1
	for _, s := range samples {
		assert.NotEqual(t, -1.0, s[0])
	}
}

func TestDraw_TooMany(t *testing.T) {
	_, err := Draw(rand.New(rand.NewPCG(1, 1)), [][]float64{{1}}, 2)
	assert.True(t, errors.Is(err, ErrTooFewSamples))
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, Percentile(vals, 50))
	assert.Equal(t, 1.0, Percentile(vals, 0))
	assert.Equal(t, 5.0, Percentile(vals, 100))
	assert.InDelta(t, 1.64, Percentile(vals, 16), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func finalTrack(lbol, prot float64) evolution.Track {
	one := func(v float64, u units.Unit) units.Series { return units.Series{Values: []float64{v}, Unit: u} }
	return evolution.Track{
		Time:       one(5, units.Gyr),
		Luminosity: one(lbol, units.Lsun),
		Radius:     one(0.5, units.Rsun),
		RotPer:     one(prot, units.Day),
		Rossby:     one(0.5, units.One),
		RX:         one(1e-5, units.One),
		LXRay:      one(lbol*1e-5, units.Lsun),
		LEUV:       one(lbol*1e-5, units.Lsun),
		LXUV:       one(lbol*2e-5, units.Lsun),
	}
}

func TestSummarize(t *testing.T) {
	obs := observation.Set{
		LXRay: observation.Some(observation.Symmetric(4e27, 8e26, units.ErgPerSec)),
	}
	tracks := []evolution.Track{finalTrack(0.01, 10), finalTrack(0.02, 20), finalTrack(0.03, 30)}

	summary, err := Summarize(tracks, obs)
	require.NoError(t, err)
	require.Len(t, summary, len(Observables))

	assert.Equal(t, observation.Lbol, summary[0].Kind)
	assert.InDelta(t, 0.02, summary[0].P50, 1e-15)
	assert.Equal(t, 3, summary[0].N)

	// X-ray reported in the constraint's unit
	assert.Equal(t, "erg/s", summary[1].Unit)
	assert.InEpsilon(t, 0.02*1e-5*units.Lsun.CGSScale, summary[1].P50, 1e-12)

	assert.Equal(t, observation.Prot, summary[3].Kind)
	assert.InDelta(t, 20, summary[3].P50, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	summary, err := Summarize(nil, observation.Set{})
	require.NoError(t, err)
	for _, p := range summary {
		assert.Equal(t, 0, p.N)
		assert.Equal(t, 0.0, p.P50)
	}
}

func TestRun(t *testing.T) {
	obs := observation.Set{
		Star: "posterior",
		Lbol: observation.Some(observation.Symmetric(0.03, 0.002, units.Lsun)),
	}
	sim := &vplanet.Recorded{Fn: func(v []float64) (vplanet.Output, error) {
		// luminosity tracks the sampled mass so draws are distinguishable
		return vplanet.Output{
			vplanet.TimeColumn:  {Values: []float64{5e6, v[2] * 1e9}, Unit: units.Year},
			model.OutLuminosity: {Values: []float64{0.1, v[0] / 10}, Unit: units.Lsun},
			model.OutRadius:     {Values: []float64{0.9, 0.5}, Unit: units.Rsun},
			model.OutRotPer:     {Values: []float64{1, 20}, Unit: units.Day},
			model.OutRossby:     {Values: []float64{0.01, 0.5}, Unit: units.One},
		}, nil
	}}
	m, err := model.New(obs, sim, model.Options{})
	require.NoError(t, err)

	samples := make([][]float64, 10)
	for i := range samples {
		samples[i] = []float64{0.2 + 0.02*float64(i), 1, 5, -0.135, -1.889, 0.0605, 5.135e-4}
	}
	report, err := Run(context.Background(), m, samples, rand.New(rand.NewPCG(3, 4)), Options{N: 5, Sweep: sweep.Options{Workers: 2}})
	require.NoError(t, err)

	assert.Len(t, report.Draws, 5)
	assert.Len(t, report.Results, 5)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, sim.Calls(), 5)
	require.Equal(t, observation.Lbol, report.Summary[0].Kind)
	assert.Equal(t, 5, report.Summary[0].N)
	assert.GreaterOrEqual(t, report.Summary[0].P84, report.Summary[0].P16)

	for i, r := range report.Results {
		assert.InDelta(t, report.Draws[i][0]/10, r.Value.Track.Luminosity.Last(), 1e-15)
	}
}
