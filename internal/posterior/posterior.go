// Package posterior pushes posterior samples back through the forward model
// and summarises the spread of the predicted present-day observables.
package posterior

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/evolution"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/sweep"
)

// ErrTooFewSamples is returned when more draws are requested than samples exist.
var ErrTooFewSamples = errors.New("posterior: not enough samples")

// Observables are the summarised final values, in report order.
var Observables = []observation.Kind{observation.Lbol, observation.LXRay, observation.LXUV, observation.Prot}

// #region draw

// Draw picks n distinct rows of samples uniformly at random.
func Draw(rng *rand.Rand, samples [][]float64, n int) ([][]float64, error) {
	if n > len(samples) {
		return nil, fmt.Errorf("draw %d of %d: %w", n, len(samples), ErrTooFewSamples)
	}
	idx := rng.Perm(len(samples))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = append([]float64(nil), samples[j]...)
	}
	return out, nil
}

// #endregion draw

// #region run

// Options configure a posterior sweep.
type Options struct {
	N      int // draws; <= 0 uses every sample
	Sweep  sweep.Options
	Logger *zap.Logger
}

// Report holds the per-draw evaluations and the summary of their final values.
type Report struct {
	Draws   [][]float64                  `json:"draws"`
	Results []sweep.Result[model.Result] `json:"-"`
	Summary []Percentiles                `json:"summary"`
	Failed  int                          `json:"failed"`
}

// Run draws from samples and evaluates each draw through m.
func Run(ctx context.Context, m *model.Model, samples [][]float64, rng *rand.Rand, opts Options) (Report, error) {
	n := opts.N
	if n <= 0 {
		n = len(samples)
	}
	draws, err := Draw(rng, samples, n)
	if err != nil {
		return Report{}, err
	}
	thetas := make([]model.Theta, len(draws))
	for i, d := range draws {
		if thetas[i], err = model.FromSlice(d); err != nil {
			return Report{}, fmt.Errorf("draw %d: %w", i, err)
		}
	}

	results, err := sweep.Run(ctx, thetas, m.LnLike, opts.Sweep)
	if err != nil {
		return Report{}, fmt.Errorf("posterior sweep: %w", err)
	}

	tracks := make([]evolution.Track, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			tracks = append(tracks, r.Value.Track)
		}
	}
	summary, err := Summarize(tracks, m.Observations())
	if err != nil {
		return Report{}, err
	}
	if opts.Logger != nil {
		opts.Logger.Info("posterior sweep complete",
			zap.Int("draws", len(draws)),
			zap.Int("failed", sweep.Failed(results)))
	}
	return Report{Draws: draws, Results: results, Summary: summary, Failed: sweep.Failed(results)}, nil
}

// #endregion run

// #region summary

// Percentiles are the 16th, 50th and 84th percentiles of one observable's
// final value across tracks.
type Percentiles struct {
	Kind observation.Kind `json:"kind"`
	Unit string           `json:"unit"`
	N    int              `json:"n"`
	P16  float64          `json:"p16"`
	P50  float64          `json:"p50"`
	P84  float64          `json:"p84"`
}

// Summarize computes percentiles of the final Observables across tracks, in
// the units of obs. Non-finite values are skipped; an observable with no
// finite values reports N == 0.
func Summarize(tracks []evolution.Track, obs observation.Set) ([]Percentiles, error) {
	out := make([]Percentiles, 0, len(Observables))
	for _, k := range Observables {
		u := obs.Unit(k)
		vals := make([]float64, 0, len(tracks))
		for _, t := range tracks {
			q, err := t.Final(k).To(u)
			if err != nil {
				return nil, fmt.Errorf("summarize %s: %w", k, err)
			}
			if !math.IsNaN(q.Value) && !math.IsInf(q.Value, 0) {
				vals = append(vals, q.Value)
			}
		}
		pc := Percentiles{Kind: k, Unit: u.Symbol, N: len(vals)}
		if len(vals) > 0 {
			sort.Float64s(vals)
			pc.P16 = Percentile(vals, 16)
			pc.P50 = Percentile(vals, 50)
			pc.P84 = Percentile(vals, 84)
		}
		out = append(out, pc)
	}
	return out, nil
}

// Percentile linearly interpolates the p-th percentile of sorted values.
// It returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// #endregion summary
