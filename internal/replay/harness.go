package replay

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/danielpatrickdp/xuvcal/internal/config"
	"github.com/danielpatrickdp/xuvcal/internal/eval"
	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

// DefaultTolerance is the relative tolerance applied when a case sets none.
const DefaultTolerance = 1e-9

// #region types
// ReplayResult captures the outcome of re-scoring one fixture case.
type ReplayResult struct {
	CaseID string
	Action string // "match" | "drift" | "error"
	Reason string

	LnLike float64
	Chi2   []float64
	Check  eval.EvalResult

	// Largest relative difference from the expected values
	MaxRelDiff float64
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases int
	Matches    int
	Drifts     int
	Errors     int
	MaxRelDiff float64
}

// #endregion types

// #region replay
// Replay re-scores every case of f against its recorded simulator output.
// No simulator is run.
func Replay(ctx context.Context, f *Fixture) ([]ReplayResult, error) {
	obs, err := f.Star.Observations(f.Combination)
	if err != nil {
		return nil, fmt.Errorf("replay observations: %w", err)
	}
	shared, err := f.Output.ToOutput()
	if err != nil {
		return nil, fmt.Errorf("replay output: %w", err)
	}

	results := make([]ReplayResult, 0, len(f.Cases))
	for _, c := range f.Cases {
		out := shared
		if len(c.Output) > 0 {
			if out, err = c.Output.ToOutput(); err != nil {
				results = append(results, ReplayResult{CaseID: c.ID, Action: "error", Reason: err.Error()})
				continue
			}
		}
		m, err := model.New(obs, &vplanet.Recorded{Fixed: out}, model.Options{
			RossbyScale:   f.Star.Scale(),
			RejectInvalid: f.Star.RejectInvalid,
		})
		if err != nil {
			return nil, fmt.Errorf("replay model: %w", err)
		}
		results = append(results, replayCase(ctx, m, c))
	}
	return results, nil
}

func replayCase(ctx context.Context, m *model.Model, c FixtureCase) ReplayResult {
	r := ReplayResult{CaseID: c.ID}
	theta, err := model.FromSlice(c.Theta)
	if err != nil {
		r.Action, r.Reason = "error", err.Error()
		return r
	}
	res, err := m.LnLike(ctx, theta)
	if err != nil {
		r.Action, r.Reason = "error", err.Error()
		return r
	}
	r.LnLike = res.LnLike
	r.Chi2 = fit.Values(res.Terms)
	r.Check = res.Check

	tol := c.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	if len(r.Chi2) != len(c.ExpectedChi2) {
		r.Action = "drift"
		r.Reason = fmt.Sprintf("expected %d chi2 terms, got %d", len(c.ExpectedChi2), len(r.Chi2))
		return r
	}
	r.MaxRelDiff = relDiff(c.ExpectedLnLike, r.LnLike)
	for i, want := range c.ExpectedChi2 {
		r.MaxRelDiff = math.Max(r.MaxRelDiff, relDiff(want, r.Chi2[i]))
	}

	switch {
	case r.MaxRelDiff > tol:
		r.Action = "drift"
		r.Reason = fmt.Sprintf("relative difference %.3g exceeds tolerance %.3g", r.MaxRelDiff, tol)
	case res.Check.Passed != c.ExpectedPassed:
		r.Action = "drift"
		r.Reason = fmt.Sprintf("check passed=%v, expected %v: %s", res.Check.Passed, c.ExpectedPassed, res.Check.Reason)
	default:
		r.Action = "match"
		r.Reason = res.Check.Reason
	}
	return r
}

func relDiff(want, got float64) float64 {
	if want == got {
		return 0
	}
	scale := math.Max(math.Abs(want), math.Abs(got))
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(want-got) {
		return math.Inf(1)
	}
	return math.Abs(want-got) / scale
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		switch r.Action {
		case "match":
			s.Matches++
		case "drift":
			s.Drifts++
		case "error":
			s.Errors++
		}
		s.MaxRelDiff = math.Max(s.MaxRelDiff, r.MaxRelDiff)
	}
	return s
}

// #endregion replay

// #region capture
// Recorder is a Simulator that passes calls through and keeps the last
// output it returned.
type Recorder struct {
	Sim vplanet.Simulator

	mu   sync.Mutex
	last vplanet.Output
}

// RunModel runs the wrapped simulator and records its output.
func (r *Recorder) RunModel(ctx context.Context, values []float64, remove bool) (vplanet.Output, error) {
	out, err := r.Sim.RunModel(ctx, values, remove)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.last = out
	r.mu.Unlock()
	return out, nil
}

// Last returns the most recent recorded output.
func (r *Recorder) Last() vplanet.Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Capture evaluates each theta with sim and returns a fixture holding the
// simulator outputs and the resulting scores as expectations.
func Capture(ctx context.Context, star config.Star, combination string, sim vplanet.Simulator, thetas [][]float64, description string) (*Fixture, error) {
	obs, err := star.Observations(combination)
	if err != nil {
		return nil, fmt.Errorf("capture observations: %w", err)
	}
	rec := &Recorder{Sim: sim}
	m, err := model.New(obs, rec, model.Options{RossbyScale: star.Scale(), RejectInvalid: star.RejectInvalid})
	if err != nil {
		return nil, fmt.Errorf("capture model: %w", err)
	}

	f := &Fixture{Description: description, Star: star, Combination: combination}
	for i, v := range thetas {
		theta, err := model.FromSlice(v)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		res, err := m.LnLike(ctx, theta)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		if math.IsInf(res.LnLike, 0) || math.IsNaN(res.LnLike) {
			return nil, fmt.Errorf("case %d: lnlike %g cannot be recorded", i, res.LnLike)
		}
		f.Cases = append(f.Cases, FixtureCase{
			ID:             fmt.Sprintf("case-%d", i+1),
			Theta:          theta.Slice(),
			Output:         FromOutput(rec.Last()),
			ExpectedLnLike: res.LnLike,
			ExpectedChi2:   fit.Values(res.Terms),
			ExpectedPassed: res.Check.Passed,
		})
	}
	return f, nil
}

// #endregion capture
