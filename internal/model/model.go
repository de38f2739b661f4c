package model

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
	"github.com/danielpatrickdp/xuvcal/internal/eval"
	"github.com/danielpatrickdp/xuvcal/internal/evolution"
	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/units"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

// #region options

// Options configure post-processing of simulator output.
type Options struct {
	RossbyScale   activity.RossbyScale // 0 means NoRescale
	RejectInvalid bool                 // LnLike returns -Inf for tracks failing the eval harness
	KeepRuns      bool                 // keep simulator run directories
	Eval          *eval.EvalConfig     // nil uses eval.DefaultEvalConfig
	Logger        *zap.Logger
}

// #endregion options

// #region model

// Model couples one star's observations with the forward simulator. It
// holds no per-evaluation state and is safe for concurrent use.
type Model struct {
	obs     observation.Set
	sim     vplanet.Simulator
	opts    Options
	harness *eval.EvalHarness
	logger  *zap.Logger
}

// New validates the observations and returns a Model.
func New(obs observation.Set, sim vplanet.Simulator, opts Options) (*Model, error) {
	if sim == nil {
		return nil, fmt.Errorf("model: simulator is required")
	}
	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", obs.Star, err)
	}
	if opts.RossbyScale == 0 {
		opts.RossbyScale = activity.NoRescale
	}
	cfg := eval.DefaultEvalConfig()
	if opts.Eval != nil {
		cfg = *opts.Eval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		obs:     obs,
		sim:     sim,
		opts:    opts,
		harness: eval.NewEvalHarness(cfg),
		logger:  logger.With(zap.String("star", obs.Star)),
	}, nil
}

// Observations returns the star's constraints.
func (m *Model) Observations() observation.Set {
	return m.obs
}

// #endregion model

// #region evaluate

// Evaluate runs the simulator for theta and derives the X-ray, EUV and XUV
// tracks. Luminosities, period and time are returned in the units of the
// star's constraints.
func (m *Model) Evaluate(ctx context.Context, theta Theta) (evolution.Track, error) {
	ctx, span := otel.Tracer("xuvcal/model").Start(ctx, "model.Evaluate",
		trace.WithAttributes(attribute.Float64Slice("theta", theta.Slice())))
	defer span.End()

	out, err := m.sim.RunModel(ctx, theta.SimulatorInputs(), !m.opts.KeepRuns)
	if err != nil {
		span.RecordError(err)
		return evolution.Track{}, fmt.Errorf("run simulator: %w", err)
	}
	return m.derive(out, theta)
}

// derive applies the activity and EUV relations to simulator output.
func (m *Model) derive(out vplanet.Output, theta Theta) (evolution.Track, error) {
	cols := make(map[string]units.Series, 5)
	for _, name := range []string{vplanet.TimeColumn, OutLuminosity, OutRadius, OutRotPer, OutRossby} {
		s, err := out.Column(name)
		if err != nil {
			return evolution.Track{}, err
		}
		cols[name] = s
	}

	ro := m.opts.RossbyScale.Apply(cols[OutRossby].Values)
	rx := theta.Activity().RatioSeries(ro)

	lbol := cols[OutLuminosity]
	radius := cols[OutRadius]
	if lbol.Len() != len(rx) || radius.Len() != len(rx) {
		return evolution.Track{}, fmt.Errorf("simulator output columns differ in length")
	}

	lxCGS := activity.XRayLuminosity(rx, lbol.CGS())
	leuvCGS := activity.EUVLuminositySeries(lxCGS, radius.CGS())
	lxuvCGS := make([]float64, len(lxCGS))
	for i := range lxCGS {
		lxuvCGS[i] = lxCGS[i] + leuvCGS[i]
	}

	track := evolution.Track{
		Radius: radius,
		Rossby: units.Series{Values: ro, Unit: units.One},
		RX:     units.Series{Values: rx, Unit: units.One},
	}
	conversions := []struct {
		dst *units.Series
		src units.Series
		to  units.Unit
	}{
		{&track.Time, cols[vplanet.TimeColumn], m.obs.Unit(observation.Age)},
		{&track.Luminosity, lbol, m.obs.Unit(observation.Lbol)},
		{&track.RotPer, cols[OutRotPer], m.obs.Unit(observation.Prot)},
		{&track.LXRay, units.Series{Values: lxCGS, Unit: units.ErgPerSec}, m.obs.Unit(observation.LXRay)},
		{&track.LEUV, units.Series{Values: leuvCGS, Unit: units.ErgPerSec}, m.obs.Unit(observation.LXUV)},
		{&track.LXUV, units.Series{Values: lxuvCGS, Unit: units.ErgPerSec}, m.obs.Unit(observation.LXUV)},
	}
	for _, c := range conversions {
		s, err := c.src.To(c.to)
		if err != nil {
			return evolution.Track{}, fmt.Errorf("convert track: %w", err)
		}
		*c.dst = s
	}
	return track, track.Validate()
}

// #endregion evaluate

// #region score

// Score returns the chi-squared terms comparing the final row of track to
// the star's constraints.
func (m *Model) Score(track evolution.Track) ([]fit.Term, error) {
	finals, err := track.Finals(m.obs)
	if err != nil {
		return nil, err
	}
	return fit.Score(m.obs, finals), nil
}

// Result is the outcome of one likelihood evaluation.
type Result struct {
	Theta  Theta           `json:"theta"`
	Terms  []fit.Term      `json:"terms"`
	LnLike float64         `json:"lnlike"`
	Check  eval.EvalResult `json:"check"`
	Track  evolution.Track `json:"-"`
}

// LnLike evaluates theta and returns -0.5 times the summed chi-squared.
func (m *Model) LnLike(ctx context.Context, theta Theta) (Result, error) {
	track, err := m.Evaluate(ctx, theta)
	if err != nil {
		return Result{Theta: theta, LnLike: math.Inf(-1)}, err
	}
	terms, err := m.Score(track)
	if err != nil {
		return Result{Theta: theta, LnLike: math.Inf(-1)}, err
	}

	res := Result{
		Theta:  theta,
		Terms:  terms,
		LnLike: fit.LnLike(terms),
		Check:  m.harness.Run(track, theta.Activity()),
		Track:  track,
	}
	if !res.Check.Passed {
		m.logger.Warn("track failed checks", zap.String("reason", res.Check.Reason), zap.Float64s("theta", theta.Slice()))
		if m.opts.RejectInvalid {
			res.LnLike = math.Inf(-1)
		}
	}
	m.logger.Debug("lnlike", zap.Float64("lnlike", res.LnLike), zap.Float64s("chi2", fit.Values(terms)))
	return res, nil
}

// #endregion score
