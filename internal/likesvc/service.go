package likesvc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/prior"
	"github.com/danielpatrickdp/xuvcal/internal/store"
)

// MaxSamples caps a single SamplePrior request.
const MaxSamples = 100000

// SourceServe marks evaluations recorded by the service.
const SourceServe = "serve"

// #region config
// Config wires a Service. Store is optional; when set every evaluation is
// recorded under RunID.
type Config struct {
	Model       *model.Model
	Space       prior.Space
	Store       *store.Store
	RunID       string
	Combination string
	Seed        uint64
	Logger      *zap.Logger
}

// #endregion config

// #region service
// Service implements LikelihoodServer over one star's model and prior.
type Service struct {
	model       *model.Model
	space       prior.Space
	store       *store.Store
	runID       string
	combination string
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("likesvc: model is required")
	}
	if err := cfg.Space.Validate(); err != nil {
		return nil, fmt.Errorf("likesvc: %w", err)
	}
	if cfg.Space.Dim() != model.NumParams {
		return nil, fmt.Errorf("likesvc: prior has %d parameters, model needs %d: %w", cfg.Space.Dim(), model.NumParams, prior.ErrDimension)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		model:       cfg.Model,
		space:       cfg.Space,
		store:       cfg.Store,
		runID:       cfg.RunID,
		combination: cfg.Combination,
		logger:      logger.Named("likesvc"),
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// #endregion service

// #region describe
// Describe returns the star, run and parameter space being served.
func (s *Service) Describe(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	bounds := make([][]float64, s.space.Dim())
	means := make([]any, s.space.Dim())
	stds := make([]any, s.space.Dim())
	for i, b := range s.space.Bounds {
		bounds[i] = []float64{b.Min, b.Max}
		if p := s.space.Priors[i]; p.IsNormal() {
			means[i] = *p.Mean
			stds[i] = *p.Std
		}
	}
	return respond(map[string]any{
		FieldStar:        s.model.Observations().Star,
		FieldCombination: s.combination,
		FieldRunID:       s.runID,
		FieldLabels:      stringList(s.space.Labels),
		FieldBounds:      floatMatrix(bounds),
		FieldPriorMean:   means,
		FieldPriorStd:    stds,
	})
}

// #endregion describe

// #region evaluate
// Evaluate runs the forward model for theta. A failed simulation is not an
// RPC error: the response carries lnlike -Inf and the error text so the
// sampler can reject the point.
func (s *Service) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	v, err := getFloats(in, FieldTheta)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	theta, err := model.FromSlice(v)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	res, evalErr := s.model.LnLike(ctx, theta)
	if ctx.Err() != nil {
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	rec := store.FromResult(s.runID, SourceServe, s.model.Observations(), res, evalErr, time.Since(start))
	if s.store != nil {
		if rec, err = s.store.RecordEvaluation(rec); err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	if evalErr != nil {
		s.logger.Warn("evaluation failed", zap.Float64s("theta", v), zap.Error(evalErr))
	}

	kinds := make([]any, len(res.Terms))
	for i, t := range res.Terms {
		kinds[i] = string(t.Kind)
	}
	return respond(map[string]any{
		FieldLnLike: rec.LnLike,
		FieldChi2:   floatList(fit.Values(res.Terms)),
		FieldKinds:  kinds,
		FieldPassed: rec.Passed,
		FieldReason: rec.Reason,
		FieldError:  rec.Error,
		FieldEvalID: rec.EvalID,
	})
}

// #endregion evaluate

// #region prior
// LnPrior returns the log prior density of theta.
func (s *Service) LnPrior(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	v, err := getFloats(in, FieldTheta)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	lp, err := s.space.LnPrior(v)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return respond(map[string]any{FieldLnPrior: lp})
}

// PriorTransform maps a point of the unit hypercube onto the parameter space.
func (s *Service) PriorTransform(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	u, err := getFloats(in, FieldU)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	for i, x := range u {
		if !(x >= 0 && x <= 1) {
			return nil, status.Errorf(codes.InvalidArgument, "u[%d] = %g is outside [0, 1]", i, x)
		}
	}
	theta, err := s.space.Transform(u)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return respond(map[string]any{FieldTheta: floatList(theta)})
}

// SamplePrior draws n points from the prior. A seed makes the draw
// reproducible; without one the service's own generator is used.
func (s *Service) SamplePrior(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n, err := getNumber(in, FieldN, 1)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if n < 1 || n > MaxSamples || n != math.Trunc(n) {
		return nil, status.Errorf(codes.InvalidArgument, "n must be an integer in [1, %d], got %g", MaxSamples, n)
	}
	seed, err := getNumber(in, FieldSeed, -1)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var samples [][]float64
	if seed >= 0 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		samples = s.space.Sample(rng, int(n))
	} else {
		s.mu.Lock()
		samples = s.space.Sample(s.rng, int(n))
		s.mu.Unlock()
	}
	return respond(map[string]any{FieldSamples: floatMatrix(samples)})
}

// #endregion prior

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
