package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/config"
	"github.com/danielpatrickdp/xuvcal/internal/logging"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/store"
	"github.com/danielpatrickdp/xuvcal/internal/sweep"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

var (
	starPath    string
	combination string
	runID       string
)

// addStarFlags registers the flags selecting a star, data combination and run.
func addStarFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&starPath, "star", "s", "", "Star configuration YAML")
	cmd.Flags().StringVarP(&combination, "combination", "c", config.AllConstraints, "Constraint combination to fit")
	cmd.Flags().StringVar(&runID, "run", "", "Record into an existing run instead of creating one")
	_ = cmd.MarkFlagRequired("star")
}

// #region session

// session is one star and combination bound to a simulator and the store.
type session struct {
	star  config.Star
	obs   observation.Set
	model *model.Model
	store *store.Store
	run   store.Run
}

// newSimulator builds the forward simulator for a star. Tests replace it.
var newSimulator = func(star config.Star, obs observation.Set) (vplanet.Simulator, error) {
	return newRunner(star, obs)
}

// openSession loads the star, builds the model and opens or creates the run.
func openSession() (*session, error) {
	star, err := config.LoadStar(starPath)
	if err != nil {
		return nil, err
	}
	obs, err := star.Observations(combination)
	if err != nil {
		return nil, err
	}
	sim, err := newSimulator(star, obs)
	if err != nil {
		return nil, err
	}
	m, err := model.New(obs, sim, model.Options{
		RossbyScale:   star.Scale(),
		RejectInvalid: star.RejectInvalid,
		KeepRuns:      star.VPlanet.KeepRuns,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	run, err := openRun(st, star)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Debug("session open",
		zap.String("star", star.Name),
		zap.String("combination", combination),
		zap.String("run_id", run.RunID))
	return &session{star: star, obs: obs, model: m, store: st, run: run}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func newRunner(star config.Star, obs observation.Set) (*vplanet.Runner, error) {
	bin := vplanetBin
	if star.VPlanet.Binary != "" {
		bin = star.VPlanet.Binary
	}
	return vplanet.NewRunner(model.SimulatorConfig(obs, bin, star.VPlanet.Infiles, star.VPlanet.Outdir), logger)
}

func openRun(st *store.Store, star config.Star) (store.Run, error) {
	if runID == "" {
		return st.CreateRun(star.Name, combination, star)
	}
	run, err := st.GetRun(runID)
	if err != nil {
		return store.Run{}, err
	}
	if run.Star != star.Name || run.Combination != combination {
		return store.Run{}, fmt.Errorf("run %s is %s/%s, not %s/%s", run.RunID, run.Star, run.Combination, star.Name, combination)
	}
	return run, nil
}

// #endregion session

// #region recording

// timed is a model result with its wall-clock time.
type timed struct {
	model.Result
	Elapsed time.Duration
}

func timedLnLike(m *model.Model) sweep.Func[model.Theta, timed] {
	return func(ctx context.Context, th model.Theta) (timed, error) {
		start := time.Now()
		res, err := m.LnLike(ctx, th)
		return timed{Result: res, Elapsed: time.Since(start)}, err
	}
}

// record stores one evaluation in the session's run.
func (s *session) record(source string, res model.Result, evalErr error, elapsed time.Duration) (store.Evaluation, error) {
	return s.store.RecordEvaluation(store.FromResult(s.run.RunID, source, s.obs, res, evalErr, elapsed))
}

// logEvent writes a provenance entry, logging rather than failing on error.
func (s *session) logEvent(action, outcome, reason string, detail any) {
	entry := logging.EventEntry{RunID: s.run.RunID, Action: action, Outcome: outcome, Reason: reason}
	if err := logging.LogDetail(s.store.DB(), entry, detail); err != nil {
		logger.Warn("log event", zap.String("action", action), zap.Error(err))
	}
}

// #endregion recording

// #region output

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// finite returns v, or nil when it cannot be encoded as JSON.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func formatLnLike(v float64) string {
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%.4f", v)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4g", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
