package likesvc

import (
	"context"
	"errors"
	"math"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/prior"
	"github.com/danielpatrickdp/xuvcal/internal/store"
	"github.com/danielpatrickdp/xuvcal/internal/units"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

var errSim = errors.New("vplanet exited with status 1")

// failMass makes the stub simulator fail for this stellar mass.
const failMass = 0.45

func stubSim() *vplanet.Recorded {
	return &vplanet.Recorded{Fn: func(v []float64) (vplanet.Output, error) {
		if v[0] == failMass {
			return nil, errSim
		}
		return vplanet.Output{
			vplanet.TimeColumn:  {Values: []float64{5e6, 5e9}, Unit: units.Year},
			model.OutLuminosity: {Values: []float64{0.1, 0.029}, Unit: units.Lsun},
			model.OutRadius:     {Values: []float64{0.9, 0.48}, Unit: units.Rsun},
			model.OutRotPer:     {Values: []float64{1, 21.54}, Unit: units.Day},
			model.OutRossby:     {Values: []float64{0.01, 0.9}, Unit: units.One},
		}, nil
	}}
}

type fixture struct {
	client *Client
	store  *store.Store
	runID  string
	space  prior.Space
}

func setup(t *testing.T) fixture {
	t.Helper()
	return setupWith(t, observation.Set{
		Star: "GJ 3470",
		Lbol: observation.Some(observation.Symmetric(0.029, 0.002, units.Lsun)),
		Prot: observation.Some(observation.Symmetric(21.54, 0.49, units.Day)),
	})
}

func setupWith(t *testing.T, obs observation.Set) fixture {
	t.Helper()
	m, err := model.New(obs, stubSim(), model.Options{})
	require.NoError(t, err)
	space, err := prior.Calibration(prior.DefaultSettings(activity.Estimate{Mean: 0.51, Std: 0.015}))
	require.NoError(t, err)

	st, err := store.NewStore(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	run, err := st.CreateRun(obs.Star, "model1", nil)
	require.NoError(t, err)

	svc, err := NewService(Config{Model: m, Space: space, Store: st, RunID: run.RunID, Combination: "model1", Seed: 7})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(lis, svc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return fixture{client: NewClientWithConn(conn), store: st, runID: run.RunID, space: space}
}

func j21(mass float64) []float64 {
	p := activity.J21Params()
	return []float64{mass, 1, 5, p.Beta1, p.Beta2, p.RoSat, p.RXSat}
}

func TestDescribe(t *testing.T) {
	f := setup(t)
	d, err := f.client.Describe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "GJ 3470", d.Star)
	assert.Equal(t, "model1", d.Combination)
	assert.Equal(t, f.runID, d.RunID)
	assert.Equal(t, model.Labels[:], d.Space.Labels)
	assert.Equal(t, f.space.Bounds, d.Space.Bounds)
	require.Len(t, d.Space.Priors, model.NumParams)
	assert.True(t, d.Space.Priors[0].IsNormal())
	assert.InDelta(t, 0.51, *d.Space.Priors[0].Mean, 1e-15)
	assert.False(t, d.Space.Priors[1].IsNormal())
	assert.False(t, d.Space.Priors[2].IsNormal())
}

func TestEvaluate_RecordsInStore(t *testing.T) {
	f := setup(t)
	ev, err := f.client.Evaluate(context.Background(), j21(0.51))
	require.NoError(t, err)

	assert.Empty(t, ev.Error)
	assert.Equal(t, []string{"lbol", "prot"}, ev.Kinds)
	require.Len(t, ev.Chi2, 2)
	assert.InDelta(t, 0, ev.Chi2[0], 1e-12)
	assert.InDelta(t, 0, ev.Chi2[1], 1e-12)
	assert.InDelta(t, 0, ev.LnLike, 1e-12)
	assert.NotEmpty(t, ev.EvalID)

	evals, err := f.store.ListEvaluations(f.runID, 10)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, ev.EvalID, evals[0].EvalID)
	assert.Equal(t, SourceServe, evals[0].Source)
}

func TestEvaluate_NegativeRoSatRecorded(t *testing.T) {
	f := setupWith(t, observation.Set{
		Star:  "GJ 3470",
		Lbol:  observation.Some(observation.Symmetric(0.029, 0.002, units.Lsun)),
		LXRay: observation.Some(observation.Symmetric(4e27, 8e26, units.ErgPerSec)),
	})
	theta := j21(0.51)
	theta[5] = -0.05

	ev, err := f.client.Evaluate(context.Background(), theta)
	require.NoError(t, err)
	assert.Empty(t, ev.Error)
	assert.True(t, math.IsInf(ev.LnLike, -1))
	assert.Equal(t, []string{"lbol", "lxray"}, ev.Kinds)
	require.Len(t, ev.Chi2, 2)
	assert.True(t, math.IsNaN(ev.Chi2[1]))

	evals, err := f.store.ListEvaluations(f.runID, 10)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, ev.EvalID, evals[0].EvalID)
	require.Len(t, evals[0].Terms, 2)
	assert.True(t, math.IsNaN(evals[0].Terms[1].Chi2))
	assert.True(t, math.IsInf(evals[0].LnLike, -1))
}

func TestEvaluate_SimulatorFailure(t *testing.T) {
	f := setup(t)
	ev, err := f.client.Evaluate(context.Background(), j21(failMass))
	require.NoError(t, err)

	assert.True(t, math.IsInf(ev.LnLike, -1))
	assert.Contains(t, ev.Error, errSim.Error())
	assert.False(t, ev.Passed)

	total, failed, err := f.store.CountEvaluations(f.runID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, failed)
}

func TestEvaluate_BadTheta(t *testing.T) {
	f := setup(t)
	_, err := f.client.Evaluate(context.Background(), []float64{1, 2})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestLnPrior(t *testing.T) {
	f := setup(t)
	theta := j21(0.51)

	got, err := f.client.LnPrior(context.Background(), theta)
	require.NoError(t, err)
	want, err := f.space.LnPrior(theta)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	theta[0] = 2 // outside the mass bound
	got, err = f.client.LnPrior(context.Background(), theta)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1))
}

func TestPriorTransform(t *testing.T) {
	f := setup(t)
	u := []float64{0.5, 0, 1, 0.5, 0.5, 0.5, 0.5}

	got, err := f.client.PriorTransform(context.Background(), u)
	require.NoError(t, err)
	want, err := f.space.Transform(u)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	_, err = f.client.PriorTransform(context.Background(), []float64{2, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestSamplePrior(t *testing.T) {
	f := setup(t)
	a, err := f.client.SamplePrior(context.Background(), 20, 42)
	require.NoError(t, err)
	b, err := f.client.SamplePrior(context.Background(), 20, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed gives the same draw")
	require.Len(t, a, 20)
	for _, row := range a {
		require.Len(t, row, model.NumParams)
		for i, x := range row {
			assert.True(t, f.space.Bounds[i].Contains(x), "%s = %g outside bounds", model.Labels[i], x)
		}
	}

	unseeded, err := f.client.SamplePrior(context.Background(), 3, -1)
	require.NoError(t, err)
	assert.Len(t, unseeded, 3)

	_, err = f.client.SamplePrior(context.Background(), 0, 1)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestNewService_Validation(t *testing.T) {
	space, err := prior.Calibration(prior.DefaultSettings(activity.Estimate{Mean: 0.51, Std: 0.015}))
	require.NoError(t, err)

	_, err = NewService(Config{Space: space})
	assert.Error(t, err)

	m, err := model.New(observation.Set{Lbol: observation.Some(observation.Symmetric(1, 0.1, units.Lsun))}, stubSim(), model.Options{})
	require.NoError(t, err)
	short := prior.Space{Labels: []string{"mass"}, Priors: []prior.Prior{prior.Uniform()}, Bounds: []prior.Bound{{Min: 0, Max: 1}}}
	_, err = NewService(Config{Model: m, Space: short})
	assert.ErrorIs(t, err, prior.ErrDimension)
}

func TestDial(t *testing.T) {
	c, err := Dial("localhost:0")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.NoError(t, NewClientWithConn(nil).Close())
}
