package likesvc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/xuvcal/internal/prior"
)

// #region types
// Description is the Describe response.
type Description struct {
	Star        string
	Combination string
	RunID       string
	Space       prior.Space
}

// Evaluation is the Evaluate response.
type Evaluation struct {
	EvalID string
	LnLike float64
	Chi2   []float64
	Kinds  []string
	Passed bool
	Reason string
	Error  string // simulator or scoring failure; LnLike is -Inf when set
}

// #endregion types

// #region client-struct
// Client calls the likelihood service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// Dial connects to the likelihood service at addr. Extra options are applied
// after the defaults.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #region describe
// Describe fetches the served star and parameter space.
func (c *Client) Describe(ctx context.Context) (Description, error) {
	out, err := c.call(ctx, MethodDescribe, map[string]any{})
	if err != nil {
		return Description{}, fmt.Errorf("describe rpc: %w", err)
	}
	bounds, err := getMatrix(out, FieldBounds)
	if err != nil {
		return Description{}, fmt.Errorf("describe response: %w", err)
	}
	means := out.GetFields()[FieldPriorMean].GetListValue().GetValues()
	stds := out.GetFields()[FieldPriorStd].GetListValue().GetValues()
	if len(means) != len(bounds) || len(stds) != len(bounds) {
		return Description{}, fmt.Errorf("describe response: %d bounds, %d means, %d stds", len(bounds), len(means), len(stds))
	}

	d := Description{
		Star:        out.GetFields()[FieldStar].GetStringValue(),
		Combination: out.GetFields()[FieldCombination].GetStringValue(),
		RunID:       out.GetFields()[FieldRunID].GetStringValue(),
		Space:       prior.Space{Labels: getStrings(out, FieldLabels)},
	}
	for i, b := range bounds {
		if len(b) != 2 {
			return Description{}, fmt.Errorf("describe response: bound %d has %d values", i, len(b))
		}
		d.Space.Bounds = append(d.Space.Bounds, prior.Bound{Min: b[0], Max: b[1]})
		if _, ok := means[i].GetKind().(*structpb.Value_NumberValue); ok {
			d.Space.Priors = append(d.Space.Priors, prior.Normal(means[i].GetNumberValue(), stds[i].GetNumberValue()))
		} else {
			d.Space.Priors = append(d.Space.Priors, prior.Uniform())
		}
	}
	return d, nil
}

// #endregion describe

// #region evaluate
// Evaluate scores theta with the served model.
func (c *Client) Evaluate(ctx context.Context, theta []float64) (Evaluation, error) {
	out, err := c.call(ctx, MethodEvaluate, map[string]any{FieldTheta: floatList(theta)})
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate rpc: %w", err)
	}
	chi2, err := getFloats(out, FieldChi2)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate response: %w", err)
	}
	f := out.GetFields()
	return Evaluation{
		EvalID: f[FieldEvalID].GetStringValue(),
		LnLike: f[FieldLnLike].GetNumberValue(),
		Chi2:   chi2,
		Kinds:  getStrings(out, FieldKinds),
		Passed: f[FieldPassed].GetBoolValue(),
		Reason: f[FieldReason].GetStringValue(),
		Error:  f[FieldError].GetStringValue(),
	}, nil
}

// #endregion evaluate

// #region prior
// LnPrior returns the served log prior density of theta.
func (c *Client) LnPrior(ctx context.Context, theta []float64) (float64, error) {
	out, err := c.call(ctx, MethodLnPrior, map[string]any{FieldTheta: floatList(theta)})
	if err != nil {
		return 0, fmt.Errorf("lnprior rpc: %w", err)
	}
	return out.GetFields()[FieldLnPrior].GetNumberValue(), nil
}

// PriorTransform maps a unit-cube point onto the served parameter space.
func (c *Client) PriorTransform(ctx context.Context, u []float64) ([]float64, error) {
	out, err := c.call(ctx, MethodPriorTransform, map[string]any{FieldU: floatList(u)})
	if err != nil {
		return nil, fmt.Errorf("prior transform rpc: %w", err)
	}
	return getFloats(out, FieldTheta)
}

// SamplePrior draws n prior samples. A negative seed uses the server's
// generator.
func (c *Client) SamplePrior(ctx context.Context, n int, seed int64) ([][]float64, error) {
	fields := map[string]any{FieldN: n}
	if seed >= 0 {
		fields[FieldSeed] = seed
	}
	out, err := c.call(ctx, MethodSamplePrior, fields)
	if err != nil {
		return nil, fmt.Errorf("sample prior rpc: %w", err)
	}
	return getMatrix(out, FieldSamples)
}

// #endregion prior
