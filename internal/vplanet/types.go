package vplanet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// #region errors

var (
	// ErrNoForwardFile is returned when a run finishes without writing a forward file.
	ErrNoForwardFile = errors.New("vplanet: forward file not found")
	// ErrParamCount is returned when the value count does not match the input parameters.
	ErrParamCount = errors.New("vplanet: parameter count mismatch")
)

// RunError wraps a failed simulator invocation with its run directory and stderr.
type RunError struct {
	Dir    string
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("vplanet run in %s: %v", e.Dir, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// #endregion errors

// #region params

// InParam maps one positional input value onto a body infile option.
type InParam struct {
	Name     string     // "<body>.<option>", e.g. "star.dMass" or "vpl.dStopTime"
	Unit     units.Unit // unit of the value passed to RunModel
	FileUnit units.Unit // unit the infile option expects
	Negate   bool       // write the value negated, selecting vplanet's alternate unit
}

// OutParam selects one forward-file column of a body.
type OutParam struct {
	Name     string     // "final.<body>.<Output>", e.g. "final.star.Luminosity"
	Column   string     // output order token, e.g. "-Luminosity"
	FileUnit units.Unit // unit the column is written in
}

// splitName returns the body and option of an input or output name.
func splitName(name string) (body, field string, err error) {
	parts := strings.Split(name, ".")
	switch {
	case len(parts) == 2:
		return parts[0], parts[1], nil
	case len(parts) == 3 && parts[0] == "final":
		return parts[1], parts[2], nil
	}
	return "", "", fmt.Errorf("parameter name %q: expected body.option or final.body.output", name)
}

// #endregion params

// #region output

// TimeColumn is the name of the time series in Output.
const TimeColumn = "Time"

// Output is the time-indexed table produced by one run, keyed by output
// parameter name plus TimeColumn.
type Output map[string]units.Series

// Rows returns the number of output steps.
func (o Output) Rows() int {
	return o[TimeColumn].Len()
}

// Column returns a named series or an error naming the missing column.
func (o Output) Column(name string) (units.Series, error) {
	s, ok := o[name]
	if !ok {
		return units.Series{}, fmt.Errorf("output column %q missing", name)
	}
	return s, nil
}

// #endregion output

// #region simulator

// Simulator runs the forward model for one vector of input values ordered
// like the configured InParams.
type Simulator interface {
	RunModel(ctx context.Context, values []float64, remove bool) (Output, error)
}

// #endregion simulator
