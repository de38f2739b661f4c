package vplanet

import (
	"context"
	"sync"
)

// #region recorded

// Recorded is a Simulator that returns canned outputs. It serves replay
// fixtures and tests where running vplanet is not possible.
type Recorded struct {
	// Fn, when set, produces the output for a value vector.
	Fn func(values []float64) (Output, error)
	// Fixed is returned when Fn is nil.
	Fixed Output

	mu    sync.Mutex
	calls [][]float64
}

// RunModel returns the recorded output for values.
func (r *Recorded) RunModel(ctx context.Context, values []float64, _ bool) (Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, append([]float64(nil), values...))
	r.mu.Unlock()

	if r.Fn != nil {
		return r.Fn(values)
	}
	return r.Fixed, nil
}

// Calls returns a copy of the value vectors passed to RunModel.
func (r *Recorded) Calls() [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]float64, len(r.calls))
	copy(out, r.calls)
	return out
}

// #endregion recorded
