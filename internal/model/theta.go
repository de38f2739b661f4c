package model

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
)

// #region theta

// ErrThetaLength is returned when a positional vector has the wrong size.
var ErrThetaLength = errors.New("model: theta must have 7 elements")

// NumParams is the length of the positional parameter vector.
const NumParams = 7

// Labels name the positional parameters in order.
var Labels = [NumParams]string{"mass", "prot_init", "age", "beta1", "beta2", "ro_sat", "rx_sat"}

// Theta is one point in parameter space. The first three fields are
// simulator initial conditions; the rest are activity relation coefficients.
type Theta struct {
	Mass     float64 `json:"mass"`      // Msun
	ProtInit float64 `json:"prot_init"` // initial rotation period, in the model's period unit
	Age      float64 `json:"age"`       // stop age, in the model's age unit
	Beta1    float64 `json:"beta1"`
	Beta2    float64 `json:"beta2"`
	RoSat    float64 `json:"ro_sat"`
	RXSat    float64 `json:"rx_sat"`
}

// FromSlice reads the positional order {mass, prot, age, beta1, beta2, RoSat, RXsat}.
func FromSlice(v []float64) (Theta, error) {
	if len(v) != NumParams {
		return Theta{}, fmt.Errorf("got %d: %w", len(v), ErrThetaLength)
	}
	return Theta{
		Mass:     v[0],
		ProtInit: v[1],
		Age:      v[2],
		Beta1:    v[3],
		Beta2:    v[4],
		RoSat:    v[5],
		RXSat:    v[6],
	}, nil
}

// Slice returns the positional form of t.
func (t Theta) Slice() []float64 {
	return []float64{t.Mass, t.ProtInit, t.Age, t.Beta1, t.Beta2, t.RoSat, t.RXSat}
}

// SimulatorInputs returns the values passed to the simulator.
func (t Theta) SimulatorInputs() []float64 {
	return []float64{t.Mass, t.ProtInit, t.Age}
}

// Activity returns the rotation-activity coefficients.
func (t Theta) Activity() activity.Params {
	return activity.Params{Beta1: t.Beta1, Beta2: t.Beta2, RoSat: t.RoSat, RXSat: t.RXSat}
}

// #endregion theta
