package evolution

import (
	"fmt"

	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// #region track

// Track is the evolution of one star for one parameter vector, one row per
// simulator output step. It is built fresh for each evaluation.
type Track struct {
	Time       units.Series
	Luminosity units.Series // bolometric
	Radius     units.Series
	RotPer     units.Series
	Rossby     units.Series // after any rescaling
	RX         units.Series // Lx/Lbol
	LXRay      units.Series
	LEUV       units.Series
	LXUV       units.Series
}

// Len returns the number of rows.
func (t Track) Len() int {
	return t.Time.Len()
}

// Columns returns the named columns in a stable order.
func (t Track) Columns() []NamedSeries {
	return []NamedSeries{
		{"time", t.Time},
		{"lbol", t.Luminosity},
		{"radius", t.Radius},
		{"prot", t.RotPer},
		{"rossby", t.Rossby},
		{"rx", t.RX},
		{"lxray", t.LXRay},
		{"leuv", t.LEUV},
		{"lxuv", t.LXUV},
	}
}

// NamedSeries pairs a column name with its series.
type NamedSeries struct {
	Name   string
	Series units.Series
}

// Validate checks that every column has the same number of rows.
func (t Track) Validate() error {
	n := t.Len()
	for _, c := range t.Columns() {
		if c.Series.Len() != n {
			return fmt.Errorf("track column %s has %d rows, expected %d", c.Name, c.Series.Len(), n)
		}
	}
	return nil
}

// #endregion track

// #region finals

// Final returns the last-row value of the observable k.
func (t Track) Final(k observation.Kind) units.Quantity {
	var s units.Series
	switch k {
	case observation.Lbol:
		s = t.Luminosity
	case observation.LXUV:
		s = t.LXUV
	case observation.LXRay:
		s = t.LXRay
	case observation.Prot:
		s = t.RotPer
	case observation.Age:
		s = t.Time
	}
	return units.Q(s.Last(), s.Unit)
}

// Finals returns the last-row values converted to the units of obs.
func (t Track) Finals(obs observation.Set) (fit.Finals, error) {
	finals := make(fit.Finals, len(observation.Kinds))
	for _, k := range observation.Kinds {
		q, err := t.Final(k).To(obs.Unit(k))
		if err != nil {
			return nil, fmt.Errorf("final %s: %w", k, err)
		}
		finals[k] = q.Value
	}
	return finals, nil
}

// #endregion finals
