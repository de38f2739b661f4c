package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/xuvcal/internal/config"
	"github.com/danielpatrickdp/xuvcal/internal/units"
	"github.com/danielpatrickdp/xuvcal/internal/vplanet"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Star        config.Star   `json:"star"`
	Combination string        `json:"combination"`
	Output      FixtureOutput `json:"output"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureSeries is one recorded simulator column.
type FixtureSeries struct {
	Values []float64 `json:"values"`
	Unit   string    `json:"unit"`
}

// FixtureOutput is a recorded simulator output keyed by output name.
type FixtureOutput map[string]FixtureSeries

// FixtureCase is one parameter vector with its expected score. Output, when
// set, replaces the fixture-level recording for this case.
type FixtureCase struct {
	ID             string        `json:"id"`
	Theta          []float64     `json:"theta"`
	Output         FixtureOutput `json:"output,omitempty"`
	ExpectedLnLike float64       `json:"expected_lnlike"`
	ExpectedChi2   []float64     `json:"expected_chi2"`
	ExpectedPassed bool          `json:"expected_passed"`
	Tolerance      float64       `json:"tolerance,omitempty"` // relative; 0 uses DefaultTolerance
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Star.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToOutput converts a FixtureOutput to simulator output.
func (fo FixtureOutput) ToOutput() (vplanet.Output, error) {
	out := make(vplanet.Output, len(fo))
	for name, s := range fo {
		u := units.One
		if s.Unit != "" {
			parsed, err := units.Parse(s.Unit)
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", name, err)
			}
			u = parsed
		}
		out[name] = units.Series{Values: s.Values, Unit: u}
	}
	return out, nil
}

// FromOutput converts simulator output to its fixture form.
func FromOutput(out vplanet.Output) FixtureOutput {
	fo := make(FixtureOutput, len(out))
	for name, s := range out {
		fo[name] = FixtureSeries{Values: s.Values, Unit: s.Unit.Symbol}
	}
	return fo
}

// #endregion fixture-loader
