package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/xuvcal/internal/activity"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
	"github.com/danielpatrickdp/xuvcal/internal/prior"
	"github.com/danielpatrickdp/xuvcal/internal/units"
)

// ErrUnknownCombination is returned when a star file does not define the
// requested constraint combination.
var ErrUnknownCombination = errors.New("config: unknown combination")

// AllConstraints selects every constraint in the star file.
const AllConstraints = "all"

// #region types

// Star is the calibration configuration for one star, read from YAML.
type Star struct {
	Name        string                `yaml:"star" json:"star"`
	Mass        Estimate              `yaml:"mass" json:"mass"`
	Constraints map[string]Constraint `yaml:"constraints" json:"constraints"`

	// Combinations name subsets of Constraints fitted together.
	Combinations map[string][]string `yaml:"combinations,omitempty" json:"combinations,omitempty"`

	Prior         PriorConfig   `yaml:"prior" json:"prior"`
	RossbyScale   string        `yaml:"rossby_scale,omitempty" json:"rossby_scale,omitempty"`
	RejectInvalid bool          `yaml:"reject_invalid,omitempty" json:"reject_invalid,omitempty"`
	VPlanet       VPlanetConfig `yaml:"vplanet" json:"vplanet"`
}

// Estimate is a mean and standard deviation.
type Estimate struct {
	Mean float64 `yaml:"mean" json:"mean"`
	Std  float64 `yaml:"std" json:"std"`
}

// Constraint is an observed value. Set Std for symmetric errors or Lower
// and Upper for asymmetric ones. Unit defaults to the observable's default.
type Constraint struct {
	Mean  float64 `yaml:"mean" json:"mean"`
	Std   float64 `yaml:"std,omitempty" json:"std,omitempty"`
	Lower float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
	Unit  string  `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// PriorConfig overrides the default prior bounds. Zero values keep defaults.
type PriorConfig struct {
	SigmaFactor float64      `yaml:"sigma_factor,omitempty" json:"sigma_factor,omitempty"`
	MassGrid    *prior.Bound `yaml:"mass_grid,omitempty" json:"mass_grid,omitempty"`
	ProtInit    *prior.Bound `yaml:"prot_init,omitempty" json:"prot_init,omitempty"`
	Age         *prior.Bound `yaml:"age,omitempty" json:"age,omitempty"`
}

// VPlanetConfig locates the simulator and its template input files.
type VPlanetConfig struct {
	Binary   string `yaml:"binary,omitempty" json:"binary,omitempty"`
	Infiles  string `yaml:"infiles" json:"infiles"`
	Outdir   string `yaml:"outdir" json:"outdir"`
	KeepRuns bool   `yaml:"keep_runs,omitempty" json:"keep_runs,omitempty"`
}

// #endregion types

// #region load

// LoadStar reads and validates a star file. Relative simulator paths are
// resolved against the file's directory.
func LoadStar(path string) (Star, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Star{}, fmt.Errorf("read star config: %w", err)
	}
	s, err := ParseStar(data)
	if err != nil {
		return Star{}, fmt.Errorf("%s: %w", path, err)
	}
	s.VPlanet.Infiles = resolve(path, s.VPlanet.Infiles)
	s.VPlanet.Outdir = resolve(path, s.VPlanet.Outdir)
	return s, nil
}

// ParseStar decodes and validates a star file. Unknown fields are rejected.
func ParseStar(data []byte) (Star, error) {
	var s Star
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Star{}, fmt.Errorf("decode star config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Star{}, err
	}
	return s, nil
}

// Validate checks constraint names and units, combinations, the Rossby scale
// and the prior.
func (s Star) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("star name is required")
	}
	if len(s.Constraints) == 0 {
		return fmt.Errorf("star %s: no constraints", s.Name)
	}
	if _, err := s.Observations(AllConstraints); err != nil {
		return err
	}
	for _, name := range s.CombinationNames() {
		if _, err := s.Observations(name); err != nil {
			return err
		}
	}
	if _, err := activity.ParseRossbyScale(s.RossbyScale); err != nil {
		return fmt.Errorf("star %s: %w", s.Name, err)
	}
	if _, err := s.Space(); err != nil {
		return fmt.Errorf("star %s: %w", s.Name, err)
	}
	return nil
}

// #endregion load

// #region derived

// CombinationNames returns the defined combinations in sorted order.
func (s Star) CombinationNames() []string {
	names := make([]string, 0, len(s.Combinations))
	for name := range s.Combinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Observations builds the constraint set for a combination. AllConstraints
// or an empty name selects every constraint.
func (s Star) Observations(combination string) (observation.Set, error) {
	selected := make([]string, 0, len(s.Constraints))
	if combination == "" || combination == AllConstraints {
		for name := range s.Constraints {
			selected = append(selected, name)
		}
	} else {
		names, ok := s.Combinations[combination]
		if !ok {
			return observation.Set{}, fmt.Errorf("%q for star %s: %w", combination, s.Name, ErrUnknownCombination)
		}
		selected = names
	}

	set := observation.Set{Star: s.Name}
	for _, name := range selected {
		k, err := observation.ParseKind(name)
		if err != nil {
			return observation.Set{}, fmt.Errorf("star %s: %w", s.Name, err)
		}
		raw, ok := s.Constraints[name]
		if !ok {
			return observation.Set{}, fmt.Errorf("star %s: combination %q uses undefined constraint %q", s.Name, combination, name)
		}
		c, err := raw.resolve(k)
		if err != nil {
			return observation.Set{}, fmt.Errorf("star %s: %s: %w", s.Name, name, err)
		}
		set.Put(k, observation.Some(c))
	}
	if err := set.Validate(); err != nil {
		return observation.Set{}, err
	}
	return set, nil
}

func (c Constraint) resolve(k observation.Kind) (observation.Constraint, error) {
	u := observation.DefaultUnit(k)
	if c.Unit != "" {
		parsed, err := units.Parse(c.Unit)
		if err != nil {
			return observation.Constraint{}, err
		}
		u = parsed
	}
	if c.Lower != 0 || c.Upper != 0 {
		if c.Std != 0 {
			return observation.Constraint{}, fmt.Errorf("set either std or lower/upper, not both")
		}
		return observation.Asymmetric(c.Mean, c.Lower, c.Upper, u), nil
	}
	return observation.Symmetric(c.Mean, c.Std, u), nil
}

// Scale returns the configured Rossby rescale factor.
func (s Star) Scale() activity.RossbyScale {
	// validated on load
	scale, _ := activity.ParseRossbyScale(s.RossbyScale)
	return scale
}

// PriorSettings returns the default prior settings with the file's overrides.
func (s Star) PriorSettings() prior.Settings {
	st := prior.DefaultSettings(activity.Estimate{Mean: s.Mass.Mean, Std: s.Mass.Std})
	if s.Prior.SigmaFactor != 0 {
		st.SigmaFactor = s.Prior.SigmaFactor
	}
	if s.Prior.MassGrid != nil {
		st.MassGrid = *s.Prior.MassGrid
	}
	if s.Prior.ProtInit != nil {
		st.ProtInit = *s.Prior.ProtInit
	}
	if s.Prior.Age != nil {
		st.Age = *s.Prior.Age
	}
	return st
}

// Space returns the seven-parameter calibration prior, with the initial
// period and age bounds in the units of the star's prot and age constraints.
func (s Star) Space() (prior.Space, error) {
	obs, err := s.Observations(AllConstraints)
	if err != nil {
		return prior.Space{}, err
	}
	st, err := s.PriorSettings().InUnits(obs.Unit(observation.Prot), obs.Unit(observation.Age))
	if err != nil {
		return prior.Space{}, err
	}
	return prior.Calibration(st)
}

// #endregion derived
