package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Env holds process settings read from the environment. Command-line flags
// override these.
type Env struct {
	DB           string  `env:"XUVCAL_DB"            envDefault:"xuvcal.db"`
	Addr         string  `env:"XUVCAL_ADDR"          envDefault:"localhost:50071"`
	VPlanet      string  `env:"XUVCAL_VPLANET"       envDefault:"vplanet"`
	Workers      int     `env:"XUVCAL_WORKERS"       envDefault:"0"`
	OTelEndpoint string  `env:"XUVCAL_OTEL_ENDPOINT"`
	OTelSample   float64 `env:"XUVCAL_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv returns the process settings.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}

// resolve makes p relative to the directory of the file at base.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(base), p)
}
