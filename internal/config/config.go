package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/stage"
)

// SubsystemConfig names one subsystem to adopt into the system. Params are
// kind specific; unknown keys are rejected when the system is built.
type SubsystemConfig struct {
	Kind   string             `yaml:"kind"`
	Name   string             `yaml:"name,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

type Config struct {
	Name       string            `yaml:"name"`
	Integrator string            `yaml:"integrator"`
	Subsystems []SubsystemConfig `yaml:"subsystems"`
	Metrics    []string          `yaml:"metrics,omitempty"`

	Dt        float64 `yaml:"dt"`
	Duration  float64 `yaml:"duration"`
	Adaptive  bool    `yaml:"adaptive,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
	Seed      int64   `yaml:"seed"`

	// RealizeTo is the stage the stages command realizes to.
	RealizeTo stage.Stage `yaml:"realize_to"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:       "pendulum",
		Integrator: "rk4",
		Subsystems: []SubsystemConfig{{Kind: "pendulum"}},
		Metrics:    []string{"energy_drift", "constraint_error"},
		Dt:         0.01,
		Duration:   10.0,
		Tolerance:  1e-6,
		Seed:       42,
		RealizeTo:  stage.Report,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Subsystems = nil
	cfg.Metrics = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Subsystems) == 0 {
		errs = append(errs, errors.New("no subsystems"))
	}
	for i, sc := range c.Subsystems {
		if sc.Kind == "" {
			errs = append(errs, fmt.Errorf("subsystem %d: missing kind", i))
		}
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %g", c.Duration))
	}
	if c.Adaptive && c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("adaptive stepping needs a positive tolerance, got %g", c.Tolerance))
	}
	if !c.RealizeTo.Valid() {
		errs = append(errs, fmt.Errorf("invalid realize_to stage %d", int(c.RealizeTo)))
	}
	return errors.Join(errs...)
}

// SimConfig returns the run settings, filling the rest from sim defaults.
func (c *Config) SimConfig() sim.Config {
	out := sim.DefaultConfig()
	out.Dt = c.Dt
	out.Duration = c.Duration
	out.Adaptive = c.Adaptive
	if c.Tolerance > 0 {
		out.Tolerance = c.Tolerance
	}
	if out.MaxDt < c.Dt {
		out.MaxDt = c.Dt
	}
	return out
}
