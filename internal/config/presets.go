package config

import (
	"maps"
	"slices"

	"github.com/san-kum/stagesim/internal/stage"
)

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": {
			Name: "pendulum-small", Integrator: "rk4", Dt: 0.01, Duration: 20.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "pendulum", Params: map[string]float64{"theta0": 0.2}}},
			Metrics:    []string{"energy_drift", "constraint_error"},
		},
		"large": {
			Name: "pendulum-large", Integrator: "rk4", Dt: 0.01, Duration: 20.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "pendulum", Params: map[string]float64{"theta0": 2.5}}},
			Metrics:    []string{"energy_drift", "constraint_error"},
		},
		"spinning": {
			Name: "pendulum-spinning", Integrator: "rk45", Adaptive: true, Tolerance: 1e-8,
			Dt: 0.01, Duration: 30.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "pendulum", Params: map[string]float64{"theta0": 0.1, "omega0": 8.0}}},
			Metrics:    []string{"energy_drift", "constraint_error", "stability"},
		},
		"damped": {
			Name: "pendulum-damped", Integrator: "rk4", Dt: 0.01, Duration: 30.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "pendulum", Params: map[string]float64{"theta0": 1.0, "damping": 0.3}}},
			Metrics:    []string{"energy", "constraint_error"},
		},
	},
	"spring_chain": {
		"pluck": {
			Name: "chain-pluck", Integrator: "verlet", Dt: 0.005, Duration: 20.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "spring_chain", Params: map[string]float64{"n": 5, "damping": 0, "x0.0": 0.5}}},
			Metrics:    []string{"energy_drift"},
		},
		"wave": {
			Name: "chain-wave", Integrator: "leapfrog", Dt: 0.002, Duration: 10.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "spring_chain", Params: map[string]float64{"n": 20, "damping": 0, "stiffness": 50, "v0.0": 2.0}}},
			Metrics:    []string{"energy_drift", "stability"},
		},
		"settle": {
			Name: "chain-settle", Integrator: "rk4", Dt: 0.01, Duration: 30.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{{Kind: "spring_chain", Params: map[string]float64{"n": 3, "damping": 0.5, "x0.1": 1.0}}},
			Metrics:    []string{"energy", "stability"},
		},
	},
	"mixed": {
		"pendulum_and_chain": {
			Name: "mixed", Integrator: "rk4", Dt: 0.01, Duration: 10.0, RealizeTo: stage.Report,
			Subsystems: []SubsystemConfig{
				{Kind: "pendulum", Name: "bob", Params: map[string]float64{"theta0": 0.7}},
				{Kind: "spring_chain", Name: "chain", Params: map[string]float64{"n": 4, "x0.3": -0.4}},
			},
			Metrics: []string{"energy_drift", "constraint_error"},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(family, name string) *Config {
	byName, ok := Presets[family]
	if !ok {
		return nil
	}
	cfg, ok := byName[name]
	if !ok {
		return nil
	}
	return cfg.clone()
}

// ListPresets returns the preset names of a family, sorted.
func ListPresets(family string) []string {
	byName, ok := Presets[family]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func Families() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Metrics = slices.Clone(c.Metrics)
	cp.Subsystems = make([]SubsystemConfig, len(c.Subsystems))
	for i, sc := range c.Subsystems {
		cp.Subsystems[i] = sc
		cp.Subsystems[i].Params = maps.Clone(sc.Params)
	}
	return &cp
}
