package metrics

import (
	"fmt"
	"sort"

	"github.com/san-kum/stagesim/internal/sim"
)

// DefaultStabilityThreshold bounds |y| for the "stability" metric.
const DefaultStabilityThreshold = 1e3

var registry = map[string]func() sim.Metric{
	"energy":           func() sim.Metric { return NewEnergy() },
	"energy_drift":     func() sim.Metric { return NewEnergyDrift() },
	"stability":        func() sim.Metric { return NewStability(DefaultStabilityThreshold) },
	"constraint_error": func() sim.Metric { return NewConstraintError() },
}

func New(name string) (sim.Metric, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s (have %v)", name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
