package experiment

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/metrics"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/subsystem"
)

// Builder makes a subsystem record from a name and kind specific params.
// An empty name means the kind's default.
type Builder func(name string, params map[string]float64) (*subsystem.Record, error)

type Registry struct {
	kinds map[string]Builder
}

func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Builder)}
	r.kinds["pendulum"] = buildPendulum
	r.kinds["spring_chain"] = buildSpringChain
	return r
}

// Register adds or replaces a subsystem kind.
func (r *Registry) Register(kind string, b Builder) {
	r.kinds[kind] = b
}

func (r *Registry) BuildSubsystem(kind, name string, params map[string]float64) (*subsystem.Record, error) {
	b, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown subsystem kind: %s", kind)
	}
	rec, err := b(name, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return rec, nil
}

func (r *Registry) GetIntegrator(name string) (integrators.Integrator, error) {
	return integrators.New(name)
}

func (r *Registry) GetMetrics(names []string) ([]sim.Metric, error) {
	out := make([]sim.Metric, 0, len(names))
	for _, n := range names {
		m, err := metrics.New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Registry) ListKinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func buildPendulum(name string, params map[string]float64) (*subsystem.Record, error) {
	p := physics.NewPendulum()
	fields := map[string]*float64{
		"mass":    &p.Mass,
		"length":  &p.Length,
		"damping": &p.Damping,
		"gravity": &p.Gravity,
		"theta0":  &p.Theta0,
		"omega0":  &p.Omega0,
	}
	if err := assign(params, fields, nil); err != nil {
		return nil, err
	}
	if p.Length <= 0 {
		return nil, fmt.Errorf("length must be positive, got %g", p.Length)
	}
	return subsystem.New(orDefault(name, "pendulum"), "1.0", p), nil
}

func buildSpringChain(name string, params map[string]float64) (*subsystem.Record, error) {
	n := 3
	if v, ok := params["n"]; ok {
		n = int(v)
	}
	if n < 1 {
		return nil, fmt.Errorf("n must be at least 1, got %d", n)
	}

	c := physics.NewSpringChain(n)
	c.X0 = make([]float64, n)
	c.V0 = make([]float64, n)
	fields := map[string]*float64{
		"mass":      &c.Mass,
		"stiffness": &c.Stiffness,
		"damping":   &c.Damping,
		"scale":     &c.Scale,
	}
	indexed := func(key string, v float64) error {
		if key == "n" {
			return nil
		}
		prefix, idx, ok := strings.Cut(key, ".")
		if !ok {
			return fmt.Errorf("unknown param %q", key)
		}
		k, err := strconv.Atoi(idx)
		if err != nil || k < 0 || k >= n {
			return fmt.Errorf("param %q: index out of range [0, %d)", key, n)
		}
		switch prefix {
		case "x0":
			c.X0[k] = v
		case "v0":
			c.V0[k] = v
		default:
			return fmt.Errorf("unknown param %q", key)
		}
		return nil
	}
	if err := assign(params, fields, indexed); err != nil {
		return nil, err
	}
	if c.Mass <= 0 || c.Scale <= 0 {
		return nil, fmt.Errorf("mass and scale must be positive")
	}
	return subsystem.New(orDefault(name, "spring-chain"), "1.0", c), nil
}

// assign writes params into fields in key order. Keys not in fields go to
// rest, or are rejected when rest is nil.
func assign(params map[string]float64, fields map[string]*float64, rest func(string, float64) error) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if f, ok := fields[k]; ok {
			*f = params[k]
			continue
		}
		if rest == nil {
			return fmt.Errorf("unknown param %q", k)
		}
		if err := rest(k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func orDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
