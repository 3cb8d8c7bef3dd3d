package optim

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/san-kum/stagesim/internal/experiment"
	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/metrics"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/stage"
)

// GridSearch tries every combination of parameter values and keeps the one
// with the lowest metric. Parameters are named subsystem.param, e.g.
// "pendulum.damping".
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidate is one grid point and the metric value it scored. Err is set
// when the run failed; Value is then +Inf.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search runs every grid point on a fresh clone of the experiment's system.
// Parameters are applied to the clone's state with SetParam, so each one
// retracts the state exactly as far as its stage requires before the run
// realizes it again.
func (g *GridSearch) Search(ctx context.Context, exp *experiment.Experiment, metricName string) (Candidate, []Candidate, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Candidate{}, nil, fmt.Errorf("%d params but %d ranges", len(g.paramNames), len(g.ranges))
	}
	if _, err := metrics.New(metricName); err != nil {
		return Candidate{}, nil, err
	}
	if exp.System() == nil {
		return Candidate{}, nil, fmt.Errorf("experiment not setup")
	}

	best := Candidate{Value: math.Inf(1)}
	var all []Candidate
	err := g.searchRecursive(0, make(map[string]float64), func(params map[string]float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := g.evaluate(ctx, exp, metricName, params)
		all = append(all, c)
		if c.Err == nil && c.Value < best.Value {
			best = c
		}
		return nil
	})
	if err != nil {
		return best, all, err
	}
	if best.Params == nil {
		return best, all, fmt.Errorf("no grid point completed")
	}
	return best, all, nil
}

func (g *GridSearch) searchRecursive(depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if depth == len(g.paramNames) {
		return visit(current)
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := maps.Clone(current)
		next[name] = val
		if err := g.searchRecursive(depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, exp *experiment.Experiment, metricName string, params map[string]float64) Candidate {
	c := Candidate{Params: params, Value: math.Inf(1)}

	sys, err := exp.System().Clone()
	if err != nil {
		c.Err = err
		return c
	}
	st, err := sys.RealizeTopology()
	if err != nil {
		c.Err = err
		return c
	}
	if err := sys.RealizeModel(st); err != nil {
		c.Err = err
		return c
	}
	for _, key := range slices.Sorted(maps.Keys(params)) {
		sub, param, ok := strings.Cut(key, ".")
		if !ok {
			c.Err = fmt.Errorf("param %q is not subsystem.param", key)
			return c
		}
		if err := physics.SetParamByName(sys, st, sub, param, params[key]); err != nil {
			c.Err = err
			return c
		}
		// a topology or model param drops the state below Model, which
		// the next SetParam needs
		if st.SystemStage() < stage.Model {
			if err := sys.RealizeModel(st); err != nil {
				c.Err = err
				return c
			}
		}
	}

	integ, err := integrators.New(exp.Config().Integrator)
	if err != nil {
		c.Err = err
		return c
	}
	m, _ := metrics.New(metricName)
	s := sim.New(sys, integ)
	s.AddMetric(m)

	res, err := s.Run(ctx, st, exp.Config().SimConfig())
	if err != nil {
		c.Err = err
		return c
	}
	if len(res.Errors) > 0 {
		c.Err = res.Errors[0]
		return c
	}
	c.Value = res.Metrics[metricName]
	return c
}
