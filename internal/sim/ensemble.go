package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// Perturb adjusts run i of an ensemble. st is realized to Model.
type Perturb func(i int, sys *system.System, st *state.State) error

// Ensemble runs a simulator's system many times in parallel. Each run gets
// its own clone of the system and its own integrator, so nothing stateful
// is shared between goroutines. Metrics and observers of the base
// simulator are not used.
type Ensemble struct {
	base    *Simulator
	numRuns int
	limit   int
}

func NewEnsemble(s *Simulator, numRuns int) *Ensemble {
	return &Ensemble{base: s, numRuns: numRuns}
}

// SetLimit caps the number of concurrent runs. Zero means no limit.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

func (e *Ensemble) Run(ctx context.Context, cfg Config, perturb Perturb) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			sys, err := e.base.sys.Clone()
			if err != nil {
				return err
			}
			st, err := sys.RealizeTopology()
			if err != nil {
				return err
			}
			if err := sys.RealizeModel(st); err != nil {
				return err
			}
			if perturb != nil {
				if err := perturb(i, sys, st); err != nil {
					return err
				}
			}
			integ, err := integrators.New(e.base.integrator.Name())
			if err != nil {
				return err
			}

			sim := New(sys, integ)
			sim.SetLogger(e.base.logger.With("run", i))
			results[i], err = sim.Run(ctx, st, cfg)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
