package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/san-kum/stagesim/internal/config"
	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// Experiment ties a config to a built system, its state and a simulator.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
	metrics  *system.Metrics

	sys       *system.System
	state     *state.State
	simulator *sim.Simulator
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option     { return func(e *Experiment) { e.logger = l } }
func WithMetrics(m *system.Metrics) Option { return func(e *Experiment) { e.metrics = m } }
func WithRegistry(r *Registry) Option      { return func(e *Experiment) { e.registry = r } }

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Setup builds the system from the config, realizes a fresh state through
// Model and attaches the configured integrator and metrics.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	sys := system.New(e.cfg.Name, system.WithLogger(e.logger), system.WithMetrics(e.metrics))
	for i, sc := range e.cfg.Subsystems {
		rec, err := e.registry.BuildSubsystem(sc.Kind, sc.Name, sc.Params)
		if err != nil {
			return fmt.Errorf("subsystem %d: %w", i, err)
		}
		if _, err := sys.Adopt(rec); err != nil {
			return fmt.Errorf("subsystem %d: %w", i, err)
		}
	}

	st, err := sys.RealizeTopology()
	if err != nil {
		return err
	}
	if err := sys.RealizeModel(st); err != nil {
		return err
	}

	integ, err := e.registry.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}
	ms, err := e.registry.GetMetrics(e.cfg.Metrics)
	if err != nil {
		return err
	}

	e.simulator = sim.New(sys, integ)
	e.simulator.SetLogger(e.logger)
	for _, m := range ms {
		e.simulator.AddMetric(m)
	}
	e.sys, e.state = sys, st
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.state, e.cfg.SimConfig())
}

// RunEnsemble runs n copies of the system in parallel. Run i has every Q
// entry shifted by jitter times a normal draw seeded with Seed+i, so
// results are reproducible for a given config.
func (e *Experiment) RunEnsemble(ctx context.Context, n int, jitter float64) ([]*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	perturb := func(i int, _ *system.System, st *state.State) error {
		rng := rand.New(rand.NewSource(e.cfg.Seed + int64(i)))
		q := st.UpdQ()
		for k := range q {
			q[k] += jitter * rng.NormFloat64()
		}
		return nil
	}
	return sim.NewEnsemble(e.simulator, n).Run(ctx, e.cfg.SimConfig(), perturb)
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) System() *system.System    { return e.sys }
func (e *Experiment) State() *state.State       { return e.state }
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
