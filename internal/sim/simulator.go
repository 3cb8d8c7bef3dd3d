// Package sim runs a system forward in time and records what happens.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

type Simulator struct {
	sys        *system.System
	integrator integrators.Integrator
	metrics    []Metric
	observers  []Observer
	logger     *slog.Logger
}

func New(sys *system.System, integrator integrators.Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     slog.Default(),
	}
}

func (s *Simulator) AddMetric(m Metric)                 { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)             { s.observers = append(s.observers, o) }
func (s *Simulator) SetLogger(l *slog.Logger)           { s.logger = l }
func (s *Simulator) System() *system.System             { return s.sys }
func (s *Simulator) Integrator() integrators.Integrator { return s.integrator }

// Run integrates st for cfg.Duration. st must belong to the simulator's
// system; it is realized to Report before the first step and after every
// step. Cancellation is checked between steps.
func (s *Simulator) Run(ctx context.Context, st *state.State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	every := cfg.RecordEvery
	if every < 1 {
		every = 1
	}
	result := &Result{
		Times:    make([]float64, 0, steps/every+1),
		States:   make([]state.Vector, 0, steps/every+1),
		Energies: make([]float64, 0, steps/every+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	if err := s.sys.Realize(st, stage.Report); err != nil {
		return nil, err
	}
	initialEnergy := physics.TotalEnergy(s.sys, st.View())
	s.record(result, st)

	start := st.Time()
	end := start + cfg.Duration
	dt := cfg.Dt
	logger := s.logger.With("integrator", s.integrator.Name())
	logger.Debug("run started", "dt", dt, "duration", cfg.Duration, "ny", st.NY())

	for i := 0; st.Time() < end-1e-12*math.Max(1, math.Abs(end)); i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		v := st.View()
		for _, m := range s.metrics {
			m.Observe(s.sys, v)
		}
		for _, obs := range s.observers {
			obs.OnStep(i, v)
		}

		h := math.Min(dt, end-st.Time())
		var err error
		if cfg.Adaptive {
			dt, err = s.adaptiveStep(st, h, cfg)
		} else {
			err = s.integrator.Step(s.sys, st, h)
		}
		if err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}
		if err := s.sys.Realize(st, stage.Report); err != nil {
			return result, fmt.Errorf("step %d: %w", i, err)
		}

		if cfg.ValidateState && !st.Y().IsValid() {
			err := SimError{Time: st.Time(), Step: i, Message: "invalid state (NaN/Inf)"}
			result.Errors = append(result.Errors, err)
			logger.Warn("run stopped", "error", err)
			break
		}

		result.StepsTaken++
		if result.StepsTaken%every == 0 {
			s.record(result, st)
		}
	}

	finalEnergy := physics.TotalEnergy(s.sys, st.View())
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	logger.Debug("run finished", "steps", result.StepsTaken, "energy_drift", result.EnergyDrift)
	return result, nil
}

func (s *Simulator) record(r *Result, st *state.State) {
	r.Times = append(r.Times, st.Time())
	r.States = append(r.States, st.Y().Clone())
	r.Energies = append(r.Energies, physics.TotalEnergy(s.sys, st.View()))
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	return nil
}

// adaptiveStep takes one error-controlled step of at most h and returns the
// step size to try next.
func (s *Simulator) adaptiveStep(st *state.State, h float64, cfg Config) (float64, error) {
	if adaptive, ok := s.integrator.(integrators.AdaptiveIntegrator); ok {
		_, next, err := adaptive.StepAdaptive(s.sys, st, h, cfg.Tolerance)
		if err != nil {
			return 0, err
		}
		return clamp(next, cfg.MinDt, cfg.MaxDt), nil
	}

	// step doubling: one full step against two half steps
	y0 := st.Y().Clone()
	t0 := st.Time()
	if err := s.integrator.Step(s.sys, st, h); err != nil {
		return 0, err
	}
	full := st.Y().Clone()

	restore(st, t0, y0)
	if err := s.integrator.Step(s.sys, st, h/2); err != nil {
		return 0, err
	}
	if err := s.integrator.Step(s.sys, st, h/2); err != nil {
		return 0, err
	}
	diff := st.Y().Clone()
	for i := range diff {
		diff[i] -= full[i]
	}
	e := diff.Norm()

	if e > cfg.Tolerance && h/2 >= cfg.MinDt {
		restore(st, t0, y0)
		return s.adaptiveStep(st, h/2, cfg)
	}
	next := h
	if e < cfg.Tolerance/10 {
		next = h * 2
	}
	return clamp(next, cfg.MinDt, cfg.MaxDt), nil
}

func restore(st *state.State, t float64, y state.Vector) {
	*st.UpdTime() = t
	copy(st.UpdY(), y)
}

func clamp(x, lo, hi float64) float64 {
	if lo > 0 && x < lo {
		return lo
	}
	if hi > 0 && x > hi {
		return hi
	}
	return x
}
