// Package system owns an ordered set of subsystems and drives a State
// through the realize sequence on their behalf.
package system

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
)

var (
	ErrStateMismatch = errors.New("system: state does not match subsystems")
	ErrTopologyStale = errors.New("system: topology invalidated, realize a new state")
)

// RealizeError reports the subsystem callback that stopped a realize.
type RealizeError struct {
	Subsystem string
	Index     int
	Stage     stage.Stage
	Err       error
}

func (e *RealizeError) Error() string {
	return fmt.Sprintf("realize %s: subsystem %d (%s): %v", e.Stage, e.Index, e.Subsystem, e.Err)
}

func (e *RealizeError) Unwrap() error { return e.Err }

type System struct {
	name    string
	subs    []*subsystem.Record
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*System)

func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *System) { s.metrics = m }
}

func New(name string, opts ...Option) *System {
	sys := &System{name: name, logger: slog.Default()}
	for _, o := range opts {
		o(sys)
	}
	sys.logger = sys.logger.With("system", name)
	return sys
}

func (sys *System) Name() string       { return sys.name }
func (sys *System) NumSubsystems() int { return len(sys.subs) }

// Subsystem returns the record at index i, or nil.
func (sys *System) Subsystem(i int) *subsystem.Record {
	if i < 0 || i >= len(sys.subs) {
		return nil
	}
	return sys.subs[i]
}

// Adopt appends rec and returns its index.
func (sys *System) Adopt(rec *subsystem.Record) (int, error) {
	idx := len(sys.subs)
	if err := rec.SetSystem(sys, idx); err != nil {
		return -1, err
	}
	sys.subs = append(sys.subs, rec)
	sys.logger.Debug("adopted subsystem", "subsystem", rec.Name(), "index", idx)
	return idx, nil
}

// Clone returns a system of cloned records sharing this one's logger and
// metrics. The clone has to realize its own topology.
func (sys *System) Clone() (*System, error) {
	c := &System{name: sys.name, logger: sys.logger, metrics: sys.metrics}
	for _, rec := range sys.subs {
		if _, err := c.Adopt(rec.Clone()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RealizeTopology builds a fresh State and realizes it to Topology. This is
// the only way to recover once a subsystem's topology cache was invalidated.
func (sys *System) RealizeTopology() (*state.State, error) {
	s := state.New()
	if err := sys.Realize(s, stage.Topology); err != nil {
		return nil, err
	}
	return s, nil
}

// RealizeModel realizes s through Model.
func (sys *System) RealizeModel(s *state.State) error {
	return sys.Realize(s, stage.Model)
}

// Realize advances s one stage at a time up to target. At each stage every
// subsystem below it runs its callback and is advanced, in index order, and
// then the system stage follows. A failing callback leaves the stage
// uncommitted for that subsystem and every later one. Contract violations
// raised by callbacks are not recovered.
//
// A subsystem whose topology was already realized in s keeps it: Topology
// is committed again without the callback, so updated topology variables
// survive. Before a model is realized again, what the previous model
// realization allocated is released.
func (sys *System) Realize(s *state.State, target stage.Stage) error {
	if !target.Valid() {
		return fmt.Errorf("system: invalid target stage %v", target)
	}
	if s.NumSubsystems() == 0 && s.SystemStage() == stage.Empty {
		sys.register(s)
	} else if err := sys.check(s); err != nil {
		return err
	}

	for g := s.SystemStage() + 1; g <= target; g++ {
		start := time.Now()
		for i, rec := range sys.subs {
			if s.SubsystemStage(i) >= g {
				continue
			}
			if g == stage.Topology && s.TopologyRealized(i) {
				s.AdvanceSubsystemToStage(i, g)
				continue
			}
			if g == stage.Model {
				s.ReleaseModelAllocations(i)
			}
			if err := rec.Realize(s, g); err != nil {
				sys.logger.Warn("realize failed", "stage", g, "subsystem", rec.Name(), "error", err)
				return &RealizeError{Subsystem: rec.Name(), Index: i, Stage: g, Err: err}
			}
			s.AdvanceSubsystemToStage(i, g)
		}
		s.AdvanceSystemToStage(g)
		sys.metrics.realized(g, time.Since(start).Seconds())
		sys.logger.Debug("realized", "stage", g)
	}
	return nil
}

func (sys *System) register(s *state.State) {
	s.SetNumSubsystems(len(sys.subs))
	for i, rec := range sys.subs {
		s.InitializeSubsystem(i, rec.Name(), rec.Version())
	}
}

func (sys *System) check(s *state.State) error {
	if s.NumSubsystems() != len(sys.subs) {
		return fmt.Errorf("%w: %d slots, %d subsystems", ErrStateMismatch, s.NumSubsystems(), len(sys.subs))
	}
	for i, rec := range sys.subs {
		if s.SubsystemName(i) != rec.Name() {
			return fmt.Errorf("%w: slot %d is %q, subsystem is %q", ErrStateMismatch, i, s.SubsystemName(i), rec.Name())
		}
		if s.TopologyRealized(i) && !rec.TopologyCacheValid() {
			return fmt.Errorf("%w: %s", ErrTopologyStale, rec.Name())
		}
	}
	return nil
}

// Invalidate backs s off to just below g.
func (sys *System) Invalidate(s *state.State, g stage.Stage) {
	s.InvalidateAll(g)
	sys.metrics.invalidated(g)
}

// CalcYUnitWeights returns one weight per entry of Y. Entries a subsystem
// does not weight default to 1.
func (sys *System) CalcYUnitWeights(v state.View) (state.Vector, error) {
	q, u, z := ones(v.NQ()), ones(v.NU()), ones(v.NZ())
	for i, rec := range sys.subs {
		if err := rec.CalcQUnitWeights(v, window(q, v.QStartOf(i), v.NQOf(i))); err != nil {
			return nil, err
		}
		if err := rec.CalcUUnitWeights(v, window(u, v.UStartOf(i), v.NUOf(i))); err != nil {
			return nil, err
		}
		if err := rec.CalcZUnitWeights(v, window(z, v.ZStartOf(i), v.NZOf(i))); err != nil {
			return nil, err
		}
	}
	return concat(q, u, z), nil
}

// CalcYErrUnitTolerances returns one tolerance per entry of YErr, defaulting
// to 1.
func (sys *System) CalcYErrUnitTolerances(v state.View) (state.Vector, error) {
	q, u := ones(v.NQErr()), ones(v.NUErr())
	for i, rec := range sys.subs {
		if err := rec.CalcQErrUnitTolerances(v, window(q, v.QErrStartOf(i), v.NQErrOf(i))); err != nil {
			return nil, err
		}
		if err := rec.CalcUErrUnitTolerances(v, window(u, v.UErrStartOf(i), v.NUErrOf(i))); err != nil {
			return nil, err
		}
	}
	return concat(q, u), nil
}

// Decorations collects the geometry every subsystem produces for stage g.
func (sys *System) Decorations(v state.View, g stage.Stage) ([]subsystem.Decoration, error) {
	var geom []subsystem.Decoration
	for _, rec := range sys.subs {
		if err := rec.CalcDecorativeGeometryAndAppend(v, g, &geom); err != nil {
			return nil, fmt.Errorf("decorations for %s: %w", rec.Name(), err)
		}
	}
	return geom, nil
}

func ones(n int) state.Vector {
	v := make(state.Vector, n)
	v.Fill(1)
	return v
}

func window(v state.Vector, start, n int) state.Vector {
	return v[start : start+n : start+n]
}

func concat(parts ...state.Vector) state.Vector {
	var out state.Vector
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
