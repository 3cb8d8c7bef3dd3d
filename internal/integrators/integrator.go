// Package integrators advances a State in time. Every method evaluates
// derivatives by writing Y and time into the State and realizing it to
// Acceleration, so derivative code lives entirely in the subsystems.
package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

// Realizer drives a State through the realize sequence. *system.System
// satisfies it.
type Realizer interface {
	Realize(s *state.State, g stage.Stage) error
}

// Weighter supplies per-entry scales for error control.
type Weighter interface {
	CalcYUnitWeights(v state.View) (state.Vector, error)
}

type Integrator interface {
	Name() string
	// Step advances s by dt. On return Y and time hold the new values; the
	// caller realizes s as far as it needs.
	Step(sys Realizer, s *state.State, dt float64) error
}

type AdaptiveIntegrator interface {
	Integrator
	// StepAdaptive takes one step of at most dt and returns the step taken
	// and a suggestion for the next one.
	StepAdaptive(sys Realizer, s *state.State, dt, tol float64) (taken, next float64, err error)
}

var registry = map[string]func() Integrator{
	"euler":    func() Integrator { return NewEuler() },
	"rk4":      func() Integrator { return NewRK4() },
	"rk45":     func() Integrator { return NewRK45() },
	"verlet":   func() Integrator { return NewVerlet() },
	"leapfrog": func() Integrator { return NewLeapfrog() },
}

// New returns the integrator registered under name.
func New(name string) (Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (have %v)", name, Names())
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

// evaluate puts (t, y) into s, realizes Acceleration and copies YDot into
// dst.
func evaluate(sys Realizer, s *state.State, t float64, y, dst state.Vector) error {
	*s.UpdTime() = t
	copy(s.UpdY(), y)
	if err := sys.Realize(s, stage.Acceleration); err != nil {
		return err
	}
	copy(dst, s.YDot())
	return nil
}

// realizeAt realizes s at its current time and Y.
func realizeAt(sys Realizer, s *state.State) error {
	return sys.Realize(s, stage.Acceleration)
}

func commit(s *state.State, t float64, y state.Vector) {
	*s.UpdTime() = t
	copy(s.UpdY(), y)
}

func grow(v *state.Vector, n int) {
	if len(*v) != n {
		*v = make(state.Vector, n)
	}
}
