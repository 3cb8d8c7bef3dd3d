package integrators

import "github.com/san-kum/stagesim/internal/state"

type Euler struct {
	ydot, y state.Vector
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(sys Realizer, s *state.State, dt float64) error {
	if err := realizeAt(sys, s); err != nil {
		return err
	}
	n := s.NY()
	grow(&e.ydot, n)
	grow(&e.y, n)
	copy(e.ydot, s.YDot())
	copy(e.y, s.Y())
	for i := range e.y {
		e.y[i] += dt * e.ydot[i]
	}
	commit(s, s.Time()+dt, e.y)
	return nil
}
