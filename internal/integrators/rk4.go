package integrators

import "github.com/san-kum/stagesim/internal/state"

type RK4 struct {
	k1, k2, k3, k4 state.Vector
	y0, scratch    state.Vector
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(state.Vector, n)
		r.k2 = make(state.Vector, n)
		r.k3 = make(state.Vector, n)
		r.k4 = make(state.Vector, n)
		r.y0 = make(state.Vector, n)
		r.scratch = make(state.Vector, n)
	}
}

func (r *RK4) Step(sys Realizer, s *state.State, dt float64) error {
	if err := realizeAt(sys, s); err != nil {
		return err
	}
	n := s.NY()
	r.ensureScratch(n)
	t := s.Time()
	copy(r.y0, s.Y())
	copy(r.k1, s.YDot())

	for i := 0; i < n; i++ {
		r.scratch[i] = r.y0[i] + dt*0.5*r.k1[i]
	}
	if err := evaluate(sys, s, t+dt*0.5, r.scratch, r.k2); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = r.y0[i] + dt*0.5*r.k2[i]
	}
	if err := evaluate(sys, s, t+dt*0.5, r.scratch, r.k3); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = r.y0[i] + dt*r.k3[i]
	}
	if err := evaluate(sys, s, t+dt, r.scratch, r.k4); err != nil {
		return err
	}

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		r.scratch[i] = r.y0[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	commit(s, t+dt, r.scratch)
	return nil
}
