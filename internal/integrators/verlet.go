package integrators

import (
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

// Verlet is velocity Verlet for systems whose QDot is U. Positions advance
// with QDotDot, speeds with the average of the UDot at both ends. Z, if
// any, takes an Euler step.
type Verlet struct {
	qdot, qdotdot, udot, zdot state.Vector
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Name() string { return "verlet" }

func (v *Verlet) Step(sys Realizer, s *state.State, dt float64) error {
	if err := realizeAt(sys, s); err != nil {
		return err
	}
	grow(&v.qdot, s.NQ())
	grow(&v.qdotdot, s.NQ())
	grow(&v.udot, s.NU())
	grow(&v.zdot, s.NZ())
	copy(v.qdot, s.QDot())
	copy(v.qdotdot, s.QDotDot())
	copy(v.udot, s.UDot())
	copy(v.zdot, s.ZDot())
	t := s.Time()
	halfDt := 0.5 * dt

	q := s.UpdQ()
	for i := range q {
		q[i] += v.qdot[i]*dt + 0.5*v.qdotdot[i]*dt*dt
	}
	u := s.UpdU()
	for i := range u {
		u[i] += v.udot[i] * halfDt
	}
	z := s.UpdZ()
	for i := range z {
		z[i] += v.zdot[i] * dt
	}
	*s.UpdTime() = t + dt

	if err := realizeAt(sys, s); err != nil {
		return err
	}
	copy(v.udot, s.UDot())
	u = s.UpdU()
	for i := range u {
		u[i] += v.udot[i] * halfDt
	}
	return nil
}

// Leapfrog is kick-drift-kick: half a speed update, a full position update
// with the new speeds, then the second half kick.
type Leapfrog struct {
	udot state.Vector
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Name() string { return "leapfrog" }

func (l *Leapfrog) Step(sys Realizer, s *state.State, dt float64) error {
	if err := realizeAt(sys, s); err != nil {
		return err
	}
	grow(&l.udot, s.NU())
	copy(l.udot, s.UDot())
	halfDt := 0.5 * dt

	u := s.UpdU()
	for i := range u {
		u[i] += l.udot[i] * halfDt
	}
	if err := sys.Realize(s, stage.Velocity); err != nil {
		return err
	}
	qdot := s.QDot().Clone()
	t := s.Time()
	q := s.UpdQ()
	for i := range q {
		q[i] += qdot[i] * dt
	}
	*s.UpdTime() = t + dt

	if err := realizeAt(sys, s); err != nil {
		return err
	}
	copy(l.udot, s.UDot())
	u = s.UpdU()
	for i := range u {
		u[i] += l.udot[i] * halfDt
	}
	return nil
}
