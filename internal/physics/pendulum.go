package physics

import (
	"math"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
)

// Pendulum is a point mass in the plane, pivoted at the origin. Its
// coordinates are Cartesian (x, y), so the rod is a constraint
// |p| = Length enforced at position, velocity and acceleration level.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64

	// initial angle from the downward vertical and angular rate
	Theta0 float64
	Omega0 float64

	params   paramSet
	dynamics int
	energy   int
}

const (
	pLength = iota
	pMass
	pGravity
	pDamping
)

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.0,
		Gravity: 9.81,
		Theta0:  0.5,
	}
}

func NewPendulumRecord(p *Pendulum) *subsystem.Record {
	return subsystem.New("pendulum", "1.0", p)
}

func (p *Pendulum) CloneImpl() any {
	cp := *p
	cp.params = nil
	return &cp
}

func (p *Pendulum) RealizeTopology(r *subsystem.Record, s *state.State) error {
	if !r.TopologyCacheValid() {
		p.params = paramSet{
			pLength:  {name: "length", stage: stage.Topology, field: &p.Length},
			pMass:    {name: "mass", stage: stage.Model, field: &p.Mass},
			pGravity: {name: "gravity", stage: stage.Instance, field: &p.Gravity},
			pDamping: {name: "damping", stage: stage.Instance, field: &p.Damping},
		}
	}
	p.params.allocate(s, r.Index())
	return nil
}

func (p *Pendulum) RealizeModel(r *subsystem.Record, s *state.State) error {
	i := r.Index()
	l := scalar(s.View(), i, p.params[pLength].slot)
	sin, cos := math.Sincos(p.Theta0)
	s.AllocateQ(i, state.Vector{l * sin, -l * cos})
	s.AllocateU(i, state.Vector{l * p.Omega0 * cos, l * p.Omega0 * sin})
	s.AllocateQErr(i, 1)
	s.AllocateUErr(i, 1)
	s.AllocateUDotErr(i, 1)
	// applied force (fx, fy)
	p.dynamics = s.AllocateCacheEntry(i, stage.Dynamics, state.NewVectorValue(2))
	p.energy = s.AllocateCacheEntry(i, stage.Report, state.NewBox(0.0))
	return nil
}

func (p *Pendulum) length(v state.View, i int) float64 {
	return scalar(v, i, p.params[pLength].slot)
}

// RealizePosition reports the rod stretch, (|p|^2 - L^2) / 2L.
func (p *Pendulum) RealizePosition(r *subsystem.Record, v state.View) error {
	i := r.Index()
	l := p.length(v, i)
	q := v.QOf(i)
	v.UpdQErrOf(i)[0] = (dot(q, q) - l*l) / (2 * l)
	return nil
}

func (p *Pendulum) RealizeVelocity(r *subsystem.Record, v state.View) error {
	i := r.Index()
	q, u := v.QOf(i), v.UOf(i)
	copy(v.UpdQDotOf(i), u)
	v.UpdUErrOf(i)[0] = dot(q, u) / p.length(v, i)
	return nil
}

func (p *Pendulum) RealizeDynamics(r *subsystem.Record, v state.View) error {
	i := r.Index()
	m := scalar(v, i, p.params[pMass].slot)
	g := scalar(v, i, p.params[pGravity].slot)
	d := scalar(v, i, p.params[pDamping].slot)
	u := v.UOf(i)
	f := updVectorAt(v, i, p.dynamics)
	f[0] = -d * u[0]
	f[1] = -m*g - d*u[1]
	return nil
}

// RealizeAcceleration applies the rod tension that keeps the second
// derivative of the constraint at zero: a = f/m + lambda*q.
func (p *Pendulum) RealizeAcceleration(r *subsystem.Record, v state.View) error {
	i := r.Index()
	m := scalar(v, i, p.params[pMass].slot)
	q, u := v.QOf(i), v.UOf(i)
	f := vectorAt(v, i, p.dynamics)

	free := state.Vector{f[0] / m, f[1] / m}
	lambda := -(dot(u, u) + dot(q, free)) / dot(q, q)

	udot := v.UpdUDotOf(i)
	udot[0] = free[0] + lambda*q[0]
	udot[1] = free[1] + lambda*q[1]
	copy(v.UpdQDotDotOf(i), udot)

	v.UpdUDotErrOf(i)[0] = (dot(q, udot) + dot(u, u)) / p.length(v, i)
	return nil
}

// RealizeReport stores kinetic plus potential energy, with zero potential
// at the lowest point.
func (p *Pendulum) RealizeReport(r *subsystem.Record, v state.View) error {
	i := r.Index()
	m := scalar(v, i, p.params[pMass].slot)
	g := scalar(v, i, p.params[pGravity].slot)
	q, u := v.QOf(i), v.UOf(i)
	e := 0.5*m*dot(u, u) + m*g*(q[1]+p.length(v, i))
	v.UpdCacheEntry(i, p.energy).(*state.Box[float64]).V = e
	return nil
}

func (p *Pendulum) Energy(r *subsystem.Record, v state.View) float64 {
	return v.CacheEntry(r.Index(), p.energy).(*state.Box[float64]).V
}

// Theta returns the angle from the downward vertical.
func (p *Pendulum) Theta(r *subsystem.Record, v state.View) float64 {
	q := v.QOf(r.Index())
	return math.Atan2(q[0], -q[1])
}

func (p *Pendulum) CalcQUnitWeights(r *subsystem.Record, v state.View, w state.Vector) error {
	w.Fill(1 / p.length(v, r.Index()))
	return nil
}

func (p *Pendulum) CalcUUnitWeights(r *subsystem.Record, v state.View, w state.Vector) error {
	i := r.Index()
	g := scalar(v, i, p.params[pGravity].slot)
	if g <= 0 {
		return nil
	}
	w.Fill(1 / math.Sqrt(g*p.length(v, i)))
	return nil
}

func (p *Pendulum) CalcQErrUnitTolerances(r *subsystem.Record, v state.View, t state.Vector) error {
	t.Fill(1 / p.length(v, r.Index()))
	return nil
}

func (p *Pendulum) CalcDecorativeGeometryAndAppend(r *subsystem.Record, v state.View, g stage.Stage, geom *[]subsystem.Decoration) error {
	if g != stage.Position {
		return nil
	}
	q := v.QOf(r.Index())
	bob := subsystem.Vec3{q[0], q[1], 0}
	*geom = append(*geom,
		subsystem.Decoration{Kind: subsystem.Frame, Scale: subsystem.Vec3{0.2, 0.2, 0.2}, Color: subsystem.White},
		subsystem.Decoration{Kind: subsystem.Line, To: bob, Color: subsystem.White, Thickness: 2},
		subsystem.Decoration{Kind: subsystem.Ellipsoid, Origin: bob, Scale: subsystem.Vec3{0.1, 0.1, 0.1}, Color: subsystem.Red},
	)
	return nil
}

func (p *Pendulum) Params(r *subsystem.Record, v state.View) map[string]float64 {
	return p.params.read(r, v)
}

func (p *Pendulum) SetParam(r *subsystem.Record, s *state.State, name string, value float64) error {
	return p.params.write(r, s, name, value)
}

func dot(a, b state.Vector) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
