package physics

import (
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.2
	DefaultSpacing   = 1.0
)

// SpringChain is n masses on a line. Spring i joins mass i-1 to mass i, with
// springs 0 and n tied to walls. Positions are displacements from rest.
type SpringChain struct {
	N         int
	Mass      float64
	Stiffness float64
	Damping   float64
	Scale     float64

	X0 []float64
	V0 []float64

	params paramSet
	// springs[j] holds the masses spring j joins, -1 for a wall
	springs [][2]int
	forces  int
	energy  int
}

func NewSpringChain(n int) *SpringChain {
	return &SpringChain{
		N:         n,
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Damping:   DefaultDamping,
		Scale:     1,
	}
}

// NewSpringChainRecord wraps a chain in a dispatch record.
func NewSpringChainRecord(c *SpringChain) *subsystem.Record {
	return subsystem.New("spring-chain", "1.0", c)
}

func (c *SpringChain) CloneImpl() any {
	cp := *c
	cp.X0 = append([]float64(nil), c.X0...)
	cp.V0 = append([]float64(nil), c.V0...)
	cp.params = nil
	cp.springs = nil
	return &cp
}

// SetN changes the number of masses. States realized for the old count
// become stale.
func (c *SpringChain) SetN(r *subsystem.Record, n int) {
	c.N = n
	r.InvalidateTopologyCache()
}

func (c *SpringChain) RealizeTopology(r *subsystem.Record, s *state.State) error {
	if !r.TopologyCacheValid() {
		c.params = paramSet{
			{name: "mass", stage: stage.Model, field: &c.Mass},
			{name: "stiffness", stage: stage.Instance, field: &c.Stiffness},
			{name: "damping", stage: stage.Instance, field: &c.Damping},
		}
		c.springs = make([][2]int, c.N+1)
		for j := range c.springs {
			c.springs[j] = [2]int{j - 1, j}
		}
		if c.N > 0 {
			c.springs[0][0] = -1
			c.springs[c.N][1] = -1
		} else {
			c.springs[0] = [2]int{-1, -1}
		}
	}
	c.params.allocate(s, r.Index())
	return nil
}

// stretch is the extension of spring sp given displacements q.
func stretch(sp [2]int, q state.Vector) float64 {
	var a, b float64
	if sp[0] >= 0 {
		a = q[sp[0]]
	}
	if sp[1] >= 0 {
		b = q[sp[1]]
	}
	return b - a
}

func (c *SpringChain) RealizeModel(r *subsystem.Record, s *state.State) error {
	i := r.Index()
	s.AllocateQ(i, initial(c.X0, c.N))
	s.AllocateU(i, initial(c.V0, c.N))
	c.forces = s.AllocateCacheEntry(i, stage.Dynamics, state.NewVectorValue(c.N))
	c.energy = s.AllocateCacheEntry(i, stage.Report, state.NewBox(0.0))
	return nil
}

func (c *SpringChain) RealizeVelocity(r *subsystem.Record, v state.View) error {
	copy(v.UpdQDotOf(r.Index()), v.UOf(r.Index()))
	return nil
}

func (c *SpringChain) RealizeDynamics(r *subsystem.Record, v state.View) error {
	i := r.Index()
	k := scalar(v, i, c.params[1].slot)
	d := scalar(v, i, c.params[2].slot)
	q, u := v.QOf(i), v.UOf(i)
	f := updVectorAt(v, i, c.forces)

	for j := range f {
		f[j] = -d * u[j]
	}
	// a stretched spring pulls its masses together
	for _, sp := range c.springs {
		x := stretch(sp, q)
		if sp[0] >= 0 {
			f[sp[0]] += k * x
		}
		if sp[1] >= 0 {
			f[sp[1]] -= k * x
		}
	}
	return nil
}

func (c *SpringChain) RealizeAcceleration(r *subsystem.Record, v state.View) error {
	i := r.Index()
	m := scalar(v, i, c.params[0].slot)
	f := vectorAt(v, i, c.forces)
	udot := v.UpdUDotOf(i)
	for j := range udot {
		udot[j] = f[j] / m
	}
	// qdot = u, so qdotdot = udot
	copy(v.UpdQDotDotOf(i), udot)
	return nil
}

func (c *SpringChain) RealizeReport(r *subsystem.Record, v state.View) error {
	i := r.Index()
	m := scalar(v, i, c.params[0].slot)
	k := scalar(v, i, c.params[1].slot)
	q, u := v.QOf(i), v.UOf(i)

	e := 0.0
	for j := range u {
		e += 0.5 * m * u[j] * u[j]
	}
	for _, sp := range c.springs {
		x := stretch(sp, q)
		e += 0.5 * k * x * x
	}
	v.UpdCacheEntry(i, c.energy).(*state.Box[float64]).V = e
	return nil
}

func (c *SpringChain) Energy(r *subsystem.Record, v state.View) float64 {
	return v.CacheEntry(r.Index(), c.energy).(*state.Box[float64]).V
}

func (c *SpringChain) CalcQUnitWeights(r *subsystem.Record, v state.View, w state.Vector) error {
	w.Fill(1 / c.Scale)
	return nil
}

func (c *SpringChain) CalcUUnitWeights(r *subsystem.Record, v state.View, w state.Vector) error {
	w.Fill(1 / c.Scale)
	return nil
}

func (c *SpringChain) CalcDecorativeGeometryAndAppend(r *subsystem.Record, v state.View, g stage.Stage, geom *[]subsystem.Decoration) error {
	if g != stage.Position {
		return nil
	}
	q := v.QOf(r.Index())
	prev := subsystem.Vec3{}
	for j := range q {
		at := subsystem.Vec3{float64(j+1)*DefaultSpacing + q[j]}
		*geom = append(*geom,
			subsystem.Decoration{Kind: subsystem.Line, From: prev, To: at, Color: subsystem.White, Thickness: 1},
			subsystem.Decoration{Kind: subsystem.Ellipsoid, Origin: at, Scale: subsystem.Vec3{0.1, 0.1, 0.1}, Color: subsystem.Blue},
		)
		prev = at
	}
	wall := subsystem.Vec3{float64(c.N+1) * DefaultSpacing}
	*geom = append(*geom, subsystem.Decoration{Kind: subsystem.Line, From: prev, To: wall, Color: subsystem.White, Thickness: 1})
	return nil
}

func (c *SpringChain) Params(r *subsystem.Record, v state.View) map[string]float64 {
	return c.params.read(r, v)
}

func (c *SpringChain) SetParam(r *subsystem.Record, s *state.State, name string, value float64) error {
	return c.params.write(r, s, name, value)
}

func initial(v []float64, n int) state.Vector {
	out := make(state.Vector, n)
	copy(out, v)
	return out
}
