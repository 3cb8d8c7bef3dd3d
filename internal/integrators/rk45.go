package integrators

import (
	"math"

	"github.com/san-kum/stagesim/internal/state"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is Dormand-Prince with an embedded error estimate. When the system
// provides unit weights the estimate is measured in weighted units, so a
// tolerance of 1e-6 means one part per million of each variable's scale.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	// rejected steps before giving up and accepting
	maxRetries int

	k         [7]state.Vector
	t0        float64
	y0, ynew  state.Vector
	scratch   state.Vector
	LastError float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
		maxRetries: 20,
	}
}

func (r *RK45) Name() string { return "rk45" }

func (r *RK45) Step(sys Realizer, s *state.State, dt float64) error {
	_, err := r.attempt(sys, s, dt, nil)
	return err
}

func (r *RK45) StepAdaptive(sys Realizer, s *state.State, dt, tol float64) (float64, float64, error) {
	if err := realizeAt(sys, s); err != nil {
		return 0, 0, err
	}
	var weights state.Vector
	if w, ok := sys.(Weighter); ok {
		var err error
		if weights, err = w.CalcYUnitWeights(s.View()); err != nil {
			return 0, 0, err
		}
	}

	for try := 0; ; try++ {
		errMax, err := r.attempt(sys, s, dt, weights)
		if err != nil {
			return 0, 0, err
		}
		ratio := errMax / tol
		if ratio <= 1 || try >= r.maxRetries {
			next := dt * r.maxScale
			if ratio > 0 {
				next = dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
			}
			return dt, next, nil
		}
		// rejected: restore and shrink
		commit(s, r.t0, r.y0)
		dt *= math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	}
}

// attempt takes one step of dt from the state in s, leaves the result in s,
// and returns the largest scaled error estimate.
func (r *RK45) attempt(sys Realizer, s *state.State, dt float64, weights state.Vector) (float64, error) {
	if err := realizeAt(sys, s); err != nil {
		return 0, err
	}
	n := s.NY()
	if len(r.y0) != n {
		for i := range r.k {
			r.k[i] = make(state.Vector, n)
		}
		r.y0 = make(state.Vector, n)
		r.ynew = make(state.Vector, n)
		r.scratch = make(state.Vector, n)
	}
	k1, k2, k3, k4, k5, k6, k7 := r.k[0], r.k[1], r.k[2], r.k[3], r.k[4], r.k[5], r.k[6]
	t := s.Time()
	r.t0 = t
	copy(r.y0, s.Y())
	copy(k1, s.YDot())
	x := r.y0

	step := func(c float64, dst state.Vector, combine func(i int) float64) error {
		for i := 0; i < n; i++ {
			r.scratch[i] = x[i] + dt*combine(i)
		}
		return evaluate(sys, s, t+c*dt, r.scratch, dst)
	}
	if err := step(a2, k2, func(i int) float64 { return b21 * k1[i] }); err != nil {
		return 0, err
	}
	if err := step(a3, k3, func(i int) float64 { return b31*k1[i] + b32*k2[i] }); err != nil {
		return 0, err
	}
	if err := step(a4, k4, func(i int) float64 { return b41*k1[i] + b42*k2[i] + b43*k3[i] }); err != nil {
		return 0, err
	}
	if err := step(a5, k5, func(i int) float64 { return b51*k1[i] + b52*k2[i] + b53*k3[i] + b54*k4[i] }); err != nil {
		return 0, err
	}
	if err := step(1, k6, func(i int) float64 {
		return b61*k1[i] + b62*k2[i] + b63*k3[i] + b64*k4[i] + b65*k5[i]
	}); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		r.ynew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	if err := evaluate(sys, s, t+dt, r.ynew, k7); err != nil {
		return 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		var scaled float64
		if weights != nil {
			scaled = math.Abs(errEst) * weights[i]
		} else {
			scaled = math.Abs(errEst) / (math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10)
		}
		errMax = math.Max(errMax, scaled)
	}
	r.LastError = errMax
	return errMax, nil
}
