package metrics

import (
	"math"

	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// ConstraintError is the worst weighted constraint violation seen, over
// YErr and UDotErr. YErr entries are scaled by the system's unit
// tolerances.
type ConstraintError struct {
	name string
	max  float64
}

func NewConstraintError() *ConstraintError {
	return &ConstraintError{name: "constraint_error"}
}

func (c *ConstraintError) Name() string { return c.name }

func (c *ConstraintError) Observe(sys *system.System, v state.View) {
	yerr := v.YErr()
	tol, err := sys.CalcYErrUnitTolerances(v)
	if err != nil || len(tol) != len(yerr) {
		tol = nil
	}
	for i, e := range yerr {
		if tol != nil {
			e *= tol[i]
		}
		c.max = math.Max(c.max, math.Abs(e))
	}
	c.max = math.Max(c.max, v.UDotErr().MaxAbs())
}

func (c *ConstraintError) Value() float64 { return c.max }

func (c *ConstraintError) Reset() { c.max = 0 }
