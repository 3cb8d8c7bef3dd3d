package physics

import (
	"fmt"
	"sort"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
	"github.com/san-kum/stagesim/internal/system"
)

// param is one scalar discrete variable. field is only the value the
// variable is allocated with; once allocated the state holds the value.
type param struct {
	name  string
	stage stage.Stage
	field *float64
	slot  int
}

// Configurable subsystems expose their discrete variables by name.
type Configurable interface {
	Params(r *subsystem.Record, v state.View) map[string]float64
	SetParam(r *subsystem.Record, s *state.State, name string, value float64) error
}

type paramSet []param

// allocate creates the discrete variables of subsystem i.
func (ps paramSet) allocate(s *state.State, i int) {
	for k := range ps {
		ps[k].slot = s.AllocateDiscreteVariable(i, ps[k].stage, state.NewBox(*ps[k].field))
	}
}

func (ps paramSet) find(name string) (param, bool) {
	for _, p := range ps {
		if p.name == name {
			return p, true
		}
	}
	return param{}, false
}

func (ps paramSet) read(r *subsystem.Record, v state.View) map[string]float64 {
	out := make(map[string]float64, len(ps))
	for _, p := range ps {
		out[p.name] = scalar(v, r.Index(), p.slot)
	}
	return out
}

func (ps paramSet) write(r *subsystem.Record, s *state.State, name string, value float64) error {
	p, ok := ps.find(name)
	if !ok {
		return fmt.Errorf("%s: unknown param %q (have %v)", r.Name(), name, ps.names())
	}
	s.SetDiscreteVariable(r.Index(), p.slot, state.NewBox(value))
	return nil
}

func (ps paramSet) names() []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.name
	}
	sort.Strings(names)
	return names
}

func scalar(v state.View, i, k int) float64 {
	return v.DiscreteVariable(i, k).(*state.Box[float64]).V
}

func vectorAt(v state.View, i, k int) state.Vector {
	return v.CacheEntry(i, k).(*state.VectorValue).V
}

func updVectorAt(v state.View, i, k int) state.Vector {
	return v.UpdCacheEntry(i, k).(*state.VectorValue).V
}

// SetParamByName sets param of the subsystem named sub through its
// Configurable implementation.
func SetParamByName(sys *system.System, s *state.State, sub, param string, value float64) error {
	for i := 0; i < sys.NumSubsystems(); i++ {
		rec := sys.Subsystem(i)
		if rec.Name() != sub {
			continue
		}
		cfg, ok := rec.Impl().(Configurable)
		if !ok {
			return fmt.Errorf("subsystem %s has no params", sub)
		}
		return cfg.SetParam(rec, s, param, value)
	}
	return fmt.Errorf("no subsystem named %s", sub)
}
