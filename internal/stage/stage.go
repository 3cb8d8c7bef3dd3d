// Package stage defines the realization levels shared by every part of a
// simulated system.
//
// Stages form a fixed total order. Anything tagged with stage S may assume
// that everything tagged below S is already valid:
//
//	Empty < Topology < Model < Instance < Time < Position
//	      < Velocity < Dynamics < Acceleration < Report
//
// The same vocabulary answers two questions: what is safe to read, and what
// must be invalidated when an input changes.
package stage

import (
	"fmt"
	"strings"
)

type Stage int

const (
	Empty Stage = iota
	Topology
	Model
	Instance
	Time
	Position
	Velocity
	Dynamics
	Acceleration
	Report
)

const (
	Lowest  = Empty
	Highest = Report
)

var names = [...]string{
	Empty:        "empty",
	Topology:     "topology",
	Model:        "model",
	Instance:     "instance",
	Time:         "time",
	Position:     "position",
	Velocity:     "velocity",
	Dynamics:     "dynamics",
	Acceleration: "acceleration",
	Report:       "report",
}

func (g Stage) Valid() bool { return g >= Lowest && g <= Highest }

// Prev returns the stage just below g. Empty has no predecessor and maps to
// itself.
func (g Stage) Prev() Stage {
	if g <= Lowest {
		return Lowest
	}
	return g - 1
}

// Next returns the stage just above g, saturating at Report.
func (g Stage) Next() Stage {
	if g >= Highest {
		return Highest
	}
	return g + 1
}

func (g Stage) String() string {
	if !g.Valid() {
		return fmt.Sprintf("stage(%d)", int(g))
	}
	return names[g]
}

// All returns every stage in order.
func All() []Stage {
	out := make([]Stage, 0, len(names))
	for g := Lowest; g <= Highest; g++ {
		out = append(out, g)
	}
	return out
}

func Parse(name string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for g, n := range names {
		if n == key {
			return Stage(g), nil
		}
	}
	return Empty, fmt.Errorf("unknown stage: %q", name)
}

// Min returns the lower of two stages.
func Min(a, b Stage) Stage {
	if a < b {
		return a
	}
	return b
}
