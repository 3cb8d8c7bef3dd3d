package sim

import (
	"fmt"

	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// Metric accumulates a figure of merit over a run. Observe is called with a
// view realized to Report.
type Metric interface {
	Name() string
	Observe(sys *system.System, v state.View)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, v state.View)
}

type Config struct {
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`

	Adaptive  bool    `yaml:"adaptive"`
	Tolerance float64 `yaml:"tolerance"`
	MinDt     float64 `yaml:"min_dt"`
	MaxDt     float64 `yaml:"max_dt"`

	// RecordEvery keeps every n-th step; 0 or 1 keeps all.
	RecordEvery   int  `yaml:"record_every"`
	ValidateState bool `yaml:"validate_state"`
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10,
		Tolerance:     1e-6,
		MinDt:         1e-6,
		MaxDt:         0.1,
		RecordEvery:   1,
		ValidateState: true,
	}
}

type Result struct {
	Times    []float64
	States   []state.Vector
	Energies []float64
	Metrics  map[string]float64
	Errors   []error

	StepsTaken  int
	EnergyDrift float64
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
