package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/stagesim/internal/config"
	"github.com/san-kum/stagesim/internal/experiment"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

// Scenario is a scripted walk of one system's state through its stages.
// The system comes from Config (a yaml path) or Preset (family/name), or
// the default config when both are empty.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Config      string         `yaml:"config,omitempty"`
	Preset      string         `yaml:"preset,omitempty"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one action. Which fields matter depends on Action:
//
//	realize     Stage
//	invalidate  Stage
//	step        Count (default 1)
//	set_param   Subsystem, Param, Value
//	perturb     Subsystem, Index, Value (added to that subsystem's q)
//	expect      Stage (the system stage must equal it)
type ScenarioStep struct {
	Action    string      `yaml:"action"`
	Stage     stage.Stage `yaml:"stage,omitempty"`
	Subsystem string      `yaml:"subsystem,omitempty"`
	Param     string      `yaml:"param,omitempty"`
	Index     int         `yaml:"index,omitempty"`
	Value     float64     `yaml:"value,omitempty"`
	Count     int         `yaml:"count,omitempty"`
}

// StepResult is where the state stood after a step.
type StepResult struct {
	Action string
	Stage  stage.Stage
	Time   float64
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &scenario, nil
}

// ExperimentConfig resolves the config the scenario runs against.
func (sc *Scenario) ExperimentConfig() (*config.Config, error) {
	switch {
	case sc.Config != "":
		return config.Load(sc.Config)
	case sc.Preset != "":
		family, name, _ := strings.Cut(sc.Preset, "/")
		cfg := config.GetPreset(family, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
		return cfg, nil
	default:
		return config.DefaultConfig(), nil
	}
}

// RunScenario executes the steps against a set-up experiment, writing one
// trace line per step to w. It stops at the first failing step.
func RunScenario(ctx context.Context, sc *Scenario, exp *experiment.Experiment, w io.Writer) ([]StepResult, error) {
	sys, st := exp.System(), exp.State()
	if sys == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	dt := exp.Config().Dt

	results := make([]StepResult, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var err error
		if cerr := state.Catch(func() { err = run(sys, st, exp, step, dt) }); cerr != nil {
			err = cerr
		}
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}

		r := StepResult{Action: step.Action, Stage: st.SystemStage()}
		if r.Stage >= stage.Model {
			r.Time = st.Time()
		}
		results = append(results, r)
		fmt.Fprintf(w, "step %d/%d %-10s -> %-12s t=%.4f\n", i+1, len(sc.Steps), step.Action, r.Stage, r.Time)
	}
	return results, nil
}

func run(sys *system.System, st *state.State, exp *experiment.Experiment, step ScenarioStep, dt float64) error {
	switch step.Action {
	case "realize":
		return sys.Realize(st, step.Stage)
	case "invalidate":
		sys.Invalidate(st, step.Stage)
		return nil
	case "step":
		if st.SystemStage() < stage.Model {
			if err := sys.RealizeModel(st); err != nil {
				return err
			}
		}
		n := max(step.Count, 1)
		integ := exp.Simulator().Integrator()
		for k := 0; k < n; k++ {
			if err := integ.Step(sys, st, dt); err != nil {
				return err
			}
		}
		return nil
	case "set_param":
		return physics.SetParamByName(sys, st, step.Subsystem, step.Param, step.Value)
	case "perturb":
		idx, err := indexOf(sys, step.Subsystem)
		if err != nil {
			return err
		}
		q := st.UpdQOf(idx)
		if step.Index < 0 || step.Index >= len(q) {
			return fmt.Errorf("q index %d out of range [0, %d)", step.Index, len(q))
		}
		q[step.Index] += step.Value
		return nil
	case "expect":
		if got := st.SystemStage(); got != step.Stage {
			return fmt.Errorf("expected system stage %s, have %s", step.Stage, got)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func indexOf(sys *system.System, name string) (int, error) {
	for i := 0; i < sys.NumSubsystems(); i++ {
		if sys.Subsystem(i).Name() == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no subsystem named %s", name)
}
