package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
	"github.com/san-kum/stagesim/internal/system"
)

// decay is z' = -rate*z with z(0) = 1.
type decay struct {
	rate float64
}

func (d *decay) RealizeModel(r *subsystem.Record, s *state.State) error {
	s.AllocateZ(r.Index(), state.Vector{1})
	return nil
}

func (d *decay) RealizeDynamics(r *subsystem.Record, v state.View) error {
	i := r.Index()
	v.UpdZDotOf(i)[0] = -d.rate * v.ZOf(i)[0]
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDecay(t *testing.T, rate float64, integ string) (*Simulator, *state.State) {
	t.Helper()
	sys := system.New("decay", system.WithLogger(quiet()))
	if _, err := sys.Adopt(subsystem.New("decay", "1", &decay{rate: rate})); err != nil {
		t.Fatal(err)
	}
	st, err := sys.RealizeTopology()
	if err != nil {
		t.Fatal(err)
	}
	in, err := integrators.New(integ)
	if err != nil {
		t.Fatal(err)
	}
	sim := New(sys, in)
	sim.SetLogger(quiet())
	return sim, st
}

func TestSimulatorRun(t *testing.T) {
	sim, st := newDecay(t, 1, "euler")

	result, err := sim.Run(context.Background(), st, Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}

	final := result.States[len(result.States)-1][0]
	expected := math.Exp(-1.0)
	if math.Abs(final-expected) > 0.2 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, final)
	}
	if math.Abs(result.Times[10]-1.0) > 1e-9 {
		t.Errorf("expected to end at t=1, got %f", result.Times[10])
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim, st := newDecay(t, 1, "euler")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"adaptive without tolerance", Config{Dt: 0.1, Duration: 1.0, Adaptive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), st, tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (m *testMetric) Name() string { return "test" }
func (m *testMetric) Observe(sys *system.System, v state.View) {
	m.count++
	m.sum += v.Z()[0]
}
func (m *testMetric) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}
func (m *testMetric) Reset() {
	m.count = 0
	m.sum = 0
}

type stepCounter struct {
	steps []int
}

func (o *stepCounter) OnStep(step int, v state.View) { o.steps = append(o.steps, step) }

func TestSimulatorMetricsAndObservers(t *testing.T) {
	sim, st := newDecay(t, 1, "euler")

	metric := &testMetric{}
	obs := &stepCounter{}
	sim.AddMetric(metric)
	sim.AddObserver(obs)

	result, err := sim.Run(context.Background(), st, Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
	if len(obs.steps) != 10 || obs.steps[9] != 9 {
		t.Errorf("observer should see steps 0..9, got %v", obs.steps)
	}
}

func TestSimulatorRecordEvery(t *testing.T) {
	sim, st := newDecay(t, 1, "rk4")

	result, err := sim.Run(context.Background(), st, Config{Dt: 0.1, Duration: 1.0, RecordEvery: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Times) != 3 {
		t.Errorf("expected initial plus 2 records, got %v", result.Times)
	}
}

func TestSimulatorCancel(t *testing.T) {
	sim, st := newDecay(t, 1, "euler")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sim.Run(ctx, st, Config{Dt: 0.1, Duration: 1.0})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.StepsTaken != 0 {
		t.Error("cancelled run should return the partial result")
	}
}

func TestSimulatorAdaptive(t *testing.T) {
	for _, name := range []string{"rk45", "euler"} {
		t.Run(name, func(t *testing.T) {
			sim, st := newDecay(t, 2, name)
			cfg := Config{Dt: 0.1, Duration: 1.0, Adaptive: true, Tolerance: 1e-6, MinDt: 1e-5, MaxDt: 0.5}

			result, err := sim.Run(context.Background(), st, cfg)
			if err != nil {
				t.Fatal(err)
			}
			last := len(result.Times) - 1
			if math.Abs(result.Times[last]-1.0) > 1e-9 {
				t.Errorf("should stop exactly at the duration, got %f", result.Times[last])
			}
			if got, want := result.States[last][0], math.Exp(-2); math.Abs(got-want) > 1e-3 {
				t.Errorf("expected %f, got %f", want, got)
			}
		})
	}
}

type exploding struct{}

func (exploding) RealizeModel(r *subsystem.Record, s *state.State) error {
	s.AllocateZ(r.Index(), state.Vector{1})
	return nil
}

func (exploding) RealizeDynamics(r *subsystem.Record, v state.View) error {
	v.UpdZDotOf(r.Index())[0] = math.Inf(1)
	return nil
}

func TestSimulatorValidateState(t *testing.T) {
	sys := system.New("boom", system.WithLogger(quiet()))
	if _, err := sys.Adopt(subsystem.New("boom", "1", exploding{})); err != nil {
		t.Fatal(err)
	}
	st, err := sys.RealizeTopology()
	if err != nil {
		t.Fatal(err)
	}
	sim := New(sys, integrators.NewEuler())
	sim.SetLogger(quiet())

	result, err := sim.Run(context.Background(), st, Config{Dt: 0.1, Duration: 1.0, ValidateState: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %v", result.Errors)
	}
	var se SimError
	if !errors.As(result.Errors[0], &se) || se.Step != 0 {
		t.Errorf("expected SimError at step 0, got %v", result.Errors[0])
	}
}

func TestSimulatorEnergyDrift(t *testing.T) {
	sys := system.New("pendulum", system.WithLogger(quiet()))
	if _, err := sys.Adopt(physics.NewPendulumRecord(physics.NewPendulum())); err != nil {
		t.Fatal(err)
	}
	st, err := sys.RealizeTopology()
	if err != nil {
		t.Fatal(err)
	}
	sim := New(sys, integrators.NewRK4())
	sim.SetLogger(quiet())

	result, err := sim.Run(context.Background(), st, Config{Dt: 0.001, Duration: 1.0})
	if err != nil {
		t.Fatal(err)
	}
	if result.EnergyDrift > 1e-6 {
		t.Errorf("rk4 should hold pendulum energy, drift %g", result.EnergyDrift)
	}
	if len(result.Energies) != len(result.Times) {
		t.Error("one energy per record")
	}
}

func TestEnsemble(t *testing.T) {
	sim, _ := newDecay(t, 1, "rk4")
	ens := NewEnsemble(sim, 4)
	ens.SetLimit(2)

	results, err := ens.Run(context.Background(), Config{Dt: 0.1, Duration: 1.0}, func(i int, sys *system.System, st *state.State) error {
		st.UpdZ()[0] = float64(i + 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		want := float64(i+1) * math.Exp(-1)
		got := r.States[len(r.States)-1][0]
		if math.Abs(got-want) > 1e-5 {
			t.Errorf("run %d: expected %f, got %f", i, want, got)
		}
	}
}

func TestEnsemble_PerturbError(t *testing.T) {
	sim, _ := newDecay(t, 1, "euler")
	boom := errors.New("boom")
	_, err := NewEnsemble(sim, 3).Run(context.Background(), Config{Dt: 0.1, Duration: 1.0}, func(i int, _ *system.System, _ *state.State) error {
		if i == 1 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected perturb error, got %v", err)
	}
}
