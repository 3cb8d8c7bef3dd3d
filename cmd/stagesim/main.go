package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/san-kum/stagesim/internal/config"
	"github.com/san-kum/stagesim/internal/system"
)

var (
	dataDir     string
	logLevel    string
	metricsAddr string

	configFile string
	preset     string
	dt         float64
	duration   float64
	integrator string
	adaptive   bool
	tolerance  float64
	seed       int64

	ensembleRuns int
	jitter       float64
	jsonOut      bool

	realizeTo string
	svgFile   string

	sweepParams []string
	sweepMetric string

	phaseCols  string
	sectionCol string
	sectionAt  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "stagesim",
		Short:        "staged state engine for multibody simulation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".stagesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&ensembleRuns, "ensemble", 0, "run n perturbed copies in parallel")
	runCmd.Flags().Float64Var(&jitter, "jitter", 1e-3, "std dev of the q perturbation for ensemble runs")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the run as JSON instead of saving it")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	stagesCmd := &cobra.Command{
		Use:   "stages",
		Short: "realize a system and print its stage table and state",
		Args:  cobra.NoArgs,
		RunE:  showStages,
	}
	addConfigFlags(stagesCmd)
	stagesCmd.Flags().StringVar(&realizeTo, "to", "", "stage to realize to (default from config)")
	stagesCmd.Flags().StringVar(&svgFile, "svg", "", "write the position-stage scene to an svg file")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "step a system through its stages interactively",
		Args:  cobra.NoArgs,
		RunE:  runInspector,
	}
	addConfigFlags(inspectCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search over subsystem params",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "subsystem.param=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimize")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency content, phase portrait and poincaré section of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&phaseCols, "phase", "", "columns x,y for a phase portrait (names or indexes)")
	analyzeCmd.Flags().StringVar(&sectionCol, "section", "", "column whose upward crossings cut a poincaré section")
	analyzeCmd.Flags().Float64Var(&sectionAt, "section-at", 0, "crossing value for --section")

	scriptCmd := &cobra.Command{
		Use:   "script [scenario.yaml]",
		Short: "run a scripted sequence of realize, invalidate and step actions",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [family]",
		Short: "list preset families, or the presets of one family",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	kindsCmd := &cobra.Command{
		Use:   "kinds",
		Short: "list subsystem kinds, integrators and metrics",
		RunE:  listKinds,
	}

	rootCmd.AddCommand(runCmd, stagesCmd, inspectCmd, sweepCmd, scriptCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, kindsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset as family/name, e.g. pendulum/small")
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 10.0, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive step size")
	cmd.Flags().Float64Var(&tolerance, "tol", 1e-6, "error tolerance for adaptive stepping")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for ensemble perturbations")
}

// loadConfig picks the config file, then the preset, then the default, and
// applies any flags the user set on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	case preset != "":
		family, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be family/name, got %q", preset)
		}
		cfg = config.GetPreset(family, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(family))
		}
	default:
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func newMetrics() (*system.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return system.NewMetrics(reg), reg
}
