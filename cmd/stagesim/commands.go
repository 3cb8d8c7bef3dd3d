package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/stagesim/internal/config"
	"github.com/san-kum/stagesim/internal/experiment"
	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/metrics"
	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/storage"
	"github.com/san-kum/stagesim/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, reg := newMetrics()
	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, reg)
		defer stop()
	}

	exp := experiment.New(cfg, experiment.WithLogger(slog.Default()), experiment.WithMetrics(m))
	if err := exp.Setup(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if ensembleRuns > 0 {
		return runEnsemble(ctx, exp)
	}

	columns := storage.Columns(exp.State().View())
	fmt.Fprintf(os.Stderr, "running %s simulation...\n", cfg.Name)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Name:       cfg.Name,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Columns:    columns,
	}
	for i := 0; i < exp.System().NumSubsystems(); i++ {
		meta.Subsystems = append(meta.Subsystems, exp.System().Subsystem(i).Name())
	}

	if jsonOut {
		return storage.ExportJSON(os.Stdout, meta, result)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("energy drift: %.3e\n", result.EnergyDrift)
	for _, e := range result.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	printMetrics(result.Metrics)
	return nil
}

func runEnsemble(ctx context.Context, exp *experiment.Experiment) error {
	start := time.Now()
	results, err := exp.RunEnsemble(ctx, ensembleRuns, jitter)
	if err != nil {
		return err
	}
	fmt.Printf("%d runs completed in %v\n", len(results), time.Since(start))

	drift := make([]float64, len(results))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTEPS\tDRIFT\tFINAL Y0")
	for i, r := range results {
		drift[i] = r.EnergyDrift
		final := r.States[len(r.States)-1]
		fmt.Fprintf(w, "%d\t%d\t%.3e\t%.6f\n", i, r.StepsTaken, r.EnergyDrift, final[0])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("drift " + viz.Sparkline(drift, min(len(drift), 60)))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func printMetrics(ms map[string]float64) {
	if len(ms) == 0 {
		return
	}
	names := make([]string, 0, len(ms))
	for name := range ms {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, ms[name])
	}
}

func showStages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target := cfg.RealizeTo
	if realizeTo != "" {
		if target, err = stage.Parse(realizeTo); err != nil {
			return err
		}
	}

	exp := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err := exp.Setup(); err != nil {
		return err
	}
	sys, st := exp.System(), exp.State()

	var realizeErr error
	if cerr := state.Catch(func() { realizeErr = sys.Realize(st, target) }); cerr != nil {
		realizeErr = cerr
	}

	styles := viz.NewStyles(viz.ThemeMinimal)
	fmt.Println(viz.StageTable(st.View(), styles))
	fmt.Println(viz.StateDump(st.View(), styles))
	if realizeErr != nil {
		return realizeErr
	}

	if st.SystemStage() >= stage.Position {
		canvas, err := viz.Scene(sys, st.View(), 40, 16)
		if err != nil {
			return err
		}
		fmt.Println(canvas.String())
		if svgFile != "" {
			f, err := os.Create(svgFile)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := viz.WriteSVG(f, canvas, 4, "#00ff00"); err != nil {
				return err
			}
			fmt.Printf("scene written to %s\n", svgFile)
		}
	} else if svgFile != "" {
		return fmt.Errorf("svg needs a state at position or above, have %s", st.SystemStage())
	}
	return nil
}

func runInspector(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// keep the logger off the terminal the program draws on
	logger := slog.New(slog.DiscardHandler)
	exp := experiment.New(cfg, experiment.WithLogger(logger))
	if err := exp.Setup(); err != nil {
		return err
	}

	m := viz.NewInspector(exp.System(), exp.State(), exp.Simulator().Integrator(), cfg.Dt)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if ins, ok := final.(viz.Inspector); ok && ins.Err() != nil {
		return ins.Err()
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tDT\tINTEG\tSTEPS\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\t%.2e\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.StepsTaken,
			run.EnergyDrift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("subsystems: %v\n", meta.Subsystems)
	fmt.Printf("samples: %d\n\n", len(states))

	numVars := min(len(states[0]), 6)
	for k := 0; k < numVars; k++ {
		data := make([]float64, len(states))
		for i := range states {
			if k < len(states[i]) {
				data[i] = states[i][k]
			}
		}

		caption := fmt.Sprintf("y%d vs time", k)
		if k < len(meta.Columns) {
			caption = meta.Columns[k] + " vs time"
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	result := &sim.Result{
		Times:       times,
		States:      make([]state.Vector, len(states)),
		Metrics:     meta.Metrics,
		StepsTaken:  meta.StepsTaken,
		EnergyDrift: meta.EnergyDrift,
	}
	for i, y := range states {
		result.States[i] = y
	}
	return storage.ExportJSON(os.Stdout, *meta, result)
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, family := range config.Families() {
			fmt.Printf("%s: %v\n", family, config.ListPresets(family))
		}
		return nil
	}

	family := args[0]
	names := config.ListPresets(family)
	if names == nil {
		return fmt.Errorf("unknown preset family: %s (available: %v)", family, config.Families())
	}
	for _, name := range names {
		cfg := config.GetPreset(family, name)
		fmt.Printf("%-12s %-8s dt=%-6g t=%-5g %d subsystem(s)\n",
			name, cfg.Integrator, cfg.Dt, cfg.Duration, len(cfg.Subsystems))
	}
	return nil
}

func listKinds(cmd *cobra.Command, args []string) error {
	fmt.Printf("subsystems:  %v\n", experiment.NewRegistry().ListKinds())
	fmt.Printf("integrators: %v\n", integrators.Names())
	fmt.Printf("metrics:     %v\n", metrics.Names())
	return nil
}
