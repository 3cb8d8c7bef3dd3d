package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/stagesim/internal/automation"
	"github.com/san-kum/stagesim/internal/experiment"
)

func runScript(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	cfg, err := sc.ExperimentConfig()
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err := exp.Setup(); err != nil {
		return err
	}

	if sc.Name != "" {
		slog.Info("running scenario", "name", sc.Name, "steps", len(sc.Steps))
	}
	_, err = automation.RunScenario(cmd.Context(), sc, exp, os.Stdout)
	return err
}
