package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/stagesim/internal/experiment"
	"github.com/san-kum/stagesim/internal/optim"
)

func runSweep(cmd *cobra.Command, args []string) error {
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	names, ranges, err := parseSweep(sweepParams)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err := exp.Setup(); err != nil {
		return err
	}

	best, all, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), exp, sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric))
	for _, c := range all {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(c.Params[n], 'g', 6, 64))
		}
		if c.Err != nil {
			row = append(row, "error: "+c.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(c.Value, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.6g at", sweepMetric, best.Value)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best.Params[n])
	}
	fmt.Println()
	return nil
}

// parseSweep reads flags of the form name=v1,v2,v3.
func parseSweep(flags []string) ([]string, [][]float64, error) {
	var names []string
	var ranges [][]float64
	for _, f := range flags {
		name, list, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("param %q must be name=v1,v2,...", f)
		}
		if slices.Contains(names, name) {
			return nil, nil, fmt.Errorf("param %s given twice", name)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("param %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}
