package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/stagesim/internal/analysis"
	"github.com/san-kum/stagesim/internal/storage"
)

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	rows, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("run %s has too few samples", meta.ID)
	}
	// recorded samples can be unevenly spaced with adaptive stepping
	step := (times[len(times)-1] - times[0]) / float64(len(times)-1)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tFREQ\tPERIOD\tMIN\tMAX")
	for k, name := range meta.Columns {
		series := analysis.Column(rows, k)
		f := analysis.DominantFrequency(series, step)
		period := "-"
		if f > 0 {
			period = fmt.Sprintf("%.4f", 1/f)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%.4g\t%.4g\n", name, f, period, slices.Min(series), slices.Max(series))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if phaseCols == "" {
		return nil
	}
	x, y, err := columnPair(meta.Columns, phaseCols)
	if err != nil {
		return err
	}
	fmt.Printf("\nphase portrait %s vs %s\n", meta.Columns[y], meta.Columns[x])
	fmt.Println(analysis.ToASCII(analysis.PhasePortrait(rows, x, y), 60, 20))

	if sectionCol == "" {
		return nil
	}
	cross, err := columnIndex(meta.Columns, sectionCol)
	if err != nil {
		return err
	}
	pts := analysis.PoincareSection(rows, cross, sectionAt, x, y)
	fmt.Printf("poincaré section at %s = %g (%d crossings)\n", meta.Columns[cross], sectionAt, len(pts))
	if len(pts) > 0 {
		fmt.Println(analysis.ToASCII(pts, 60, 20))
	}
	return nil
}

// columnPair parses "x,y" where each side is a column name or index.
func columnPair(columns []string, spec string) (int, int, error) {
	a, b, ok := strings.Cut(spec, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected two columns, got %q", spec)
	}
	x, err := columnIndex(columns, a)
	if err != nil {
		return 0, 0, err
	}
	y, err := columnIndex(columns, b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func columnIndex(columns []string, s string) (int, error) {
	s = strings.TrimSpace(s)
	if k := slices.Index(columns, s); k >= 0 {
		return k, nil
	}
	k, err := strconv.Atoi(s)
	if err != nil || k < 0 || k >= len(columns) {
		return 0, fmt.Errorf("unknown column %q (have %s)", s, strings.Join(columns, ", "))
	}
	return k, nil
}
