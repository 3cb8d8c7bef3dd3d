package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/stagesim/internal/sim"
)

type ExportData struct {
	Name       string             `json:"name"`
	Integrator string             `json:"integrator"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Columns    []string           `json:"columns"`
	Times      []float64          `json:"times"`
	States     [][]float64        `json:"states"`
	Energies   []float64          `json:"energies"`
	Metrics    map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run as a single JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	data := ExportData{
		Name:       meta.Name,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Duration:   meta.Duration,
		Steps:      result.StepsTaken,
		Columns:    meta.Columns,
		Times:      result.Times,
		States:     make([][]float64, len(result.States)),
		Energies:   result.Energies,
		Metrics:    result.Metrics,
	}
	for i, y := range result.States {
		data.States[i] = y
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
