package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/stagesim/internal/sim"
	"github.com/san-kum/stagesim/internal/state"
)

// Store keeps each run in its own directory under baseDir: metadata.json
// for the settings and summary, states.csv for the recorded Y history.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Subsystems  []string           `json:"subsystems"`
	Columns     []string           `json:"columns"`
	StepsTaken  int                `json:"steps_taken"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Errors      []string           `json:"errors,omitempty"`
}

// Columns names the entries of Y for a state realized to at least Model,
// as subsystem.q0, subsystem.u0 and so on.
func Columns(v state.View) []string {
	cols := make([]string, v.NY())
	for i := 0; i < v.NumSubsystems(); i++ {
		name := v.SubsystemName(i)
		for k := 0; k < v.NQOf(i); k++ {
			cols[v.QStart()+v.QStartOf(i)+k] = fmt.Sprintf("%s.q%d", name, k)
		}
		for k := 0; k < v.NUOf(i); k++ {
			cols[v.UStart()+v.UStartOf(i)+k] = fmt.Sprintf("%s.u%d", name, k)
		}
		for k := 0; k < v.NZOf(i); k++ {
			cols[v.ZStart()+v.ZStartOf(i)+k] = fmt.Sprintf("%s.z%d", name, k)
		}
	}
	return cols
}

// Save writes a run. ID and Timestamp of meta are filled in; missing
// column names default to y0, y1 and so on.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := s.now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, now.UnixNano())
	meta.Timestamp = now
	meta.StepsTaken = result.StepsTaken
	meta.EnergyDrift = result.EnergyDrift
	meta.Metrics = result.Metrics
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}
	if len(result.States) > 0 && len(meta.Columns) != len(result.States[0]) {
		meta.Columns = make([]string, len(result.States[0]))
		for i := range meta.Columns {
			meta.Columns[i] = fmt.Sprintf("y%d", i)
		}
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if len(result.States) > 0 {
		header := append([]string{"time"}, meta.Columns...)
		header = append(header, "energy")
		if err := w.Write(header); err != nil {
			return "", err
		}
	}
	for i, y := range result.States {
		row := make([]string, 0, len(y)+2)
		row = append(row, strconv.FormatFloat(result.Times[i], 'f', 6, 64))
		for _, val := range y {
			row = append(row, strconv.FormatFloat(val, 'g', 10, 64))
		}
		energy := 0.0
		if i < len(result.Energies) {
			energy = result.Energies[i]
		}
		row = append(row, strconv.FormatFloat(energy, 'g', 10, 64))
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns the stored runs, oldest first. Directories without a
// readable metadata.json are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads back the Y history of a run, without the energy column.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("states.csv row %d: %w", i+1, err)
		}

		y := make([]float64, 0, len(record)-2)
		for _, field := range record[1 : len(record)-1] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("states.csv row %d: %w", i+1, err)
			}
			y = append(y, val)
		}
		times = append(times, t)
		states = append(states, y)
	}

	return states, times, nil
}
