package physics

import (
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/subsystem"
	"github.com/san-kum/stagesim/internal/system"
)

// Energetic subsystems report mechanical energy once realized to Report.
type Energetic interface {
	Energy(r *subsystem.Record, v state.View) float64
}

// TotalEnergy sums the energy of every Energetic subsystem of sys. v must be
// at Report.
func TotalEnergy(sys *system.System, v state.View) float64 {
	total := 0.0
	for i := 0; i < sys.NumSubsystems(); i++ {
		rec := sys.Subsystem(i)
		if e, ok := rec.Impl().(Energetic); ok {
			total += e.Energy(rec, v)
		}
	}
	return total
}
