// Package viz renders states for the terminal.
//
// [StageTable] and [StateDump] print where every subsystem stands in the
// stage ladder and what its variables and cache hold. [Scene] draws the
// decorative geometry of a system onto a Braille [Canvas], which
// [WriteSVG] can export.
//
// [Inspector] is a Bubble Tea model that steps a state through its stages
// interactively.
//
// # Key Bindings
//
//	→ / l  realize the next stage
//	← / h  invalidate the current stage
//	r      realize through Report
//	s      take one integrator step
//	p / P  nudge q0 up or down
//	d      toggle the state and cache dump
//	t      cycle color themes
//	q      quit
package viz
