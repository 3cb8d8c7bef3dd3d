// Package subsystem provides the per-subsystem dispatch record that plugs
// stage-specific behavior into a system's shared realize sequence.
//
// A [Record] holds a [Table] of optional callbacks, one per realize stage plus
// a few queries. A nil slot is a no-op. Callbacks receive the Record rather
// than closing over implementation data, so a table can be copied between
// records and the data cloned on its own.
//
// Implementations usually do not fill a Table by hand; [Bind] builds one from
// whichever optional interfaces the implementation satisfies:
//
//	type Spring struct{ ... }
//	func (s *Spring) RealizeModel(r *subsystem.Record, st *state.State) error { ... }
//	func (s *Spring) RealizePosition(r *subsystem.Record, v state.View) error { ... }
//
//	rec := subsystem.New("spring", "1.0", &Spring{})
//
// RealizeTopology and RealizeModel get a mutable State and are the only
// callbacks allowed to allocate. Later stages get a [state.View] and may only
// fill cache entries.
package subsystem
