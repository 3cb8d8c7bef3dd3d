// Package state implements the shared, staged container that every subsystem
// of one simulated system reads from and writes to.
//
// A [State] tracks one stage per subsystem plus a derived system stage, packs
// continuous state (Q, U, Z) and constraint errors (QErr, UErr, UDotErr) of
// all subsystems into contiguous pools, and stores stage-tagged discrete
// variables and cache entries.
//
// # Lifecycle
//
// Subsystems register with [State.AddSubsystem] and allocate continuous
// variables and error slots while they are below [stage.Model]. Advancing the
// whole system to Model packs every subsystem's blocks, in index order, into
// the global pools:
//
//	Y    = Q ‖ U ‖ Z
//	YErr = QErr ‖ UErr
//
// UDotErr and QDotDot have their own storage.
//
// # Access rules
//
// State variables (Q, U, Z, time, discrete variables) are read with getters
// that require a minimum stage and written with Upd* methods that retract the
// stage of everything depending on them. Cache values are read the same way
// but written through a [View], the read-only face of a State handed to
// realize callbacks; writing a cache value never retracts a stage.
//
// Broken contracts (allocating too late, skipping a stage, reading below the
// defining stage, bad indices) panic with a [*ContractError]. They are
// programming errors and are not meant to be recovered from.
// [State.InvalidateAll] is the only sanctioned way to retract validity.
//
// # Thread Safety
//
// A State is single-writer. Concurrent realization needs external locking.
package state
