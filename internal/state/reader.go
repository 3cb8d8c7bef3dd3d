package state

import "github.com/san-kum/stagesim/internal/stage"

// reader carries every operation that is legal through a read-only view:
// getters, dimensions, and cache writes. State and View both embed it.
type reader struct {
	s *State
}

// View is the read-only face of a State handed to Instance..Report realize
// callbacks. Cache values may still be written through it.
type View struct {
	reader
}

func (r reader) requireSystem(op string, g stage.Stage) {
	if r.s.stage < g {
		violate(op, systemWide, ErrStageTooLow, "system is at %s, need %s", r.s.stage, g)
	}
}

// requireSubsystem checks subsystem i and, because pool views are read
// through it, that the pools exist.
func (r reader) requireSubsystem(op string, i int, g stage.Stage) *subsystemSlot {
	ss := r.s.slot(op, i)
	if ss.stage < g {
		violate(op, i, ErrStageTooLow, "subsystem %q is at %s, need %s", ss.name, ss.stage, g)
	}
	r.requireSystem(op, stage.Model)
	return ss
}

func (r reader) NumSubsystems() int { return len(r.s.slots) }

func (r reader) SubsystemName(i int) string {
	return r.s.slot("SubsystemName", i).name
}

func (r reader) SubsystemVersion(i int) string {
	return r.s.slot("SubsystemVersion", i).version
}

func (r reader) SubsystemStage(i int) stage.Stage {
	return r.s.slot("SubsystemStage", i).stage
}

// SystemStage returns the global stage, never above any subsystem's stage.
func (r reader) SystemStage() stage.Stage { return r.s.stage }

// Dimensions, valid once the system is at Model.

func (r reader) NY() int {
	r.requireSystem("NY", stage.Model)
	return len(r.s.y)
}

func (r reader) NQ() int     { r.requireSystem("NQ", stage.Model); return r.s.nq }
func (r reader) NU() int     { r.requireSystem("NU", stage.Model); return r.s.nu }
func (r reader) NZ() int     { r.requireSystem("NZ", stage.Model); return r.s.nz }
func (r reader) QStart() int { r.requireSystem("QStart", stage.Model); return 0 }
func (r reader) UStart() int { r.requireSystem("UStart", stage.Model); return r.s.nq }
func (r reader) ZStart() int { r.requireSystem("ZStart", stage.Model); return r.s.nq + r.s.nu }

func (r reader) NYErr() int {
	r.requireSystem("NYErr", stage.Model)
	return len(r.s.yErr)
}

func (r reader) NQErr() int     { r.requireSystem("NQErr", stage.Model); return r.s.nqErr }
func (r reader) NUErr() int     { r.requireSystem("NUErr", stage.Model); return r.s.nuErr }
func (r reader) QErrStart() int { r.requireSystem("QErrStart", stage.Model); return 0 }
func (r reader) UErrStart() int { r.requireSystem("UErrStart", stage.Model); return r.s.nqErr }
func (r reader) NUDotErr() int  { r.requireSystem("NUDotErr", stage.Model); return len(r.s.uDotErr) }

// Per-subsystem counts need the subsystem at Model; starts need the system.

func (r reader) countOf(op string, i int) *subsystemSlot {
	ss := r.s.slot(op, i)
	if ss.stage < stage.Model {
		violate(op, i, ErrStageTooLow, "subsystem %q is at %s, need %s", ss.name, ss.stage, stage.Model)
	}
	return ss
}

func (r reader) startOf(op string, i int) *subsystemSlot {
	ss := r.s.slot(op, i)
	r.requireSystem(op, stage.Model)
	return ss
}

func (r reader) NQOf(i int) int       { return r.countOf("NQOf", i).nq() }
func (r reader) NUOf(i int) int       { return r.countOf("NUOf", i).nu() }
func (r reader) NZOf(i int) int       { return r.countOf("NZOf", i).nz() }
func (r reader) NQErrOf(i int) int    { return r.countOf("NQErrOf", i).nqErr() }
func (r reader) NUErrOf(i int) int    { return r.countOf("NUErrOf", i).nuErr() }
func (r reader) NUDotErrOf(i int) int { return r.countOf("NUDotErrOf", i).nuDotErr() }

func (r reader) QStartOf(i int) int       { return r.startOf("QStartOf", i).qStart }
func (r reader) UStartOf(i int) int       { return r.startOf("UStartOf", i).uStart }
func (r reader) ZStartOf(i int) int       { return r.startOf("ZStartOf", i).zStart }
func (r reader) QErrStartOf(i int) int    { return r.startOf("QErrStartOf", i).qErrStart }
func (r reader) UErrStartOf(i int) int    { return r.startOf("UErrStartOf", i).uErrStart }
func (r reader) UDotErrStartOf(i int) int { return r.startOf("UDotErrStartOf", i).uDotErrStart }

// window returns v[start:start+n] with capacity clipped so an append cannot
// spill into the next block.
func window(v Vector, start, n int) Vector {
	return v[start : start+n : start+n]
}

func (r reader) qPool() Vector { return window(r.s.y, 0, r.s.nq) }
func (r reader) uPool() Vector { return window(r.s.y, r.s.nq, r.s.nu) }
func (r reader) zPool() Vector { return window(r.s.y, r.s.nq+r.s.nu, r.s.nz) }

// State variables.

func (r reader) Time() float64 {
	r.requireSystem("Time", stage.Model)
	return r.s.t
}

// Y returns Q‖U‖Z.
func (r reader) Y() Vector {
	r.requireSystem("Y", stage.Model)
	return r.s.y
}

func (r reader) Q() Vector { r.requireSystem("Q", stage.Model); return r.qPool() }
func (r reader) U() Vector { r.requireSystem("U", stage.Model); return r.uPool() }
func (r reader) Z() Vector { r.requireSystem("Z", stage.Model); return r.zPool() }

func (r reader) QOf(i int) Vector {
	ss := r.startOf("QOf", i)
	return window(r.s.y, ss.qStart, ss.nq())
}

func (r reader) UOf(i int) Vector {
	ss := r.startOf("UOf", i)
	return window(r.s.y, r.s.nq+ss.uStart, ss.nu())
}

func (r reader) ZOf(i int) Vector {
	ss := r.startOf("ZOf", i)
	return window(r.s.y, r.s.nq+r.s.nu+ss.zStart, ss.nz())
}

func (r reader) NumDiscreteVariables(i int) int {
	return len(r.s.slot("NumDiscreteVariables", i).discrete)
}

func (r reader) DiscreteVariableStage(i, k int) stage.Stage {
	return r.discreteAt("DiscreteVariableStage", i, k).stage
}

func (r reader) discreteAt(op string, i, k int) *discreteVar {
	ss := r.s.slot(op, i)
	if k < 0 || k >= len(ss.discrete) {
		violate(op, i, ErrInvalidIndex, "discrete variable %d of %d", k, len(ss.discrete))
	}
	dv := &ss.discrete[k]
	// variables up to Model are read while the model is being built
	if dv.stage > stage.Model && ss.stage < stage.Model {
		violate(op, i, ErrStageTooLow, "subsystem %q is at %s, need %s", ss.name, ss.stage, stage.Model)
	}
	return dv
}

// DiscreteVariable returns discrete variable k of subsystem i.
func (r reader) DiscreteVariable(i, k int) Value {
	return r.discreteAt("DiscreteVariable", i, k).value
}

// Cache pools. Get requires the defining stage, Upd one stage less.

func (r reader) YDot() Vector {
	r.requireSystem("YDot", stage.Acceleration)
	return r.s.yDot
}

func (r reader) QDot() Vector {
	r.requireSystem("QDot", stage.Velocity)
	return window(r.s.yDot, 0, r.s.nq)
}

func (r reader) UDot() Vector {
	r.requireSystem("UDot", stage.Acceleration)
	return window(r.s.yDot, r.s.nq, r.s.nu)
}

func (r reader) ZDot() Vector {
	r.requireSystem("ZDot", stage.Dynamics)
	return window(r.s.yDot, r.s.nq+r.s.nu, r.s.nz)
}

// QDotDot has its own storage, so a second-order integrator can use it
// without differentiating QDot.
func (r reader) QDotDot() Vector {
	r.requireSystem("QDotDot", stage.Acceleration)
	return r.s.qDotDot
}

// YErr returns QErr‖UErr.
func (r reader) YErr() Vector {
	r.requireSystem("YErr", stage.Velocity)
	return r.s.yErr
}

func (r reader) QErr() Vector {
	r.requireSystem("QErr", stage.Position)
	return window(r.s.yErr, 0, r.s.nqErr)
}

func (r reader) UErr() Vector {
	r.requireSystem("UErr", stage.Velocity)
	return window(r.s.yErr, r.s.nqErr, r.s.nuErr)
}

// UDotErr is not part of YErr.
func (r reader) UDotErr() Vector {
	r.requireSystem("UDotErr", stage.Acceleration)
	return r.s.uDotErr
}

func (r reader) UpdYDot() Vector {
	r.requireSystem("UpdYDot", stage.Acceleration.Prev())
	return r.s.yDot
}

func (r reader) UpdQDot() Vector {
	r.requireSystem("UpdQDot", stage.Velocity.Prev())
	return window(r.s.yDot, 0, r.s.nq)
}

func (r reader) UpdUDot() Vector {
	r.requireSystem("UpdUDot", stage.Acceleration.Prev())
	return window(r.s.yDot, r.s.nq, r.s.nu)
}

func (r reader) UpdZDot() Vector {
	r.requireSystem("UpdZDot", stage.Dynamics.Prev())
	return window(r.s.yDot, r.s.nq+r.s.nu, r.s.nz)
}

func (r reader) UpdQDotDot() Vector {
	r.requireSystem("UpdQDotDot", stage.Acceleration.Prev())
	return r.s.qDotDot
}

func (r reader) UpdYErr() Vector {
	r.requireSystem("UpdYErr", stage.Position.Prev())
	return r.s.yErr
}

func (r reader) UpdQErr() Vector {
	r.requireSystem("UpdQErr", stage.Position.Prev())
	return window(r.s.yErr, 0, r.s.nqErr)
}

func (r reader) UpdUErr() Vector {
	r.requireSystem("UpdUErr", stage.Velocity.Prev())
	return window(r.s.yErr, r.s.nqErr, r.s.nuErr)
}

func (r reader) UpdUDotErr() Vector {
	r.requireSystem("UpdUDotErr", stage.Acceleration.Prev())
	return r.s.uDotErr
}

// Per-subsystem cache views check the subsystem's own stage.

func (r reader) qDotOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.yDot, ss.qStart, ss.nq())
}

func (r reader) uDotOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.yDot, r.s.nq+ss.uStart, ss.nu())
}

func (r reader) zDotOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.yDot, r.s.nq+r.s.nu+ss.zStart, ss.nz())
}

func (r reader) qDotDotOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.qDotDot, ss.qStart, ss.nq())
}

func (r reader) qErrOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.yErr, ss.qErrStart, ss.nqErr())
}

func (r reader) uErrOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.yErr, r.s.nqErr+ss.uErrStart, ss.nuErr())
}

func (r reader) uDotErrOf(op string, i int, g stage.Stage) Vector {
	ss := r.requireSubsystem(op, i, g)
	return window(r.s.uDotErr, ss.uDotErrStart, ss.nuDotErr())
}

func (r reader) QDotOf(i int) Vector    { return r.qDotOf("QDotOf", i, stage.Velocity) }
func (r reader) UDotOf(i int) Vector    { return r.uDotOf("UDotOf", i, stage.Acceleration) }
func (r reader) ZDotOf(i int) Vector    { return r.zDotOf("ZDotOf", i, stage.Dynamics) }
func (r reader) QDotDotOf(i int) Vector { return r.qDotDotOf("QDotDotOf", i, stage.Acceleration) }
func (r reader) QErrOf(i int) Vector    { return r.qErrOf("QErrOf", i, stage.Position) }
func (r reader) UErrOf(i int) Vector    { return r.uErrOf("UErrOf", i, stage.Velocity) }
func (r reader) UDotErrOf(i int) Vector { return r.uDotErrOf("UDotErrOf", i, stage.Acceleration) }

func (r reader) UpdQDotOf(i int) Vector {
	return r.qDotOf("UpdQDotOf", i, stage.Velocity.Prev())
}

func (r reader) UpdUDotOf(i int) Vector {
	return r.uDotOf("UpdUDotOf", i, stage.Acceleration.Prev())
}

func (r reader) UpdZDotOf(i int) Vector {
	return r.zDotOf("UpdZDotOf", i, stage.Dynamics.Prev())
}

func (r reader) UpdQDotDotOf(i int) Vector {
	return r.qDotDotOf("UpdQDotDotOf", i, stage.Acceleration.Prev())
}

func (r reader) UpdQErrOf(i int) Vector {
	return r.qErrOf("UpdQErrOf", i, stage.Position.Prev())
}

func (r reader) UpdUErrOf(i int) Vector {
	return r.uErrOf("UpdUErrOf", i, stage.Velocity.Prev())
}

func (r reader) UpdUDotErrOf(i int) Vector {
	return r.uDotErrOf("UpdUDotErrOf", i, stage.Acceleration.Prev())
}

// Generic cache entries.

func (r reader) NumCacheEntries(i int) int {
	return len(r.s.slot("NumCacheEntries", i).cache)
}

func (r reader) CacheEntryStage(i, k int) stage.Stage {
	return r.cacheAt("CacheEntryStage", i, k).stage
}

func (r reader) cacheAt(op string, i, k int) *cacheEntry {
	ss := r.s.slot(op, i)
	if k < 0 || k >= len(ss.cache) {
		violate(op, i, ErrInvalidIndex, "cache entry %d of %d", k, len(ss.cache))
	}
	return &ss.cache[k]
}

// CacheEntry returns cache entry k of subsystem i. The subsystem must be at
// or above the entry's stage.
func (r reader) CacheEntry(i, k int) Value {
	const op = "CacheEntry"
	ce := r.cacheAt(op, i, k)
	if ss := r.s.slots[i]; ss.stage < ce.stage {
		violate(op, i, ErrStageTooLow, "subsystem %q is at %s, entry %d needs %s", ss.name, ss.stage, k, ce.stage)
	}
	return ce.value
}

// UpdCacheEntry returns cache entry k for writing. It is allowed one stage
// below the entry's stage, while that stage is being realized, and never
// changes any stage.
func (r reader) UpdCacheEntry(i, k int) Value {
	return r.writableCache("UpdCacheEntry", i, k).value
}

// SetCacheEntry replaces the value of cache entry k under the UpdCacheEntry
// rules.
func (r reader) SetCacheEntry(i, k int, v Value) {
	const op = "SetCacheEntry"
	if v == nil {
		violate(op, i, ErrNilValue, "cache entry %d", k)
	}
	r.writableCache(op, i, k).value = v
}

func (r reader) writableCache(op string, i, k int) *cacheEntry {
	ce := r.cacheAt(op, i, k)
	if ss := r.s.slots[i]; ss.stage < ce.stage.Prev() {
		violate(op, i, ErrStageTooLow, "subsystem %q is at %s, entry %d needs %s", ss.name, ss.stage, k, ce.stage.Prev())
	}
	return ce
}
