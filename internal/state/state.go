package state

import (
	"slices"

	"github.com/san-kum/stagesim/internal/stage"
)

// system-wide operations report this subsystem index in a ContractError.
const systemWide = -1

type vectorAlloc struct {
	init        Vector
	allocatedAt stage.Stage
}

type countAlloc struct {
	n           int
	allocatedAt stage.Stage
}

// discreteVar is a plain state value: set from outside, and every change
// retracts the stages depending on it.
type discreteVar struct {
	stage       stage.Stage
	value       Value
	allocatedAt stage.Stage
	// kept through a model release, waiting to be handed back to the
	// next model realization
	retained bool
}

// cacheEntry is a cache cell: computed by its subsystem and writable through
// a View without retracting anything. init is kept so a cloned State can
// start from the allocation value instead of a computed one.
type cacheEntry struct {
	stage       stage.Stage
	init        Value
	value       Value
	allocatedAt stage.Stage
}

type subsystemSlot struct {
	name    string
	version string

	stage stage.Stage
	// highest stage reached since the model was last built
	highWater stage.Stage

	// whether the slot holds data from a topology or model realization
	topologyBuilt, modelBuilt bool

	q, u, z             []vectorAlloc
	qErr, uErr, uDotErr []countAlloc

	// pool-relative starts, valid once the system is at Model
	qStart, uStart, zStart             int
	qErrStart, uErrStart, uDotErrStart int

	discrete []discreteVar
	cache    []cacheEntry
}

func (ss *subsystemSlot) nq() int       { return vectorLen(ss.q) }
func (ss *subsystemSlot) nu() int       { return vectorLen(ss.u) }
func (ss *subsystemSlot) nz() int       { return vectorLen(ss.z) }
func (ss *subsystemSlot) nqErr() int    { return countLen(ss.qErr) }
func (ss *subsystemSlot) nuErr() int    { return countLen(ss.uErr) }
func (ss *subsystemSlot) nuDotErr() int { return countLen(ss.uDotErr) }

// releaseModel drops every allocation made while the subsystem was at
// Topology or above. Discrete variables tagged Model or lower are model
// inputs, so they are kept and marked for reuse instead.
func (ss *subsystemSlot) releaseModel() {
	built := func(at stage.Stage) bool { return at >= stage.Topology }
	ss.q = slices.DeleteFunc(ss.q, func(a vectorAlloc) bool { return built(a.allocatedAt) })
	ss.u = slices.DeleteFunc(ss.u, func(a vectorAlloc) bool { return built(a.allocatedAt) })
	ss.z = slices.DeleteFunc(ss.z, func(a vectorAlloc) bool { return built(a.allocatedAt) })
	ss.qErr = slices.DeleteFunc(ss.qErr, func(a countAlloc) bool { return built(a.allocatedAt) })
	ss.uErr = slices.DeleteFunc(ss.uErr, func(a countAlloc) bool { return built(a.allocatedAt) })
	ss.uDotErr = slices.DeleteFunc(ss.uDotErr, func(a countAlloc) bool { return built(a.allocatedAt) })
	ss.cache = slices.DeleteFunc(ss.cache, func(c cacheEntry) bool { return built(c.allocatedAt) })
	ss.discrete = slices.DeleteFunc(ss.discrete, func(d discreteVar) bool {
		return built(d.allocatedAt) && d.stage > stage.Model
	})
	for k := range ss.discrete {
		if built(ss.discrete[k].allocatedAt) {
			ss.discrete[k].retained = true
		}
	}
}

func vectorLen(allocs []vectorAlloc) int {
	n := 0
	for _, a := range allocs {
		n += len(a.init)
	}
	return n
}

func countLen(allocs []countAlloc) int {
	n := 0
	for _, a := range allocs {
		n += a.n
	}
	return n
}

// State is the container shared by all subsystems of one system. The zero
// value is not usable; call New.
type State struct {
	reader

	stage stage.Stage
	slots []*subsystemSlot

	// variables
	t          float64
	y          Vector
	nq, nu, nz int

	// cache pools
	yDot, qDotDot Vector
	yErr, uDotErr Vector
	nqErr, nuErr  int
}

// New returns an empty State at stage Empty.
func New() *State {
	s := &State{}
	s.reader = reader{s: s}
	return s
}

// View returns the read-only face of s.
func (s *State) View() View {
	return View{reader: reader{s: s}}
}

// SetNumSubsystems wipes the State and creates n unnamed subsystem slots.
func (s *State) SetNumSubsystems(n int) {
	if n < 0 {
		violate("SetNumSubsystems", systemWide, ErrInvalidIndex, "negative subsystem count %d", n)
	}
	*s = State{}
	s.reader = reader{s: s}
	s.slots = make([]*subsystemSlot, n)
	for i := range s.slots {
		s.slots[i] = &subsystemSlot{}
	}
}

// InitializeSubsystem sets the name and version of an existing slot.
func (s *State) InitializeSubsystem(i int, name, version string) {
	ss := s.slot("InitializeSubsystem", i)
	ss.name = name
	ss.version = version
}

// AddSubsystem registers a new subsystem and returns its index. Name and
// version are stored but never interpreted.
func (s *State) AddSubsystem(name, version string) int {
	s.slots = append(s.slots, &subsystemSlot{name: name, version: version})
	if s.stage > stage.Empty {
		// a new subsystem starts at Empty, so the system can no longer claim more
		s.stage = stage.Empty
	}
	return len(s.slots) - 1
}

func (s *State) slot(op string, i int) *subsystemSlot {
	if i < 0 || i >= len(s.slots) {
		violate(op, i, ErrInvalidIndex, "have %d subsystems", len(s.slots))
	}
	return s.slots[i]
}

func (s *State) openSlot(op string, i int) *subsystemSlot {
	ss := s.slot(op, i)
	if ss.stage >= stage.Model {
		violate(op, i, ErrAllocationClosed, "subsystem %q is already at stage %s", ss.name, ss.stage)
	}
	return ss
}

// AllocateQ appends position variables to subsystem i and returns their
// offset within the subsystem's Q block. QDot and QDotDot slots come with
// them.
func (s *State) AllocateQ(i int, qInit Vector) int {
	ss := s.openSlot("AllocateQ", i)
	off := ss.nq()
	ss.q = append(ss.q, vectorAlloc{init: qInit.Clone(), allocatedAt: ss.stage})
	return off
}

// AllocateU appends velocity variables (and their UDot slots).
func (s *State) AllocateU(i int, uInit Vector) int {
	ss := s.openSlot("AllocateU", i)
	off := ss.nu()
	ss.u = append(ss.u, vectorAlloc{init: uInit.Clone(), allocatedAt: ss.stage})
	return off
}

// AllocateZ appends auxiliary variables (and their ZDot slots).
func (s *State) AllocateZ(i int, zInit Vector) int {
	ss := s.openSlot("AllocateZ", i)
	off := ss.nz()
	ss.z = append(ss.z, vectorAlloc{init: zInit.Clone(), allocatedAt: ss.stage})
	return off
}

func (s *State) allocateCount(op string, i, n int, pick func(*subsystemSlot) *[]countAlloc) int {
	ss := s.openSlot(op, i)
	if n < 0 {
		violate(op, i, ErrInvalidIndex, "negative count %d", n)
	}
	allocs := pick(ss)
	off := countLen(*allocs)
	*allocs = append(*allocs, countAlloc{n: n, allocatedAt: ss.stage})
	return off
}

// AllocateQErr reserves n position-level constraint error slots.
func (s *State) AllocateQErr(i, n int) int {
	return s.allocateCount("AllocateQErr", i, n, func(ss *subsystemSlot) *[]countAlloc { return &ss.qErr })
}

// AllocateUErr reserves n velocity-level constraint error slots.
func (s *State) AllocateUErr(i, n int) int {
	return s.allocateCount("AllocateUErr", i, n, func(ss *subsystemSlot) *[]countAlloc { return &ss.uErr })
}

// AllocateUDotErr reserves n acceleration-level constraint error slots.
func (s *State) AllocateUDotErr(i, n int) int {
	return s.allocateCount("AllocateUDotErr", i, n, func(ss *subsystemSlot) *[]countAlloc { return &ss.uDotErr })
}

// checkTagged enforces the timing rule shared by discrete variables and cache
// entries: a tag up to Model must be allocated before the subsystem reaches
// Model, a later tag before the subsystem has ever been realized to it.
func checkTagged(op string, i int, ss *subsystemSlot, g stage.Stage, v Value) {
	if v == nil {
		violate(op, i, ErrNilValue, "stage %s", g)
	}
	if g <= stage.Model {
		if ss.stage >= stage.Model {
			violate(op, i, ErrAllocationClosed, "%s value requested at subsystem stage %s", g, ss.stage)
		}
		return
	}
	if ss.highWater >= g {
		violate(op, i, ErrAllocationClosed, "subsystem already realized to %s", ss.highWater)
	}
}

// AllocateDiscreteVariable stores v in subsystem i, tagged with the lowest
// stage that depends on it, and returns its slot index. The State takes
// ownership of v. A variable tagged Model or lower that was kept through
// ReleaseModelAllocations is handed back, with its current value, to the
// first request for the same tag instead of allocating a new slot.
func (s *State) AllocateDiscreteVariable(i int, g stage.Stage, v Value) int {
	const op = "AllocateDiscreteVariable"
	ss := s.slot(op, i)
	if g < stage.Topology || g > stage.Highest {
		violate(op, i, ErrInvalidStage, "discrete variable tagged %s", g)
	}
	checkTagged(op, i, ss, g, v)
	for k, dv := range ss.discrete {
		if dv.retained && dv.stage == g {
			ss.discrete[k].retained = false
			return k
		}
	}
	ss.discrete = append(ss.discrete, discreteVar{stage: g, value: v, allocatedAt: ss.stage})
	return len(ss.discrete) - 1
}

// AllocateCacheEntry stores v as a cache cell of subsystem i valid from stage
// g on. g must be at least Model.
func (s *State) AllocateCacheEntry(i int, g stage.Stage, v Value) int {
	const op = "AllocateCacheEntry"
	ss := s.slot(op, i)
	if g < stage.Model || g > stage.Highest {
		violate(op, i, ErrInvalidStage, "cache entry tagged %s", g)
	}
	checkTagged(op, i, ss, g, v)
	ss.cache = append(ss.cache, cacheEntry{stage: g, init: v.Clone(), value: v, allocatedAt: ss.stage})
	return len(ss.cache) - 1
}

// AdvanceSubsystemToStage moves subsystem i up exactly one stage. The target
// is passed so the caller's expectation can be verified.
func (s *State) AdvanceSubsystemToStage(i int, target stage.Stage) {
	const op = "AdvanceSubsystemToStage"
	ss := s.slot(op, i)
	if ss.stage >= stage.Highest || target != ss.stage+1 {
		violate(op, i, ErrOutOfOrderStage, "at %s, asked for %s", ss.stage, target)
	}
	ss.stage = target
	if target > ss.highWater {
		ss.highWater = target
	}
	switch target {
	case stage.Topology:
		ss.topologyBuilt = true
	case stage.Model:
		ss.modelBuilt = true
		for k := range ss.discrete {
			ss.discrete[k].retained = false
		}
	}
}

// TopologyRealized reports whether subsystem i has been realized to Topology
// in this State. Its topology data is kept through any retraction, so a
// driver re-entering Topology advances it without realizing it again.
func (s *State) TopologyRealized(i int) bool {
	return s.slot("TopologyRealized", i).topologyBuilt
}

// ReleaseModelAllocations drops everything subsystem i allocated while it was
// at Topology or above, i.e. during its last model realization and after.
// A driver calls it before realizing the model again so the realization
// does not allocate twice. The subsystem must be below Model; it is a no-op
// when the model was never built.
func (s *State) ReleaseModelAllocations(i int) {
	const op = "ReleaseModelAllocations"
	ss := s.slot(op, i)
	if ss.stage >= stage.Model {
		violate(op, i, ErrAllocationClosed, "subsystem %q is at %s", ss.name, ss.stage)
	}
	if !ss.modelBuilt {
		return
	}
	ss.releaseModel()
	ss.modelBuilt = false
}

// AdvanceSystemToStage moves the system stage up exactly one stage. Every
// subsystem must already be there. Reaching Model packs the global pools.
func (s *State) AdvanceSystemToStage(target stage.Stage) {
	const op = "AdvanceSystemToStage"
	if s.stage >= stage.Highest || target != s.stage+1 {
		violate(op, systemWide, ErrOutOfOrderStage, "at %s, asked for %s", s.stage, target)
	}
	for i, ss := range s.slots {
		if ss.stage < target {
			violate(op, i, ErrStageTooLow, "subsystem %q is at %s, system asked for %s", ss.name, ss.stage, target)
		}
	}
	if target == stage.Model {
		s.pack()
	}
	s.stage = target
}

// InvalidateAll backs every subsystem and the system stage that is at or
// above g to the stage just before g. Lower stages are left alone and no
// data is touched; only the stage markers move. An invalid g does nothing.
func (s *State) InvalidateAll(g stage.Stage) {
	if !g.Valid() {
		return
	}
	back := g.Prev()
	for _, ss := range s.slots {
		if ss.stage >= g {
			ss.stage = back
			if back < stage.Model {
				// the model is being rebuilt
				ss.highWater = back
			}
		}
	}
	if s.stage >= g {
		s.stage = back
	}
}

// pack lays out every subsystem's blocks in index order and rebuilds the
// pools from allocation values.
func (s *State) pack() {
	s.nq, s.nu, s.nz = 0, 0, 0
	s.nqErr, s.nuErr = 0, 0
	nuDotErr := 0
	for _, ss := range s.slots {
		ss.qStart, ss.uStart, ss.zStart = s.nq, s.nu, s.nz
		s.nq += ss.nq()
		s.nu += ss.nu()
		s.nz += ss.nz()

		ss.qErrStart, ss.uErrStart, ss.uDotErrStart = s.nqErr, s.nuErr, nuDotErr
		s.nqErr += ss.nqErr()
		s.nuErr += ss.nuErr()
		nuDotErr += ss.nuDotErr()
	}

	ny := s.nq + s.nu + s.nz
	s.y = make(Vector, ny)
	for _, ss := range s.slots {
		fill(s.y[ss.qStart:], ss.q)
		fill(s.y[s.nq+ss.uStart:], ss.u)
		fill(s.y[s.nq+s.nu+ss.zStart:], ss.z)
	}
	s.t = 0

	s.yDot = make(Vector, ny)
	s.qDotDot = make(Vector, s.nq)
	s.yErr = make(Vector, s.nqErr+s.nuErr)
	s.uDotErr = make(Vector, nuDotErr)
}

func fill(dst Vector, allocs []vectorAlloc) {
	off := 0
	for _, a := range allocs {
		off += copy(dst[off:], a.init)
	}
}

// SetTime sets the time, retracting to Time-1.
func (s *State) SetTime(t float64) {
	*s.UpdTime() = t
}

// UpdTime returns a pointer to the time and retracts to Time-1.
func (s *State) UpdTime() *float64 {
	s.requireSystem("UpdTime", stage.Model)
	s.InvalidateAll(stage.Time)
	return &s.t
}

// UpdY returns the whole continuous state and retracts to Position-1.
func (s *State) UpdY() Vector {
	s.requireSystem("UpdY", stage.Model)
	s.InvalidateAll(stage.Position)
	return s.y
}

// UpdQ retracts to Position-1.
func (s *State) UpdQ() Vector {
	s.requireSystem("UpdQ", stage.Model)
	s.InvalidateAll(stage.Position)
	return s.qPool()
}

// UpdU retracts to Velocity-1.
func (s *State) UpdU() Vector {
	s.requireSystem("UpdU", stage.Model)
	s.InvalidateAll(stage.Velocity)
	return s.uPool()
}

// UpdZ retracts to Dynamics-1.
func (s *State) UpdZ() Vector {
	s.requireSystem("UpdZ", stage.Model)
	s.InvalidateAll(stage.Dynamics)
	return s.zPool()
}

func (s *State) UpdQOf(i int) Vector {
	v := s.reader.QOf(i)
	s.InvalidateAll(stage.Position)
	return v
}

func (s *State) UpdUOf(i int) Vector {
	v := s.reader.UOf(i)
	s.InvalidateAll(stage.Velocity)
	return v
}

func (s *State) UpdZOf(i int) Vector {
	v := s.reader.ZOf(i)
	s.InvalidateAll(stage.Dynamics)
	return v
}

// UpdDiscreteVariable returns the mutable value of discrete variable k and
// retracts everything at or above the variable's stage.
func (s *State) UpdDiscreteVariable(i, k int) Value {
	dv := s.discreteAt("UpdDiscreteVariable", i, k)
	v := dv.value
	s.InvalidateAll(dv.stage)
	return v
}

// SetDiscreteVariable replaces the value of discrete variable k, with the
// same retraction as UpdDiscreteVariable.
func (s *State) SetDiscreteVariable(i, k int, v Value) {
	const op = "SetDiscreteVariable"
	if v == nil {
		violate(op, i, ErrNilValue, "discrete variable %d", k)
	}
	dv := s.discreteAt(op, i, k)
	dv.value = v
	s.InvalidateAll(dv.stage)
}
