package subsystem

import (
	"errors"
	"fmt"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

var (
	ErrAlreadyInSystem = errors.New("subsystem: already belongs to a system")
	ErrNotInSystem     = errors.New("subsystem: not in a system")
	ErrDestroyed       = errors.New("subsystem: record destroyed")
)

// Owner is the system a Record belongs to. The record only holds the owner
// and its index; membership is confirmed against the owner on every use, so
// a record dropped or replaced by its system stops reporting membership.
type Owner interface {
	Subsystem(i int) *Record
}

// Record is the dispatch record of one subsystem.
type Record struct {
	name    string
	version string

	owner  Owner
	index  int
	handle *Handle

	table Table
	impl  any

	topologyValid bool
	destroyed     bool
}

// New creates a record whose table is bound from impl's optional interfaces.
func New(name, version string, impl any) *Record {
	return NewWithTable(name, version, impl, Bind(impl))
}

func NewWithTable(name, version string, impl any, t Table) *Record {
	return &Record{name: name, version: version, index: -1, table: t, impl: impl}
}

func (r *Record) Name() string    { return r.name }
func (r *Record) Version() string { return r.version }
func (r *Record) Impl() any       { return r.impl }
func (r *Record) Table() Table    { return r.table }

// SetSystem records membership. A record joins at most one system.
func (r *Record) SetSystem(owner Owner, idx int) error {
	if r.destroyed {
		return ErrDestroyed
	}
	if r.owner != nil {
		return fmt.Errorf("%w: %s at index %d", ErrAlreadyInSystem, r.name, r.index)
	}
	if owner == nil || idx < 0 {
		return fmt.Errorf("subsystem: invalid owner or index %d", idx)
	}
	r.owner, r.index = owner, idx
	return nil
}

func (r *Record) IsInSystem() bool {
	return r.owner != nil && r.owner.Subsystem(r.index) == r
}

func (r *Record) IsInSameSystem(other *Record) bool {
	return other != nil && r.IsInSystem() && other.IsInSystem() && r.owner == other.owner
}

// System returns the owner, or nil when the record is not a live member.
func (r *Record) System() Owner {
	if !r.IsInSystem() {
		return nil
	}
	return r.owner
}

// Index returns the subsystem index, or -1 when not a live member.
func (r *Record) Index() int {
	if !r.IsInSystem() {
		return -1
	}
	return r.index
}

func (r *Record) SetHandle(h *Handle) { r.handle = h }
func (r *Record) Handle() *Handle     { return r.handle }
func (r *Record) ClearHandle()        { r.handle = nil }

func (r *Record) InvalidateTopologyCache() { r.topologyValid = false }
func (r *Record) TopologyCacheValid() bool { return r.topologyValid }
func (r *Record) MarkTopologyRealized()    { r.topologyValid = true }

// Clone returns a detached copy. The table is shared, the implementation
// is duplicated through the Clone slot (or shared when the slot is nil),
// and membership, handle and the topology flag start out cleared.
func (r *Record) Clone() *Record {
	c := &Record{
		name:    r.name,
		version: r.version,
		index:   -1,
		table:   r.table,
		impl:    r.impl,
	}
	if r.table.Clone != nil {
		c.impl = r.table.Clone(r)
	}
	return c
}

// Destroy runs the Destruct slot once and detaches the record.
func (r *Record) Destroy() {
	if r.destroyed {
		return
	}
	if r.table.Destruct != nil {
		r.table.Destruct(r)
	}
	if r.handle != nil && r.handle.rec == r {
		r.handle.rec = nil
	}
	r.handle = nil
	r.owner, r.index = nil, -1
	r.topologyValid = false
	r.destroyed = true
}

func (r *Record) Destroyed() bool { return r.destroyed }

// Realize runs the callback for stage g. Topology and Model callbacks get
// the writable state; later stages see it read-only.
func (r *Record) Realize(s *state.State, g stage.Stage) error {
	if r.destroyed {
		return ErrDestroyed
	}
	var err error
	switch g {
	case stage.Topology:
		if f := r.table.RealizeTopology; f != nil {
			err = f(r, s)
		}
		if err == nil {
			r.MarkTopologyRealized()
		}
	case stage.Model:
		err = r.writable(r.table.RealizeModel, s)
	case stage.Instance:
		err = r.readOnly(r.table.RealizeInstance, s)
	case stage.Time:
		err = r.readOnly(r.table.RealizeTime, s)
	case stage.Position:
		err = r.readOnly(r.table.RealizePosition, s)
	case stage.Velocity:
		err = r.readOnly(r.table.RealizeVelocity, s)
	case stage.Dynamics:
		err = r.readOnly(r.table.RealizeDynamics, s)
	case stage.Acceleration:
		err = r.readOnly(r.table.RealizeAcceleration, s)
	case stage.Report:
		err = r.readOnly(r.table.RealizeReport, s)
	default:
		return fmt.Errorf("subsystem %s: no realize step for stage %v", r.name, g)
	}
	return err
}

func (r *Record) writable(f WritableFunc, s *state.State) error {
	if f == nil {
		return nil
	}
	return f(r, s)
}

func (r *Record) readOnly(f ReadOnlyFunc, s *state.State) error {
	if f == nil {
		return nil
	}
	return f(r, s.View())
}

func (r *Record) calc(f UnitWeightsFunc, v state.View, w state.Vector) error {
	if f == nil {
		return nil
	}
	return f(r, v, w)
}

// The Calc* queries fill w, which is this subsystem's window of the
// corresponding system vector. A nil slot leaves w untouched.

func (r *Record) CalcQUnitWeights(v state.View, w state.Vector) error {
	return r.calc(r.table.CalcQUnitWeights, v, w)
}

func (r *Record) CalcUUnitWeights(v state.View, w state.Vector) error {
	return r.calc(r.table.CalcUUnitWeights, v, w)
}

func (r *Record) CalcZUnitWeights(v state.View, w state.Vector) error {
	return r.calc(r.table.CalcZUnitWeights, v, w)
}

func (r *Record) CalcQErrUnitTolerances(v state.View, t state.Vector) error {
	return r.calc(r.table.CalcQErrUnitTolerances, v, t)
}

func (r *Record) CalcUErrUnitTolerances(v state.View, t state.Vector) error {
	return r.calc(r.table.CalcUErrUnitTolerances, v, t)
}

func (r *Record) CalcDecorativeGeometryAndAppend(v state.View, g stage.Stage, geom *[]Decoration) error {
	if f := r.table.CalcDecorativeGeometryAndAppend; f != nil {
		return f(r, v, g, geom)
	}
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("%s@%s[%d]", r.name, r.version, r.Index())
}
