package subsystem

import (
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

type (
	DestructFunc    func(r *Record)
	CloneFunc       func(r *Record) any
	WritableFunc    func(r *Record, s *state.State) error
	ReadOnlyFunc    func(r *Record, v state.View) error
	UnitWeightsFunc func(r *Record, v state.View, weights state.Vector) error
	DecorationsFunc func(r *Record, v state.View, g stage.Stage, geom *[]Decoration) error
)

// Table is the callback menu of one subsystem. Every slot may be nil.
type Table struct {
	Destruct DestructFunc
	Clone    CloneFunc

	RealizeTopology     WritableFunc
	RealizeModel        WritableFunc
	RealizeInstance     ReadOnlyFunc
	RealizeTime         ReadOnlyFunc
	RealizePosition     ReadOnlyFunc
	RealizeVelocity     ReadOnlyFunc
	RealizeDynamics     ReadOnlyFunc
	RealizeAcceleration ReadOnlyFunc
	RealizeReport       ReadOnlyFunc

	CalcQUnitWeights       UnitWeightsFunc
	CalcUUnitWeights       UnitWeightsFunc
	CalcZUnitWeights       UnitWeightsFunc
	CalcQErrUnitTolerances UnitWeightsFunc
	CalcUErrUnitTolerances UnitWeightsFunc

	CalcDecorativeGeometryAndAppend DecorationsFunc
}

// Optional interfaces recognized by Bind.
type (
	Destructor interface {
		Destruct(r *Record)
	}
	Cloner interface {
		CloneImpl() any
	}
	TopologyRealizer interface {
		RealizeTopology(r *Record, s *state.State) error
	}
	ModelRealizer interface {
		RealizeModel(r *Record, s *state.State) error
	}
	InstanceRealizer interface {
		RealizeInstance(r *Record, v state.View) error
	}
	TimeRealizer interface {
		RealizeTime(r *Record, v state.View) error
	}
	PositionRealizer interface {
		RealizePosition(r *Record, v state.View) error
	}
	VelocityRealizer interface {
		RealizeVelocity(r *Record, v state.View) error
	}
	DynamicsRealizer interface {
		RealizeDynamics(r *Record, v state.View) error
	}
	AccelerationRealizer interface {
		RealizeAcceleration(r *Record, v state.View) error
	}
	ReportRealizer interface {
		RealizeReport(r *Record, v state.View) error
	}
	QWeighter interface {
		CalcQUnitWeights(r *Record, v state.View, w state.Vector) error
	}
	UWeighter interface {
		CalcUUnitWeights(r *Record, v state.View, w state.Vector) error
	}
	ZWeighter interface {
		CalcZUnitWeights(r *Record, v state.View, w state.Vector) error
	}
	QErrTolerancer interface {
		CalcQErrUnitTolerances(r *Record, v state.View, t state.Vector) error
	}
	UErrTolerancer interface {
		CalcUErrUnitTolerances(r *Record, v state.View, t state.Vector) error
	}
	DecorationGenerator interface {
		CalcDecorativeGeometryAndAppend(r *Record, v state.View, g stage.Stage, geom *[]Decoration) error
	}
)

// Bind builds a Table from the optional interfaces impl implements. The
// returned callbacks dispatch through Record.Impl, not through impl itself,
// so the table stays valid for clones of the record.
func Bind(impl any) Table {
	var t Table
	if _, ok := impl.(Destructor); ok {
		t.Destruct = func(r *Record) { r.impl.(Destructor).Destruct(r) }
	}
	if _, ok := impl.(Cloner); ok {
		t.Clone = func(r *Record) any { return r.impl.(Cloner).CloneImpl() }
	}
	if _, ok := impl.(TopologyRealizer); ok {
		t.RealizeTopology = func(r *Record, s *state.State) error {
			return r.impl.(TopologyRealizer).RealizeTopology(r, s)
		}
	}
	if _, ok := impl.(ModelRealizer); ok {
		t.RealizeModel = func(r *Record, s *state.State) error {
			return r.impl.(ModelRealizer).RealizeModel(r, s)
		}
	}
	if _, ok := impl.(InstanceRealizer); ok {
		t.RealizeInstance = func(r *Record, v state.View) error {
			return r.impl.(InstanceRealizer).RealizeInstance(r, v)
		}
	}
	if _, ok := impl.(TimeRealizer); ok {
		t.RealizeTime = func(r *Record, v state.View) error {
			return r.impl.(TimeRealizer).RealizeTime(r, v)
		}
	}
	if _, ok := impl.(PositionRealizer); ok {
		t.RealizePosition = func(r *Record, v state.View) error {
			return r.impl.(PositionRealizer).RealizePosition(r, v)
		}
	}
	if _, ok := impl.(VelocityRealizer); ok {
		t.RealizeVelocity = func(r *Record, v state.View) error {
			return r.impl.(VelocityRealizer).RealizeVelocity(r, v)
		}
	}
	if _, ok := impl.(DynamicsRealizer); ok {
		t.RealizeDynamics = func(r *Record, v state.View) error {
			return r.impl.(DynamicsRealizer).RealizeDynamics(r, v)
		}
	}
	if _, ok := impl.(AccelerationRealizer); ok {
		t.RealizeAcceleration = func(r *Record, v state.View) error {
			return r.impl.(AccelerationRealizer).RealizeAcceleration(r, v)
		}
	}
	if _, ok := impl.(ReportRealizer); ok {
		t.RealizeReport = func(r *Record, v state.View) error {
			return r.impl.(ReportRealizer).RealizeReport(r, v)
		}
	}
	if _, ok := impl.(QWeighter); ok {
		t.CalcQUnitWeights = func(r *Record, v state.View, w state.Vector) error {
			return r.impl.(QWeighter).CalcQUnitWeights(r, v, w)
		}
	}
	if _, ok := impl.(UWeighter); ok {
		t.CalcUUnitWeights = func(r *Record, v state.View, w state.Vector) error {
			return r.impl.(UWeighter).CalcUUnitWeights(r, v, w)
		}
	}
	if _, ok := impl.(ZWeighter); ok {
		t.CalcZUnitWeights = func(r *Record, v state.View, w state.Vector) error {
			return r.impl.(ZWeighter).CalcZUnitWeights(r, v, w)
		}
	}
	if _, ok := impl.(QErrTolerancer); ok {
		t.CalcQErrUnitTolerances = func(r *Record, v state.View, tol state.Vector) error {
			return r.impl.(QErrTolerancer).CalcQErrUnitTolerances(r, v, tol)
		}
	}
	if _, ok := impl.(UErrTolerancer); ok {
		t.CalcUErrUnitTolerances = func(r *Record, v state.View, tol state.Vector) error {
			return r.impl.(UErrTolerancer).CalcUErrUnitTolerances(r, v, tol)
		}
	}
	if _, ok := impl.(DecorationGenerator); ok {
		t.CalcDecorativeGeometryAndAppend = func(r *Record, v state.View, g stage.Stage, geom *[]Decoration) error {
			return r.impl.(DecorationGenerator).CalcDecorativeGeometryAndAppend(r, v, g, geom)
		}
	}
	return t
}
