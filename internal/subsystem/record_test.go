package subsystem

import (
	"errors"
	"testing"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

type fakeOwner struct {
	recs []*Record
}

func (o *fakeOwner) Subsystem(i int) *Record {
	if i < 0 || i >= len(o.recs) {
		return nil
	}
	return o.recs[i]
}

func (o *fakeOwner) adopt(r *Record) error {
	if err := r.SetSystem(o, len(o.recs)); err != nil {
		return err
	}
	o.recs = append(o.recs, r)
	return nil
}

type counter struct {
	calls     []stage.Stage
	destructs int
	gain      float64
	failAt    stage.Stage
}

func (c *counter) hit(g stage.Stage) error {
	c.calls = append(c.calls, g)
	if g == c.failAt {
		return errors.New("boom")
	}
	return nil
}

func (c *counter) RealizeTopology(r *Record, s *state.State) error { return c.hit(stage.Topology) }
func (c *counter) RealizeModel(r *Record, s *state.State) error    { return c.hit(stage.Model) }
func (c *counter) RealizePosition(r *Record, v state.View) error   { return c.hit(stage.Position) }
func (c *counter) Destruct(r *Record)                              { c.destructs++ }
func (c *counter) CloneImpl() any                                  { cp := *c; cp.calls = nil; return &cp }

func (c *counter) CalcQUnitWeights(r *Record, v state.View, w state.Vector) error {
	w.Fill(c.gain)
	return nil
}

func TestBind_FillsOnlyImplementedSlots(t *testing.T) {
	tbl := Bind(&counter{})

	if tbl.RealizeTopology == nil || tbl.RealizeModel == nil || tbl.RealizePosition == nil {
		t.Error("implemented realize slots should be bound")
	}
	if tbl.Destruct == nil || tbl.Clone == nil || tbl.CalcQUnitWeights == nil {
		t.Error("implemented query slots should be bound")
	}
	if tbl.RealizeVelocity != nil || tbl.RealizeReport != nil || tbl.CalcUUnitWeights != nil {
		t.Error("unimplemented slots should stay nil")
	}
	if tbl.CalcDecorativeGeometryAndAppend != nil {
		t.Error("decoration slot should stay nil")
	}
}

func TestRealize_DispatchesByStage(t *testing.T) {
	c := &counter{failAt: -1}
	r := New("c", "1", c)
	s := state.New()

	for _, g := range []stage.Stage{stage.Topology, stage.Model, stage.Instance, stage.Position, stage.Report} {
		if err := r.Realize(s, g); err != nil {
			t.Fatalf("realize %v: %v", g, err)
		}
	}

	want := []stage.Stage{stage.Topology, stage.Model, stage.Position}
	if len(c.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, c.calls)
	}
	for i := range want {
		if c.calls[i] != want[i] {
			t.Errorf("call %d: expected %v, got %v", i, want[i], c.calls[i])
		}
	}
}

func TestRealize_EmptyStageRejected(t *testing.T) {
	r := New("c", "1", &counter{failAt: -1})
	if err := r.Realize(state.New(), stage.Empty); err == nil {
		t.Error("expected error for Empty stage")
	}
}

func TestRealize_TopologyMarksCache(t *testing.T) {
	r := New("c", "1", &counter{failAt: -1})
	if r.TopologyCacheValid() {
		t.Fatal("new record should not have a valid topology cache")
	}
	if err := r.Realize(state.New(), stage.Topology); err != nil {
		t.Fatal(err)
	}
	if !r.TopologyCacheValid() {
		t.Error("topology cache should be valid after realize")
	}

	r.InvalidateTopologyCache()
	if r.TopologyCacheValid() {
		t.Error("topology cache should be invalid after invalidation")
	}
}

func TestRealize_TopologyFailureLeavesCacheInvalid(t *testing.T) {
	r := New("c", "1", &counter{failAt: stage.Topology})
	if err := r.Realize(state.New(), stage.Topology); err == nil {
		t.Fatal("expected callback error")
	}
	if r.TopologyCacheValid() {
		t.Error("failed topology realize should not mark the cache")
	}
}

func TestRealize_NilTableIsNoOp(t *testing.T) {
	r := NewWithTable("bare", "0", nil, Table{})
	s := state.New()
	for _, g := range stage.All() {
		if g == stage.Empty {
			continue
		}
		if err := r.Realize(s, g); err != nil {
			t.Errorf("realize %v: %v", g, err)
		}
	}
	if !r.TopologyCacheValid() {
		t.Error("empty topology step should still mark the cache")
	}
}

func TestClone_IndependentTopologyFlag(t *testing.T) {
	orig := New("c", "1", &counter{failAt: -1})
	orig.MarkTopologyRealized()

	cl := orig.Clone()
	cl.MarkTopologyRealized()
	cl.InvalidateTopologyCache()

	if !orig.TopologyCacheValid() {
		t.Error("invalidating the clone changed the original")
	}
}

func TestClone_ResetsMembershipAndDuplicatesImpl(t *testing.T) {
	owner := &fakeOwner{}
	c := &counter{failAt: -1, gain: 2}
	orig := New("c", "1", c)
	if err := owner.adopt(orig); err != nil {
		t.Fatal(err)
	}
	NewHandle(orig)
	orig.MarkTopologyRealized()

	cl := orig.Clone()

	if cl.IsInSystem() || cl.Index() != -1 || cl.System() != nil {
		t.Error("clone should not belong to a system")
	}
	if cl.Handle() != nil {
		t.Error("clone should not have a handle")
	}
	if cl.TopologyCacheValid() {
		t.Error("clone should start with an invalid topology cache")
	}
	if cl.Impl() == orig.Impl() {
		t.Error("clone should hold a duplicated implementation")
	}
	if cl.Name() != "c" || cl.Version() != "1" {
		t.Errorf("clone identity: got %s@%s", cl.Name(), cl.Version())
	}

	w := state.Vector{0, 0}
	if err := cl.CalcQUnitWeights(state.View{}, w); err != nil {
		t.Fatal(err)
	}
	if w[0] != 2 || w[1] != 2 {
		t.Errorf("clone should dispatch to its own impl, got %v", w)
	}
}

func TestClone_WithoutCloneSlotSharesImpl(t *testing.T) {
	impl := struct{ n int }{3}
	orig := NewWithTable("s", "1", &impl, Table{})
	if orig.Clone().Impl() != orig.Impl() {
		t.Error("without a Clone slot the implementation is shared")
	}
}

func TestMembership(t *testing.T) {
	owner := &fakeOwner{}
	a := New("a", "1", &counter{})
	b := New("b", "1", &counter{})

	if a.IsInSystem() {
		t.Error("fresh record should not be in a system")
	}
	if err := owner.adopt(a); err != nil {
		t.Fatal(err)
	}
	if err := owner.adopt(b); err != nil {
		t.Fatal(err)
	}

	if a.Index() != 0 || b.Index() != 1 {
		t.Errorf("indices: got %d, %d", a.Index(), b.Index())
	}
	if !a.IsInSameSystem(b) {
		t.Error("a and b share an owner")
	}
	if a.System() != Owner(owner) {
		t.Error("System should return the owner")
	}

	other := &fakeOwner{}
	if err := other.adopt(a); !errors.Is(err, ErrAlreadyInSystem) {
		t.Errorf("expected ErrAlreadyInSystem, got %v", err)
	}

	// the owner forgetting the record ends membership
	owner.recs[1] = nil
	if b.IsInSystem() || b.Index() != -1 {
		t.Error("stale membership should not be reported")
	}
	if a.IsInSameSystem(b) {
		t.Error("a stale record is not in the same system")
	}
}

func TestDestroy(t *testing.T) {
	c := &counter{}
	r := New("c", "1", c)
	h := NewHandle(r)

	if h.IsEmpty() || h.Record() != r || r.Handle() != h {
		t.Fatal("handle should own the record")
	}

	h.Release()
	r.Destroy()

	if c.destructs != 1 {
		t.Errorf("destruct should run once, ran %d", c.destructs)
	}
	if !h.IsEmpty() {
		t.Error("handle should be empty after release")
	}
	if !r.Destroyed() {
		t.Error("record should report destroyed")
	}
	if err := r.Realize(state.New(), stage.Model); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	if err := r.SetSystem(&fakeOwner{}, 0); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
}

type painter struct{}

func (painter) CalcDecorativeGeometryAndAppend(r *Record, v state.View, g stage.Stage, geom *[]Decoration) error {
	if g != stage.Position {
		return nil
	}
	*geom = append(*geom, Decoration{Kind: Line, To: Vec3{1, 0, 0}, Color: Red})
	return nil
}

func TestDecorations(t *testing.T) {
	r := New("p", "1", painter{})
	var geom []Decoration

	if err := r.CalcDecorativeGeometryAndAppend(state.View{}, stage.Time, &geom); err != nil {
		t.Fatal(err)
	}
	if len(geom) != 0 {
		t.Fatalf("expected nothing at Time, got %v", geom)
	}
	if err := r.CalcDecorativeGeometryAndAppend(state.View{}, stage.Position, &geom); err != nil {
		t.Fatal(err)
	}
	if len(geom) != 1 || geom[0].Kind != Line {
		t.Fatalf("expected one line, got %v", geom)
	}
	if got := geom[0].String(); got != "line [0 0 0]->[1 0 0]" {
		t.Errorf("unexpected rendering %q", got)
	}
}

func TestDecorationKind_String(t *testing.T) {
	if Box.String() != "box" || Frame.String() != "frame" {
		t.Error("unexpected kind names")
	}
	if DecorationKind(42).String() != "decoration(42)" {
		t.Errorf("got %q", DecorationKind(42).String())
	}
}
