package state_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"

	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
)

func violates(err error) types.GomegaMatcher {
	return PanicWith(MatchError(err))
}

// realizeTo walks every subsystem and then the system up to target, one
// stage at a time, the way a driver does.
func realizeTo(s *state.State, target stage.Stage) {
	for g := s.SystemStage() + 1; g <= target; g++ {
		for i := 0; i < s.NumSubsystems(); i++ {
			if s.SubsystemStage(i) < g {
				s.AdvanceSubsystemToStage(i, g)
			}
		}
		s.AdvanceSystemToStage(g)
	}
}

var _ = Describe("State", func() {
	var (
		s    *state.State
		a, b int
	)

	BeforeEach(func() {
		s = state.New()
		a = s.AddSubsystem("A", "1.0")
		b = s.AddSubsystem("B", "2.0")
	})

	Describe("subsystem registry", func() {
		It("stores names and versions without interpreting them", func() {
			Expect(s.NumSubsystems()).To(Equal(2))
			Expect(s.SubsystemName(b)).To(Equal("B"))
			Expect(s.SubsystemVersion(a)).To(Equal("1.0"))
			Expect(s.SubsystemStage(a)).To(Equal(stage.Empty))
			Expect(s.SystemStage()).To(Equal(stage.Empty))
		})

		It("rejects unknown subsystem indices", func() {
			Expect(func() { s.SubsystemStage(5) }).To(violates(state.ErrInvalidIndex))
			Expect(func() { s.AllocateQ(-1, state.Vector{1}) }).To(violates(state.ErrInvalidIndex))
		})

		It("wipes everything on SetNumSubsystems", func() {
			realizeTo(s, stage.Model)
			s.SetNumSubsystems(3)
			s.InitializeSubsystem(2, "C", "0.1")
			Expect(s.NumSubsystems()).To(Equal(3))
			Expect(s.SubsystemName(2)).To(Equal("C"))
			Expect(s.SystemStage()).To(Equal(stage.Empty))
		})
	})

	Describe("stage advancement", func() {
		It("advances a subsystem only to the next stage", func() {
			s.AdvanceSubsystemToStage(a, stage.Topology)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Topology))

			Expect(func() { s.AdvanceSubsystemToStage(a, stage.Instance) }).To(violates(state.ErrOutOfOrderStage))
			Expect(func() { s.AdvanceSubsystemToStage(a, stage.Topology) }).To(violates(state.ErrOutOfOrderStage))
			Expect(s.SubsystemStage(a)).To(Equal(stage.Topology))
		})

		It("never lets the system stage pass the lowest subsystem", func() {
			s.AdvanceSubsystemToStage(a, stage.Topology)
			Expect(func() { s.AdvanceSystemToStage(stage.Topology) }).To(violates(state.ErrStageTooLow))
			Expect(s.SystemStage()).To(Equal(stage.Empty))

			s.AdvanceSubsystemToStage(b, stage.Topology)
			s.AdvanceSystemToStage(stage.Topology)
			Expect(s.SystemStage()).To(Equal(stage.Topology))

			s.AdvanceSubsystemToStage(a, stage.Model)
			Expect(func() { s.AdvanceSystemToStage(stage.Model) }).To(violates(state.ErrStageTooLow))
		})

		It("does not let the system skip stages", func() {
			realizeTo(s, stage.Topology)
			s.AdvanceSubsystemToStage(a, stage.Model)
			s.AdvanceSubsystemToStage(b, stage.Model)
			s.AdvanceSubsystemToStage(a, stage.Instance)
			s.AdvanceSubsystemToStage(b, stage.Instance)
			Expect(func() { s.AdvanceSystemToStage(stage.Instance) }).To(violates(state.ErrOutOfOrderStage))
		})

		It("resets the system stage when a subsystem joins late", func() {
			realizeTo(s, stage.Topology)
			s.AddSubsystem("late", "")
			Expect(s.SystemStage()).To(Equal(stage.Empty))
		})
	})

	Describe("InvalidateAll", func() {
		BeforeEach(func() {
			s.AllocateQ(a, state.Vector{0})
			realizeTo(s, stage.Dynamics)
			s.AdvanceSubsystemToStage(a, stage.Acceleration)
		})

		It("backs every stage at or above the target to exactly one below it", func() {
			s.InvalidateAll(stage.Velocity)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Position))
			Expect(s.SubsystemStage(b)).To(Equal(stage.Position))
			Expect(s.SystemStage()).To(Equal(stage.Position))
		})

		It("leaves stages already below the target alone", func() {
			s.InvalidateAll(stage.Acceleration)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Dynamics))
			Expect(s.SubsystemStage(b)).To(Equal(stage.Dynamics))
			Expect(s.SystemStage()).To(Equal(stage.Dynamics))
		})

		It("retracts a single step, not a cascade", func() {
			s.InvalidateAll(stage.Dynamics)
			s.InvalidateAll(stage.Dynamics)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Velocity))
			Expect(s.SystemStage()).To(Equal(stage.Velocity))
		})

		It("keeps data while only the validity marker changes", func() {
			s.UpdQOf(a)[0] = 3
			realizeTo(s, stage.Velocity)
			s.InvalidateAll(stage.Position)
			Expect(s.SystemStage()).To(Equal(stage.Time))
			Expect(s.Q()).To(Equal(state.Vector{3}))
		})

		It("takes the pools out of reach when the topology is invalidated", func() {
			s.InvalidateAll(stage.Topology)
			Expect(s.SystemStage()).To(Equal(stage.Empty))
			Expect(func() { s.Q() }).To(violates(state.ErrStageTooLow))
		})

		It("keeps every subsystem's allocations when the topology is invalidated", func() {
			s.InvalidateAll(stage.Topology)
			Expect(s.TopologyRealized(a)).To(BeTrue())
			Expect(s.TopologyRealized(b)).To(BeTrue())
			realizeTo(s, stage.Model)
			Expect(s.NQ()).To(Equal(1))
			Expect(s.QOf(a)).To(Equal(state.Vector{0}))
		})

		It("ignores a stage outside the order", func() {
			s.InvalidateAll(stage.Stage(-1))
			s.InvalidateAll(stage.Highest + 1)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Acceleration))
			Expect(s.SubsystemStage(b)).To(Equal(stage.Dynamics))
			Expect(s.SystemStage()).To(Equal(stage.Dynamics))
		})
	})

	Describe("packing", func() {
		It("packs the two-subsystem scenario in index order", func() {
			s.AllocateQ(a, state.Vector{0.5})
			s.AllocateU(a, state.Vector{-1})
			s.AllocateQ(b, state.Vector{1, 2})
			realizeTo(s, stage.Model)

			Expect(s.NQ()).To(Equal(3))
			Expect(s.NU()).To(Equal(1))
			Expect(s.NZ()).To(Equal(0))
			Expect(s.QStartOf(a)).To(Equal(0))
			Expect(s.QStartOf(b)).To(Equal(1))
			Expect(s.NQOf(b)).To(Equal(2))
			Expect(s.NUOf(b)).To(Equal(0))
			Expect(s.Y()).To(Equal(state.Vector{0.5, 1, 2, -1}))
			Expect(s.QOf(b)).To(Equal(state.Vector{1, 2}))
			Expect(s.UOf(a)).To(Equal(state.Vector{-1}))
		})

		It("keeps blocks disjoint, ordered and exactly covering each pool", func() {
			c := s.AddSubsystem("C", "")
			s.AllocateQ(a, state.Vector{1})
			s.AllocateQ(b, state.Vector{2, 3})
			s.AllocateQ(c, state.Vector{4})
			s.AllocateQ(a, state.Vector{5})
			s.AllocateZ(b, state.Vector{6})
			s.AllocateU(c, state.Vector{7, 8})
			s.AllocateQErr(a, 1)
			s.AllocateQErr(c, 2)
			s.AllocateUErr(b, 1)
			s.AllocateUDotErr(b, 2)
			realizeTo(s, stage.Model)

			var q, u, z state.Vector
			next := 0
			for i := 0; i < s.NumSubsystems(); i++ {
				Expect(s.QStartOf(i)).To(Equal(next))
				next += s.NQOf(i)
				q = append(q, s.QOf(i)...)
				u = append(u, s.UOf(i)...)
				z = append(z, s.ZOf(i)...)
			}
			Expect(next).To(Equal(s.NQ()))
			Expect(q).To(Equal(state.Vector{1, 5, 2, 3, 4}))
			Expect(s.Q()).To(Equal(q))
			Expect(s.U()).To(Equal(u))
			Expect(s.Z()).To(Equal(z))

			y := append(append(q.Clone(), u...), z...)
			Expect(s.Y()).To(Equal(y))
			Expect(s.ZStart()).To(Equal(s.NQ() + s.NU()))

			Expect(s.NYErr()).To(Equal(4))
			Expect(s.QErrStartOf(c)).To(Equal(1))
			Expect(s.UErrStart()).To(Equal(3))
			Expect(s.NUDotErr()).To(Equal(2))
		})

		It("lays out YErr as QErr followed by UErr and keeps UDotErr apart", func() {
			s.AllocateQErr(a, 1)
			s.AllocateUErr(b, 2)
			s.AllocateUDotErr(a, 1)
			realizeTo(s, stage.Time)

			v := s.View()
			v.UpdQErrOf(a)[0] = 1
			s.AdvanceSubsystemToStage(a, stage.Position)
			s.AdvanceSubsystemToStage(b, stage.Position)
			s.AdvanceSystemToStage(stage.Position)
			v.UpdUErrOf(b)[0] = 2
			v.UpdUErrOf(b)[1] = 3
			realizeTo(s, stage.Dynamics)
			v.UpdUDotErr()[0] = 99
			realizeTo(s, stage.Acceleration)

			Expect(s.YErr()).To(Equal(state.Vector{1, 2, 3}))
			Expect(s.QErr()).To(Equal(state.Vector{1}))
			Expect(s.UErr()).To(Equal(state.Vector{2, 3}))
			Expect(s.UDotErr()).To(Equal(state.Vector{99}))
		})

		It("clips block capacity so appends cannot overwrite neighbours", func() {
			s.AllocateQ(a, state.Vector{1})
			s.AllocateQ(b, state.Vector{2})
			realizeTo(s, stage.Model)

			qa := s.QOf(a)
			_ = append(qa, 42)
			Expect(s.QOf(b)).To(Equal(state.Vector{2}))
		})
	})

	Describe("allocation windows", func() {
		It("closes continuous and error allocation at Model", func() {
			realizeTo(s, stage.Topology)
			s.AdvanceSubsystemToStage(a, stage.Model)

			Expect(func() { s.AllocateQ(a, state.Vector{1}) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateU(a, state.Vector{1}) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateZ(a, state.Vector{1}) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateQErr(a, 1) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateUErr(a, 1) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateUDotErr(a, 1) }).To(violates(state.ErrAllocationClosed))

			Expect(s.AllocateQ(b, state.Vector{1, 2})).To(Equal(0))
			Expect(s.AllocateQ(b, state.Vector{3})).To(Equal(2))
		})

		It("returns stable per-subsystem slot indices", func() {
			Expect(s.AllocateQErr(a, 2)).To(Equal(0))
			Expect(s.AllocateQErr(a, 1)).To(Equal(2))
			Expect(s.AllocateDiscreteVariable(a, stage.Instance, state.NewBox(1.0))).To(Equal(0))
			Expect(s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(2))).To(Equal(1))
			Expect(s.AllocateCacheEntry(b, stage.Dynamics, state.NewBox(0.0))).To(Equal(0))
		})

		It("requires Model-stage discrete variables before Model", func() {
			realizeTo(s, stage.Model)
			Expect(func() { s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(1)) }).To(violates(state.ErrAllocationClosed))
			Expect(func() { s.AllocateDiscreteVariable(a, stage.Topology, state.NewBox(1)) }).To(violates(state.ErrAllocationClosed))
		})

		It("allows later-stage variables until that stage has been realized", func() {
			realizeTo(s, stage.Instance)
			Expect(s.AllocateDiscreteVariable(a, stage.Time, state.NewBox(1.0))).To(Equal(0))
			Expect(func() { s.AllocateDiscreteVariable(a, stage.Instance, state.NewBox(1.0)) }).To(violates(state.ErrAllocationClosed))

			realizeTo(s, stage.Position)
			s.InvalidateAll(stage.Time)
			Expect(func() { s.AllocateCacheEntry(a, stage.Position, state.NewBox(0.0)) }).To(violates(state.ErrAllocationClosed))
			Expect(s.AllocateCacheEntry(a, stage.Velocity, state.NewBox(0.0))).To(Equal(0))
		})

		It("reopens allocation when the model is invalidated", func() {
			s.AllocateQ(a, state.Vector{1})
			realizeTo(s, stage.Position)
			s.InvalidateAll(stage.Model)
			Expect(s.SubsystemStage(a)).To(Equal(stage.Topology))

			s.AllocateQ(a, state.Vector{2})
			s.AllocateCacheEntry(a, stage.Position, state.NewBox(0.0))
			realizeTo(s, stage.Model)
			Expect(s.QOf(a)).To(Equal(state.Vector{1, 2}))
		})

		It("releases what the model realization allocated only when asked to", func() {
			s.AllocateQ(a, state.Vector{1})
			realizeTo(s, stage.Topology)
			s.AllocateQ(a, state.Vector{7, 8})
			entry := s.AllocateCacheEntry(a, stage.Dynamics, state.NewBox(0.0))
			realizeTo(s, stage.Model)
			Expect(s.NQOf(a)).To(Equal(3))
			Expect(s.NumCacheEntries(a)).To(Equal(entry + 1))

			s.InvalidateAll(stage.Model)
			Expect(s.NumCacheEntries(a)).To(Equal(entry + 1))

			s.ReleaseModelAllocations(a)
			Expect(s.NumCacheEntries(a)).To(Equal(0))
			s.AllocateQ(a, state.Vector{9})
			realizeTo(s, stage.Model)
			Expect(s.QOf(a)).To(Equal(state.Vector{1, 9}))
		})

		It("hands kept model inputs back to the next model realization", func() {
			realizeTo(s, stage.Topology)
			mass := s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(1.0))
			gain := s.AllocateDiscreteVariable(a, stage.Instance, state.NewBox(0.5))
			realizeTo(s, stage.Instance)

			s.SetDiscreteVariable(a, mass, state.NewBox(4.0))
			Expect(s.SubsystemStage(a)).To(Equal(stage.Topology))
			s.ReleaseModelAllocations(a)
			Expect(s.NumDiscreteVariables(a)).To(Equal(1))

			Expect(s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(1.0))).To(Equal(mass))
			Expect(s.DiscreteVariable(a, mass).String()).To(Equal("4"))
			Expect(s.AllocateDiscreteVariable(a, stage.Instance, state.NewBox(0.5))).To(Equal(gain))
			Expect(s.NumDiscreteVariables(a)).To(Equal(2))
		})

		It("refuses to release a model that is still realized", func() {
			realizeTo(s, stage.Model)
			Expect(func() { s.ReleaseModelAllocations(a) }).To(violates(state.ErrAllocationClosed))
		})

		It("releases nothing for a model that was never built", func() {
			realizeTo(s, stage.Topology)
			s.AllocateQ(a, state.Vector{5})
			s.ReleaseModelAllocations(a)
			realizeTo(s, stage.Model)
			Expect(s.QOf(a)).To(Equal(state.Vector{5}))
		})

		It("rejects cache entries below Model and discrete variables at Empty", func() {
			Expect(func() { s.AllocateCacheEntry(a, stage.Topology, state.NewBox(0)) }).To(violates(state.ErrInvalidStage))
			Expect(func() { s.AllocateDiscreteVariable(a, stage.Empty, state.NewBox(0)) }).To(violates(state.ErrInvalidStage))
			Expect(func() { s.AllocateCacheEntry(a, stage.Model, nil) }).To(violates(state.ErrNilValue))
		})
	})

	Describe("state variable access", func() {
		BeforeEach(func() {
			s.AllocateQ(a, state.Vector{1})
			s.AllocateU(a, state.Vector{2})
			s.AllocateZ(b, state.Vector{3})
		})

		It("refuses reads before the pools exist", func() {
			realizeTo(s, stage.Topology)
			Expect(func() { s.Y() }).To(violates(state.ErrStageTooLow))
			Expect(func() { s.Time() }).To(violates(state.ErrStageTooLow))
			Expect(func() { s.NQ() }).To(violates(state.ErrStageTooLow))
			Expect(func() { s.UpdQ() }).To(violates(state.ErrStageTooLow))
		})

		It("backs the stage down to exactly Position-1 when Q is updated", func() {
			realizeTo(s, stage.Report)
			s.UpdQ()[0] = 10
			Expect(s.SystemStage()).To(Equal(stage.Time))
			Expect(s.SubsystemStage(a)).To(Equal(stage.Time))
			Expect(s.Q()).To(Equal(state.Vector{10}))
		})

		It("retracts U, Z and time to the stage before their first dependent", func() {
			realizeTo(s, stage.Report)
			s.UpdU()
			Expect(s.SystemStage()).To(Equal(stage.Position))

			realizeTo(s, stage.Report)
			s.UpdZOf(b)[0] = 4
			Expect(s.SystemStage()).To(Equal(stage.Velocity))
			Expect(s.Z()).To(Equal(state.Vector{4}))

			realizeTo(s, stage.Report)
			s.SetTime(1.5)
			Expect(s.SystemStage()).To(Equal(stage.Instance))
			Expect(s.Time()).To(Equal(1.5))

			realizeTo(s, stage.Report)
			s.UpdY()[1] = 7
			Expect(s.SystemStage()).To(Equal(stage.Time))
			Expect(s.UOf(a)).To(Equal(state.Vector{7}))
		})

		It("does not retract below a stage that was never reached", func() {
			realizeTo(s, stage.Instance)
			s.UpdQ()
			Expect(s.SystemStage()).To(Equal(stage.Instance))
		})
	})

	Describe("discrete variables", func() {
		var mass, gain int

		BeforeEach(func() {
			mass = s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(1.0))
			gain = s.AllocateDiscreteVariable(a, stage.Dynamics, state.NewBox(0.5))
		})

		It("lets Model variables be read while the model is built", func() {
			Expect(s.DiscreteVariable(a, mass).(*state.Box[float64]).V).To(Equal(1.0))
			Expect(func() { s.DiscreteVariable(a, gain) }).To(violates(state.ErrStageTooLow))
			realizeTo(s, stage.Model)
			Expect(s.DiscreteVariable(a, gain).(*state.Box[float64]).V).To(Equal(0.5))
			Expect(s.DiscreteVariableStage(a, gain)).To(Equal(stage.Dynamics))
		})

		It("retracts to one below the variable's stage when updated", func() {
			realizeTo(s, stage.Report)
			s.UpdDiscreteVariable(a, gain).(*state.Box[float64]).V = 2
			Expect(s.SystemStage()).To(Equal(stage.Velocity))
			Expect(s.SubsystemStage(b)).To(Equal(stage.Velocity))

			realizeTo(s, stage.Report)
			s.SetDiscreteVariable(a, gain, state.NewBox(3.0))
			Expect(s.DiscreteVariable(a, gain).String()).To(Equal("3"))
			Expect(s.SystemStage()).To(Equal(stage.Velocity))
		})

		It("keeps a Topology variable through its own update", func() {
			topo := s.AllocateDiscreteVariable(a, stage.Topology, state.NewBox(1.0))
			other := s.AllocateDiscreteVariable(b, stage.Topology, state.NewBox(7.0))
			s.AllocateQ(b, state.Vector{2})
			realizeTo(s, stage.Model)

			s.UpdDiscreteVariable(a, topo).(*state.Box[float64]).V = 2.5
			Expect(s.SystemStage()).To(Equal(stage.Empty))
			Expect(s.SubsystemStage(b)).To(Equal(stage.Empty))
			Expect(s.NumDiscreteVariables(a)).To(Equal(3))
			Expect(s.DiscreteVariable(a, topo).(*state.Box[float64]).V).To(Equal(2.5))
			Expect(s.DiscreteVariable(b, other).String()).To(Equal("7"))

			s.SetDiscreteVariable(a, topo, state.NewBox(4.0))
			Expect(s.DiscreteVariable(a, topo).String()).To(Equal("4"))
			realizeTo(s, stage.Model)
			Expect(s.QOf(b)).To(Equal(state.Vector{2}))
		})

		It("keeps a Model variable through its own update", func() {
			realizeTo(s, stage.Report)
			s.UpdDiscreteVariable(a, mass).(*state.Box[float64]).V = 3
			Expect(s.SystemStage()).To(Equal(stage.Topology))
			Expect(s.NumDiscreteVariables(a)).To(Equal(2))
			Expect(s.DiscreteVariable(a, mass).(*state.Box[float64]).V).To(Equal(3.0))

			realizeTo(s, stage.Model)
			Expect(s.DiscreteVariable(a, gain).(*state.Box[float64]).V).To(Equal(0.5))
		})

		It("rejects bad slot indices", func() {
			Expect(func() { s.DiscreteVariable(a, 9) }).To(violates(state.ErrInvalidIndex))
			Expect(func() { s.CacheEntry(b, 0) }).To(violates(state.ErrInvalidIndex))
		})
	})

	Describe("cache access", func() {
		It("reads a Time cache entry only once its subsystem reached Time", func() {
			realizeTo(s, stage.Topology)
			k := s.AllocateCacheEntry(a, stage.Time, state.NewBox(0.0))

			realizeTo(s, stage.Instance)
			Expect(func() { s.CacheEntry(a, k) }).To(violates(state.ErrStageTooLow))

			s.AdvanceSubsystemToStage(a, stage.Time)
			Expect(s.CacheEntry(a, k).String()).To(Equal("0"))
		})

		It("shows a value written through a read-only view without changing stages", func() {
			k := s.AllocateCacheEntry(a, stage.Position, state.NewBox(0.0))
			realizeTo(s, stage.Time)

			v := s.View()
			v.UpdCacheEntry(a, k).(*state.Box[float64]).V = 9.5
			Expect(s.SubsystemStage(a)).To(Equal(stage.Time))
			Expect(s.SystemStage()).To(Equal(stage.Time))

			s.AdvanceSubsystemToStage(a, stage.Position)
			Expect(v.CacheEntry(a, k).(*state.Box[float64]).V).To(Equal(9.5))
			Expect(s.SubsystemStage(a)).To(Equal(stage.Position))
		})

		It("refuses cache writes more than one stage early", func() {
			k := s.AllocateCacheEntry(a, stage.Dynamics, state.NewBox(0.0))
			realizeTo(s, stage.Time)
			Expect(func() { s.View().UpdCacheEntry(a, k) }).To(violates(state.ErrStageTooLow))
			Expect(func() { s.View().SetCacheEntry(a, k, state.NewBox(1.0)) }).To(violates(state.ErrStageTooLow))
		})

		It("gates the derivative pools by their defining stages", func() {
			s.AllocateQ(a, state.Vector{0})
			s.AllocateU(a, state.Vector{0})
			realizeTo(s, stage.Position)
			v := s.View()

			v.UpdQDotOf(a)[0] = 1
			Expect(func() { v.QDot() }).To(violates(state.ErrStageTooLow))
			Expect(func() { v.UpdUDotOf(a) }).To(violates(state.ErrStageTooLow))

			realizeTo(s, stage.Dynamics)
			v.UpdUDotOf(a)[0] = 2
			v.UpdQDotDotOf(a)[0] = 3
			realizeTo(s, stage.Acceleration)

			Expect(v.QDot()).To(Equal(state.Vector{1}))
			Expect(v.YDot()).To(Equal(state.Vector{1, 2}))
			Expect(v.UDotOf(a)).To(Equal(state.Vector{2}))
			Expect(v.QDotDot()).To(Equal(state.Vector{3}))
		})
	})

	Describe("Clone", func() {
		It("copies variables but not computed cache", func() {
			s.AllocateQ(a, state.Vector{1})
			m := s.AllocateCacheEntry(a, stage.Model, state.NewBox(0.0))
			d := s.AllocateCacheEntry(a, stage.Dynamics, state.NewBox(0.0))
			dv := s.AllocateDiscreteVariable(b, stage.Instance, state.NewBox(4.0))
			realizeTo(s, stage.Topology)
			s.View().SetCacheEntry(a, m, state.NewBox(7.0))
			realizeTo(s, stage.Velocity)
			s.View().UpdCacheEntry(a, d).(*state.Box[float64]).V = 8
			realizeTo(s, stage.Dynamics)
			s.UpdQ()[0] = 5
			s.SetTime(2)
			realizeTo(s, stage.Dynamics)

			c := s.Clone()
			Expect(c.SystemStage()).To(Equal(stage.Model))
			Expect(c.SubsystemStage(a)).To(Equal(stage.Model))
			Expect(c.Q()).To(Equal(state.Vector{5}))
			Expect(c.Time()).To(Equal(2.0))
			Expect(c.CacheEntry(a, m).String()).To(Equal("7"))
			Expect(c.DiscreteVariable(b, dv).String()).To(Equal("4"))

			realizeTo(c, stage.Dynamics)
			Expect(c.CacheEntry(a, d).String()).To(Equal("0"))

			c.UpdQ()[0] = 6
			Expect(s.Q()).To(Equal(state.Vector{5}))
		})

		It("keeps only topology-time data for subsystems below Model", func() {
			top := s.AllocateDiscreteVariable(a, stage.Topology, state.NewBox("chain"))
			s.AllocateQ(a, state.Vector{1})
			realizeTo(s, stage.Topology)
			s.AllocateDiscreteVariable(a, stage.Model, state.NewBox(2.0))
			s.AllocateU(a, state.Vector{3})

			c := s.Clone()
			Expect(c.SubsystemStage(a)).To(Equal(stage.Topology))
			Expect(c.NumDiscreteVariables(a)).To(Equal(1))
			Expect(c.DiscreteVariable(a, top).String()).To(Equal("chain"))

			c.AdvanceSubsystemToStage(a, stage.Model)
			c.AdvanceSubsystemToStage(b, stage.Model)
			c.AdvanceSystemToStage(stage.Model)
			Expect(c.NQOf(a)).To(Equal(1))
			Expect(c.NUOf(a)).To(Equal(0))
		})
	})

	Describe("debug rendering", func() {
		It("renders variables and cache without stage checks", func() {
			s.AllocateQ(a, state.Vector{1.25})
			s.AllocateCacheEntry(b, stage.Report, state.NewBox(3.0))
			Expect(s.String()).To(ContainSubstring("allocated nq=1"))

			realizeTo(s, stage.Position)
			Expect(s.String()).To(ContainSubstring("q[0:1] = [1.25]"))
			Expect(s.CacheString()).To(ContainSubstring("cache 0 (report) = <invalid>"))
			Expect(s.CacheString()).To(ContainSubstring("qdot = <invalid>"))
		})
	})
})
