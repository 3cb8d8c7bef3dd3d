package state

import "github.com/san-kum/stagesim/internal/stage"

// Clone copies variables, not cache. Each subsystem of the copy sits at
// min(source stage, Model):
//
//   - a subsystem at Model or above keeps all of its allocations, discrete
//     variables and continuous values; Model-stage cache entries keep their
//     values, later ones restart from their allocation values.
//   - a subsystem below Model keeps only what it allocated before reaching
//     Topology, since nothing else is guaranteed stable yet.
//
// Cache pools of the copy are zeroed.
func (s *State) Clone() *State {
	c := New()
	c.slots = make([]*subsystemSlot, len(s.slots))
	for i, ss := range s.slots {
		c.slots[i] = ss.clone()
	}
	c.stage = stage.Min(s.stage, stage.Model)
	if c.stage == stage.Model {
		c.pack()
		copy(c.y, s.y)
		c.t = s.t
	}
	return c
}

func (ss *subsystemSlot) clone() *subsystemSlot {
	c := &subsystemSlot{name: ss.name, version: ss.version, topologyBuilt: ss.topologyBuilt}
	if ss.stage >= stage.Model {
		c.stage = stage.Model
		c.highWater = stage.Model
		c.modelBuilt = true
		c.q = cloneVectorAllocs(ss.q, false)
		c.u = cloneVectorAllocs(ss.u, false)
		c.z = cloneVectorAllocs(ss.z, false)
		c.qErr = cloneCountAllocs(ss.qErr, false)
		c.uErr = cloneCountAllocs(ss.uErr, false)
		c.uDotErr = cloneCountAllocs(ss.uDotErr, false)
		for _, dv := range ss.discrete {
			c.discrete = append(c.discrete, discreteVar{stage: dv.stage, value: dv.value.Clone(), allocatedAt: dv.allocatedAt})
		}
		for _, ce := range ss.cache {
			v := ce.init.Clone()
			if ce.stage <= stage.Model {
				v = ce.value.Clone()
			}
			c.cache = append(c.cache, cacheEntry{stage: ce.stage, init: ce.init.Clone(), value: v, allocatedAt: ce.allocatedAt})
		}
		return c
	}

	c.stage = stage.Min(ss.stage, stage.Topology)
	c.highWater = c.stage
	c.q = cloneVectorAllocs(ss.q, true)
	c.u = cloneVectorAllocs(ss.u, true)
	c.z = cloneVectorAllocs(ss.z, true)
	c.qErr = cloneCountAllocs(ss.qErr, true)
	c.uErr = cloneCountAllocs(ss.uErr, true)
	c.uDotErr = cloneCountAllocs(ss.uDotErr, true)
	for _, dv := range ss.discrete {
		if dv.allocatedAt == stage.Empty {
			c.discrete = append(c.discrete, discreteVar{stage: dv.stage, value: dv.value.Clone(), allocatedAt: dv.allocatedAt})
		}
	}
	for _, ce := range ss.cache {
		if ce.allocatedAt == stage.Empty {
			c.cache = append(c.cache, cacheEntry{stage: ce.stage, init: ce.init.Clone(), value: ce.init.Clone(), allocatedAt: ce.allocatedAt})
		}
	}
	return c
}

func cloneVectorAllocs(src []vectorAlloc, topologyOnly bool) []vectorAlloc {
	var out []vectorAlloc
	for _, a := range src {
		if topologyOnly && a.allocatedAt != stage.Empty {
			continue
		}
		out = append(out, vectorAlloc{init: a.init.Clone(), allocatedAt: a.allocatedAt})
	}
	return out
}

func cloneCountAllocs(src []countAlloc, topologyOnly bool) []countAlloc {
	var out []countAlloc
	for _, a := range src {
		if topologyOnly && a.allocatedAt != stage.Empty {
			continue
		}
		out = append(out, a)
	}
	return out
}
