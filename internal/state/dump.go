package state

import (
	"fmt"
	"strings"

	"github.com/san-kum/stagesim/internal/stage"
)

// String renders the variables of the State for logs. The format is not
// stable.
func (r reader) String() string {
	s := r.s
	var b strings.Builder
	fmt.Fprintf(&b, "system stage: %s\n", s.stage)
	if s.stage >= stage.Model {
		fmt.Fprintf(&b, "time: %g\n", s.t)
		fmt.Fprintf(&b, "y: %s\n", s.y)
	}
	for i, ss := range s.slots {
		fmt.Fprintf(&b, "subsystem %d %q version %q stage %s\n", i, ss.name, ss.version, ss.stage)
		if s.stage >= stage.Model {
			fmt.Fprintf(&b, "  q[%d:%d] = %s\n", ss.qStart, ss.qStart+ss.nq(), r.QOf(i))
			fmt.Fprintf(&b, "  u[%d:%d] = %s\n", ss.uStart, ss.uStart+ss.nu(), r.UOf(i))
			fmt.Fprintf(&b, "  z[%d:%d] = %s\n", ss.zStart, ss.zStart+ss.nz(), r.ZOf(i))
		} else {
			fmt.Fprintf(&b, "  allocated nq=%d nu=%d nz=%d\n", ss.nq(), ss.nu(), ss.nz())
		}
		for k, dv := range ss.discrete {
			fmt.Fprintf(&b, "  discrete %d (%s) = %s\n", k, dv.stage, dv.value)
		}
	}
	return b.String()
}

// CacheString renders the cache. Values below their defining stage are shown
// as invalid.
func (r reader) CacheString() string {
	s := r.s
	var b strings.Builder
	for i, ss := range s.slots {
		fmt.Fprintf(&b, "subsystem %d %q stage %s\n", i, ss.name, ss.stage)
		if s.stage >= stage.Model {
			writePool(&b, "qdot", ss.stage, stage.Velocity, window(s.yDot, ss.qStart, ss.nq()))
			writePool(&b, "udot", ss.stage, stage.Acceleration, window(s.yDot, s.nq+ss.uStart, ss.nu()))
			writePool(&b, "zdot", ss.stage, stage.Dynamics, window(s.yDot, s.nq+s.nu+ss.zStart, ss.nz()))
			writePool(&b, "qdotdot", ss.stage, stage.Acceleration, window(s.qDotDot, ss.qStart, ss.nq()))
			writePool(&b, "qerr", ss.stage, stage.Position, window(s.yErr, ss.qErrStart, ss.nqErr()))
			writePool(&b, "uerr", ss.stage, stage.Velocity, window(s.yErr, s.nqErr+ss.uErrStart, ss.nuErr()))
			writePool(&b, "udoterr", ss.stage, stage.Acceleration, window(s.uDotErr, ss.uDotErrStart, ss.nuDotErr()))
		}
		for k, ce := range ss.cache {
			if ss.stage < ce.stage {
				fmt.Fprintf(&b, "  cache %d (%s) = <invalid>\n", k, ce.stage)
				continue
			}
			fmt.Fprintf(&b, "  cache %d (%s) = %s\n", k, ce.stage, ce.value)
		}
	}
	return b.String()
}

func writePool(b *strings.Builder, name string, at, need stage.Stage, v Vector) {
	if len(v) == 0 {
		return
	}
	if at < need {
		fmt.Fprintf(b, "  %s = <invalid>\n", name)
		return
	}
	fmt.Fprintf(b, "  %s = %s\n", name, v)
}
