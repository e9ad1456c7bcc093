package world

import "effects-server/internal/geom"

// Channel selects what a line trace collides with
type Channel uint8

const (
	ChannelVisibility Channel = iota // static blockers only
	ChannelPawn                      // blockers and live actors
)

// TraceHit describes the first thing a line trace struck
type TraceHit struct {
	Location geom.Vec3
	Actor    Handle // zero when a blocker was hit
	Fraction float64
}

// LineTrace returns the nearest hit along from -> to on the ground plane
func (w *World) LineTrace(from, to geom.Vec3, channel Channel) (TraceHit, bool) {
	best := TraceHit{Fraction: 2}
	for _, b := range w.blockers {
		if f, ok := geom.SegmentCircleIntersect(from, to, b.Center, b.Radius); ok && f < best.Fraction {
			best = TraceHit{Fraction: f}
		}
	}
	if channel == ChannelPawn {
		for i := range w.slots {
			s := &w.slots[i]
			if !s.live || !s.actor.Alive() {
				continue
			}
			if f, ok := geom.SegmentCircleIntersect(from, to, s.actor.Location, s.actor.Radius); ok && f < best.Fraction {
				best = TraceHit{Fraction: f, Actor: s.actor.Handle}
			}
		}
	}
	if best.Fraction > 1 {
		return TraceHit{}, false
	}
	best.Location = from.Add(to.Sub(from).Scale(best.Fraction))
	return best, true
}

// HasLineOfSight reports whether no blocker stands between from and to
func (w *World) HasLineOfSight(from, to geom.Vec3) bool {
	_, hit := w.LineTrace(from, to, ChannelVisibility)
	return !hit
}
