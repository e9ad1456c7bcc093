package effect

import (
	"math"
	"slices"

	"effects-server/internal/world"
)

func (e *Entity) startPersistent() {
	clk := e.env.clock
	t := e.timing

	if e.def.CueTag != "" && e.def.behavior().ShouldFireCues(e) {
		e.env.FireCue(e.def.CueTag, CueAdded, e.cueParams())
	}
	if t.LifeSpan > 0 && !e.owning.Has(TagDisableExpire) {
		e.durationTimer = clk.After(t.LifeSpan+e.leftover, func() {
			e.durationTimer = 0
			e.Expire()
		})
	}
	if e.rotationRate != 0 {
		turn := 360 / math.Abs(e.rotationRate)
		e.rotationTimer = clk.Every(turn, turn, func() {
			e.env.Publish(e.event(EventRotationCompleted))
		})
	}
	if t.Period > 0 {
		e.periodTimer = clk.Every(t.FirstPeriodDelay, t.Period, e.periodTick)
		return
	}
	e.overlapTimer = clk.Every(clk.TickLength(), clk.TickLength(), e.pollOverlaps)
	e.pollOverlaps()
}

// refresh recomputes attachment, rotation and scale for the current time
func (e *Entity) refresh() {
	b := e.def.behavior()
	elapsed := e.env.clock.Now() - e.activatedAt
	if e.def.Attach {
		e.location, e.baseYaw = b.AdjustTransform(e, e.location, e.baseYaw)
	}
	e.yaw = e.baseYaw + e.rotationRate*elapsed
	norm := 1.0
	if e.timing.LifeSpan > 0 {
		norm = min(elapsed/e.timing.LifeSpan, 1)
	}
	e.scale = e.areaScale * b.ScaleAt(e.def, elapsed, norm)
}

func (e *Entity) periodTick() {
	if !e.env.Available() {
		e.fail("period")
		return
	}
	e.periods++
	// discrete checks are covered by the summary on deactivation
	e.applyToOverlaps(!e.timing.Discrete)
	if e.timing.MaxPeriods > 0 && e.periods >= e.timing.MaxPeriods {
		e.cancel(&e.periodTimer)
		if !e.env.clock.Active(e.durationTimer) {
			e.Deactivate(ExpirePoolDelay)
		}
	}
}

// pollOverlaps diffs the current overlap set against the last one and
// dispatches begin and end notifications
func (e *Entity) pollOverlaps() {
	if !e.env.Available() {
		e.fail("overlap")
		return
	}
	e.refresh()
	current := e.query()
	var ended []world.Handle
	for _, h := range e.overlapping {
		if !slices.Contains(current, h) {
			ended = append(ended, h)
		}
	}
	var begun []world.Handle
	for _, h := range current {
		if !slices.Contains(e.overlapping, h) {
			begun = append(begun, h)
		}
	}
	e.overlapping = current
	for _, h := range ended {
		e.endOverlap(h)
	}
	for _, h := range begun {
		e.beginOverlap(h)
	}
}

func (e *Entity) beginOverlap(h world.Handle) {
	a, ok := e.env.spatial.Actor(h)
	if !ok {
		return
	}
	if e.ValidTarget(a) != Accepted {
		return
	}
	e.applyTo([]world.Handle{h}, false)
}

func (e *Entity) endOverlap(h world.Handle) {
	if _, ok := e.applied[h]; !ok {
		return
	}
	if !e.transferOrRemove(h) {
		e.unmarkTargeted(h)
	}
}

// Expire ends a persistent entity whose lifespan ran out
func (e *Entity) Expire() {
	if e.State() != StatePersistent {
		return
	}
	if !e.transition(evExpire) {
		return
	}
	e.env.Publish(e.event(EventExpired))
	if !e.env.clock.Active(e.periodTimer) {
		e.Deactivate(ExpirePoolDelay)
	}
}
