package effect

import (
	"cmp"
	"maps"
	"slices"

	"go.uber.org/zap"

	"effects-server/internal/geom"
	"effects-server/internal/world"
)

// Deactivate stops the entity and schedules its return to the pool after
// poolDelay seconds, or on the next tick. Calling it twice is a no-op.
func (e *Entity) Deactivate(poolDelay float64) {
	if !e.Active() {
		return
	}
	wasLive := e.collision
	if !e.transition(evDeactivate) {
		return
	}
	key := e.individual.ActivationKey
	e.env.Publish(e.event(EventDeactivated))
	if e.env.authority && e.env.dispatcher != nil && !e.individual.Instigator.IsZero() {
		e.env.dispatcher.HandleEvent(e.individual.Instigator, TagEventDeactivate, Payload{
			Instigator:    e.individual.Instigator,
			Causer:        e.id,
			ActivationKey: key,
		})
	}

	if e.hardRegistered {
		// the last claim holder summarizes the cast unless periods already did
		if wasLive && (e.timing.Period <= 0 || e.timing.Discrete) {
			if hard, _, ok := e.env.registry.Counts(key); ok && hard <= 1 {
				if n, fresh := e.env.registry.Summarize(key); fresh {
					e.env.SendMultiHit(key, e.individual.Instigator, n, e.owning)
				}
			}
		}
		if err := e.env.registry.UnregisterHard(key); err != nil {
			e.report(err)
		}
		e.hardRegistered = false
	}

	held := slices.Collect(maps.Keys(e.applied))
	slices.SortFunc(held, func(a, b world.Handle) int { return cmp.Compare(a.Index, b.Index) })
	for _, h := range held {
		e.transferOrRemove(h)
	}
	if wasLive && e.timing.LifeSpan != 0 && e.def.CueTag != "" && e.def.behavior().ShouldFireCues(e) {
		e.env.FireCue(e.def.CueTag, CueRemoved, e.cueParams())
	}
	e.collision = false
	e.overlapping = nil
	e.def.behavior().OnDeactivated(e)

	e.cancel(&e.activationTimer)
	e.cancel(&e.durationTimer)
	e.cancel(&e.periodTimer)
	e.cancel(&e.rotationTimer)
	e.cancel(&e.overlapTimer)
	if e.future != nil {
		e.future.Cancel()
		e.future = nil
	}

	clk := e.env.clock
	if clk == nil {
		e.returnToPool()
		return
	}
	if e.softRegistered {
		e.graceTimer = clk.NextTick(func() {
			e.graceTimer = 0
			e.dropSoft()
		})
	}
	if poolDelay > 0 {
		e.poolTimer = clk.After(poolDelay, e.returnToPool)
	} else {
		e.poolTimer = clk.NextTick(e.returnToPool)
	}
}

func (e *Entity) dropSoft() {
	if !e.softRegistered {
		return
	}
	e.softRegistered = false
	if _, err := e.env.registry.UnregisterSoft(e.individual.ActivationKey); err != nil {
		e.report(err)
	}
}

// returnToPool clears every per-activation field and hands the entity back
func (e *Entity) returnToPool() {
	e.poolTimer = 0
	e.cancel(&e.graceTimer)
	if e.hardRegistered {
		if err := e.env.registry.UnregisterHard(e.individual.ActivationKey); err != nil {
			e.report(err)
		}
		e.hardRegistered = false
	}
	e.dropSoft()
	if e.env.authority && e.env.ledger != nil && !e.individual.IsZero() {
		e.env.ledger.RemoveIndividual(e.individual)
	}
	if e.hasShared {
		if _, err := e.env.shared.Release(e.shared.ID); err != nil {
			e.report(err)
		}
	}
	e.env.removeSibling(e, e.individual.ActivationKey)
	if !e.transition(evPool) {
		return
	}

	e.individual = IndividualData{}
	e.shared = SharedData{}
	e.hasShared = false
	e.owning = e.def.OwningTags
	e.timing = DerivedTiming{}
	e.location = geom.Vec3{}
	e.yaw, e.baseYaw, e.rotationRate = 0, 0, 0
	e.areaScale, e.scale = 0, 0
	e.compensation, e.leftover, e.activatedAt = 0, 0, 0
	e.periods = 0
	e.skipCues = false
	e.previouslyTargeted = nil
	e.overlapping = nil
	clear(e.applied)

	if e.env.pool == nil {
		e.destroyed = true
		e.env.log.Debug("effect entity destroyed, no pool", zap.Uint32("entity", e.id))
		return
	}
	e.env.pool.NotifyFinished(e)
	e.env.pool.Release(e)
}
