package effect

import (
	"fmt"

	"go.uber.org/zap"
)

// Preactivate hands the entity its spawn parameters and starts resolving shared data.
// When the data has not been replicated yet the entity waits for it.
func (e *Entity) Preactivate(d IndividualData) error {
	if e.State() != StatePooled {
		err := fmt.Errorf("preactivate %s: %w", e, ErrInvariant)
		e.report(err)
		return err
	}
	if !e.transition(evPreactivate) {
		return ErrInvariant
	}
	e.individual = d
	e.location = d.Location
	e.yaw = d.Yaw
	e.baseYaw = d.Yaw
	e.env.addSibling(e)

	if !e.env.Available() {
		e.fail("preactivate")
		return ErrMissingContext
	}
	e.owning = e.def.OwningTags
	if e.sharedTargeting() {
		e.env.registry.Register(d.ActivationKey)
		e.hardRegistered = true
		e.softRegistered = true
	}
	if e.env.authority && e.env.ledger != nil {
		e.env.ledger.AddIndividual(d)
	}

	f := e.env.shared.Resolve(d.SharedDataID)
	if f.Done() {
		sd, _ := f.Value()
		e.beginActivate(sd)
		return nil
	}
	if !e.transition(evWait) {
		return ErrInvariant
	}
	e.future = f
	e.report(fmt.Errorf("entity %d waits for shared data %d: %w", e.id, d.SharedDataID, ErrMissingReplicatedData))
	f.Then(e.onSharedData)
	return nil
}

func (e *Entity) onSharedData(sd SharedData) {
	if e.State() != StateWaitingForData {
		return
	}
	e.future = nil
	e.beginActivate(sd)
}

// fail deactivates at once because the simulation context is gone
func (e *Entity) fail(step string) {
	e.report(fmt.Errorf("%s %s: %w", step, e, ErrMissingContext))
	e.Deactivate(0)
}

func (e *Entity) beginActivate(sd SharedData) {
	if !e.transition(evActivate) {
		return
	}
	if !e.env.Available() {
		e.fail("activate")
		return
	}
	if err := e.env.shared.Acquire(sd.ID); err != nil {
		e.report(err)
		e.Deactivate(0)
		return
	}
	e.shared = sd
	e.hasShared = true
	e.owning = e.def.OwningTags.Merge(sd.Modifiers())
	e.timing = e.def.Timing(sd)

	e.areaScale = sd.AreaMultiplier
	if e.areaScale <= 0 {
		e.areaScale = 1
	}
	if e.owning.Has(TagTrap) {
		if inst, ok := e.env.spatial.Actor(e.individual.Instigator); ok && inst.Scale > 0 {
			e.areaScale *= inst.Scale
		}
	}
	e.rotationRate = e.def.RotationRate
	if e.def.AlternateRotation && e.individual.SpawnIndex%2 == 1 {
		e.rotationRate = -e.rotationRate
	}

	delta := e.individual.ServerActivationTime - e.env.clock.Now()
	if delta <= 0 {
		e.compensation = delta
		e.introDelay()
		return
	}
	e.activationTimer = e.env.clock.After(delta, func() {
		e.activationTimer = 0
		e.introDelay()
	})
}

// introDelay waits out the activation delay, shortened by any network overshoot.
// Overshoot beyond the delay comes off the lifespan instead.
func (e *Entity) introDelay() {
	if !e.env.Available() {
		e.fail("activate")
		return
	}
	delay := e.def.ActivationDelay + e.compensation
	if delay > 0 {
		e.activationTimer = e.env.clock.After(delay, func() {
			e.activationTimer = 0
			e.FinishActivate()
		})
		return
	}
	e.leftover = delay
	e.FinishActivate()
}

// FinishActivate settles the transform, enables collision and starts applying effects
func (e *Entity) FinishActivate() {
	if e.State() != StateActivating {
		return
	}
	if !e.env.Available() {
		e.fail("finish activate")
		return
	}
	b := e.def.behavior()
	e.activatedAt = e.env.clock.Now()
	e.location, e.baseYaw = b.AdjustTransform(e, e.individual.Location, e.individual.Yaw)
	e.yaw = e.baseYaw
	e.scale = e.areaScale * b.ScaleAt(e.def, 0, 0)
	e.collision = true

	e.env.Publish(e.event(EventActivated))
	if e.env.authority && e.env.dispatcher != nil && !e.individual.Instigator.IsZero() {
		e.env.dispatcher.HandleEvent(e.individual.Instigator, TagEventActivate, Payload{
			Instigator:     e.individual.Instigator,
			Target:         e.individual.Target,
			InstigatorTags: e.owning,
			Origin:         e.location,
			Causer:         e.id,
			ActivationKey:  e.individual.ActivationKey,
		})
	}
	b.OnActivated(e)

	if e.timing.LifeSpan == 0 {
		if !e.transition(evInstant) {
			return
		}
		e.applyToOverlaps(false)
		e.Deactivate(InstantPoolDelay)
		return
	}
	if !e.transition(evPersist) {
		return
	}
	e.env.log.Debug("effect entity persistent",
		zap.Stringer("entity", e),
		zap.Float64("lifespan", e.timing.LifeSpan),
		zap.Float64("period", e.timing.Period),
		zap.Int("max_periods", e.timing.MaxPeriods),
	)
	e.startPersistent()
}
