package effect

import (
	"slices"

	"go.uber.org/zap"

	"effects-server/internal/geom"
	"effects-server/internal/world"
)

// query returns every actor physically inside the entity's current volume
func (e *Entity) query() []world.Handle {
	shape := e.def.Shape.Scaled(e.scale)
	if shape.Kind == geom.ShapeBox {
		return e.env.spatial.OrientedBoxOverlap(e.location, shape.Extent, e.yaw, e.def.ClassFilter, nil)
	}
	return e.env.spatial.SphereOverlap(e.location, shape.Radius, e.def.ClassFilter, nil)
}

// Overlaps reports whether a lies inside the entity's current volume
func (e *Entity) Overlaps(a world.Actor) bool {
	if !e.collision {
		return false
	}
	return e.def.Shape.Scaled(e.scale).Overlaps(e.location, e.yaw, a.Location, a.Radius)
}

func (e *Entity) alreadyTargeted(h world.Handle) bool {
	if e.sharedTargeting() {
		return e.env.registry.HasTarget(e.individual.ActivationKey, h)
	}
	return slices.Contains(e.previouslyTargeted, h)
}

func (e *Entity) markTargeted(h world.Handle) {
	if e.sharedTargeting() {
		e.env.registry.AddTarget(e.individual.ActivationKey, h)
		return
	}
	if !slices.Contains(e.previouslyTargeted, h) {
		e.previouslyTargeted = append(e.previouslyTargeted, h)
	}
}

// unmarkTargeted lets h be targeted again once its persistent effects are gone
func (e *Entity) unmarkTargeted(h world.Handle) {
	if e.sharedTargeting() {
		e.env.registry.RemoveTarget(e.individual.ActivationKey, h)
		return
	}
	if i := slices.Index(e.previouslyTargeted, h); i >= 0 {
		e.previouslyTargeted = slices.Delete(e.previouslyTargeted, i, i+1)
	}
}

// HasPriority reports whether this entity may claim a. Among active siblings
// overlapping a, the lowest spawn index wins. Individual targeting always wins.
func (e *Entity) HasPriority(a world.Actor) bool {
	if e.owning.Has(TagIndividualTarget) {
		return true
	}
	for _, s := range e.env.Siblings(e.individual.ActivationKey) {
		if s == e || !s.Active() || !s.collision {
			continue
		}
		if s.individual.SpawnIndex < e.individual.SpawnIndex && s.Overlaps(a) {
			return false
		}
	}
	return true
}

// ValidTarget runs the full targeting check for a
func (e *Entity) ValidTarget(a world.Actor) Rejection {
	chk := Check{
		Origin:           e.location,
		Yaw:              e.yaw,
		Scale:            e.scale,
		Instigator:       e.individual.Instigator,
		AlreadyTargeted:  e.alreadyTargeted(a.Handle),
		AllowRetargeting: e.timing.AllowRetargeting,
		HasPriority:      e.HasPriority(a),
		LineOfSight:      e.env.LineOfSight,
		Extra:            TargetFilterFunc(func(c world.Actor) bool { return e.def.behavior().AllowTarget(e, c) }),
	}
	if inst, ok := e.env.spatial.Actor(e.individual.Instigator); ok {
		chk.InstigatorTeam = inst.Team
	}
	return Evaluate(a, e.def.Rules, chk)
}

func (e *Entity) applyToOverlaps(multiHit bool) {
	e.refresh()
	var valid []world.Handle
	for _, h := range e.query() {
		a, ok := e.env.spatial.Actor(h)
		if !ok {
			continue
		}
		if r := e.ValidTarget(a); r != Accepted {
			e.env.log.Debug("target rejected", zap.Stringer("entity", e), zap.Stringer("target", h), zap.Stringer("reason", r))
			continue
		}
		valid = append(valid, h)
	}
	e.applyTo(valid, multiHit)
}

// applyTo applies the container to every target and optionally summarizes them
// as one multi-hit
func (e *Entity) applyTo(targets []world.Handle, multiHit bool) {
	if len(targets) == 0 {
		return
	}
	container := e.def.Container.Scaled(e.env.scaler, e.owning)
	container.Instigator = e.individual.Instigator
	container.Causer = e.id
	container.Level = e.shared.AbilityLevel
	keep := e.timing.LifeSpan != 0 && container.HasInfinite()
	fireCues := e.def.behavior().ShouldFireCues(e)

	for _, h := range targets {
		e.markTargeted(h)
		handles := e.env.ApplyHit(Hit{
			Container:     container,
			Target:        h,
			Instigator:    e.individual.Instigator,
			Origin:        e.location,
			ActivationKey: e.individual.ActivationKey,
			Causer:        e.id,
			ContextTags:   e.owning,
			CueTag:        e.def.CueTag,
			Scale:         e.scale,
			SkipCues:      !fireCues,
		})
		if keep && len(handles) > 0 {
			e.applied[h] = append(e.applied[h], handles...)
		}
	}
	if multiHit {
		e.env.SendMultiHit(e.individual.ActivationKey, e.individual.Instigator, len(targets), e.owning)
	}
}

// transferOrRemove hands the persistent effects on h to an overlapping sibling,
// or removes them when no sibling covers h. It reports whether a sibling took them.
func (e *Entity) transferOrRemove(h world.Handle) bool {
	handles := e.applied[h]
	delete(e.applied, h)
	if len(handles) == 0 {
		return false
	}
	if a, ok := e.env.spatial.Actor(h); ok {
		for _, s := range e.env.Siblings(e.individual.ActivationKey) {
			if s == e || !s.Active() || !s.Overlaps(a) {
				continue
			}
			s.applied[h] = append(s.applied[h], handles...)
			if !slices.Contains(s.overlapping, h) {
				s.overlapping = append(s.overlapping, h)
			}
			e.env.log.Debug("effect ownership transferred",
				zap.Stringer("from", e), zap.Stringer("to", s), zap.Stringer("target", h))
			return true
		}
	}
	if e.env.dispatcher == nil {
		return false
	}
	for _, eh := range handles {
		e.env.dispatcher.RemoveEffect(eh)
	}
	return false
}

func (e *Entity) cueParams() CueParams {
	return CueParams{
		Location:   e.location,
		Target:     e.individual.Target,
		Instigator: e.individual.Instigator,
		Scale:      e.scale,
	}
}
