package overlap

import (
	"fmt"

	"go.uber.org/zap"

	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/world"
)

// fire runs the spatial check of one snapshot and applies the container to every accepted target
func (s *Scheduler) fire(snap Snapshot) {
	meta, ok := s.events.Get(snap.EventID)
	if !ok {
		s.env.Report(fmt.Errorf("%s: snapshot of unknown event %d: %w", s.def.Name, snap.EventID, effect.ErrNoCandidate))
		return
	}
	if !s.env.Available() {
		s.env.Report(fmt.Errorf("%s: %w", s.def.Name, effect.ErrMissingContext), zap.Int32("event", snap.EventID))
		s.drop(snap.EventID)
		return
	}

	spatial := s.env.Spatial()
	inst, hasInst := spatial.Actor(s.instigator)
	loc := snap.Location
	if hasInst && meta.owning.Has(effect.TagStartAtAvatar) {
		loc = loc.Add(inst.Location.Sub(snap.InitialAvatarLocation))
	}

	if s.def.periodic() {
		// every period strikes the same actors again
		s.wrappers.Remove(snap.EventID, -1)
		delete(meta.cuesFired, snap.ID())
	}
	ignoreID := int32(-1)
	if meta.owning.Has(effect.TagIndividualTarget) {
		ignoreID = snap.OverlapID
	}
	ignore := s.wrappers.Ignored(snap.EventID, ignoreID)

	elapsed := snap.Elapsed()
	norm := 1.0
	if l := s.def.Duration.LifeSpan; l != 0 {
		norm = geom.Clamp(elapsed/(l*snap.DurationMultiplier), 0, 1)
	}
	scale := snap.AreaMultiplier
	if s.def.ScaleInterpolation {
		scale *= s.def.ScaleCurve.Eval(norm)
	}
	yaw := geom.NormalizeDegrees(snap.Yaw + s.def.RotationRate*elapsed)

	shape := s.def.Shape.Scaled(scale)
	var found []world.Handle
	if shape.Kind == geom.ShapeBox {
		found = spatial.OrientedBoxOverlap(loc, shape.Extent, yaw, s.def.ClassFilter, ignore)
	} else {
		found = spatial.SphereOverlap(loc, shape.Radius, s.def.ClassFilter, ignore)
	}

	chk := effect.Check{
		Origin:      loc,
		Yaw:         yaw,
		Scale:       snap.AreaMultiplier,
		Instigator:  s.instigator,
		HasPriority: true,
		LineOfSight: s.env.LineOfSight,
		Extra:       s.def.Filter,
	}
	if hasInst {
		chk.InstigatorTeam = inst.Team
	}
	var hits []world.Handle
	for _, h := range found {
		a, ok := spatial.Actor(h)
		if !ok {
			continue
		}
		if r := effect.Evaluate(a, s.def.Rules, chk); r != effect.Accepted {
			s.env.Log().Debug("overlap target rejected",
				zap.String("ability", s.def.Name),
				zap.Stringer("target", h),
				zap.Stringer("reason", r),
			)
			continue
		}
		hits = append(hits, h)
	}

	for _, h := range hits {
		s.env.ApplyHit(effect.Hit{
			Container:     meta.container,
			Target:        h,
			Instigator:    s.instigator,
			Origin:        loc,
			ActivationKey: meta.key,
			ContextTags:   meta.owning,
			Scale:         scale,
		})
	}
	s.wrappers.Add(snap.ID(), hits...)
	if s.def.periodic() {
		s.env.SendMultiHit(meta.key, s.instigator, len(hits), meta.owning)
	}
	if !meta.cuesFired[snap.ID()] {
		snap.Location = loc
		s.fireCue(meta, snap, effect.CueExecuted)
	}
}

func (s *Scheduler) fireCue(meta *eventMeta, snap Snapshot, kind effect.CueEvent) {
	meta.cuesFired[snap.ID()] = true
	s.env.FireCue(s.def.CueTag, kind, effect.CueParams{
		Location:   snap.Location,
		Instigator: s.instigator,
		Magnitude:  snap.DurationMultiplier,
		Scale:      snap.AreaMultiplier,
	})
}
