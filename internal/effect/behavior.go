package effect

import (
	"effects-server/internal/geom"
	"effects-server/internal/world"
)

// Behavior customizes one effect class. Embed BaseBehavior and override what differs.
type Behavior interface {
	// ScaleAt returns the shape scale factor at elapsed seconds, normalized in [0,1]
	ScaleAt(def *Definition, elapsed, normalized float64) float64
	// AdjustTransform moves the entity before it is evaluated
	AdjustTransform(e *Entity, loc geom.Vec3, yaw float64) (geom.Vec3, float64)
	AllowTarget(e *Entity, c world.Actor) bool
	OnActivated(e *Entity)
	OnDeactivated(e *Entity)
	ShouldFireCues(e *Entity) bool
}

// BaseBehavior is the default Behavior
type BaseBehavior struct{}

func (BaseBehavior) ScaleAt(def *Definition, _, normalized float64) float64 {
	if !def.ScaleInterpolation {
		return 1
	}
	return def.ScaleCurve.Eval(normalized)
}

// AdjustTransform snaps to the target or instigator, depending on the location type
func (BaseBehavior) AdjustTransform(e *Entity, loc geom.Vec3, yaw float64) (geom.Vec3, float64) {
	var follow world.Handle
	switch e.individual.LocationType {
	case LocationTarget:
		follow = e.individual.Target
	case LocationInstigator:
		follow = e.individual.Instigator
	default:
		return loc, yaw
	}
	a, ok := e.env.spatial.Actor(follow)
	if !ok {
		return loc, yaw
	}
	if e.individual.LocationType == LocationInstigator {
		return a.Location, a.Yaw
	}
	return a.Location, yaw
}

func (BaseBehavior) AllowTarget(*Entity, world.Actor) bool { return true }
func (BaseBehavior) OnActivated(*Entity)                   {}
func (BaseBehavior) OnDeactivated(*Entity)                 {}
func (BaseBehavior) ShouldFireCues(e *Entity) bool         { return !e.skipCues }
