package effect

//go:generate go tool mockgen -destination=./mocks/mock_effect.go -package=mocks . Dispatcher,CueHandler,PoolManager

import (
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// Payload travels with gameplay events sent to the dispatcher
type Payload struct {
	Instigator     world.Handle
	Target         world.Handle
	Magnitude      float64
	InstigatorTags tags.Set
	TargetTags     tags.Set
	Origin         geom.Vec3
	Impact         geom.Vec3
	Causer         uint32
	ActivationKey  int32
}

// Dispatcher applies and removes effects on actors and routes gameplay events to them
type Dispatcher interface {
	ApplyEffectContainer(c Container, target world.Handle) []EffectHandle
	RemoveEffect(h EffectHandle) bool
	OwnedTags(target world.Handle) tags.Set
	HandleEvent(recipient world.Handle, tag tags.Tag, payload Payload)
}

// Well-known attribute names
const (
	AttributeDuration = "Duration"
	AttributePeriod   = "Period"
	AttributeArea     = "Area"
	AttributeDamage   = "Damage"
	AttributeHealing  = "Healing"
)

// AttributeScaler is a pure function from a base value to its scaled value
type AttributeScaler interface {
	Scale(base float64, ctx tags.Set, attribute string) float64
}

// ScalerFunc adapts a function to AttributeScaler
type ScalerFunc func(base float64, ctx tags.Set, attribute string) float64

func (f ScalerFunc) Scale(base float64, ctx tags.Set, attribute string) float64 {
	return f(base, ctx, attribute)
}

// ScaleValue scales base unless it is the Infinite sentinel or no scaler is set
func ScaleValue(s AttributeScaler, base float64, ctx tags.Set, attribute string) float64 {
	if s == nil || base == Infinite {
		return base
	}
	return s.Scale(base, ctx, attribute)
}

// SpatialQuery answers overlap and trace questions about the world
type SpatialQuery interface {
	SphereOverlap(center geom.Vec3, radius float64, classes []string, ignore []world.Handle) []world.Handle
	OrientedBoxOverlap(center, extent geom.Vec3, yaw float64, classes []string, ignore []world.Handle) []world.Handle
	LineTrace(from, to geom.Vec3, channel world.Channel) (world.TraceHit, bool)
	Actor(h world.Handle) (world.Actor, bool)
}

// CueEvent is the kind of presentation cue
type CueEvent uint8

const (
	CueExecuted CueEvent = iota
	CueAdded
	CueRemoved
)

// CueParams are handed to the presentation layer. Non-authoritative callers get
// Authoritative=false and no instigator.
type CueParams struct {
	Location      geom.Vec3
	Target        world.Handle
	Instigator    world.Handle
	Magnitude     float64
	Scale         float64
	Authoritative bool
}

// CueHandler fires presentation cues. It must not call back into the runtime.
type CueHandler interface {
	HandleCue(tag tags.Tag, kind CueEvent, params CueParams)
}

// PoolManager supplies and reclaims entity instances
type PoolManager interface {
	Acquire(class string) (*Entity, error)
	Release(e *Entity)
	NotifyFinished(e *Entity)
}

// IndividualLedger is the owner's replicated list of live IndividualData
type IndividualLedger interface {
	AddIndividual(d IndividualData)
	RemoveIndividual(d IndividualData)
}
