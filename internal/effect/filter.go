package effect

import (
	"math"

	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// TeamFilter restricts targets by team relative to the instigator
type TeamFilter uint8

const (
	TeamAny TeamFilter = iota
	TeamHostile
	TeamFriendly
)

// TargetRules are the static targeting parameters of an effect
type TargetRules struct {
	MinDistance        float64 // inner radius, scaled with the effect
	MaxAngleDeviation  float64 // degrees either side of the facing; 0 or >= 180 disables the cone
	RequireLineOfSight bool
	RequiredTags       tags.Set
	BlockedTags        tags.Set
	Team               TeamFilter
	AffectInstigator   bool
}

// TargetFilter is the pluggable last stage of target validation
type TargetFilter interface {
	AllowTarget(c world.Actor) bool
}

// TargetFilterFunc adapts a function to TargetFilter
type TargetFilterFunc func(c world.Actor) bool

func (f TargetFilterFunc) AllowTarget(c world.Actor) bool { return f(c) }

// Check is everything the filter needs to know about the effect at query time
type Check struct {
	Origin           geom.Vec3
	Yaw              float64
	Scale            float64
	Instigator       world.Handle
	InstigatorTeam   int
	AlreadyTargeted  bool
	AllowRetargeting bool
	HasPriority      bool
	LineOfSight      func(from, to geom.Vec3) bool
	Extra            TargetFilter
}

// Rejection names the stage that refused a candidate
type Rejection uint8

const (
	Accepted Rejection = iota
	RejectAlreadyTargeted
	RejectPriority
	RejectLineOfSight
	RejectMinDistance
	RejectAngle
	RejectFilter
)

func (r Rejection) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectAlreadyTargeted:
		return "already_targeted"
	case RejectPriority:
		return "priority"
	case RejectLineOfSight:
		return "line_of_sight"
	case RejectMinDistance:
		return "min_distance"
	case RejectAngle:
		return "angle"
	default:
		return "filter"
	}
}

// Evaluate runs the six targeting stages in order and stops at the first failure.
// It does not mutate anything.
func Evaluate(c world.Actor, rules TargetRules, chk Check) Rejection {
	if chk.AlreadyTargeted && !chk.AllowRetargeting {
		return RejectAlreadyTargeted
	}
	if !chk.HasPriority {
		return RejectPriority
	}
	if rules.RequireLineOfSight && chk.LineOfSight != nil && !chk.LineOfSight(chk.Origin, c.Location) {
		return RejectLineOfSight
	}
	scale := chk.Scale
	if scale <= 0 {
		scale = 1
	}
	dist := geom.Distance2D(chk.Origin, c.Location)
	if rules.MinDistance > 0 && dist < rules.MinDistance*scale-c.Radius {
		return RejectMinDistance
	}
	if rules.MaxAngleDeviation > 0 && rules.MaxAngleDeviation < 180 && dist > 0 {
		delta := math.Abs(geom.NormalizeDegrees(geom.YawTo(chk.Origin, c.Location) - chk.Yaw))
		// a wide capsule close by may still poke into the cone
		allowed := rules.MaxAngleDeviation + math.Atan(c.Radius/dist)*180/math.Pi
		if delta > allowed {
			return RejectAngle
		}
	}
	if !passesTags(c, rules, chk) {
		return RejectFilter
	}
	if chk.Extra != nil && !chk.Extra.AllowTarget(c) {
		return RejectFilter
	}
	return Accepted
}

func passesTags(c world.Actor, rules TargetRules, chk Check) bool {
	if c.Handle == chk.Instigator && !chk.Instigator.IsZero() {
		return rules.AffectInstigator
	}
	switch rules.Team {
	case TeamHostile:
		if c.Team == chk.InstigatorTeam {
			return false
		}
	case TeamFriendly:
		if c.Team != chk.InstigatorTeam {
			return false
		}
	}
	if !rules.RequiredTags.IsEmpty() && !c.Tags.HasAll(rules.RequiredTags) {
		return false
	}
	if !rules.BlockedTags.IsEmpty() && c.Tags.HasAny(rules.BlockedTags) {
		return false
	}
	return true
}
