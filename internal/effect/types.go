package effect

import (
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// Infinite marks an unbounded duration or magnitude. Attribute scaling leaves it untouched.
const Infinite = -1.0

// SharedData holds the cast-wide parameters shared by every entity and event of one ability activation
type SharedData struct {
	ID                 int32    `msgpack:"id"`
	AbilityLevel       int      `msgpack:"lvl"`
	DurationMultiplier float64  `msgpack:"dm"`
	PeriodMultiplier   float64  `msgpack:"pm"`
	AreaMultiplier     float64  `msgpack:"am"`
	ModifierTags       []string `msgpack:"tags,omitempty"`
}

// Modifiers returns the modifier tags as a set
func (s SharedData) Modifiers() tags.Set {
	return tags.FromStrings(s.ModifierTags)
}

// LocationType selects what an entity's transform follows
type LocationType uint8

const (
	LocationWorld      LocationType = iota // fixed spawn transform
	LocationTarget                         // the target actor
	LocationInstigator                     // the casting actor
)

// IndividualData holds the per-entity spawn parameters
type IndividualData struct {
	SharedDataID         int32        `msgpack:"sid"`
	ActivationKey        int32        `msgpack:"key"`
	SpawnIndex           int          `msgpack:"idx"`
	AbilityClass         string       `msgpack:"class"`
	LocationType         LocationType `msgpack:"lt"`
	Instigator           world.Handle `msgpack:"inst"`
	Target               world.Handle `msgpack:"tgt"`
	Location             geom.Vec3    `msgpack:"loc"`
	Yaw                  float64      `msgpack:"yaw"`
	ServerActivationTime float64      `msgpack:"t"`
}

// IsZero reports whether d holds no spawn parameters
func (d IndividualData) IsZero() bool {
	return d == IndividualData{}
}

// EffectSpec is one gameplay effect inside a container
type EffectSpec struct {
	Tag       tags.Tag
	Attribute string
	Magnitude float64
	// Duration is 0 for instant effects, > 0 for timed ones and Infinite for
	// effects that last until explicitly removed.
	Duration float64
	// Period > 0 reapplies Magnitude every Period seconds while the effect lives.
	Period    float64
	GrantTags []tags.Tag
}

// IsInfinite reports whether the effect lasts until removed
func (s EffectSpec) IsInfinite() bool { return s.Duration == Infinite }

// Container groups the effects applied to every affected target
type Container struct {
	Specs      []EffectSpec
	Instigator world.Handle
	Causer     uint32 // entity id, 0 for the query path
	Level      int
}

// HasInfinite reports whether any spec lasts until removed
func (c Container) HasInfinite() bool {
	for _, s := range c.Specs {
		if s.IsInfinite() {
			return true
		}
	}
	return false
}

// Scaled returns a copy of the container with magnitudes run through the scaler
func (c Container) Scaled(s AttributeScaler, ctx tags.Set) Container {
	out := c
	out.Specs = make([]EffectSpec, len(c.Specs))
	for i, spec := range c.Specs {
		spec.Magnitude = ScaleValue(s, spec.Magnitude, ctx, spec.Attribute)
		if spec.Duration > 0 {
			spec.Duration = ScaleValue(s, spec.Duration, ctx, AttributeDuration)
		}
		out.Specs[i] = spec
	}
	return out
}

// EffectHandle identifies one applied effect instance
type EffectHandle uint64

// Duration is the timing block of an effect
type Duration struct {
	LifeSpan         float64 // 0 = instant, Infinite = until deactivated
	FirstPeriodDelay float64
	Period           float64 // <= 0 = continuous overlap
}

// MaxPeriods returns floor((lifeSpan-firstPeriodDelay)/period)+1, or 0 when
// unbounded. A finite lifespan shorter than the first delay still runs one period.
func (d Duration) MaxPeriods() int {
	if d.Period <= 0 || d.LifeSpan < 0 {
		return 0
	}
	n := (d.LifeSpan - d.FirstPeriodDelay) / d.Period
	if n < 0 {
		return 1
	}
	// tolerate representation error such as 1.0/0.2 = 4.999999
	return int(n+1e-9) + 1
}
