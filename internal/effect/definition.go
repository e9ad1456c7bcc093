package effect

import (
	"effects-server/internal/geom"
	"effects-server/internal/tags"
)

// Default delays before a deactivated entity goes back to the pool
const (
	InstantPoolDelay = 0.5
	ExpirePoolDelay  = 0.25
)

// Definition is the static description of one effect class
type Definition struct {
	Class string
	Shape geom.Shape

	ScaleCurve         geom.Curve
	ScaleInterpolation bool

	Duration        Duration
	ActivationDelay float64

	RotationRate      float64 // degrees per second
	AlternateRotation bool    // odd spawn indices spin the other way
	Attach            bool    // follow the location-type actor while active

	DiscreteChecks   bool
	AllowRetargeting bool
	Rules            TargetRules
	ClassFilter      []string

	Container  Container
	OwningTags tags.Set
	CueTag     tags.Tag

	Behavior Behavior
}

func (d *Definition) behavior() Behavior {
	if d.Behavior == nil {
		return BaseBehavior{}
	}
	return d.Behavior
}

// Instant reports whether the effect applies once and ends
func (d *Definition) Instant() bool { return d.Duration.LifeSpan == 0 }

// DerivedTiming is the timing of one activation after shared data scaling
type DerivedTiming struct {
	LifeSpan         float64
	FirstPeriodDelay float64
	Period           float64
	Discrete         bool
	AllowRetargeting bool
	MaxPeriods       int
}

// Timing scales the definition's duration block by the cast multipliers.
// A scale-interpolating persistent effect without a period is checked at
// discrete intervals so the growing shape is sampled.
func (d *Definition) Timing(sd SharedData) DerivedTiming {
	t := DerivedTiming{
		LifeSpan:         d.Duration.LifeSpan,
		FirstPeriodDelay: d.Duration.FirstPeriodDelay,
		Period:           d.Duration.Period,
		Discrete:         d.DiscreteChecks,
	}
	if t.LifeSpan > 0 && sd.DurationMultiplier > 0 {
		t.LifeSpan *= sd.DurationMultiplier
	}
	if sd.PeriodMultiplier > 0 {
		t.FirstPeriodDelay *= sd.PeriodMultiplier
		t.Period *= sd.PeriodMultiplier
	}
	if t.LifeSpan != 0 && d.ScaleInterpolation && t.Period <= 0 {
		t.Period = 0.15
		if t.LifeSpan > 0 {
			t.Period = min(t.LifeSpan/5, 0.15)
		}
		t.Discrete = true
	}
	t.AllowRetargeting = d.AllowRetargeting || (t.Period > 0 && !t.Discrete)
	t.MaxPeriods = Duration{LifeSpan: t.LifeSpan, FirstPeriodDelay: t.FirstPeriodDelay, Period: t.Period}.MaxPeriods()
	return t
}
