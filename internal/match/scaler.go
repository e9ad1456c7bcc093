package match

import (
	"effects-server/internal/effect"
	"effects-server/internal/tags"
)

// Ability modifier tags a caster can carry
const (
	ModifierEnlarge tags.Tag = "Ability.Modifier.Enlarge"
	ModifierExtend  tags.Tag = "Ability.Modifier.Extend"
	ModifierHaste   tags.Tag = "Ability.Modifier.Haste"
	ModifierEmpower tags.Tag = "Ability.Modifier.Empower"
	modifierRoot    tags.Tag = "Ability.Modifier"
)

// ScaleRule multiplies Attribute when the context carries Tag. An empty tag
// matches every context.
type ScaleRule struct {
	Attribute string
	Tag       tags.Tag
	Factor    float64
}

// Scaler is a rule-based effect.AttributeScaler
type Scaler struct {
	rules []ScaleRule
}

// NewScaler creates a scaler from rules applied in order
func NewScaler(rules ...ScaleRule) *Scaler {
	return &Scaler{rules: rules}
}

// DefaultScaler knows the stock ability modifiers
func DefaultScaler() *Scaler {
	return NewScaler(
		ScaleRule{Attribute: effect.AttributeArea, Tag: ModifierEnlarge, Factor: 1.3},
		ScaleRule{Attribute: effect.AttributeDuration, Tag: ModifierExtend, Factor: 1.5},
		ScaleRule{Attribute: effect.AttributePeriod, Tag: ModifierHaste, Factor: 0.75},
		ScaleRule{Attribute: effect.AttributeDamage, Tag: ModifierEmpower, Factor: 1.25},
		ScaleRule{Attribute: effect.AttributeHealing, Tag: ModifierEmpower, Factor: 1.25},
	)
}

// Scale implements effect.AttributeScaler
func (s *Scaler) Scale(base float64, ctx tags.Set, attribute string) float64 {
	out := base
	for _, r := range s.rules {
		if r.Attribute != attribute {
			continue
		}
		if r.Tag == "" || ctx.Has(r.Tag) {
			out *= r.Factor
		}
	}
	return out
}

// SharedData derives the cast-wide multipliers for a caster at level with
// the given context tags. Modifier tags in ctx are carried along so every
// entity of the cast owns them.
func (s *Scaler) SharedData(level int, ctx tags.Set) effect.SharedData {
	var modifiers []string
	for _, t := range ctx.Slice() {
		if t.Matches(modifierRoot) {
			modifiers = append(modifiers, string(t))
		}
	}
	return effect.SharedData{
		AbilityLevel:       max(1, level),
		DurationMultiplier: s.Scale(1, ctx, effect.AttributeDuration),
		PeriodMultiplier:   s.Scale(1, ctx, effect.AttributePeriod),
		AreaMultiplier:     s.Scale(1, ctx, effect.AttributeArea),
		ModifierTags:       modifiers,
	}
}
