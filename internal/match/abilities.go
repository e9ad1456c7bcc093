package match

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/overlap"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// Ability names
const (
	MissileBarrage = "missile_barrage"
	HealAura       = "heal_aura"
	ShockField     = "shock_field"
	Nova           = "nova"
	OrbitalStrike  = "orbital_strike"
)

// Ability tuning
const (
	MissileBarrageCooldown = 12.0
	MissileBarrageCount    = 5
	MissileBarrageDamage   = 25
	MissileBarrageRange    = 700.0

	HealAuraCooldown = 18.0
	HealAuraDuration = 5.0
	HealAuraRadius   = 150.0
	HealAuraRate     = 10.0 // HP/s per ally

	ShockFieldCooldown = 10.0
	ShockFieldDuration = 3.0
	ShockFieldPeriod   = 0.5
	ShockFieldRadius   = 120.0
	ShockFieldDamage   = 8

	NovaCooldown = 8.0
	NovaDuration = 0.6
	NovaRadius   = 40.0
	NovaGrowth   = 6.0
	NovaDamage   = 30

	OrbitalStrikeCooldown = 20.0
	OrbitalStrikeTargets  = 3
	OrbitalStrikeDelay    = 0.75
	OrbitalStrikeInterval = 0.3
	OrbitalStrikeDamage   = 60
	OrbitalStrikeRange    = 900.0
)

var (
	ErrUnknownAbility = errors.New("unknown ability")
	ErrUnknownCaster  = errors.New("unknown caster")
	ErrOnCooldown     = errors.New("ability on cooldown")
)

// Placement decides where the entities or overlap checks of a cast go
type Placement uint8

const (
	// PlaceOnTargets puts one instance on each picked hostile
	PlaceOnTargets Placement = iota
	// PlaceOnCaster puts a single instance on the caster
	PlaceOnCaster
	// PlaceOnNearest puts a single instance on the nearest hostile
	PlaceOnNearest
)

// Ability is one castable ability. Exactly one of Entity and Query is set:
// entity abilities spawn pooled effect entities, query abilities feed the
// overlap scheduler of their caster.
type Ability struct {
	Name       string
	Cooldown   float64
	Range      float64
	MaxTargets int
	Placement  Placement
	Location   effect.LocationType

	Entity *effect.Definition
	Query  *overlap.Definition
}

// Tags returns the owning tags of the ability
func (a *Ability) Tags() tags.Set {
	if a.Entity != nil {
		return a.Entity.OwningTags
	}
	return a.Query.OwningTags
}

func damage(mag float64) effect.Container {
	return effect.Container{Specs: []effect.EffectSpec{{Attribute: effect.AttributeDamage, Magnitude: mag}}}
}

// DefaultAbilities returns the stock ability set
func DefaultAbilities() []*Ability {
	hostile := effect.TargetRules{Team: effect.TeamHostile}
	return []*Ability{
		{
			Name:       MissileBarrage,
			Cooldown:   MissileBarrageCooldown,
			Range:      MissileBarrageRange,
			MaxTargets: MissileBarrageCount,
			Placement:  PlaceOnTargets,
			Location:   effect.LocationTarget,
			Entity: &effect.Definition{
				Class:      MissileBarrage,
				Shape:      geom.Sphere(60),
				Rules:      hostile,
				Container:  damage(MissileBarrageDamage),
				OwningTags: tags.New("Ability.Type.Projectile"),
				CueTag:     "Cue.Missile.Impact",
			},
		},
		{
			Name:      HealAura,
			Cooldown:  HealAuraCooldown,
			Placement: PlaceOnCaster,
			Location:  effect.LocationInstigator,
			Entity: &effect.Definition{
				Class:    HealAura,
				Shape:    geom.Sphere(HealAuraRadius),
				Duration: effect.Duration{LifeSpan: HealAuraDuration},
				Attach:   true,
				Rules:    effect.TargetRules{Team: effect.TeamFriendly, AffectInstigator: true},
				Container: effect.Container{Specs: []effect.EffectSpec{{
					Attribute: AttributeHealth,
					Magnitude: HealAuraRate,
					Duration:  effect.Infinite,
					Period:    1,
					GrantTags: []tags.Tag{"State.Regenerating"},
				}}},
				OwningTags: tags.New("Ability.Type.Aura"),
				CueTag:     "Cue.HealAura",
			},
		},
		{
			Name:      ShockField,
			Cooldown:  ShockFieldCooldown,
			Range:     MissileBarrageRange,
			Placement: PlaceOnNearest,
			Location:  effect.LocationWorld,
			Entity: &effect.Definition{
				Class:      ShockField,
				Shape:      geom.Sphere(ShockFieldRadius),
				Duration:   effect.Duration{LifeSpan: ShockFieldDuration, Period: ShockFieldPeriod},
				Rules:      hostile,
				Container:  damage(ShockFieldDamage),
				OwningTags: tags.New(effect.TagTrap),
				CueTag:     "Cue.ShockField",
			},
		},
		{
			Name:      Nova,
			Cooldown:  NovaCooldown,
			Range:     NovaRadius * NovaGrowth,
			Placement: PlaceOnCaster,
			Query: &overlap.Definition{
				Name:  Nova,
				Shape: geom.Sphere(NovaRadius),
				ScaleCurve: geom.NewCurve(
					geom.CurveKey{T: 0, V: 1},
					geom.CurveKey{T: 1, V: NovaGrowth},
				),
				ScaleInterpolation: true,
				Duration:           effect.Duration{LifeSpan: NovaDuration},
				Rules:              hostile,
				Container:          damage(NovaDamage),
				OwningTags:         tags.New(effect.TagStartAtAvatar),
				CueTag:             "Cue.Nova",
			},
		},
		{
			Name:       OrbitalStrike,
			Cooldown:   OrbitalStrikeCooldown,
			Range:      OrbitalStrikeRange,
			MaxTargets: OrbitalStrikeTargets,
			Placement:  PlaceOnTargets,
			Query: &overlap.Definition{
				Name:            OrbitalStrike,
				Shape:           geom.Box(geom.Vec3{X: 90, Y: 40, Z: 100}),
				ActivationDelay: OrbitalStrikeDelay,
				SpawnDelay:      OrbitalStrikeInterval,
				SpawnBatch:      true,
				Rules:           hostile,
				Container:       damage(OrbitalStrikeDamage),
				OwningTags:      tags.New(effect.TagIndividualTarget),
				CueTag:          "Cue.OrbitalStrike",
			},
		},
	}
}

// CastResult describes one successful cast
type CastResult struct {
	Ability  string `json:"ability"`
	Key      int32  `json:"key"`
	SharedID int32  `json:"shared_id"`
	Spawned  int    `json:"spawned"`
	Targets  int    `json:"targets"`
}

type queryKey struct {
	caster  world.Handle
	ability string
}

// hostilesNear returns live hostiles of caster within radius, nearest first
func (m *Match) hostilesNear(caster world.Actor, radius float64) []world.Actor {
	var out []world.Actor
	m.world.Each(func(a world.Actor) {
		if a.Team == caster.Team || !a.Alive() || a.MaxHealth <= 0 {
			return
		}
		if geom.Distance2D(a.Location, caster.Location) <= radius+a.Radius {
			out = append(out, a)
		}
	})
	slices.SortStableFunc(out, func(a, b world.Actor) int {
		return cmp.Compare(geom.Distance2D(a.Location, caster.Location), geom.Distance2D(b.Location, caster.Location))
	})
	return out
}

// place returns the target actors and instance transforms of a cast
func (m *Match) place(ab *Ability, caster world.Actor) ([]world.Handle, []overlap.Target) {
	switch ab.Placement {
	case PlaceOnCaster:
		return []world.Handle{caster.Handle}, []overlap.Target{{Location: caster.Location, Yaw: caster.Yaw}}
	case PlaceOnNearest:
		near := m.hostilesNear(caster, ab.Range)
		if len(near) == 0 {
			loc := caster.Location.Add(geom.Forward(caster.Yaw).Scale(ab.Range / 2))
			return []world.Handle{{}}, []overlap.Target{{Location: loc, Yaw: caster.Yaw}}
		}
		return []world.Handle{near[0].Handle}, []overlap.Target{{Location: near[0].Location, Yaw: caster.Yaw}}
	}
	near := m.hostilesNear(caster, ab.Range)
	if len(near) > ab.MaxTargets {
		near = near[:ab.MaxTargets]
	}
	handles := make([]world.Handle, 0, len(near))
	targets := make([]overlap.Target, 0, len(near))
	for _, a := range near {
		handles = append(handles, a.Handle)
		targets = append(targets, overlap.Target{Location: a.Location, Yaw: geom.YawTo(caster.Location, a.Location)})
	}
	return handles, targets
}

// Ready reports whether caster may cast ability now
func (m *Match) Ready(caster world.Handle, ability string) bool {
	return m.clk.Now() >= m.cooldowns[caster][ability]
}

// Cast runs ability for caster. It must run on the match goroutine; use Do
// from anywhere else.
func (m *Match) Cast(caster world.Handle, ability string) (CastResult, error) {
	ab, ok := m.abilities[ability]
	if !ok {
		return CastResult{}, fmt.Errorf("cast %q: %w", ability, ErrUnknownAbility)
	}
	actor, ok := m.world.Actor(caster)
	if !ok || !actor.Alive() {
		return CastResult{}, fmt.Errorf("cast %q by %s: %w", ability, caster, ErrUnknownCaster)
	}
	if !m.Ready(caster, ability) {
		return CastResult{}, fmt.Errorf("cast %q by %s: %w", ability, caster, ErrOnCooldown)
	}
	handles, targets := m.place(ab, actor)
	if len(targets) == 0 {
		return CastResult{}, fmt.Errorf("cast %q by %s: no target in range: %w", ability, caster, effect.ErrNoCandidate)
	}

	ctx := m.dispatcher.OwnedTags(caster).Merge(ab.Tags())
	level := int(actor.Attribute("Level", 1))
	sd := m.env.Shared().Create(m.scaler.SharedData(level, ctx))
	// the cast holds one reference until everything it spawned took its own
	defer func() {
		if _, err := m.env.Shared().Release(sd.ID); err != nil {
			m.env.Report(err)
		}
	}()
	m.nextKey++
	key := m.nextKey
	res := CastResult{Ability: ability, Key: key, SharedID: sd.ID, Targets: len(targets)}

	if ab.Query != nil {
		qk := queryKey{caster: caster, ability: ability}
		sched, ok := m.queries[qk]
		if !ok {
			sched = overlap.New(m.env, ab.Query, caster, nil)
			m.queries[qk] = sched
		}
		if _, err := sched.Activate(sd, key, targets); err != nil {
			return CastResult{}, err
		}
		res.Spawned = len(targets)
	} else {
		for i, t := range targets {
			e, err := m.pool.Acquire(ab.Entity.Class)
			if err != nil {
				m.env.Report(err, zap.String("ability", ability))
				continue
			}
			err = e.Preactivate(effect.IndividualData{
				SharedDataID:         sd.ID,
				ActivationKey:        key,
				SpawnIndex:           i,
				AbilityClass:         ab.Entity.Class,
				LocationType:         ab.Location,
				Instigator:           caster,
				Target:               handles[i],
				Location:             t.Location,
				Yaw:                  t.Yaw,
				ServerActivationTime: m.clk.Now(),
			})
			if err != nil {
				continue
			}
			res.Spawned++
		}
	}

	if m.cooldowns[caster] == nil {
		m.cooldowns[caster] = make(map[string]float64)
	}
	m.cooldowns[caster][ability] = m.clk.Now() + ab.Cooldown
	m.casts++
	m.log.Debug("ability cast",
		zap.String("ability", ability),
		zap.Stringer("caster", caster),
		zap.Int32("key", key),
		zap.Int("targets", res.Targets),
		zap.Int("spawned", res.Spawned),
	)
	return res, nil
}
