package spawn

import (
	"math/rand/v2"
	"slices"

	"effects-server/internal/geom"
	"effects-server/internal/tags"
)

// Rarity tags put on spawned enemies
const (
	RarityMagic tags.Tag = "Unit.Rarity.Magic"
	RarityRare  tags.Tag = "Unit.Rarity.Rare"
	RarityElite tags.Tag = "Unit.Rarity.Elite"
)

// Unlimited marks an enemy without a wave cap, or a pool that takes every eligible enemy
const Unlimited = -1

// EnemyData is one enemy archetype the director can put in its pool
type EnemyData struct {
	Class     string
	Score     float64
	MinWave   int
	MaxWave   int // Unlimited or the last wave the enemy may appear in
	Tags      tags.Set
	Radius    float64
	MaxHealth float64
}

func (d *EnemyData) eligible(wave int, maxScore float64) bool {
	if wave < d.MinWave || d.Score > maxScore {
		return false
	}
	return !d.expired(wave)
}

func (d *EnemyData) expired(wave int) bool {
	return d.MaxWave != Unlimited && wave > d.MaxWave
}

// Settings are the wave curves, evaluated at the wave number
type Settings struct {
	Score             geom.Curve
	Variety           geom.Curve
	RareWaveSpacing   geom.Curve
	RareAmount        geom.Curve
	RareEffectsAmount geom.Curve
	PoolAmount        geom.Curve // Unlimited takes every eligible enemy
	PooledDuration    geom.Curve // waves an enemy stays in the pool
	PoolSequence      []tags.Set // tag requirements cycled when refilling the pool

	TimeBetweenSpawns float64
	SpawnRadius       float64
	Team              int
}

// DefaultSettings returns a slowly escalating survival curve set
func DefaultSettings() Settings {
	return Settings{
		Score:             geom.NewCurve(geom.CurveKey{T: 1, V: 10}, geom.CurveKey{T: 20, V: 200}),
		Variety:           geom.NewCurve(geom.CurveKey{T: 1, V: 1}, geom.CurveKey{T: 10, V: 3}, geom.CurveKey{T: 20, V: 4}),
		RareWaveSpacing:   geom.Constant(5),
		RareAmount:        geom.NewCurve(geom.CurveKey{T: 1, V: 1}, geom.CurveKey{T: 20, V: 3}),
		RareEffectsAmount: geom.Constant(1),
		PoolAmount:        geom.Constant(4),
		PooledDuration:    geom.Constant(12),
		TimeBetweenSpawns: 0.25,
		SpawnRadius:       250,
		Team:              2,
	}
}

// Catalog holds every enemy archetype known to a match
type Catalog struct {
	enemies []*EnemyData
}

// NewCatalog copies enemies into a catalog
func NewCatalog(enemies ...EnemyData) *Catalog {
	c := &Catalog{}
	for _, e := range enemies {
		c.enemies = append(c.enemies, &e)
	}
	return c
}

// Len returns the number of archetypes
func (c *Catalog) Len() int { return len(c.enemies) }

// AllForWave returns every enemy eligible at wave with a score of at most maxScore
func (c *Catalog) AllForWave(wave int, maxScore float64) []*EnemyData {
	var out []*EnemyData
	for _, e := range c.enemies {
		if e.eligible(wave, maxScore) {
			out = append(out, e)
		}
	}
	return out
}

// RandomForWave picks one eligible enemy that carries every tag in req and is not in ignored
func (c *Catalog) RandomForWave(rng *rand.Rand, wave int, maxScore float64, req tags.Set, ignored []*EnemyData) *EnemyData {
	var candidates []*EnemyData
	for _, e := range c.enemies {
		if !e.eligible(wave, maxScore) || !e.Tags.HasAll(req) || slices.Contains(ignored, e) {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rng.IntN(len(candidates))]
}
