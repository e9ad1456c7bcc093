package spawn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/clock"
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

func testSettings() Settings {
	return Settings{
		Score:             geom.Constant(20),
		Variety:           geom.Constant(2),
		RareWaveSpacing:   geom.Constant(100),
		RareAmount:        geom.Constant(1),
		RareEffectsAmount: geom.Constant(2),
		PoolAmount:        geom.Constant(Unlimited),
		PooledDuration:    geom.Constant(12),
		TimeBetweenSpawns: 0.25,
		SpawnRadius:       100,
		Team:              2,
	}
}

func testCatalog() *Catalog {
	return NewCatalog(
		EnemyData{Class: "grunt", Score: 1, MaxWave: Unlimited, Radius: 10, MaxHealth: 50},
		EnemyData{Class: "brute", Score: 5, MaxWave: Unlimited, Radius: 20, MaxHealth: 200},
		EnemyData{Class: "titan", Score: 50, MaxWave: Unlimited, Radius: 40, MaxHealth: 2000},
	)
}

func classes(groups []QueueElement) map[string]int {
	out := map[string]int{}
	for _, g := range groups {
		out[g.Enemy.Class] += g.Amount
	}
	return out
}

func TestSpawnWaveSplitsScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  map[string]int
	}{
		{name: "even split", score: 20, want: map[string]int{"brute": 2, "grunt": 10}},
		{name: "leftover carries to cheaper group", score: 23, want: map[string]int{"brute": 2, "grunt": 13}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.New(1.0 / 60)
			d := NewDirector(nil, clk, world.New(0, 0), testCatalog(), testSettings(), 42)
			require.Len(t, d.Pool(), 2, "titan is over the per-enemy score")

			r := d.SpawnWave(tt.score, 2, geom.Vec3{X: 1000, Y: 1000})
			require.Len(t, r.Groups, 2)
			assert.Equal(t, "brute", r.Groups[0].Enemy.Class, "expensive enemies are sized first")
			assert.Equal(t, tt.want, classes(r.Groups))
			assert.Zero(t, r.Rares)
			assert.True(t, d.Spawning())
		})
	}
}

func TestSpawnWaveIsDeterministic(t *testing.T) {
	run := func() []string {
		d := NewDirector(nil, clock.New(1.0/60), world.New(0, 0), testCatalog(), testSettings(), 7)
		var out []string
		for range 4 {
			r := d.SpawnNextWave(geom.Vec3{X: 500, Y: 500})
			for _, g := range r.Groups {
				out = append(out, g.Enemy.Class)
			}
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestCreateRares(t *testing.T) {
	s := testSettings()
	s.RareWaveSpacing = geom.Constant(1)
	d := NewDirector(nil, clock.New(1.0/60), world.New(0, 0), testCatalog(), s, 3)

	r := d.SpawnWave(20, 2, geom.Vec3{X: 1000, Y: 1000})
	assert.Equal(t, 1, r.Rares)
	assert.Equal(t, 12, r.Units(), "a rare takes its unit out of a group")

	var rares, magic int
	for _, g := range r.Groups {
		switch g.Rarity {
		case RarityRare:
			rares++
			assert.Equal(t, 1, g.Amount)
			assert.Equal(t, 2, g.RandomEffects)
		case RarityMagic:
			magic += g.Amount
		}
	}
	assert.Equal(t, 1, rares)
	assert.Equal(t, 11, magic)
	assert.False(t, d.shouldCreateRares(), "the next rare waits for the spacing")
}

func TestSpawnQueueDrainsOnTimer(t *testing.T) {
	clk := clock.New(1.0 / 60)
	w := world.New(0, 0)
	d := NewDirector(nil, clk, w, testCatalog(), testSettings(), 11)
	var spawned []world.Handle
	d.OnSpawn = func(h world.Handle, _ QueueElement) { spawned = append(spawned, h) }
	center := geom.Vec3{X: 2000, Y: 2000}

	r := d.SpawnWave(20, 2, center)
	units := r.Units()
	require.Equal(t, 12, units)

	clk.Advance(0.25)
	assert.Len(t, spawned, 1)

	for range units - 1 {
		clk.Advance(0.25)
	}
	assert.Len(t, spawned, units)
	assert.Equal(t, units, w.Len())
	assert.Equal(t, units, d.Alive())
	assert.Empty(t, d.Queue())
	assert.False(t, d.Spawning())

	for _, h := range spawned {
		a, ok := w.Actor(h)
		require.True(t, ok)
		assert.Equal(t, 2, a.Team)
		assert.LessOrEqual(t, geom.Distance2D(a.Location, center), 100.0+1e-9)
	}

	assert.True(t, d.EnemyKilled(spawned[0]))
	assert.False(t, d.EnemyKilled(spawned[0]))
	assert.Equal(t, units-1, d.Alive())
}

func TestRareSpawnsLarger(t *testing.T) {
	s := testSettings()
	s.RareWaveSpacing = geom.Constant(1)
	clk := clock.New(1.0 / 60)
	w := world.New(0, 0)
	d := NewDirector(nil, clk, w, testCatalog(), s, 5)
	var rare world.Actor
	d.OnSpawn = func(h world.Handle, el QueueElement) {
		if el.Rarity == RarityRare {
			rare, _ = w.Actor(h)
		}
	}

	r := d.SpawnWave(20, 2, geom.Vec3{X: 2000, Y: 2000})
	for range r.Units() {
		clk.Advance(0.25)
	}
	require.False(t, rare.Handle.IsZero())
	assert.Equal(t, 1.15, rare.Scale)
	assert.True(t, rare.Tags.Has(RarityRare))
}

func TestPoolAgingDropsExpiredEnemies(t *testing.T) {
	catalog := NewCatalog(
		EnemyData{Class: "scout", Score: 1, MaxWave: 1, Tags: tags.New("Unit.Type.Ranged")},
		EnemyData{Class: "raider", Score: 1, MinWave: 2, MaxWave: Unlimited, Tags: tags.New("Unit.Type.Melee")},
		EnemyData{Class: "gunner", Score: 1, MinWave: 2, MaxWave: Unlimited, Tags: tags.New("Unit.Type.Ranged")},
	)
	s := testSettings()
	s.Variety = geom.Constant(1)
	s.Score = geom.Constant(10)
	s.PoolAmount = geom.Constant(2)
	s.PoolSequence = []tags.Set{tags.New("Unit.Type.Ranged"), tags.New("Unit.Type.Melee")}
	d := NewDirector(nil, clock.New(1.0/60), world.New(0, 0), catalog, s, 9)

	pool := d.Pool()
	require.Len(t, pool, 1)
	assert.Equal(t, "scout", pool[0].Class)

	r := d.SpawnNextWave(geom.Vec3{X: 1000, Y: 1000})
	assert.Equal(t, map[string]int{"scout": 10}, classes(r.Groups))
	assert.Equal(t, 2, d.Wave())

	var names []string
	for _, e := range d.Pool() {
		names = append(names, e.Class)
	}
	assert.ElementsMatch(t, []string{"raider", "gunner"}, names)
}

func TestReset(t *testing.T) {
	clk := clock.New(1.0 / 60)
	w := world.New(0, 0)
	d := NewDirector(nil, clk, w, testCatalog(), testSettings(), 1)
	d.SpawnNextWave(geom.Vec3{X: 1000, Y: 1000})
	clk.Advance(0.25)
	clk.Advance(0.25)
	require.Equal(t, 2, w.Len())

	d.Reset()
	assert.Zero(t, w.Len())
	assert.Zero(t, d.Alive())
	assert.Equal(t, 1, d.Wave())
	assert.False(t, d.Spawning())
	assert.Len(t, d.Pool(), 2)
}
