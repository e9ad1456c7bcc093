package spawn

import (
	"math"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// Arena is where spawned enemies live
type Arena interface {
	Spawn(a world.Actor) world.Handle
	Despawn(h world.Handle) bool
}

// QueueElement is a group of identical enemies waiting to be spawned
type QueueElement struct {
	Enemy         *EnemyData
	Location      geom.Vec3
	Level         int
	Amount        int
	Rarity        tags.Tag
	RandomEffects int
}

// WaveReport summarizes one queued wave
type WaveReport struct {
	Wave     int
	Score    float64
	Variety  int
	Location geom.Vec3
	Groups   []QueueElement
	Rares    int
}

// Units returns the number of enemies the wave will spawn
func (r WaveReport) Units() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Amount
	}
	return n
}

// Director composes waves from a rotating enemy pool and spawns them over time.
// It is driven by the match clock and is not safe for concurrent use.
type Director struct {
	log      *zap.Logger
	clk      *clock.Scheduler
	arena    Arena
	catalog  *Catalog
	settings Settings
	rng      *rand.Rand

	wave         int
	lastRareWave int
	seqIndex     int

	pool      []*EnemyData
	durations map[*EnemyData]int

	queue      []QueueElement
	spawnTimer clock.Token
	spawned    map[world.Handle]struct{}

	// OnWave runs after a wave was queued
	OnWave func(WaveReport)
	// OnSpawn runs for every enemy that enters the arena
	OnSpawn func(h world.Handle, el QueueElement)
	// OnCount runs whenever the number of live spawned enemies changes
	OnCount func(n int)
}

// NewDirector creates a director seeded with seed and fills its initial pool
func NewDirector(log *zap.Logger, clk *clock.Scheduler, arena Arena, catalog *Catalog, settings Settings, seed uint64) *Director {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Director{
		log:       log,
		clk:       clk,
		arena:     arena,
		catalog:   catalog,
		settings:  settings,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		wave:      1,
		durations: make(map[*EnemyData]int),
		spawned:   make(map[world.Handle]struct{}),
	}
	d.initializePool()
	return d
}

// Wave returns the number of the next wave
func (d *Director) Wave() int { return d.wave }

// Pool returns the enemies currently available to waves
func (d *Director) Pool() []*EnemyData { return slices.Clone(d.pool) }

// Queue returns the groups still waiting to spawn
func (d *Director) Queue() []QueueElement { return slices.Clone(d.queue) }

// Alive returns the number of spawned enemies still in the arena
func (d *Director) Alive() int { return len(d.spawned) }

// Spawning reports whether the spawn timer is running
func (d *Director) Spawning() bool { return d.clk.Active(d.spawnTimer) }

func (d *Director) variety() int {
	return int(math.Trunc(d.settings.Variety.Eval(float64(d.wave))))
}

func (d *Director) maxScore() float64 {
	v := d.variety()
	if v <= 0 {
		return 0
	}
	return d.settings.Score.Eval(float64(d.wave)) / float64(v)
}

func (d *Director) desiredPoolSize() int {
	amount := int(d.settings.PoolAmount.Eval(float64(d.wave)))
	if amount == Unlimited {
		return Unlimited
	}
	return max(amount, d.variety())
}

func (d *Director) pooledDuration() int {
	return int(d.settings.PooledDuration.Eval(float64(d.wave))) + d.rng.IntN(11) - 5
}

// SpawnNextWave queues the current wave around location, then advances the wave
// counter and ages the pool
func (d *Director) SpawnNextWave(location geom.Vec3) WaveReport {
	r := d.SpawnWave(d.settings.Score.Eval(float64(d.wave)), d.variety(), location)
	d.wave++
	d.updatePool()
	return r
}

// SpawnWave splits score over variety different enemies from the pool. Each group
// takes an equal share of what is left, so rounding leftovers carry to the
// cheaper groups that follow.
func (d *Director) SpawnWave(score float64, variety int, location geom.Vec3) WaveReport {
	report := WaveReport{Wave: d.wave, Score: score, Variety: variety, Location: location}
	if variety <= 0 {
		d.log.Warn("wave without variety", zap.Int("wave", d.wave))
		return report
	}
	perEnemy := score / float64(variety)

	pool := slices.DeleteFunc(slices.Clone(d.pool), func(e *EnemyData) bool { return e.Score > perEnemy })
	var picks []*EnemyData
	for i := 0; i < variety && len(pool) > 0; i++ {
		idx := d.rng.IntN(len(pool))
		picks = append(picks, pool[idx])
		pool[idx] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
		if len(pool) == 0 && i < variety-1 {
			d.log.Info("not enough enemies in the pool to cover the variety",
				zap.Int("wave", d.wave),
				zap.Int("variety", variety),
				zap.Int("picked", len(picks)),
			)
		}
	}
	slices.SortStableFunc(picks, func(a, b *EnemyData) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	remaining := score
	left := variety
	var groups []QueueElement
	for _, e := range picks {
		share := remaining / float64(left)
		amount := int(share / e.Score)
		if amount < 1 {
			d.log.Warn("enemy share below one unit",
				zap.String("class", e.Class),
				zap.Float64("share", share),
				zap.Float64("score", e.Score),
			)
			amount = 1
		}
		groups = append(groups, QueueElement{Enemy: e, Location: location, Level: d.wave, Amount: amount})
		remaining -= float64(amount) * e.Score
		left--
	}

	if len(groups) > 0 && d.shouldCreateRares() {
		var rares int
		groups, rares = d.createRares(groups)
		report.Rares = rares
	}
	report.Groups = groups

	d.log.Info("wave queued",
		zap.Int("wave", d.wave),
		zap.Float64("score", score),
		zap.Int("groups", len(groups)),
		zap.Int("units", report.Units()),
		zap.Int("rares", report.Rares),
	)
	d.enqueue(groups)
	if d.OnWave != nil {
		d.OnWave(report)
	}
	return report
}

func (d *Director) shouldCreateRares() bool {
	return float64(d.wave) >= float64(d.lastRareWave)+d.settings.RareWaveSpacing.Eval(float64(d.wave))
}

// createRares takes single units out of random groups and turns them into rares.
// Every unit left in the wave becomes magic.
func (d *Director) createRares(groups []QueueElement) ([]QueueElement, int) {
	d.lastRareWave = d.wave
	n := int(d.settings.RareAmount.Eval(float64(d.wave)))
	effects := int(d.settings.RareEffectsAmount.Eval(float64(d.wave)))

	var rares []QueueElement
	for i := 0; i < n && len(groups) > 0; i++ {
		idx := d.rng.IntN(len(groups))
		rare := groups[idx]
		rare.Amount = 1
		rare.Rarity = RarityRare
		rare.RandomEffects = effects
		if groups[idx].Amount == 1 {
			groups = slices.Delete(groups, idx, idx+1)
		} else {
			groups[idx].Amount--
		}
		rares = append(rares, rare)
	}
	for i := range groups {
		groups[i].Rarity = RarityMagic
	}
	return append(groups, rares...), len(rares)
}

func (d *Director) enqueue(groups []QueueElement) {
	if len(groups) == 0 {
		d.log.Warn("no enemies added to the spawn queue", zap.Int("wave", d.wave))
		return
	}
	d.queue = append(d.queue, groups...)
	if !d.clk.Active(d.spawnTimer) {
		every := d.settings.TimeBetweenSpawns
		d.spawnTimer = d.clk.Every(every, every, d.spawnQueued)
	}
}

// spawnQueued spawns one unit of the queue head
func (d *Director) spawnQueued() {
	if len(d.queue) == 0 {
		d.clk.Cancel(d.spawnTimer)
		d.spawnTimer = 0
		return
	}
	el := &d.queue[0]
	angle := d.rng.Float64() * 360
	dist := math.Sqrt(d.rng.Float64()) * d.settings.SpawnRadius
	loc := el.Location.Add(geom.Forward(angle).Scale(dist))

	scale := 1.0
	switch el.Rarity {
	case RarityElite:
		scale = 1.25
	case RarityRare:
		scale = 1.15
	}
	owned := el.Enemy.Tags
	if el.Rarity != "" {
		owned = owned.With(el.Rarity)
	}
	health := el.Enemy.MaxHealth * (1 + 0.1*float64(el.Level-1))
	h := d.arena.Spawn(world.Actor{
		Class:     el.Enemy.Class,
		Location:  loc,
		Yaw:       geom.YawTo(loc, el.Location),
		Radius:    el.Enemy.Radius * scale,
		Scale:     scale,
		Team:      d.settings.Team,
		Tags:      owned,
		Health:    health,
		MaxHealth: health,
		Attributes: map[string]float64{
			"Level":         float64(el.Level),
			"RandomEffects": float64(el.RandomEffects),
		},
	})
	d.spawned[h] = struct{}{}
	if d.OnSpawn != nil {
		d.OnSpawn(h, *el)
	}
	d.countChanged()

	el.Amount--
	if el.Amount > 0 {
		return
	}
	// swap-remove, so the tail group spawns next
	last := len(d.queue) - 1
	d.queue[0] = d.queue[last]
	d.queue = d.queue[:last]
	if len(d.queue) == 0 {
		d.clk.Cancel(d.spawnTimer)
		d.spawnTimer = 0
	}
}

// EnemyKilled forgets a spawned enemy. It reports whether h was one of ours.
func (d *Director) EnemyKilled(h world.Handle) bool {
	if _, ok := d.spawned[h]; !ok {
		return false
	}
	delete(d.spawned, h)
	d.countChanged()
	return true
}

func (d *Director) countChanged() {
	if d.OnCount != nil {
		d.OnCount(len(d.spawned))
	}
}

// Reset despawns everything and starts over at wave 1 with a fresh pool
func (d *Director) Reset() {
	d.clk.Cancel(d.spawnTimer)
	d.spawnTimer = 0
	d.wave = 1
	d.lastRareWave = 0
	d.seqIndex = 0
	d.queue = nil
	for h := range d.spawned {
		d.arena.Despawn(h)
	}
	clear(d.spawned)
	d.countChanged()
	d.pool = nil
	clear(d.durations)
	d.initializePool()
}

func (d *Director) initializePool() {
	size := d.desiredPoolSize()
	var added []*EnemyData
	if size == Unlimited {
		added = d.catalog.AllForWave(d.wave, d.maxScore())
	} else {
		added = d.enemiesInSequence(size, d.maxScore())
	}
	d.pool = added
	for _, e := range added {
		d.durations[e] = d.pooledDuration()
	}
	if len(d.pool) == 0 {
		d.log.Warn("empty enemy pool", zap.Int("wave", d.wave), zap.Int("catalog", d.catalog.Len()))
		return
	}
	d.log.Debug("enemy pool initialized", zap.Int("wave", d.wave), zap.Int("size", len(d.pool)))
}

// updatePool ages every pooled enemy by one wave, drops the expired ones and
// refills the pool to its desired size
func (d *Director) updatePool() {
	for e, left := range d.durations {
		if left > 0 {
			d.durations[e] = left - 1
		}
	}
	removed := 0
	d.pool = slices.DeleteFunc(d.pool, func(e *EnemyData) bool {
		if e.expired(d.wave) || d.durations[e] == 0 {
			delete(d.durations, e)
			removed++
			return true
		}
		return false
	})

	size := d.desiredPoolSize()
	toAdd := Unlimited
	if size != Unlimited {
		toAdd = size - len(d.pool)
	}
	var added []*EnemyData
	switch {
	case toAdd == Unlimited:
		for _, e := range d.catalog.AllForWave(d.wave, d.maxScore()) {
			if !slices.Contains(d.pool, e) {
				added = append(added, e)
			}
		}
	case toAdd > 0:
		added = d.enemiesInSequence(toAdd, d.maxScore())
	}
	d.pool = append(d.pool, added...)
	for _, e := range added {
		d.durations[e] = d.pooledDuration()
	}
	d.log.Debug("enemy pool updated",
		zap.Int("wave", d.wave),
		zap.Int("removed", removed),
		zap.Int("added", len(added)),
		zap.Int("size", len(d.pool)),
	)
}

func (d *Director) nextRequirement() tags.Set {
	seq := d.settings.PoolSequence
	if len(seq) == 0 {
		return tags.Set{}
	}
	req := seq[d.seqIndex]
	d.seqIndex = (d.seqIndex + 1) % len(seq)
	return req
}

// enemiesInSequence picks up to amount new enemies, cycling the pool sequence
// requirements until one matches
func (d *Director) enemiesInSequence(amount int, maxScore float64) []*EnemyData {
	var added []*EnemyData
	attempts := max(1, len(d.settings.PoolSequence))
	for range amount {
		var found *EnemyData
		for range attempts {
			ignored := append(slices.Clone(d.pool), added...)
			if found = d.catalog.RandomForWave(d.rng, d.wave, maxScore, d.nextRequirement(), ignored); found != nil {
				break
			}
		}
		if found == nil {
			break
		}
		added = append(added, found)
	}
	return added
}
