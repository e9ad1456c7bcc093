package match

import (
	"math"

	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/spawn"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

const (
	enemySpeed       = 90.0
	enemyContactDPS  = 6.0
	enemyContactGap  = 4.0
	heroRespawnDelay = 3.0
)

// DefaultEnemies returns the stock enemy catalog
func DefaultEnemies() *spawn.Catalog {
	return spawn.NewCatalog(
		spawn.EnemyData{Class: "drone", Score: 1, MaxWave: spawn.Unlimited, Radius: 14, MaxHealth: 40,
			Tags: tags.New("Unit.Type.Melee")},
		spawn.EnemyData{Class: "raider", Score: 3, MinWave: 2, MaxWave: spawn.Unlimited, Radius: 20, MaxHealth: 60,
			Tags: tags.New("Unit.Type.Ranged")},
		spawn.EnemyData{Class: "gunship", Score: 8, MinWave: 4, MaxWave: spawn.Unlimited, Radius: 30, MaxHealth: 220,
			Tags: tags.New("Unit.Type.Ranged")},
		spawn.EnemyData{Class: "carrier", Score: 25, MinWave: 8, MaxWave: spawn.Unlimited, Radius: 45, MaxHealth: 900,
			Tags: tags.New("Unit.Type.Melee", "Unit.Type.Boss")},
	)
}

// moveEnemies steers every enemy toward the nearest hero and lets the ones in
// contact chip at its health
func (m *Match) moveEnemies(dt float64) {
	type step struct {
		h    world.Handle
		loc  geom.Vec3
		yaw  float64
		bite world.Handle
	}
	var steps []step
	m.world.Each(func(a world.Actor) {
		if a.Team != m.enemyTeam || !a.Alive() {
			return
		}
		var target world.Actor
		best := math.MaxFloat64
		for _, h := range m.heroes {
			hero, ok := m.world.Actor(h)
			if !ok || !hero.Alive() {
				continue
			}
			if d := geom.Distance2D(a.Location, hero.Location); d < best {
				best, target = d, hero
			}
		}
		if best == math.MaxFloat64 {
			return
		}
		yaw := geom.YawTo(a.Location, target.Location)
		reach := a.Radius + target.Radius + enemyContactGap
		if best <= reach {
			steps = append(steps, step{h: a.Handle, loc: a.Location, yaw: yaw, bite: target.Handle})
			return
		}
		move := math.Min(a.Attribute("Speed", enemySpeed)*dt, best-reach)
		steps = append(steps, step{h: a.Handle, loc: a.Location.Add(geom.Forward(yaw).Scale(move)), yaw: yaw})
	})

	for _, s := range steps {
		m.world.Update(s.h, func(a *world.Actor) {
			a.Location = s.loc
			a.Yaw = s.yaw
		})
		if !s.bite.IsZero() {
			m.dispatcher.modify(s.bite, effect.AttributeDamage, enemyContactDPS*dt, s.h)
		}
	}
}
