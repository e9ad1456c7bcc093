package match

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/journal"
	"effects-server/internal/logging"
	"effects-server/internal/overlap"
	"effects-server/internal/replication"
	"effects-server/internal/spawn"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

const (
	DefaultTickRate       = 60
	DefaultBroadcastEvery = 2
	heroTeam              = 1
	heroMaxHealth         = 300.0
	heroRadius            = 20.0
	waveDistance          = 650.0
	waveWarmup            = 5.0
)

// ErrStopped is returned for work posted to a match that has ended
var ErrStopped = errors.New("match stopped")

// Options configure one match
type Options struct {
	Name           string
	TickRate       int
	BroadcastEvery int
	WaveInterval   time.Duration
	Seed           uint64
	PoolCapacity   int
	Width, Height  float64
	Heroes         int
	// Autopilot lets heroes cast on their own whenever something is in range
	Autopilot bool
}

func (o *Options) defaults() {
	if o.TickRate <= 0 {
		o.TickRate = DefaultTickRate
	}
	if o.BroadcastEvery <= 0 {
		o.BroadcastEvery = DefaultBroadcastEvery
	}
	if o.WaveInterval <= 0 {
		o.WaveInterval = 20 * time.Second
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = world.DefaultWidth, world.DefaultHeight
	}
	if o.Heroes <= 0 {
		o.Heroes = 1
	}
}

// WaveRecorder stores queued waves
type WaveRecorder interface {
	RecordWave(id uuid.UUID, w journal.WaveRow) error
}

// Deps are the outside collaborators of a match
type Deps struct {
	Log   *zap.Logger
	Sinks []logging.NamedSink
	Waves WaveRecorder
}

// Info is the public summary of a match
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Tick      uint64    `json:"tick"`
	Wave      int       `json:"wave"`
	Heroes    int       `json:"heroes"`
	Enemies   int       `json:"enemies"`
	Effects   int       `json:"effects"`
	Casts     int       `json:"casts"`
	Observers int       `json:"observers"`
}

type cueCounter struct {
	log    *zap.Logger
	counts map[tags.Tag]int
}

func (c *cueCounter) HandleCue(tag tags.Tag, kind effect.CueEvent, p effect.CueParams) {
	c.counts[tag]++
	if ce := c.log.Check(zap.DebugLevel, "cue"); ce != nil {
		ce.Write(zap.String("tag", string(tag)), zap.Uint8("kind", uint8(kind)), zap.Float64("scale", p.Scale))
	}
}

// Match is one running arena: a world, its effect runtime, a wave director
// and the replication feed observers watch. Everything except Info, Hub and
// Snapshot belongs to the match goroutine.
type Match struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time

	log  *zap.Logger
	opts Options

	world      *world.World
	clk        *clock.Scheduler
	env        *effect.Env
	pool       *effect.Pool
	dispatcher *Dispatcher
	scaler     *Scaler
	director   *spawn.Director
	router     *logging.Router
	ledger     *replication.Ledger
	hub        *replication.Hub
	cues       *cueCounter
	waves      WaveRecorder

	abilities map[string]*Ability
	queries   map[queryKey]*overlap.Scheduler
	cooldowns map[world.Handle]map[string]float64
	heroes    []world.Handle
	enemyTeam int
	nextKey   int32
	casts     int

	commands chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu   sync.RWMutex
	info Info
}

// New builds a match. Call Run to start its loop.
func New(id uuid.UUID, opts Options, deps Deps) *Match {
	opts.defaults()
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("match", id.String()))

	m := &Match{
		ID:        id,
		Name:      opts.Name,
		CreatedAt: time.Now().UTC(),
		log:       log,
		opts:      opts,
		world:     world.New(opts.Width, opts.Height),
		clk:       clock.New(1 / float64(opts.TickRate)),
		scaler:    DefaultScaler(),
		ledger:    replication.NewLedger(),
		hub:       replication.NewHub(log),
		cues:      &cueCounter{log: log, counts: make(map[tags.Tag]int)},
		waves:     deps.Waves,
		abilities: make(map[string]*Ability),
		queries:   make(map[queryKey]*overlap.Scheduler),
		cooldowns: make(map[world.Handle]map[string]float64),
		commands:  make(chan func(), 64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	sinks := append([]logging.NamedSink{{Name: "replication", Sink: m.ledger}}, deps.Sinks...)
	m.router = logging.NewRouter(log, sinks...)
	m.dispatcher = NewDispatcher(m.world, m.clk, log)
	m.dispatcher.OnDeath = m.onDeath
	m.env = effect.NewEnv(effect.EnvConfig{
		Clock:      m.clk,
		Spatial:    m.world,
		Dispatcher: m.dispatcher,
		Cues:       m.cues,
		Scaler:     m.scaler,
		Shared:     effect.NewSharedDataTable(true, m.ledger),
		Ledger:     m.ledger,
		Events:     m.router,
		Log:        log,
		Authority:  true,
	})
	m.pool = effect.NewPool(m.env, opts.PoolCapacity, 0)
	m.env.SetPool(m.pool)
	for _, ab := range DefaultAbilities() {
		m.abilities[ab.Name] = ab
		if ab.Entity != nil {
			m.pool.Register(ab.Entity)
		}
	}

	settings := spawn.DefaultSettings()
	m.enemyTeam = settings.Team
	m.director = spawn.NewDirector(log, m.clk, m.world, DefaultEnemies(), settings, opts.Seed)
	m.director.OnWave = m.onWave

	center := m.center()
	for i := range opts.Heroes {
		loc := center
		if i > 0 {
			loc = center.Add(geom.Forward(float64(i) * 360 / float64(opts.Heroes)).Scale(60))
		}
		m.heroes = append(m.heroes, m.world.Spawn(world.Actor{
			Class:     "hero",
			Location:  loc,
			Radius:    heroRadius,
			Scale:     1,
			Team:      heroTeam,
			Health:    heroMaxHealth,
			MaxHealth: heroMaxHealth,
		}))
	}

	interval := opts.WaveInterval.Seconds()
	m.clk.Every(min(waveWarmup, interval), interval, m.nextWave)
	m.info = Info{ID: id.String(), Name: opts.Name, CreatedAt: m.CreatedAt, Heroes: len(m.heroes)}
	return m
}

func (m *Match) center() geom.Vec3 {
	return geom.Vec3{X: m.opts.Width / 2, Y: m.opts.Height / 2}
}

// Heroes returns the hero handles
func (m *Match) Heroes() []world.Handle { return m.heroes }

// World exposes the arena to code on the match goroutine
func (m *Match) World() *world.World { return m.world }

// Clock exposes the match clock to code on the match goroutine
func (m *Match) Clock() *clock.Scheduler { return m.clk }

// Director exposes the wave director to code on the match goroutine
func (m *Match) Director() *spawn.Director { return m.director }

// Dispatcher exposes the effect dispatcher to code on the match goroutine
func (m *Match) Dispatcher() *Dispatcher { return m.dispatcher }

// Router returns the event router of the match
func (m *Match) Router() *logging.Router { return m.router }

// Hub implements replication.Feed
func (m *Match) Hub() *replication.Hub { return m.hub }

// Snapshot implements replication.Feed
func (m *Match) Snapshot() ([]byte, error) {
	return replication.Encode(m.ledger.Snapshot())
}

// Info returns the latest summary
func (m *Match) Info() Info {
	m.mu.RLock()
	info := m.info
	m.mu.RUnlock()
	info.Observers = m.hub.ClientCount()
	return info
}

// Run drives the match at its tick rate until ctx ends or Stop is called
func (m *Match) Run(ctx context.Context) error {
	defer m.shutdown()
	ticker := time.NewTicker(time.Second / time.Duration(m.opts.TickRate))
	defer ticker.Stop()

	m.log.Info("match started", zap.String("name", m.Name), zap.Int("tick_rate", m.opts.TickRate))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stop:
			return nil
		case fn := <-m.commands:
			fn()
		case <-ticker.C:
			m.Step()
		}
	}
}

// Stop ends the match loop
func (m *Match) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Done is closed once the loop has exited
func (m *Match) Done() <-chan struct{} { return m.done }

// Do runs fn on the match goroutine and waits for it
func (m *Match) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case m.commands <- func() { fn(); close(finished) }:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step runs one tick
func (m *Match) Step() {
	dt := m.clk.TickLength()
	m.clk.Advance(dt)
	m.moveEnemies(dt)
	if m.opts.Autopilot {
		m.autopilot()
	}
	if m.clk.Tick()%uint64(m.opts.BroadcastEvery) == 0 {
		m.broadcast()
	}
}

func (m *Match) autopilot() {
	for _, h := range m.heroes {
		hero, ok := m.world.Actor(h)
		if !ok || !hero.Alive() {
			continue
		}
		for _, name := range []string{Nova, MissileBarrage, ShockField, OrbitalStrike} {
			ab := m.abilities[name]
			if !m.Ready(h, name) || len(m.hostilesNear(hero, ab.Range)) == 0 {
				continue
			}
			if _, err := m.Cast(h, name); err != nil {
				m.log.Debug("autopilot cast failed", zap.String("ability", name), zap.Error(err))
			}
		}
		if hero.Health < hero.MaxHealth*0.6 && m.Ready(h, HealAura) {
			if _, err := m.Cast(h, HealAura); err != nil {
				m.log.Debug("autopilot heal failed", zap.Error(err))
			}
		}
	}
}

func (m *Match) nextWave() {
	wave := m.director.Wave()
	loc := m.center().Add(geom.Forward(float64(wave) * 72).Scale(waveDistance))
	m.director.SpawnNextWave(loc)
}

func (m *Match) onWave(r spawn.WaveReport) {
	m.log.Info("wave queued",
		zap.Int("wave", r.Wave),
		zap.Float64("score", r.Score),
		zap.Int("units", r.Units()),
		zap.Int("rares", r.Rares),
	)
	if m.waves == nil {
		return
	}
	err := m.waves.RecordWave(m.ID, journal.WaveRow{
		Wave:    r.Wave,
		Score:   r.Score,
		Variety: r.Variety,
		Units:   r.Units(),
		Rares:   r.Rares,
	})
	if err != nil {
		m.log.Warn("record wave", zap.Int("wave", r.Wave), zap.Error(err))
	}
}

// onDeath despawns dead enemies and brings heroes back after a delay
func (m *Match) onDeath(victim, killer world.Handle) {
	if !slices.Contains(m.heroes, victim) {
		m.director.EnemyKilled(victim)
		m.world.Despawn(victim)
		return
	}
	m.log.Info("hero down", zap.Stringer("hero", victim), zap.Stringer("killer", killer))
	m.clk.After(heroRespawnDelay, func() {
		m.world.Update(victim, func(a *world.Actor) {
			a.Health = a.MaxHealth
			a.Location = m.center()
		})
	})
}

// actorStates collects the observer view of every actor
func (m *Match) actorStates() []replication.ActorState {
	states := make([]replication.ActorState, 0, m.world.Len())
	m.world.Each(func(a world.Actor) {
		states = append(states, replication.ActorState{
			Handle:    a.Handle,
			Class:     a.Class,
			Team:      a.Team,
			Location:  a.Location,
			Yaw:       a.Yaw,
			Health:    a.Health,
			MaxHealth: a.MaxHealth,
		})
	})
	return states
}

// broadcast flushes the ledger to observers and refreshes Info
func (m *Match) broadcast() {
	f := m.ledger.Flush(m.clk.Tick(), m.clk.Now(), m.actorStates())
	if f != nil && m.hub.ClientCount() > 0 {
		data, err := replication.Encode(f)
		if err != nil {
			m.log.Error("encode frame", zap.Error(err))
		} else {
			m.hub.Broadcast(data)
		}
	}

	_, individuals := m.ledger.Live()
	m.mu.Lock()
	m.info.Tick = m.clk.Tick()
	m.info.Wave = m.director.Wave() - 1
	m.info.Enemies = m.director.Alive()
	m.info.Effects = individuals
	m.info.Casts = m.casts
	m.mu.Unlock()
}

func (m *Match) shutdown() {
	for _, s := range m.queries {
		s.Cancel()
	}
	m.env.Close()
	m.hub.Close()
	close(m.done)
	m.log.Info("match stopped", zap.Uint64("tick", m.clk.Tick()), zap.Int("casts", m.casts))
}

// String identifies the match in logs
func (m *Match) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.ID)
}
