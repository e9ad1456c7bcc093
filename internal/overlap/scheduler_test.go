package overlap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"effects-server/internal/clock"
	"effects-server/internal/effect"
	"effects-server/internal/effect/mocks"
	"effects-server/internal/geom"
	"effects-server/internal/overlap"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

const tick = 1.0 / 60

type hitCounter struct {
	applied   map[world.Handle]int
	multiHits []float64
}

func (d *hitCounter) ApplyEffectContainer(_ effect.Container, target world.Handle) []effect.EffectHandle {
	d.applied[target]++
	return nil
}

func (d *hitCounter) RemoveEffect(effect.EffectHandle) bool { return true }
func (d *hitCounter) OwnedTags(world.Handle) tags.Set       { return tags.Set{} }

func (d *hitCounter) HandleEvent(_ world.Handle, tag tags.Tag, p effect.Payload) {
	if tag == effect.TagEventMultiHit {
		d.multiHits = append(d.multiHits, p.Magnitude)
	}
}

type fixture struct {
	env     *effect.Env
	w       *world.World
	clk     *clock.Scheduler
	disp    *hitCounter
	events  []effect.Event
	caster  world.Handle
	emptied int
}

func newFixture(t *testing.T, cues effect.CueHandler) *fixture {
	t.Helper()
	f := &fixture{
		w:    world.New(0, 0),
		clk:  clock.New(tick),
		disp: &hitCounter{applied: map[world.Handle]int{}},
	}
	f.env = effect.NewEnv(effect.EnvConfig{
		Clock:      f.clk,
		Spatial:    f.w,
		Dispatcher: f.disp,
		Cues:       cues,
		Events:     effect.PublisherFunc(func(ev effect.Event) { f.events = append(f.events, ev) }),
		Authority:  true,
	})
	f.caster = f.w.Spawn(world.Actor{Class: "ship", Location: at(100, 100), Radius: 10, Team: 1})
	return f
}

func (f *fixture) enemy(x, y float64) world.Handle {
	return f.w.Spawn(world.Actor{Class: "mob", Location: at(x, y), Radius: 10, Team: 2})
}

func (f *fixture) scheduler(def *overlap.Definition) *overlap.Scheduler {
	return overlap.New(f.env, def, f.caster, func() { f.emptied++ })
}

func (f *fixture) cast() effect.SharedData {
	return f.env.Shared().Create(effect.SharedData{AbilityLevel: 1, DurationMultiplier: 1, PeriodMultiplier: 1, AreaMultiplier: 1})
}

func (f *fixture) advance(ticks int) {
	for range ticks {
		f.clk.Advance(tick)
	}
}

func (f *fixture) count(kind effect.EventKind) int {
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func at(x, y float64) geom.Vec3 { return geom.Vec3{X: x, Y: y} }

func nova() *overlap.Definition {
	return &overlap.Definition{
		Name:      "nova",
		Shape:     geom.Sphere(50),
		Rules:     effect.TargetRules{Team: effect.TeamHostile},
		Container: effect.Container{Specs: []effect.EffectSpec{{Attribute: effect.AttributeDamage, Magnitude: 10}}},
		CueTag:    "Cue.Nova",
	}
}

func TestInstantQueueDrainsOnePerTick(t *testing.T) {
	f := newFixture(t, nil)
	a, b, c := f.enemy(1000, 1000), f.enemy(1200, 1000), f.enemy(1400, 1000)
	s := f.scheduler(nova())
	sd := f.cast()

	_, err := s.Activate(sd, 7, []overlap.Target{{Location: at(1000, 1000)}, {Location: at(1200, 1000)}, {Location: at(1400, 1000)}})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Instant())
	assert.Equal(t, overlap.TimerArmed, s.State())
	assert.Equal(t, 2, f.env.Shared().Refs(sd.ID))

	f.advance(1)
	assert.Equal(t, 2, s.Instant())
	assert.Equal(t, 1, f.disp.applied[a])
	assert.Zero(t, f.disp.applied[b])

	f.advance(1)
	assert.Equal(t, 1, s.Instant())
	assert.Zero(t, f.emptied)

	f.advance(1)
	assert.Zero(t, s.Pending())
	assert.Equal(t, 1, f.disp.applied[c])
	assert.Equal(t, overlap.Idle, s.State())
	assert.Equal(t, 1, f.emptied)
	assert.Equal(t, 1, f.count(effect.EventQueueEmptied))
	assert.Equal(t, []float64{3}, f.disp.multiHits, "one summary for the whole cast")
	assert.Zero(t, s.Events())
	assert.Equal(t, 1, f.env.Shared().Refs(sd.ID), "the event released its reference")
}

func TestDueDelayedHeadMovesToInstantQueue(t *testing.T) {
	f := newFixture(t, nil)
	f.enemy(1000, 1000)
	def := nova()
	def.SpawnDelay = 0.1
	s := f.scheduler(def)

	id, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}, {Location: at(1000, 1000)}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Instant())
	assert.Equal(t, 1, s.Delayed())

	late := overlap.Snapshot{EventID: id, OverlapID: 5, Location: at(1000, 1000), ActivationTime: -1, AreaMultiplier: 1, DurationMultiplier: 1}
	require.NoError(t, s.Enqueue(late))
	assert.Equal(t, 2, s.Instant())

	err = s.Enqueue(overlap.Snapshot{EventID: 99})
	require.ErrorIs(t, err, effect.ErrNoCandidate)

	f.advance(12)
	assert.Zero(t, s.Pending())
	assert.Equal(t, 1, f.emptied)
}

func TestInterpolatedEventHitsEachTargetOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	cues := mocks.NewMockCueHandler(ctrl)
	cues.EXPECT().HandleCue(tags.Tag("Cue.Nova"), effect.CueExecuted, gomock.Any()).Times(1)

	f := newFixture(t, cues)
	e := f.enemy(1000, 1000)
	def := nova()
	def.Duration = effect.Duration{LifeSpan: 1}
	def.ScaleInterpolation = true
	def.ScaleCurve = geom.NewCurve(geom.CurveKey{T: 0, V: 0.5}, geom.CurveKey{T: 1, V: 2})
	s := f.scheduler(def)

	_, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}})
	require.NoError(t, err)
	assert.Equal(t, 7, s.Pending())

	f.advance(90)
	assert.Equal(t, 1, f.disp.applied[e])
	assert.Equal(t, []float64{1}, f.disp.multiHits)
	assert.Equal(t, 1, f.emptied)
}

func TestGrowingAreaReachesLateTargets(t *testing.T) {
	f := newFixture(t, nil)
	near := f.enemy(1000, 1000)
	far := f.enemy(1080, 1000)
	def := nova()
	def.Duration = effect.Duration{LifeSpan: 1}
	def.ScaleInterpolation = true
	def.ScaleCurve = geom.NewCurve(geom.CurveKey{T: 0, V: 1}, geom.CurveKey{T: 1, V: 2})
	s := f.scheduler(def)

	_, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}})
	require.NoError(t, err)

	f.advance(1)
	assert.Equal(t, 1, f.disp.applied[near])
	assert.Zero(t, f.disp.applied[far])

	f.advance(90)
	assert.Equal(t, 1, f.disp.applied[near])
	assert.Equal(t, 1, f.disp.applied[far])
	assert.Equal(t, []float64{2}, f.disp.multiHits)
}

func TestPeriodicEventStrikesEveryPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	cues := mocks.NewMockCueHandler(ctrl)
	cues.EXPECT().HandleCue(tags.Tag("Cue.Nova"), effect.CueExecuted, gomock.Any()).Times(5)

	f := newFixture(t, cues)
	e := f.enemy(1000, 1000)
	def := nova()
	def.Duration = effect.Duration{LifeSpan: 1, Period: 0.25}
	s := f.scheduler(def)

	_, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Pending())

	f.advance(75)
	assert.Equal(t, 5, f.disp.applied[e])
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, f.disp.multiHits, "periodic events summarize every strike")
	assert.Zero(t, s.Events())
}

func TestBatchTwins(t *testing.T) {
	tests := []struct {
		name   string
		owning tags.Set
		hits   int
	}{
		{name: "shared targeting", hits: 1},
		{name: "individual targeting", owning: tags.New(effect.TagIndividualTarget), hits: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			e := f.enemy(1000, 1000)
			def := nova()
			def.SpawnBatch = true
			def.SpawnDelay = 0.5
			def.OwningTags = tt.owning
			s := f.scheduler(def)

			_, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}})
			require.NoError(t, err)
			assert.Equal(t, 1, s.Instant())
			assert.Equal(t, 1, s.Delayed())

			f.advance(40)
			assert.Equal(t, tt.hits, f.disp.applied[e])
			assert.Zero(t, s.Pending())
		})
	}
}

func TestActivationDelayFiresTelegraphCue(t *testing.T) {
	ctrl := gomock.NewController(t)
	cues := mocks.NewMockCueHandler(ctrl)
	cues.EXPECT().HandleCue(tags.Tag("Cue.Nova"), effect.CueAdded, gomock.Any()).
		Do(func(_ tags.Tag, _ effect.CueEvent, p effect.CueParams) {
			assert.Equal(t, at(1000, 1000), p.Location)
			assert.True(t, p.Authoritative)
		}).
		Times(1)

	f := newFixture(t, cues)
	e := f.enemy(1000, 1000)
	def := nova()
	def.ActivationDelay = 0.5
	s := f.scheduler(def)

	_, err := s.Activate(f.cast(), 1, []overlap.Target{{Location: at(1000, 1000)}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Delayed())
	assert.Equal(t, overlap.TimerArmed, s.State())

	f.advance(20)
	assert.Zero(t, f.disp.applied[e])
	f.advance(20)
	assert.Equal(t, 1, f.disp.applied[e])
}

func TestMissingContextDropsEvent(t *testing.T) {
	f := newFixture(t, nil)
	e := f.enemy(1000, 1000)
	def := nova()
	def.SpawnDelay = 0.2
	s := f.scheduler(def)
	sd := f.cast()

	_, err := s.Activate(sd, 1, []overlap.Target{{Location: at(1000, 1000)}, {Location: at(1000, 1000)}, {Location: at(1000, 1000)}})
	require.NoError(t, err)

	f.env.Close()
	f.advance(30)
	assert.Zero(t, f.disp.applied[e])
	assert.Zero(t, s.Pending())
	assert.Zero(t, s.Events())
	assert.Equal(t, 1, f.env.Shared().Refs(sd.ID))

	_, err = s.Activate(sd, 2, []overlap.Target{{Location: at(1000, 1000)}})
	require.ErrorIs(t, err, effect.ErrMissingContext)
}

func TestCancelReleasesEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.enemy(1000, 1000)
	def := nova()
	def.SpawnDelay = 1
	s := f.scheduler(def)
	sd := f.cast()

	_, err := s.Activate(sd, 1, []overlap.Target{{Location: at(1000, 1000)}, {Location: at(1000, 1000)}})
	require.NoError(t, err)
	f.advance(1)

	s.Cancel()
	assert.Zero(t, s.Pending())
	assert.Equal(t, overlap.Idle, s.State())
	assert.Equal(t, 1, f.env.Shared().Refs(sd.ID))
	assert.Equal(t, []float64{1}, f.disp.multiHits)

	f.advance(120)
	assert.Zero(t, f.emptied)
}

func TestActivateWithoutTargets(t *testing.T) {
	f := newFixture(t, nil)
	s := f.scheduler(nova())
	_, err := s.Activate(f.cast(), 1, nil)
	require.ErrorIs(t, err, effect.ErrNoCandidate)
	assert.Zero(t, s.Events())
}
