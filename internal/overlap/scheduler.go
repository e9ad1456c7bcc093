package overlap

import (
	"fmt"
	"slices"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// State is the scheduler's queue state
type State uint8

const (
	Idle State = iota
	TimerArmed
	Draining
)

func (s State) String() string {
	switch s {
	case TimerArmed:
		return "timer_armed"
	case Draining:
		return "draining"
	default:
		return "idle"
	}
}

// Definition describes a query-based ability: overlap checks without a spawned entity
type Definition struct {
	Name               string
	Shape              geom.Shape
	ScaleCurve         geom.Curve
	ScaleInterpolation bool
	Duration           effect.Duration
	ActivationDelay    float64
	SpawnDelay         float64 // between consecutive targets
	SpawnBatch         bool    // fire all targets at once, then again after SpawnDelay
	RotationRate       float64
	Rules              effect.TargetRules
	ClassFilter        []string
	Container          effect.Container
	OwningTags         tags.Set
	CueTag             tags.Tag
	Filter             effect.TargetFilter
}

func (d *Definition) periodic() bool { return d.Duration.Period > 0 }

// Target is one initial location an activation checks around
type Target struct {
	Location geom.Vec3
	Yaw      float64
}

type eventMeta struct {
	key       int32
	shared    effect.SharedData
	container effect.Container
	owning    tags.Set
	duration  effect.Duration
	cuesFired map[WrapperID]bool
}

// Scheduler runs the overlap events of one query-based ability for one instigator.
// Delayed snapshots wait in a time-ordered queue; due snapshots move to an
// instant queue that drains one entry per tick, oldest first.
type Scheduler struct {
	env        *effect.Env
	def        *Definition
	instigator world.Handle
	onEmpty    func()

	delayed      []Snapshot
	instant      []Snapshot
	delayedTimer clock.Token
	drainTimer   clock.Token
	state        State

	nextEventID int32
	events      *intmap.Map[int32, *eventMeta]
	wrappers    *TargetWrappers
}

// New creates a scheduler. onEmpty runs each time both queues run dry and may be nil.
func New(env *effect.Env, def *Definition, instigator world.Handle, onEmpty func()) *Scheduler {
	return &Scheduler{
		env:        env,
		def:        def,
		instigator: instigator,
		onEmpty:    onEmpty,
		events:     intmap.New[int32, *eventMeta](8),
		wrappers:   newTargetWrappers(),
	}
}

// State returns the queue state
func (s *Scheduler) State() State { return s.state }

// Pending returns the number of queued snapshots
func (s *Scheduler) Pending() int { return len(s.delayed) + len(s.instant) }

// Delayed returns how many snapshots wait for their activation time
func (s *Scheduler) Delayed() int { return len(s.delayed) }

// Instant returns how many due snapshots wait to be drained
func (s *Scheduler) Instant() int { return len(s.instant) }

// Events returns the number of events with live bookkeeping
func (s *Scheduler) Events() int { return s.events.Len() }

// Wrappers exposes the per-instance target records
func (s *Scheduler) Wrappers() *TargetWrappers { return s.wrappers }

// Activate builds the snapshots for one cast and queues them. It takes a
// reference on sd that is released when the event is cleaned up.
func (s *Scheduler) Activate(sd effect.SharedData, key int32, targets []Target) (int32, error) {
	if !s.env.Available() {
		return 0, fmt.Errorf("activate %s: %w", s.def.Name, effect.ErrMissingContext)
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("activate %s without targets: %w", s.def.Name, effect.ErrNoCandidate)
	}
	if err := s.env.Shared().Acquire(sd.ID); err != nil {
		return 0, err
	}
	s.nextEventID++
	id := s.nextEventID

	durMult := sd.DurationMultiplier
	if durMult <= 0 {
		durMult = 1
	}
	area := sd.AreaMultiplier
	if area <= 0 {
		area = 1
	}
	d := s.def.Duration
	if d.LifeSpan > 0 {
		d.LifeSpan *= durMult
	}
	if sd.PeriodMultiplier > 0 {
		d.FirstPeriodDelay *= sd.PeriodMultiplier
		d.Period *= sd.PeriodMultiplier
	}
	owning := s.def.OwningTags.Merge(sd.Modifiers())
	container := s.def.Container.Scaled(s.env.Scaler(), owning)
	container.Instigator = s.instigator
	container.Level = sd.AbilityLevel

	meta := &eventMeta{
		key:       key,
		shared:    sd,
		container: container,
		owning:    owning,
		duration:  d,
		cuesFired: make(map[WrapperID]bool),
	}
	s.events.Put(id, meta)

	now := s.env.Clock().Now()
	var avatar geom.Vec3
	if a, ok := s.env.Spatial().Actor(s.instigator); ok {
		avatar = a.Location
	}
	spawnDelay := s.def.SpawnDelay
	if s.def.SpawnBatch {
		spawnDelay = 0
	}
	interp := s.def.ScaleInterpolation && !s.def.periodic()

	var snaps []Snapshot
	for i, t := range targets {
		base := Snapshot{
			EventID:               id,
			OverlapID:             int32(i),
			Location:              t.Location,
			Yaw:                   t.Yaw,
			ActivationTime:        now + float64(i)*spawnDelay,
			InitialEventTime:      now + float64(i)*spawnDelay,
			DurationMultiplier:    durMult,
			AreaMultiplier:        area,
			InitialAvatarLocation: avatar,
		}
		group := []Snapshot{base}
		if interp {
			group = ExpandOverlapEvent(base, d.LifeSpan, InterpSteps(d.LifeSpan))
		}
		snaps = append(snaps, group...)
		if s.def.SpawnBatch {
			for _, g := range group {
				g.ActivationTime += s.def.SpawnDelay
				g.OverlapID += BatchOverlapOffset
				snaps = append(snaps, g)
			}
		}
	}

	if s.def.ActivationDelay > 0 {
		delay := effect.ScaleValue(s.env.Scaler(), s.def.ActivationDelay, owning, effect.AttributeDuration)
		for i := range snaps {
			snaps[i].InitialEventTime += delay
			snaps[i].ActivationTime += delay
			// the telegraph cue doubles as the executed cue of this instance
			s.fireCue(meta, snaps[i], effect.CueAdded)
		}
	}
	snaps = GeneratePeriodic(snaps, d)

	for _, snap := range snaps {
		s.enqueue(snap)
	}
	s.updateQueueTimer()
	s.ensureDrain()
	s.env.Log().Debug("overlap event queued",
		zap.String("ability", s.def.Name),
		zap.Int32("event", id),
		zap.Int("snapshots", len(snaps)),
		zap.Stringer("state", s.state),
	)
	return id, nil
}

// Enqueue adds one snapshot for an event that is already active
func (s *Scheduler) Enqueue(snap Snapshot) error {
	if _, ok := s.events.Get(snap.EventID); !ok {
		return fmt.Errorf("enqueue snapshot of event %d: %w", snap.EventID, effect.ErrNoCandidate)
	}
	s.enqueue(snap)
	s.updateQueueTimer()
	s.ensureDrain()
	return nil
}

func (s *Scheduler) enqueue(snap Snapshot) {
	if snap.ActivationTime <= s.env.Clock().Now() {
		s.instant = append(s.instant, snap)
		return
	}
	// entries mostly arrive in time order, so scan from the tail
	i := len(s.delayed)
	for i > 0 && s.delayed[i-1].ActivationTime > snap.ActivationTime {
		i--
	}
	s.delayed = slices.Insert(s.delayed, i, snap)
}

// updateQueueTimer moves every due head to the instant queue and arms the
// timer for the first snapshot still in the future
func (s *Scheduler) updateQueueTimer() {
	clk := s.env.Clock()
	if s.delayedTimer != 0 {
		clk.Cancel(s.delayedTimer)
		s.delayedTimer = 0
	}
	for len(s.delayed) > 0 && s.delayed[0].ActivationTime <= clk.Now() {
		s.instant = append(s.instant, s.delayed[0])
		s.delayed = s.delayed[1:]
	}
	if len(s.delayed) == 0 {
		return
	}
	s.delayedTimer = clk.After(s.delayed[0].ActivationTime-clk.Now(), s.onDelayedTimer)
	if s.state == Idle {
		s.state = TimerArmed
	}
}

func (s *Scheduler) ensureDrain() {
	if len(s.instant) == 0 || s.drainTimer != 0 {
		return
	}
	s.drainTimer = s.env.Clock().NextTick(s.drainOne)
	if s.state == Idle {
		s.state = TimerArmed
	}
}

func (s *Scheduler) onDelayedTimer() {
	s.delayedTimer = 0
	if len(s.delayed) == 0 {
		s.env.Report(fmt.Errorf("%s: delayed timer fired on an empty queue: %w", s.def.Name, effect.ErrInvariant))
		s.settle()
		return
	}
	s.state = Draining
	snap := s.delayed[0]
	s.delayed = s.delayed[1:]
	s.fire(snap)
	s.updateQueueTimer()
	s.ensureDrain()
	s.finish(snap.EventID)
}

func (s *Scheduler) drainOne() {
	s.drainTimer = 0
	if len(s.instant) == 0 {
		s.env.Report(fmt.Errorf("%s: drained an empty instant queue: %w", s.def.Name, effect.ErrInvariant))
		s.settle()
		return
	}
	s.state = Draining
	snap := s.instant[0]
	s.instant = s.instant[1:]
	s.fire(snap)
	s.ensureDrain()
	s.finish(snap.EventID)
}

func (s *Scheduler) referenced(eventID int32) bool {
	for _, q := range [][]Snapshot{s.instant, s.delayed} {
		for _, snap := range q {
			if snap.EventID == eventID {
				return true
			}
		}
	}
	return false
}

func (s *Scheduler) finish(eventID int32) {
	if !s.referenced(eventID) {
		s.cleanup(eventID)
	}
	s.settle()
}

// settle drops back to Idle once both queues are empty
func (s *Scheduler) settle() {
	if len(s.instant) > 0 || len(s.delayed) > 0 {
		if s.state == Draining {
			s.state = TimerArmed
		}
		return
	}
	if s.state == Idle {
		return
	}
	wasDraining := s.state == Draining
	s.state = Idle
	if !wasDraining {
		return
	}
	s.env.Publish(effect.Event{Kind: effect.EventQueueEmptied, Instigator: s.instigator, Class: s.def.Name})
	if s.onEmpty != nil {
		s.onEmpty()
	}
}

func (s *Scheduler) cleanup(eventID int32) {
	meta, ok := s.events.Get(eventID)
	if !ok {
		return
	}
	count := s.wrappers.Remove(eventID, -1)
	if !s.def.periodic() {
		s.env.SendMultiHit(meta.key, s.instigator, count, meta.owning)
	}
	if _, err := s.env.Shared().Release(meta.shared.ID); err != nil {
		s.env.Report(err, zap.String("ability", s.def.Name))
	}
	s.events.Del(eventID)
}

// Cancel drops every queued snapshot and tears down all events
func (s *Scheduler) Cancel() {
	clk := s.env.Clock()
	if clk != nil {
		clk.Cancel(s.delayedTimer)
		clk.Cancel(s.drainTimer)
	}
	s.delayedTimer, s.drainTimer = 0, 0
	var ids []int32
	for _, q := range [][]Snapshot{s.instant, s.delayed} {
		for _, snap := range q {
			if !slices.Contains(ids, snap.EventID) {
				ids = append(ids, snap.EventID)
			}
		}
	}
	s.instant, s.delayed = nil, nil
	for _, id := range ids {
		s.cleanup(id)
	}
	s.state = Idle
}

// drop removes every snapshot of an event from both queues before its metadata goes
func (s *Scheduler) drop(eventID int32) {
	keep := func(q []Snapshot) []Snapshot {
		return slices.DeleteFunc(q, func(snap Snapshot) bool { return snap.EventID == eventID })
	}
	s.instant = keep(s.instant)
	s.delayed = keep(s.delayed)
	s.updateQueueTimer()
	s.cleanup(eventID)
}
