package effect

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// Lifecycle states
const (
	StatePooled         = "pooled"
	StatePreactivated   = "preactivated"
	StateWaitingForData = "waiting_for_shared_data"
	StateActivating     = "activating"
	StateInstant        = "instant"
	StatePersistent     = "persistent"
	StateExpiring       = "expiring"
	StateDeactivating   = "deactivating"
)

const (
	evPreactivate = "preactivate"
	evWait        = "wait"
	evActivate    = "activate"
	evInstant     = "execute_instant"
	evPersist     = "persist"
	evExpire      = "expire"
	evDeactivate  = "deactivate"
	evPool        = "pool"
)

func newMachine() *fsm.FSM {
	return fsm.NewFSM(StatePooled, fsm.Events{
		{Name: evPreactivate, Src: []string{StatePooled}, Dst: StatePreactivated},
		{Name: evWait, Src: []string{StatePreactivated}, Dst: StateWaitingForData},
		{Name: evActivate, Src: []string{StatePreactivated, StateWaitingForData}, Dst: StateActivating},
		{Name: evInstant, Src: []string{StateActivating}, Dst: StateInstant},
		{Name: evPersist, Src: []string{StateActivating}, Dst: StatePersistent},
		{Name: evExpire, Src: []string{StatePersistent}, Dst: StateExpiring},
		{Name: evDeactivate, Src: []string{
			StatePreactivated, StateWaitingForData, StateActivating,
			StateInstant, StatePersistent, StateExpiring,
		}, Dst: StateDeactivating},
		{Name: evPool, Src: []string{StateDeactivating}, Dst: StatePooled},
	}, fsm.Callbacks{})
}

// Entity is one pooled instance of an area or targeted effect
type Entity struct {
	id      uint32
	def     *Definition
	env     *Env
	machine *fsm.FSM

	individual IndividualData
	shared     SharedData
	hasShared  bool
	future     *Future
	owning     tags.Set
	timing     DerivedTiming

	location     geom.Vec3
	baseYaw      float64
	yaw          float64
	rotationRate float64
	areaScale    float64
	scale        float64
	compensation float64
	leftover     float64
	activatedAt  float64
	periods      int

	collision      bool
	hardRegistered bool
	softRegistered bool
	skipCues       bool
	destroyed      bool

	previouslyTargeted []world.Handle
	overlapping        []world.Handle
	applied            map[world.Handle][]EffectHandle

	activationTimer clock.Token
	durationTimer   clock.Token
	periodTimer     clock.Token
	rotationTimer   clock.Token
	overlapTimer    clock.Token
	graceTimer      clock.Token
	poolTimer       clock.Token
}

// NewEntity creates a pooled entity of the given class
func NewEntity(env *Env, def *Definition) *Entity {
	return &Entity{
		id:      env.issueID(),
		def:     def,
		env:     env,
		machine: newMachine(),
		applied: make(map[world.Handle][]EffectHandle),
	}
}

func (e *Entity) ID() uint32                 { return e.id }
func (e *Entity) Class() string              { return e.def.Class }
func (e *Entity) Definition() *Definition    { return e.def }
func (e *Entity) State() string              { return e.machine.Current() }
func (e *Entity) Individual() IndividualData { return e.individual }
func (e *Entity) Location() geom.Vec3        { return e.location }
func (e *Entity) Yaw() float64               { return e.yaw }
func (e *Entity) Scale() float64             { return e.scale }
func (e *Entity) Periods() int               { return e.periods }
func (e *Entity) Timing() DerivedTiming      { return e.timing }
func (e *Entity) Compensation() float64      { return e.compensation }
func (e *Entity) OwningTags() tags.Set       { return e.owning }
func (e *Entity) CollisionEnabled() bool     { return e.collision }
func (e *Entity) Destroyed() bool            { return e.destroyed }

// Shared returns the resolved shared data, if any
func (e *Entity) Shared() (SharedData, bool) { return e.shared, e.hasShared }

// Active reports whether the entity has left the pool and not yet deactivated
func (e *Entity) Active() bool {
	switch e.State() {
	case StatePooled, StateDeactivating:
		return false
	}
	return true
}

// SkipCues suppresses cues because a locally predicted twin already played them
func (e *Entity) SkipCues(skip bool) { e.skipCues = skip }

// Applied returns the effect handles this entity owns on h
func (e *Entity) Applied(h world.Handle) []EffectHandle { return e.applied[h] }

// Overlapping returns the actors currently inside a continuous-overlap entity
func (e *Entity) Overlapping() []world.Handle { return e.overlapping }

// ArmedTimers returns how many of the entity's timers are still armed
func (e *Entity) ArmedTimers() int {
	n := 0
	for _, tok := range e.tokens() {
		if e.env.clock != nil && e.env.clock.Active(*tok) {
			n++
		}
	}
	return n
}

func (e *Entity) tokens() []*clock.Token {
	return []*clock.Token{
		&e.activationTimer, &e.durationTimer, &e.periodTimer, &e.rotationTimer,
		&e.overlapTimer, &e.graceTimer, &e.poolTimer,
	}
}

func (e *Entity) cancel(tok *clock.Token) {
	if *tok != 0 && e.env.clock != nil {
		e.env.clock.Cancel(*tok)
	}
	*tok = 0
}

func (e *Entity) transition(event string) bool {
	if err := e.machine.Event(context.Background(), event); err != nil {
		e.report(fmt.Errorf("%s from %s: %v: %w", event, e.State(), err, ErrInvariant))
		return false
	}
	return true
}

func (e *Entity) report(err error) {
	e.env.Report(err,
		zap.String("class", e.def.Class),
		zap.Uint32("entity", e.id),
		zap.Int32("key", e.individual.ActivationKey),
		zap.String("state", e.State()),
	)
}

func (e *Entity) sharedTargeting() bool {
	return e.env.authority && !e.owning.Has(TagIndividualTarget) && !e.def.OwningTags.Has(TagIndividualTarget)
}

func (e *Entity) event(kind EventKind) Event {
	return Event{
		Kind:          kind,
		ActivationKey: e.individual.ActivationKey,
		Entity:        e.id,
		Class:         e.def.Class,
		Instigator:    e.individual.Instigator,
		Target:        e.individual.Target,
		Tags:          e.owning.Strings(),
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d(%s)", e.def.Class, e.id, e.State())
}
