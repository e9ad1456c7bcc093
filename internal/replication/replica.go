package replication

import (
	"fmt"

	"go.uber.org/zap"

	"effects-server/internal/effect"
	"effects-server/internal/world"
)

// Replica rebuilds the effect state of a match on an observer. Its Env must be
// non-authoritative: entities run their own timers and cues but never apply
// gameplay effects or mutate shared targeting.
type Replica struct {
	env  *effect.Env
	pool *effect.Pool
	log  *zap.Logger

	entities map[effect.IndividualData]*effect.Entity
	shared   map[int32]bool
	actors   map[world.Handle]ActorState
	tick     uint64
	events   []effect.Event
}

// NewReplica creates a replica spawning entities from pool
func NewReplica(env *effect.Env, pool *effect.Pool) *Replica {
	return &Replica{
		env:      env,
		pool:     pool,
		log:      env.Log().Named("replica"),
		entities: make(map[effect.IndividualData]*effect.Entity),
		shared:   make(map[int32]bool),
		actors:   make(map[world.Handle]ActorState),
	}
}

// Tick returns the tick of the last applied frame
func (r *Replica) Tick() uint64 { return r.tick }

// Entity returns the local entity spawned for d
func (r *Replica) Entity(d effect.IndividualData) (*effect.Entity, bool) {
	e, ok := r.entities[d]
	return e, ok
}

// Entities returns the number of tracked entities
func (r *Replica) Entities() int { return len(r.entities) }

// Actor returns the last replicated state of h
func (r *Replica) Actor(h world.Handle) (ActorState, bool) {
	a, ok := r.actors[h]
	return a, ok
}

// Events drains the events received since the previous call
func (r *Replica) Events() []effect.Event {
	out := r.events
	r.events = nil
	return out
}

// Apply brings the replica in line with f. Frames older than the last applied
// one are ignored. Shared data lands before individual data, so entities
// whose shared data is in the same frame never wait.
func (r *Replica) Apply(f *Frame) error {
	if f.Tick < r.tick {
		return fmt.Errorf("frame %d behind replica tick %d", f.Tick, r.tick)
	}
	r.tick = f.Tick
	r.prune()

	if f.Kind == FrameSnapshot {
		r.reset(f)
	}
	for _, d := range f.SharedAdded {
		r.env.Shared().Add(d)
		r.shared[d.ID] = true
	}
	for _, d := range f.IndividualAdded {
		r.spawn(d)
	}
	for _, d := range f.IndividualRemoved {
		r.despawn(d)
	}
	for _, id := range f.SharedRemoved {
		r.env.Shared().Remove(id)
		delete(r.shared, id)
	}
	if f.Kind == FrameSnapshot {
		clear(r.actors)
	}
	for _, a := range f.Actors {
		r.actors[a.Handle] = a
	}
	r.events = append(r.events, f.Events...)
	return nil
}

// reset drops everything a snapshot no longer mentions
func (r *Replica) reset(f *Frame) {
	keep := make(map[effect.IndividualData]bool, len(f.IndividualAdded))
	for _, d := range f.IndividualAdded {
		keep[d] = true
	}
	for d := range r.entities {
		if !keep[d] {
			r.despawn(d)
		}
	}
	live := make(map[int32]bool, len(f.SharedAdded))
	for _, d := range f.SharedAdded {
		live[d.ID] = true
	}
	for id := range r.shared {
		if !live[id] {
			r.env.Shared().Remove(id)
			delete(r.shared, id)
		}
	}
}

func (r *Replica) spawn(d effect.IndividualData) {
	if _, ok := r.entities[d]; ok {
		return
	}
	e, err := r.pool.Acquire(d.AbilityClass)
	if err != nil {
		r.env.Report(err, zap.Int32("key", d.ActivationKey))
		return
	}
	if err := e.Preactivate(d); err != nil {
		r.log.Debug("replicated entity failed to start", zap.String("class", d.AbilityClass), zap.Error(err))
		return
	}
	r.entities[d] = e
}

func (r *Replica) despawn(d effect.IndividualData) {
	e, ok := r.entities[d]
	if !ok {
		return
	}
	delete(r.entities, d)
	if e.Individual() == d {
		e.Deactivate(0)
	}
}

// prune forgets entities that ended on their own and went back to the pool
func (r *Replica) prune() {
	for d, e := range r.entities {
		if e.Individual() != d {
			delete(r.entities, d)
		}
	}
}
