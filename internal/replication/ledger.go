package replication

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"effects-server/internal/effect"
)

// ErrFrameFull is returned when a frame already holds too many events
var ErrFrameFull = errors.New("replication frame full")

const maxFrameEvents = 4096

// Ledger is the authoritative record of what observers must know. It tracks
// live SharedData and IndividualData and collects changes until the next Flush.
// The match loop writes to it; HTTP handlers read snapshots from it.
type Ledger struct {
	mu          sync.Mutex
	shared      map[int32]effect.SharedData
	individuals map[effect.IndividualData]struct{}
	actors      []ActorState
	tick        uint64
	time        float64
	pending     Frame
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		shared:      make(map[int32]effect.SharedData),
		individuals: make(map[effect.IndividualData]struct{}),
	}
}

// SharedAdded implements effect.SharedObserver
func (l *Ledger) SharedAdded(d effect.SharedData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shared[d.ID] = d
	l.pending.SharedAdded = append(l.pending.SharedAdded, d)
}

// SharedRemoved implements effect.SharedObserver
func (l *Ledger) SharedRemoved(id int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.shared, id)
	l.pending.SharedRemoved = append(l.pending.SharedRemoved, id)
}

// AddIndividual implements effect.IndividualLedger
func (l *Ledger) AddIndividual(d effect.IndividualData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.individuals[d] = struct{}{}
	l.pending.IndividualAdded = append(l.pending.IndividualAdded, d)
}

// RemoveIndividual implements effect.IndividualLedger
func (l *Ledger) RemoveIndividual(d effect.IndividualData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.individuals[d]; !ok {
		return
	}
	delete(l.individuals, d)
	l.pending.IndividualRemoved = append(l.pending.IndividualRemoved, d)
}

// Write queues a published event for the next frame. It makes the ledger a
// logging.Sink.
func (l *Ledger) Write(ev effect.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending.Events) >= maxFrameEvents {
		return ErrFrameFull
	}
	l.pending.Events = append(l.pending.Events, ev)
	return nil
}

// Live returns the number of live shared and individual entries
func (l *Ledger) Live() (shared, individuals int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.shared), len(l.individuals)
}

// Flush returns the changes collected since the previous flush as a delta
// frame, or nil when nothing changed. actors replace the last known actor
// states and always ride along when non-empty.
func (l *Ledger) Flush(tick uint64, now float64, actors []ActorState) *Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tick, l.time = tick, now
	l.actors = actors

	f := l.pending
	l.pending = Frame{}
	f.Kind = FrameDelta
	f.Tick = tick
	f.Time = now
	f.Actors = actors
	if f.Empty() {
		return nil
	}
	return &f
}

// Snapshot returns the full live state as of the last flush plus anything
// pending, ordered by id so equal states encode equally
func (l *Ledger) Snapshot() *Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := &Frame{
		Kind:   FrameSnapshot,
		Tick:   l.tick,
		Time:   l.time,
		Actors: slices.Clone(l.actors),
	}
	for _, d := range l.shared {
		f.SharedAdded = append(f.SharedAdded, d)
	}
	slices.SortFunc(f.SharedAdded, func(a, b effect.SharedData) int { return cmp.Compare(a.ID, b.ID) })
	for d := range l.individuals {
		f.IndividualAdded = append(f.IndividualAdded, d)
	}
	slices.SortFunc(f.IndividualAdded, func(a, b effect.IndividualData) int {
		return cmp.Or(
			cmp.Compare(a.ActivationKey, b.ActivationKey),
			cmp.Compare(a.SpawnIndex, b.SpawnIndex),
			cmp.Compare(a.SharedDataID, b.SharedDataID),
		)
	})
	return f
}
