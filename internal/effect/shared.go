package effect

import (
	"fmt"

	"github.com/kamstrup/intmap"
)

// SharedObserver hears about shared data entering and leaving the table
type SharedObserver interface {
	SharedAdded(d SharedData)
	SharedRemoved(id int32)
}

type sharedEntry struct {
	data SharedData
	refs int
}

// SharedDataTable stores SharedData by id with a reference count per entry.
// On the authoritative side an entry dies when its count reaches zero; observers
// only drop entries when told to by Remove.
type SharedDataTable struct {
	authoritative bool
	next          int32
	entries       *intmap.Map[int32, *sharedEntry]
	waiters       *intmap.Map[int32, []*Future]
	observer      SharedObserver
}

// NewSharedDataTable creates an empty table. observer may be nil.
func NewSharedDataTable(authoritative bool, observer SharedObserver) *SharedDataTable {
	return &SharedDataTable{
		authoritative: authoritative,
		entries:       intmap.New[int32, *sharedEntry](32),
		waiters:       intmap.New[int32, []*Future](8),
		observer:      observer,
	}
}

// Create assigns an id to d and stores it with one reference held by the caller
func (t *SharedDataTable) Create(d SharedData) SharedData {
	t.next++
	d.ID = t.next
	t.entries.Put(d.ID, &sharedEntry{data: d, refs: 1})
	if t.observer != nil {
		t.observer.SharedAdded(d)
	}
	t.resolve(d)
	return d
}

// Add stores replicated data and resolves anyone waiting for it
func (t *SharedDataTable) Add(d SharedData) {
	if ent, ok := t.entries.Get(d.ID); ok {
		ent.data = d
	} else {
		t.entries.Put(d.ID, &sharedEntry{data: d})
	}
	t.resolve(d)
}

func (t *SharedDataTable) resolve(d SharedData) {
	pending, ok := t.waiters.Get(d.ID)
	if !ok {
		return
	}
	t.waiters.Del(d.ID)
	for _, f := range pending {
		f.complete(d)
	}
}

// Get returns the data for id
func (t *SharedDataTable) Get(id int32) (SharedData, bool) {
	ent, ok := t.entries.Get(id)
	if !ok {
		return SharedData{}, false
	}
	return ent.data, true
}

// Acquire takes a reference on id
func (t *SharedDataTable) Acquire(id int32) error {
	ent, ok := t.entries.Get(id)
	if !ok {
		return fmt.Errorf("acquire shared data %d: %w", id, ErrNoCandidate)
	}
	ent.refs++
	return nil
}

// Release drops a reference on id and reports whether the entry was removed
func (t *SharedDataTable) Release(id int32) (bool, error) {
	ent, ok := t.entries.Get(id)
	if !ok {
		return false, fmt.Errorf("release shared data %d: %w", id, ErrNoCandidate)
	}
	ent.refs--
	if ent.refs < 0 {
		ent.refs = 0
		return false, fmt.Errorf("shared data %d released more than acquired: %w", id, ErrInvariant)
	}
	if ent.refs > 0 || !t.authoritative {
		return false, nil
	}
	t.entries.Del(id)
	if t.observer != nil {
		t.observer.SharedRemoved(id)
	}
	return true, nil
}

// Remove drops id regardless of its count
func (t *SharedDataTable) Remove(id int32) {
	if _, ok := t.entries.Get(id); !ok {
		return
	}
	t.entries.Del(id)
	if t.observer != nil {
		t.observer.SharedRemoved(id)
	}
}

// Refs returns the reference count of id
func (t *SharedDataTable) Refs(id int32) int {
	if ent, ok := t.entries.Get(id); ok {
		return ent.refs
	}
	return 0
}

// Len returns the number of live entries
func (t *SharedDataTable) Len() int { return t.entries.Len() }

// Waiting returns the number of unresolved futures for id
func (t *SharedDataTable) Waiting(id int32) int {
	pending, _ := t.waiters.Get(id)
	return len(pending)
}

// Resolve returns a future for id. It is already done when the data is present.
func (t *SharedDataTable) Resolve(id int32) *Future {
	f := &Future{id: id, table: t}
	if d, ok := t.Get(id); ok {
		f.done = true
		f.data = d
		return f
	}
	pending, _ := t.waiters.Get(id)
	t.waiters.Put(id, append(pending, f))
	return f
}

func (t *SharedDataTable) forget(f *Future) {
	pending, ok := t.waiters.Get(f.id)
	if !ok {
		return
	}
	for i, p := range pending {
		if p == f {
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}
	if len(pending) == 0 {
		t.waiters.Del(f.id)
		return
	}
	t.waiters.Put(f.id, pending)
}

// Future is a pending SharedData lookup
type Future struct {
	id       int32
	table    *SharedDataTable
	done     bool
	canceled bool
	data     SharedData
	then     []func(SharedData)
}

// Done reports whether the data has arrived
func (f *Future) Done() bool { return f.done }

// Value returns the data once done
func (f *Future) Value() (SharedData, bool) { return f.data, f.done }

// Then runs fn when the data arrives, immediately if it already has
func (f *Future) Then(fn func(SharedData)) {
	if f.canceled {
		return
	}
	if f.done {
		fn(f.data)
		return
	}
	f.then = append(f.then, fn)
}

// Cancel drops the listener; pending callbacks never run
func (f *Future) Cancel() {
	if f.done || f.canceled {
		return
	}
	f.canceled = true
	f.then = nil
	f.table.forget(f)
}

func (f *Future) complete(d SharedData) {
	if f.canceled {
		return
	}
	f.done = true
	f.data = d
	then := f.then
	f.then = nil
	for _, fn := range then {
		fn(d)
	}
}
