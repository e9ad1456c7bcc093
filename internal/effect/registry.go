package effect

import (
	"fmt"
	"slices"

	"github.com/kamstrup/intmap"

	"effects-server/internal/world"
)

type registryEntry struct {
	hard, soft int
	targets    []world.Handle
	summarized int
}

// TargetRegistry tracks, per activation key, which actors the cast already
// affected and which entities still take part in it. Hard registration is
// dropped when an entity deactivates, soft registration one tick later.
type TargetRegistry struct {
	entries *intmap.Map[int32, *registryEntry]
}

// NewTargetRegistry creates an empty registry
func NewTargetRegistry() *TargetRegistry {
	return &TargetRegistry{entries: intmap.New[int32, *registryEntry](32)}
}

// Register adds one hard and one soft registration for key
func (r *TargetRegistry) Register(key int32) {
	ent, ok := r.entries.Get(key)
	if !ok {
		ent = &registryEntry{}
		r.entries.Put(key, ent)
	}
	ent.hard++
	ent.soft++
}

// UnregisterHard drops one hard registration. The entry survives until its soft count is zero.
func (r *TargetRegistry) UnregisterHard(key int32) error {
	ent, ok := r.entries.Get(key)
	if !ok {
		return fmt.Errorf("hard unregister of unknown key %d: %w", key, ErrInvariant)
	}
	if ent.hard == 0 {
		return fmt.Errorf("hard unregister of key %d with no hard registrations: %w", key, ErrInvariant)
	}
	ent.hard--
	return nil
}

// UnregisterSoft drops one soft registration and removes the entry at zero.
// It reports whether the entry was removed.
func (r *TargetRegistry) UnregisterSoft(key int32) (bool, error) {
	ent, ok := r.entries.Get(key)
	if !ok {
		return false, fmt.Errorf("soft unregister of unknown key %d: %w", key, ErrInvariant)
	}
	ent.soft--
	var err error
	if ent.hard > ent.soft {
		err = fmt.Errorf("key %d has %d hard but %d soft registrations: %w", key, ent.hard, ent.soft, ErrInvariant)
		ent.hard = max(ent.soft, 0)
	}
	if ent.soft <= 0 {
		r.entries.Del(key)
		return true, err
	}
	return false, err
}

// Counts returns the hard and soft registration counts for key
func (r *TargetRegistry) Counts(key int32) (hard, soft int, ok bool) {
	ent, ok := r.entries.Get(key)
	if !ok {
		return 0, 0, false
	}
	return ent.hard, ent.soft, true
}

// Has reports whether key has an entry
func (r *TargetRegistry) Has(key int32) bool {
	_, ok := r.entries.Get(key)
	return ok
}

// Len returns the number of live entries
func (r *TargetRegistry) Len() int { return r.entries.Len() }

// AddTarget records h as affected by key. It reports false if it already was.
func (r *TargetRegistry) AddTarget(key int32, h world.Handle) bool {
	ent, ok := r.entries.Get(key)
	if !ok || slices.Contains(ent.targets, h) {
		return false
	}
	ent.targets = append(ent.targets, h)
	return true
}

// RemoveTarget forgets h for key
func (r *TargetRegistry) RemoveTarget(key int32, h world.Handle) {
	ent, ok := r.entries.Get(key)
	if !ok {
		return
	}
	if i := slices.Index(ent.targets, h); i >= 0 {
		ent.targets = slices.Delete(ent.targets, i, i+1)
	}
}

// HasTarget reports whether key already affected h
func (r *TargetRegistry) HasTarget(key int32, h world.Handle) bool {
	ent, ok := r.entries.Get(key)
	return ok && slices.Contains(ent.targets, h)
}

// Targets returns a copy of the actors key affected, in hit order
func (r *TargetRegistry) Targets(key int32) []world.Handle {
	ent, ok := r.entries.Get(key)
	if !ok {
		return nil
	}
	return slices.Clone(ent.targets)
}

// TargetCount returns the number of actors key affected
func (r *TargetRegistry) TargetCount(key int32) int {
	ent, ok := r.entries.Get(key)
	if !ok {
		return 0
	}
	return len(ent.targets)
}

// Summarize returns the target count of key and whether it grew since the
// last summary. A later holder of the same key only reports new targets.
func (r *TargetRegistry) Summarize(key int32) (int, bool) {
	ent, ok := r.entries.Get(key)
	if !ok || len(ent.targets) <= ent.summarized {
		return 0, false
	}
	ent.summarized = len(ent.targets)
	return ent.summarized, true
}
