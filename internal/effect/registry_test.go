package effect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/world"
)

func TestRegistrySoftOutlivesHard(t *testing.T) {
	r := NewTargetRegistry()
	r.Register(3)
	r.Register(3)

	require.NoError(t, r.UnregisterHard(3))
	hard, soft, ok := r.Counts(3)
	require.True(t, ok)
	assert.Equal(t, 1, hard)
	assert.Equal(t, 2, soft)

	removed, err := r.UnregisterSoft(3)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, r.Has(3), "hard registration left, entry must stay")

	require.NoError(t, r.UnregisterHard(3))
	removed, err = r.UnregisterSoft(3)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, r.Has(3))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryHardNeverExceedsSoft(t *testing.T) {
	r := NewTargetRegistry()
	r.Register(1)

	removed, err := r.UnregisterSoft(1)
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.True(t, removed)

	err = r.UnregisterHard(1)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestRegistryTargets(t *testing.T) {
	r := NewTargetRegistry()
	a := world.Handle{Index: 1, Gen: 1}
	b := world.Handle{Index: 2, Gen: 1}

	assert.False(t, r.AddTarget(9, a), "unregistered key records nothing")

	r.Register(9)
	assert.True(t, r.AddTarget(9, a))
	assert.False(t, r.AddTarget(9, a))
	assert.True(t, r.AddTarget(9, b))
	assert.True(t, r.HasTarget(9, a))
	assert.Equal(t, []world.Handle{a, b}, r.Targets(9))

	n, fresh := r.Summarize(9)
	assert.True(t, fresh)
	assert.Equal(t, 2, n)
	_, fresh = r.Summarize(9)
	assert.False(t, fresh)

	r.RemoveTarget(9, a)
	assert.False(t, r.HasTarget(9, a))
	assert.Equal(t, 1, r.TargetCount(9))
}

func TestSharedDataTableFutures(t *testing.T) {
	table := NewSharedDataTable(false, nil)

	f := table.Resolve(4)
	require.False(t, f.Done())
	var got []SharedData
	f.Then(func(d SharedData) { got = append(got, d) })
	assert.Equal(t, 1, table.Waiting(4))

	canceled := table.Resolve(4)
	canceled.Then(func(SharedData) { t.Fatal("canceled future ran") })
	canceled.Cancel()

	table.Add(SharedData{ID: 4, AbilityLevel: 2})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].AbilityLevel)
	assert.True(t, f.Done())
	assert.Equal(t, 0, table.Waiting(4))

	// already present data resolves synchronously
	ready := table.Resolve(4)
	assert.True(t, ready.Done())
}

type sharedLog struct {
	added   []int32
	removed []int32
}

func (l *sharedLog) SharedAdded(d SharedData) { l.added = append(l.added, d.ID) }
func (l *sharedLog) SharedRemoved(id int32)   { l.removed = append(l.removed, id) }

func TestSharedDataRefCounting(t *testing.T) {
	obs := &sharedLog{}
	table := NewSharedDataTable(true, obs)
	sd := table.Create(SharedData{AreaMultiplier: 1})
	assert.Equal(t, []int32{sd.ID}, obs.added)

	require.NoError(t, table.Acquire(sd.ID))
	removed, err := table.Release(sd.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = table.Release(sd.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []int32{sd.ID}, obs.removed)

	_, err = table.Release(sd.ID)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSharedDataObserverKeepsUntilRemoved(t *testing.T) {
	table := NewSharedDataTable(false, nil)
	table.Add(SharedData{ID: 2})
	require.NoError(t, table.Acquire(2))
	_, err := table.Release(2)
	require.NoError(t, err)
	_, ok := table.Get(2)
	assert.True(t, ok)

	table.Remove(2)
	_, ok = table.Get(2)
	assert.False(t, ok)
}
