package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetHasMatchesChildren(t *testing.T) {
	s := New("Effect.Damage.Fire", "Unit.Rarity.Rare")

	assert.True(t, s.Has("Effect.Damage"))
	assert.True(t, s.Has("Effect.Damage.Fire"))
	assert.False(t, s.Has("Effect.Damage.Fire.Big"))
	assert.False(t, s.Has("Effect.Dam"))
	assert.False(t, s.HasExact("Effect.Damage"))
	assert.True(t, s.HasExact("Unit.Rarity.Rare"))
}

func TestNewDedupesAndSorts(t *testing.T) {
	s := New("b", "a", "b", "")
	assert.Equal(t, []string{"a", "b"}, s.Strings())
}

func TestHasAnyHasAll(t *testing.T) {
	s := New("A.B", "C")

	assert.True(t, s.HasAny(New("X", "C")))
	assert.False(t, s.HasAny(New("X")))
	assert.True(t, s.HasAll(New("A", "C")))
	assert.False(t, s.HasAll(New("A", "D")))
	assert.True(t, s.HasAll(Set{}))
}

func TestMergeDoesNotMutate(t *testing.T) {
	a := New("A")
	b := a.Merge(New("B"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}
