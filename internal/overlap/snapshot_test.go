package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/effect"
	"effects-server/internal/world"
)

func TestExpandOverlapEvent(t *testing.T) {
	base := Snapshot{EventID: 1, ActivationTime: 2, InitialEventTime: 2}
	out := ExpandOverlapEvent(base, 1, 5)
	require.Len(t, out, 6)
	for i, s := range out {
		assert.InDelta(t, 2+0.2*float64(i), s.ActivationTime, 1e-9)
		assert.Equal(t, 2.0, s.InitialEventTime)
		assert.Equal(t, base.ID(), s.ID())
	}
	assert.InDelta(t, 1.0, out[5].Elapsed(), 1e-9)

	assert.Len(t, ExpandOverlapEvent(base, 0, 5), 1)
	assert.Equal(t, 5, InterpSteps(0.3))
	assert.Equal(t, 10, InterpSteps(1.6))
}

func TestGeneratePeriodic(t *testing.T) {
	snaps := []Snapshot{{EventID: 1, OverlapID: 0}, {EventID: 1, OverlapID: 1, ActivationTime: 0.1}}

	out := GeneratePeriodic(snaps, effect.Duration{LifeSpan: 1, FirstPeriodDelay: 0.2, Period: 0.4})
	require.Len(t, out, 6)
	assert.InDelta(t, 0.2, out[0].ActivationTime, 1e-9)
	assert.InDelta(t, 0.3, out[1].ActivationTime, 1e-9)
	assert.InDelta(t, 1.0, out[4].ActivationTime, 1e-9)
	assert.Equal(t, 2, out[5].Period)

	assert.Equal(t, snaps, GeneratePeriodic(snaps, effect.Duration{LifeSpan: 1}))
	assert.Equal(t, snaps, GeneratePeriodic(snaps, effect.Duration{LifeSpan: effect.Infinite, Period: 1}))
	assert.Equal(t, snaps, GeneratePeriodic(snaps, effect.Duration{LifeSpan: 1, FirstPeriodDelay: 2, Period: 0.5}))
}

func TestTargetWrappers(t *testing.T) {
	a := world.Handle{Index: 1, Gen: 1}
	b := world.Handle{Index: 2, Gen: 1}
	w := newTargetWrappers()

	w.Add(WrapperID{1, 0}, a, a)
	w.Add(WrapperID{1, 1}, a, b)
	w.Add(WrapperID{2, 0}, b)

	assert.Equal(t, []world.Handle{a}, w.Targets(WrapperID{1, 0}))
	assert.ElementsMatch(t, []world.Handle{a, b}, w.Ignored(1, -1))
	assert.Equal(t, []world.Handle{a}, w.Ignored(1, 0))

	assert.Equal(t, 2, w.Remove(1, -1))
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 1, w.Remove(2, 0))
	assert.Zero(t, w.Len())
}
