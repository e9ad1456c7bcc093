package clock

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 60

func TestAfterFiresInOrder(t *testing.T) {
	s := New(dt)
	var got []string
	s.After(0.5, func() { got = append(got, "b") })
	s.After(0.1, func() { got = append(got, "a") })
	s.After(0.5, func() { got = append(got, "c") })

	for i := 0; i < 60; i++ {
		s.Advance(dt)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, s.Pending())
}

func TestNowIsFireTimeInsideCallback(t *testing.T) {
	s := New(dt)
	var at float64
	s.After(0.25, func() { at = s.Now() })
	s.Advance(1)
	assert.InDelta(t, 0.25, at, 1e-9)
	assert.InDelta(t, 1.0, s.Now(), 1e-9)
}

func TestZeroDelayLandsOnNextTick(t *testing.T) {
	s := New(dt)
	calls := 0
	var rearm func()
	rearm = func() {
		calls++
		s.After(0, rearm)
	}
	s.After(0, rearm)

	s.Advance(dt)
	assert.Equal(t, 1, calls)
	s.Advance(dt)
	assert.Equal(t, 2, calls)
}

func TestCancel(t *testing.T) {
	s := New(dt)
	fired := false
	tok := s.After(0.1, func() { fired = true })
	require.True(t, s.Active(tok))

	assert.True(t, s.Cancel(tok))
	assert.False(t, s.Cancel(tok))
	assert.False(t, s.Active(tok))

	s.Advance(1)
	assert.False(t, fired)
}

func TestCancelNextTick(t *testing.T) {
	s := New(dt)
	fired := false
	tok := s.NextTick(func() { fired = true })
	s.Cancel(tok)
	s.Advance(dt)
	assert.False(t, fired)
}

func TestEveryRepeatsUntilCanceled(t *testing.T) {
	s := New(dt)
	count := 0
	var tok Token
	tok = s.Every(0.1, 0.2, func() {
		count++
		if count == 3 {
			s.Cancel(tok)
		}
	})

	for i := 0; i < 120; i++ {
		s.Advance(dt)
	}
	assert.Equal(t, 3, count)
	assert.False(t, s.Active(tok))
}

func TestEveryWithZeroFirstDelay(t *testing.T) {
	s := New(dt)
	var times []float64
	s.Every(0, 0.5, func() { times = append(times, s.Now()) })

	for i := 0; i < 61; i++ {
		s.Advance(dt)
	}
	require.Len(t, times, 3)
	assert.InDelta(t, 0.0, times[0], 1e-9)
	assert.InDelta(t, 0.5, times[1], 1e-9)
	assert.InDelta(t, 1.0, times[2], 1e-9)
}

func TestRemaining(t *testing.T) {
	s := New(dt)
	tok := s.After(1, func() {})
	s.Advance(0.25)
	assert.InDelta(t, 0.75, s.Remaining(tok), 1e-9)
	assert.Equal(t, -1.0, s.Remaining(Token(999)))
}

func ExampleScheduler() {
	s := New(0.1)
	s.After(0.15, func() { fmt.Printf("once at %.2f\n", s.Now()) })
	tok := s.Every(0.1, 0.1, func() { fmt.Printf("tick at %.2f\n", s.Now()) })
	s.Advance(0.1)
	s.Advance(0.1)
	s.Cancel(tok)
	s.Advance(0.1)
	// Output:
	// tick at 0.10
	// once at 0.15
	// tick at 0.20
}
