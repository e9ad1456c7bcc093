package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"effects-server/internal/effect"
)

func TestRouterSkipsFailingSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	var got []effect.Event
	r := NewRouter(log,
		NamedSink{Name: "broken", Sink: SinkFunc(func(effect.Event) error { return errors.New("disk full") })},
		NamedSink{Name: "memory", Sink: SinkFunc(func(ev effect.Event) error {
			got = append(got, ev)
			return nil
		})},
		NamedSink{Name: "nil"},
	)

	r.Publish(effect.Event{Kind: effect.EventHit, Tick: 3})
	r.Publish(effect.Event{Kind: effect.EventExpired, Tick: 4})

	require.Len(t, got, 2)
	assert.Equal(t, effect.EventExpired, got[1].Kind)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.EventsTotal)
	assert.Equal(t, uint64(2), stats.Failures["broken"])

	warned := logs.FilterMessage("event sink failed").All()
	require.Len(t, warned, 2)
	assert.Equal(t, "broken", warned[0].ContextMap()["sink"])
}

func TestZapSinkLogsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := ZapSink(zap.New(core))

	require.NoError(t, sink.Write(effect.Event{Kind: effect.EventMultiHit, Magnitude: 3}))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "multi_hit", entries[0].ContextMap()["kind"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", false)
	require.Error(t, err)

	log, err := New("warn", true)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}
