package logging

import (
	"sync"

	"go.uber.org/zap"

	"effects-server/internal/effect"
)

// Sink consumes published runtime events
type Sink interface {
	Write(ev effect.Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev effect.Event) error

func (f SinkFunc) Write(ev effect.Event) error { return f(ev) }

// NamedSink pairs a sink with the name used in logs and stats
type NamedSink struct {
	Name string
	Sink Sink
}

// RouterStats counts what went through a router
type RouterStats struct {
	EventsTotal uint64
	Failures    map[string]uint64
}

// Router fans published events out to every sink. A failing sink is logged and
// skipped; the remaining sinks still see the event.
type Router struct {
	log *zap.Logger

	mu       sync.Mutex
	sinks    []NamedSink
	total    uint64
	failures map[string]uint64
}

// NewRouter creates a router over sinks. Nil sinks are ignored.
func NewRouter(log *zap.Logger, sinks ...NamedSink) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{log: log, failures: make(map[string]uint64)}
	for _, s := range sinks {
		r.Add(s)
	}
	return r
}

// Add appends a sink
func (r *Router) Add(s NamedSink) {
	if s.Sink == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Publish implements effect.Publisher
func (r *Router) Publish(ev effect.Event) {
	r.mu.Lock()
	r.total++
	sinks := r.sinks
	r.mu.Unlock()

	for _, s := range sinks {
		if err := s.Sink.Write(ev); err != nil {
			r.mu.Lock()
			r.failures[s.Name]++
			r.mu.Unlock()
			r.log.Warn("event sink failed",
				zap.String("sink", s.Name),
				zap.String("event", string(ev.Kind)),
				zap.Uint64("tick", ev.Tick),
				zap.Error(err),
			)
		}
	}
}

// Stats returns a copy of the router counters
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	failures := make(map[string]uint64, len(r.failures))
	for k, v := range r.failures {
		failures[k] = v
	}
	return RouterStats{EventsTotal: r.total, Failures: failures}
}

// ZapSink writes every event to log at debug level
func ZapSink(log *zap.Logger) Sink {
	return SinkFunc(func(ev effect.Event) error {
		if ce := log.Check(zap.DebugLevel, "effect event"); ce != nil {
			ce.Write(
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("tick", ev.Tick),
				zap.Int32("key", ev.ActivationKey),
				zap.Uint32("entity", ev.Entity),
				zap.String("class", ev.Class),
				zap.Stringer("instigator", ev.Instigator),
				zap.Stringer("target", ev.Target),
				zap.Float64("magnitude", ev.Magnitude),
				zap.Strings("tags", ev.Tags),
			)
		}
		return nil
	})
}
