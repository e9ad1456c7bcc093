package effect

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrMissingContext means the world or session went away mid-operation.
	// Fatal for the entity or event in flight, never retried.
	ErrMissingContext = errors.New("simulation context unavailable")
	// ErrMissingReplicatedData means shared data has not arrived yet; wait for it.
	ErrMissingReplicatedData = errors.New("shared data not replicated yet")
	// ErrEmptyPool means no instance could be handed out.
	ErrEmptyPool = errors.New("pool exhausted")
	// ErrNoCandidate means the referenced data or candidate no longer exists.
	ErrNoCandidate = errors.New("no candidate")
	// ErrInvariant means internal bookkeeping disagrees with itself.
	ErrInvariant = errors.New("invariant violation")
)

func levelFor(err error) zapcore.Level {
	switch {
	case errors.Is(err, ErrInvariant):
		return zapcore.ErrorLevel
	case errors.Is(err, ErrMissingReplicatedData):
		return zapcore.DebugLevel
	default:
		return zapcore.WarnLevel
	}
}

// report logs err at the level its category calls for
func report(log *zap.Logger, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if ce := log.Check(levelFor(err), err.Error()); ce != nil {
		ce.Write(fields...)
	}
}
