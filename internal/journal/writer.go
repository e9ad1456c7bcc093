package journal

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"effects-server/internal/effect"
	"effects-server/internal/logging"
)

var (
	ErrBacklogFull = errors.New("journal backlog full")
	ErrClosed      = errors.New("journal writer closed")
)

const (
	defaultBacklog   = 1024
	defaultBatchSize = 50
)

type row struct {
	match uuid.UUID
	ev    effect.Event
}

// Writer persists events in batches on a background goroutine
type Writer struct {
	db       *DB
	log      *zap.Logger
	interval time.Duration

	mu     sync.RWMutex
	closed bool
	events chan row
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewWriter creates and starts a writer that flushes every interval or every
// fifty events, whichever comes first
func NewWriter(db *DB, log *zap.Logger, interval time.Duration) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &Writer{
		db:       db,
		log:      log,
		interval: interval,
		events:   make(chan row, defaultBacklog),
		stop:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Track enqueues an event without blocking the caller
func (w *Writer) Track(match uuid.UUID, ev effect.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.events <- row{match: match, ev: ev}:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Sink returns a router sink journaling into match
func (w *Writer) Sink(match uuid.UUID) logging.Sink {
	return logging.SinkFunc(func(ev effect.Event) error { return w.Track(match, ev) })
}

// Stop flushes everything queued and stops the writer
func (w *Writer) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	close(w.stop)
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()

	batch := make([]row, 0, defaultBatchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case r := <-w.events:
			batch = append(batch, r)
			if len(batch) >= defaultBatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.stop:
			// Track refuses new rows once closed, so the backlog only shrinks
			for len(w.events) > 0 {
				batch = append(batch, <-w.events)
			}
			w.flush(batch)
			return
		}
	}
}

func (w *Writer) flush(batch []row) {
	if w.db == nil || len(batch) == 0 {
		return
	}
	if err := w.insert(batch); err != nil {
		w.log.Error("journal flush failed", zap.Int("events", len(batch)), zap.Error(err))
	}
}

func (w *Writer) insert(batch []row) error {
	tx, err := w.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events
		(match_id, tick, game_time, kind, activation_key, entity, class, instigator, target, magnitude, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		ev := r.ev
		target := ""
		if !ev.Target.IsZero() {
			target = ev.Target.String()
		}
		instigator := ""
		if !ev.Instigator.IsZero() {
			instigator = ev.Instigator.String()
		}
		_, err := stmt.Exec(r.match.String(), int64(ev.Tick), ev.Time, string(ev.Kind), ev.ActivationKey,
			int64(ev.Entity), ev.Class, instigator, target, ev.Magnitude, strings.Join(ev.Tags, ","))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
