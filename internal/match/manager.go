package match

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"effects-server/internal/journal"
	"effects-server/internal/logging"
	"effects-server/internal/replication"
)

const maxMatches = 100

var (
	ErrTooManyMatches = errors.New("too many matches")
	ErrMatchNotFound  = errors.New("match not found")
)

// Manager owns every running match
type Manager struct {
	log    *zap.Logger
	opts   Options
	db     *journal.DB
	writer *journal.Writer

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.RWMutex
	matches map[uuid.UUID]*Match
}

// NewManager creates a manager whose matches live until ctx ends. db and
// writer may be nil, in which case nothing is journaled.
func NewManager(ctx context.Context, log *zap.Logger, opts Options, db *journal.DB, writer *journal.Writer) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	return &Manager{
		log:     log,
		opts:    opts,
		db:      db,
		writer:  writer,
		ctx:     gctx,
		cancel:  cancel,
		group:   g,
		matches: make(map[uuid.UUID]*Match),
	}
}

// Create starts a new match
func (mg *Manager) Create(name string) (*Match, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if len(mg.matches) >= maxMatches {
		return nil, ErrTooManyMatches
	}
	if err := mg.ctx.Err(); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	id := uuid.New()
	opts := mg.opts
	opts.Name = name
	deps := Deps{
		Log:   mg.log,
		Sinks: []logging.NamedSink{{Name: "log", Sink: logging.ZapSink(mg.log.Named("events"))}},
	}
	if mg.db != nil {
		if err := mg.db.CreateMatch(id, name); err != nil {
			return nil, fmt.Errorf("create match %q: %w", name, err)
		}
		deps.Waves = mg.db
	}
	if mg.writer != nil {
		deps.Sinks = append(deps.Sinks, logging.NamedSink{Name: "journal", Sink: mg.writer.Sink(id)})
	}

	m := New(id, opts, deps)
	mg.matches[id] = m
	mg.group.Go(func() error {
		return m.Run(mg.ctx)
	})
	mg.log.Info("match created", zap.String("id", id.String()), zap.String("name", name))
	return m, nil
}

// Get returns a match by id
func (mg *Manager) Get(id uuid.UUID) (*Match, bool) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	m, ok := mg.matches[id]
	return m, ok
}

// Lookup parses id and returns the match
func (mg *Manager) Lookup(id string) (*Match, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("match %q: %w", id, ErrMatchNotFound)
	}
	m, ok := mg.Get(uid)
	if !ok {
		return nil, fmt.Errorf("match %q: %w", id, ErrMatchNotFound)
	}
	return m, nil
}

// Feed implements replication.Directory
func (mg *Manager) Feed(match string) (replication.Feed, bool) {
	m, err := mg.Lookup(match)
	if err != nil {
		return nil, false
	}
	return m, true
}

// List returns info about all matches, oldest first
func (mg *Manager) List() []Info {
	mg.mu.RLock()
	list := make([]Info, 0, len(mg.matches))
	for _, m := range mg.matches {
		list = append(list, m.Info())
	}
	mg.mu.RUnlock()

	slices.SortFunc(list, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

// Remove stops a match and waits for its loop to exit
func (mg *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	mg.mu.Lock()
	m, ok := mg.matches[id]
	delete(mg.matches, id)
	mg.mu.Unlock()
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrMatchNotFound)
	}

	m.Stop()
	select {
	case <-m.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if mg.db != nil {
		if err := mg.db.EndMatch(id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	mg.log.Info("match removed", zap.String("id", id.String()))
	return nil
}

// Len returns the number of running matches
func (mg *Manager) Len() int {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return len(mg.matches)
}

// Shutdown stops every match and waits for all of them
func (mg *Manager) Shutdown() error {
	mg.cancel()
	err := mg.group.Wait()

	mg.mu.Lock()
	defer mg.mu.Unlock()
	if mg.db != nil {
		for id := range mg.matches {
			if endErr := mg.db.EndMatch(id); endErr != nil && !journal.IsNotFound(endErr) {
				err = errors.Join(err, endErr)
			}
		}
	}
	clear(mg.matches)
	return err
}
