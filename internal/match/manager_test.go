package match

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/journal"
)

func newTestManager(t *testing.T, withJournal bool) (*Manager, *journal.DB) {
	t.Helper()
	var db *journal.DB
	var writer *journal.Writer
	if withJournal {
		var err error
		db, err = journal.Open(journal.MemoryPath)
		require.NoError(t, err)
		writer = journal.NewWriter(db, nil, 50*time.Millisecond)
		t.Cleanup(func() {
			writer.Stop()
			db.Close()
		})
	}
	mg := NewManager(context.Background(), nil, Options{TickRate: testRate, WaveInterval: time.Hour}, db, writer)
	t.Cleanup(func() { mg.Shutdown() })
	return mg, db
}

func TestManagerLifecycle(t *testing.T) {
	mg, db := newTestManager(t, true)

	m, err := mg.Create("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", m.Name)
	assert.Equal(t, 1, mg.Len())

	got, err := mg.Lookup(m.ID.String())
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = mg.Lookup("not-a-uuid")
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = mg.Lookup(uuid.NewString())
	assert.ErrorIs(t, err, ErrMatchNotFound)

	feed, ok := mg.Feed(m.ID.String())
	require.True(t, ok)
	assert.Same(t, m.Hub(), feed.Hub())

	list := mg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "alpha", list[0].Name)

	stats, err := db.MatchStats(m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID.String(), stats.MatchID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, mg.Remove(ctx, m.ID))
	assert.Zero(t, mg.Len())
	assert.ErrorIs(t, mg.Remove(ctx, m.ID), ErrMatchNotFound)

	select {
	case <-m.Done():
	default:
		t.Fatal("removed match still running")
	}
}

func TestManagerListIsOrdered(t *testing.T) {
	mg, _ := newTestManager(t, false)
	for _, name := range []string{"one", "two", "three"} {
		_, err := mg.Create(name)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	list := mg.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestManagerShutdown(t *testing.T) {
	mg, _ := newTestManager(t, true)
	a, err := mg.Create("a")
	require.NoError(t, err)
	b, err := mg.Create("b")
	require.NoError(t, err)

	require.NoError(t, mg.Shutdown())
	for _, m := range []*Match{a, b} {
		select {
		case <-m.Done():
		default:
			t.Fatalf("match %s still running", m)
		}
	}
	assert.Zero(t, mg.Len())

	_, err = mg.Create("late")
	assert.ErrorIs(t, err, context.Canceled)
}
