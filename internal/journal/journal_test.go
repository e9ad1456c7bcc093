package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/effect"
	"effects-server/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriterPersistsEvents(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New()
	require.NoError(t, db.CreateMatch(id, "arena"))

	w := NewWriter(db, nil, time.Hour)
	sink := w.Sink(id)
	a := world.Handle{Index: 1, Gen: 1}
	b := world.Handle{Index: 2, Gen: 1}
	for _, ev := range []effect.Event{
		{Kind: effect.EventActivated, Tick: 1, Entity: 7, Class: "shock_field"},
		{Kind: effect.EventHit, Tick: 2, Target: a, Magnitude: 1, Tags: []string{"Ability.Type.Trap"}},
		{Kind: effect.EventHit, Tick: 2, Target: b, Magnitude: 1},
		{Kind: effect.EventHit, Tick: 3, Target: a, Magnitude: 1},
		{Kind: effect.EventMultiHit, Tick: 3, Magnitude: 2},
	} {
		require.NoError(t, sink.Write(ev))
	}
	w.Stop()
	assert.ErrorIs(t, w.Track(id, effect.Event{Kind: effect.EventHit}), ErrClosed)
	w.Stop()

	counts, err := db.EventCounts(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"activated": 1, "hit": 3, "multi_hit": 1}, counts)

	stats, err := db.MatchStats(id)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DistinctTargets)
	assert.Zero(t, stats.Waves)
}

func TestWaves(t *testing.T) {
	db := openTestDB(t)
	id := uuid.New()
	require.NoError(t, db.CreateMatch(id, "arena"))

	require.NoError(t, db.RecordWave(id, WaveRow{Wave: 2, Score: 30, Variety: 2, Units: 9, Rares: 1}))
	require.NoError(t, db.RecordWave(id, WaveRow{Wave: 1, Score: 20, Variety: 2, Units: 12}))

	waves, err := db.Waves(id)
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, 1, waves[0].Wave)
	assert.Equal(t, 1, waves[1].Rares)

	stats, err := db.MatchStats(id)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Waves)
	assert.Equal(t, 21, stats.Units)
	require.NoError(t, db.EndMatch(id))
}

func TestUnknownMatch(t *testing.T) {
	db := openTestDB(t)
	_, err := db.MatchStats(uuid.New())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(db.EndMatch(uuid.New())))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, db.CreateMatch(id, "persisted"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	stats, err := db.MatchStats(id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), stats.MatchID)
}
