package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory journal
const MemoryPath = ":memory:"

// DB wraps the SQLite combat journal
type DB struct {
	conn *sql.DB
}

// WaveRow is one queued wave
type WaveRow struct {
	Wave      int       `json:"wave"`
	Score     float64   `json:"score"`
	Variety   int       `json:"variety"`
	Units     int       `json:"units"`
	Rares     int       `json:"rares"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates the journal of one match
type Stats struct {
	MatchID         string         `json:"match_id"`
	Events          map[string]int `json:"events"`
	DistinctTargets int            `json:"distinct_targets"`
	Waves           int            `json:"waves"`
	Units           int            `json:"units"`
}

// Open opens (or creates) the journal at path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == MemoryPath {
		// every connection would get its own empty database
		conn.SetMaxOpenConns(1)
	} else if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		game_time REAL NOT NULL,
		kind TEXT NOT NULL,
		activation_key INTEGER NOT NULL DEFAULT 0,
		entity INTEGER NOT NULL DEFAULT 0,
		class TEXT NOT NULL DEFAULT '',
		instigator TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		magnitude REAL NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS waves (
		match_id TEXT NOT NULL,
		wave INTEGER NOT NULL,
		score REAL NOT NULL,
		variety INTEGER NOT NULL,
		units INTEGER NOT NULL,
		rares INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (match_id, wave)
	);

	CREATE INDEX IF NOT EXISTS idx_events_match_kind ON events(match_id, kind);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateMatch records a new match
func (db *DB) CreateMatch(id uuid.UUID, name string) error {
	_, err := db.conn.Exec(
		"INSERT INTO matches (id, name, created_at) VALUES (?, ?, ?)",
		id.String(), name, time.Now().UTC(),
	)
	return err
}

// EndMatch stamps the end time of a match
func (db *DB) EndMatch(id uuid.UUID) error {
	res, err := db.conn.Exec("UPDATE matches SET ended_at = ? WHERE id = ?", time.Now().UTC(), id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end match %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecordWave stores one queued wave
func (db *DB) RecordWave(id uuid.UUID, w WaveRow) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO waves (match_id, wave, score, variety, units, rares, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), w.Wave, w.Score, w.Variety, w.Units, w.Rares, w.CreatedAt,
	)
	return err
}

// Waves returns the waves of a match in order
func (db *DB) Waves(id uuid.UUID) ([]WaveRow, error) {
	rows, err := db.conn.Query(
		"SELECT wave, score, variety, units, rares, created_at FROM waves WHERE match_id = ? ORDER BY wave",
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WaveRow
	for rows.Next() {
		var w WaveRow
		if err := rows.Scan(&w.Wave, &w.Score, &w.Variety, &w.Units, &w.Rares, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// EventCounts returns how many events of each kind a match journaled
func (db *DB) EventCounts(id uuid.UUID) (map[string]int, error) {
	rows, err := db.conn.Query(
		"SELECT kind, COUNT(*) FROM events WHERE match_id = ? GROUP BY kind",
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		result[kind] = count
	}
	return result, rows.Err()
}

// MatchStats aggregates events and waves of a match
func (db *DB) MatchStats(id uuid.UUID) (Stats, error) {
	var exists int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM matches WHERE id = ?", id.String()).Scan(&exists)
	if err != nil {
		return Stats{}, err
	}
	if exists == 0 {
		return Stats{}, fmt.Errorf("match %s: %w", id, sql.ErrNoRows)
	}

	counts, err := db.EventCounts(id)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{MatchID: id.String(), Events: counts}
	err = db.conn.QueryRow(
		"SELECT COUNT(DISTINCT target) FROM events WHERE match_id = ? AND kind = 'hit'",
		id.String(),
	).Scan(&s.DistinctTargets)
	if err != nil {
		return Stats{}, err
	}
	var units sql.NullInt64
	err = db.conn.QueryRow(
		"SELECT COUNT(*), SUM(units) FROM waves WHERE match_id = ?",
		id.String(),
	).Scan(&s.Waves, &units)
	if err != nil {
		return Stats{}, err
	}
	s.Units = int(units.Int64)
	return s, nil
}

// IsNotFound reports whether err means the match is unknown
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
