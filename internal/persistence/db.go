// Package persistence stores game states: a SQLite document store for
// durable runs and an in-memory store for tests and ephemeral servers.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/ascension/internal/engine"
	apperrors "github.com/talgya/ascension/internal/errors"
)

// DB wraps a SQLite connection for game state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps transactions from tripping over SQLite's file lock.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_states (
		id TEXT PRIMARY KEY,
		game_time TEXT NOT NULL,
		time_multiplier REAL NOT NULL,
		created_at TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS investigations (
		id TEXT PRIMARY KEY,
		game_state_id TEXT NOT NULL REFERENCES game_states(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_investigations_game ON investigations(game_state_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type gameRow struct {
	ID        string `db:"id"`
	StateJSON string `db:"state_json"`
}

// Save writes the game state and refreshes its investigation index in one
// transaction.
func (db *DB) Save(ctx context.Context, gs *engine.GameState) error {
	stateJSON, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("encode game state %s: %w", gs.ID, err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO game_states
		(id, game_time, time_multiplier, created_at, last_updated, state_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			game_time = excluded.game_time,
			time_multiplier = excluded.time_multiplier,
			last_updated = excluded.last_updated,
			state_json = excluded.state_json`,
		gs.ID,
		gs.CurrentTime.Format(time.RFC3339),
		gs.TimeMultiplier,
		gs.CreatedAt.Format(time.RFC3339Nano),
		gs.LastUpdated.Format(time.RFC3339Nano),
		string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("save game state %s: %w", gs.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM investigations WHERE game_state_id = ?", gs.ID); err != nil {
		return fmt.Errorf("clear investigation index: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO investigations
		(id, game_state_id, name, status) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range investigationIDs(gs) {
		var owner string
		err := tx.GetContext(ctx, &owner, "SELECT game_state_id FROM investigations WHERE id = ?", id)
		if err == nil {
			return duplicateInvestigation(id, owner)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check investigation %s: %w", id, err)
		}
		inv, ok := gs.Investigations[id]
		if !ok {
			inv = gs.Completed[id]
		}
		if _, err := stmt.ExecContext(ctx, id, gs.ID, inv.Name, inv.Status); err != nil {
			return fmt.Errorf("index investigation %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit game state %s: %w", gs.ID, err)
	}
	slog.Debug("game state saved", "game", gs.ID, "characters", len(gs.Characters),
		"investigations", len(gs.Investigations))
	return nil
}

// investigationIDs lists active and completed investigation ids in order.
func investigationIDs(gs *engine.GameState) []string {
	ids := make([]string, 0, len(gs.Investigations)+len(gs.Completed))
	for id := range gs.Investigations {
		ids = append(ids, id)
	}
	for id := range gs.Completed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// duplicateInvestigation reports an investigation id already indexed under
// another game state.
func duplicateInvestigation(id, owner string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, "investigation already exists: "+id,
		map[string]string{"game_state_id": owner})
}

// Load reads one game state.
func (db *DB) Load(ctx context.Context, id string) (*engine.GameState, error) {
	var row gameRow
	err := db.conn.GetContext(ctx, &row, "SELECT id, state_json FROM game_states WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("game state", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load game state %s: %w", id, err)
	}

	var gs engine.GameState
	if err := json.Unmarshal([]byte(row.StateJSON), &gs); err != nil {
		return nil, fmt.Errorf("decode game state %s: %w", id, err)
	}
	return &gs, nil
}

// List returns every game state id in order.
func (db *DB) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := db.conn.SelectContext(ctx, &ids, "SELECT id FROM game_states ORDER BY id")
	return ids, err
}

// FindInvestigation returns the id of the game state holding an
// investigation.
func (db *DB) FindInvestigation(ctx context.Context, investigationID string) (string, error) {
	var gameID string
	err := db.conn.GetContext(ctx, &gameID, "SELECT game_state_id FROM investigations WHERE id = ?", investigationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("investigation", investigationID)
	}
	if err != nil {
		return "", fmt.Errorf("find investigation %s: %w", investigationID, err)
	}
	return gameID, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
