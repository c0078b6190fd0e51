package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowpulse/flowpulse/pkg/types"
)

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	platform  TEXT PRIMARY KEY,
	value     TEXT NOT NULL,
	stored_at INTEGER NOT NULL
)`

// SQLite persists snapshots in a single key-value table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises
	// writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save upserts snap under its platform.
func (p *SQLite) Save(ctx context.Context, snap types.Snapshot) error {
	value, err := json.Marshal(snap.MetricSet)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO snapshots (platform, value, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(platform) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		string(snap.MetricSet.Platform), string(value), snap.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", snap.MetricSet.Platform, err)
	}
	return nil
}

// LoadAll returns every stored snapshot. Rows that fail to decode are
// skipped.
func (p *SQLite) LoadAll(ctx context.Context) ([]types.Snapshot, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT platform, value, stored_at FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()

	var out []types.Snapshot
	for rows.Next() {
		var (
			platform string
			value    string
			storedAt int64
		)
		if err := rows.Scan(&platform, &value, &storedAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		var ms types.MetricSet
		if err := json.Unmarshal([]byte(value), &ms); err != nil {
			continue
		}
		ms.Platform = types.Platform(platform)
		out = append(out, types.Snapshot{MetricSet: ms, StoredAt: time.UnixMilli(storedAt).UTC()})
	}
	return out, rows.Err()
}

// Close closes the database.
func (p *SQLite) Close() error { return p.db.Close() }
