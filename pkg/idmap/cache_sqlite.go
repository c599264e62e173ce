package idmap

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCache persists oracle answers across runs in a single SQLite file.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (creating if needed) the cache database at path.
func NewSQLiteCache(path string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache schema migration failed: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS lookups (
		key TEXT PRIMARY KEY,
		ids JSON NOT NULL,
		stored_at INTEGER NOT NULL
	);`
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create lookups table: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	var (
		raw      string
		storedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT ids, stored_at FROM lookups WHERE key = ?`, key).Scan(&raw, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	if c.ttl > 0 && c.now().Sub(time.Unix(storedAt, 0)) > c.ttl {
		return nil, false, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO lookups (key, ids, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET ids = excluded.ids, stored_at = excluded.stored_at`,
		key, string(raw), c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
