// Package store provides the SQLite-backed durable cache. Each key holds one
// string slot that is overwritten as a whole.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache is a keyed slot store on SQLite.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Slot is a stored value with its last write time.
type Slot struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the value stored under key. ok is false when the slot is empty.
func (c *Cache) Get(key string) (value string, ok bool, err error) {
	err = c.db.QueryRow("SELECT value FROM slots WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading slot %q: %w", key, err)
	}
	return value, true, nil
}

// Put overwrites the slot under key.
func (c *Cache) Put(key, value string) error {
	now := c.now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.Exec(`INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	if err != nil {
		return fmt.Errorf("writing slot %q: %w", key, err)
	}
	return nil
}

// Delete removes the slot under key.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM slots WHERE key = ?", key)
	return err
}

// List returns every slot whose key starts with prefix, ordered by key.
func (c *Cache) List(prefix string) ([]Slot, error) {
	rows, err := c.db.Query(
		"SELECT key, value, updated_at FROM slots WHERE substr(key, 1, ?) = ? ORDER BY key",
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var slots []Slot
	for rows.Next() {
		var s Slot
		var updated string
		if err := rows.Scan(&s.Key, &s.Value, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cbudget")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "cbudget")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "cache.db")
}
