// Package localcache is the client's durable backup store: a small sqlite
// key-value file that shadows the server's truth so failed submissions
// survive a process restart. It is only consulted for recovery; the
// authoritative data always lives server-side.
package localcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	envHome     = "STUDYTRACK_CACHE_HOME" // override for tests
	dirName     = ".study-enforcer"       // default under $HOME
	dbFilename  = "cache.db"
	busyTimeout = 5000 // ms
)

// Cache is a durable string-keyed store with JSON helpers.
type Cache struct {
	db *sql.DB
}

// DefaultPath returns the cache file location, creating its directory with
// 0700 permissions when missing.
func DefaultPath() (string, error) {
	if custom := os.Getenv(envHome); custom != "" {
		if err := os.MkdirAll(custom, 0o700); err != nil {
			return "", err
		}
		return filepath.Join(custom, dbFilename), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFilename), nil
}

// Open opens (or creates) the cache database at path and ensures its
// schema. An empty path selects DefaultPath.
func Open(path string) (*Cache, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, busyTimeout))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the raw value for key, or ("", false) when absent.
func (c *Cache) Get(key string) (string, bool, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts key to value.
func (c *Cache) Set(key, value string) error {
	_, err := c.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Delete removes key. Absent keys are a no-op.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// GetJSON decodes the value for key into v, reporting whether the key was
// present and parseable.
func (c *Cache) GetJSON(key string, v interface{}) (bool, error) {
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		// Unparseable cache content is treated as absent; it is only a
		// best-effort shadow of server truth.
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and upserts it under key.
func (c *Cache) SetJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, string(raw))
}
