// internal/cache/sqlite.go
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SqliteStore persists cache entries across restarts in a single-file
// sqlite database. Writes are serialised through one connection.
type SqliteStore struct {
	db         *sql.DB
	maxEntries int
}

// OpenSqliteStore opens (creating if needed) the cache database at dbPath.
// maxEntries <= 0 means unbounded.
func OpenSqliteStore(dbPath string, maxEntries int) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SqliteStore{db: db, maxEntries: maxEntries}, nil
}

func (s *SqliteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *SqliteStore) Set(key string, value []byte) error {
	if s.maxEntries > 0 {
		var exists bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM kv WHERE key = ?)`, key).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			var count int
			if err := s.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&count); err != nil {
				return err
			}
			if count >= s.maxEntries {
				return ErrStoreFull
			}
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *SqliteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SqliteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SqliteStore) Close() error { return s.db.Close() }
