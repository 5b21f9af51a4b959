// Package faststate provides the TTL key/value store and FIFO queue that
// back the production lock, cadence non-overlap locks, and the
// deduplication fingerprint set. It is backed by SQLite rather than
// Postgres because every operation here is a short-lived, single-node,
// low-durability-requirement primitive.
package faststate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed TTL key/value store plus a FIFO queue table.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) the fast-state database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "faststate.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open faststate database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize faststate database: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	kvTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at DATETIME
	);`

	queueTable := `
	CREATE TABLE IF NOT EXISTS queue_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		queue TEXT NOT NULL,
		payload TEXT NOT NULL,
		enqueued_at DATETIME NOT NULL
	);`

	for _, stmt := range []string{kvTable, queueTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create faststate table: %w", err)
		}
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) expireKey(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?`, key, time.Now().UTC())
	return err
}

// Get returns the value for key. The second return is false if the key is
// absent or has expired.
func (s *Store) Get(key string) (string, bool, error) {
	if err := s.expireKey(key); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, true, nil
}

// Set unconditionally stores value for key with the given TTL. A zero TTL
// means the key never expires on its own.
func (s *Store) Set(key, value string, ttl time.Duration) error {
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO kv (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent stores value for key only if the key is not currently present
// (accounting for expiry). It reports whether the set actually happened —
// callers use the boolean as the lock-acquired signal.
func (s *Store) SetIfAbsent(key, value string, ttl time.Duration) (bool, error) {
	if err := s.expireKey(key); err != nil {
		return false, err
	}

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO kv (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to conditionally set key %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for key %q: %w", key, err)
	}
	return n == 1, nil
}

// Delete removes key, if present. Deleting an absent key is not an error —
// callers release locks unconditionally in defer blocks.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Reap deletes every expired key and reports how many rows were removed.
// The orchestration core's sweeper runs this on the collection sweep
// interval so abandoned locks don't linger past their TTL in spirit only.
func (s *Store) Reap() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected during reap: %w", err)
	}
	return n, nil
}

// Push appends payload to the named FIFO queue.
func (s *Store) Push(queue, payload string) error {
	_, err := s.db.Exec(
		`INSERT INTO queue_items (queue, payload, enqueued_at) VALUES (?, ?, ?)`,
		queue, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to push to queue %q: %w", queue, err)
	}
	return nil
}

// Pop removes and returns the oldest item in the named queue. The second
// return is false if the queue is empty.
func (s *Store) Pop(queue string) (string, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("failed to begin pop transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var payload string
	err = tx.QueryRow(
		`SELECT id, payload FROM queue_items WHERE queue = ? ORDER BY id ASC LIMIT 1`,
		queue,
	).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to peek queue %q: %w", queue, err)
	}

	if _, err := tx.Exec(`DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return "", false, fmt.Errorf("failed to pop queue %q: %w", queue, err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit pop from queue %q: %w", queue, err)
	}

	return payload, true, nil
}

// Len reports the current depth of the named queue, used for backpressure
// decisions in the review router.
func (s *Store) Len(queue string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM queue_items WHERE queue = ?`, queue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to measure queue %q depth: %w", queue, err)
	}
	return n, nil
}
