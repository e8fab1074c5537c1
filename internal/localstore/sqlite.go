package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultDriver is the pure-Go SQLite driver name.
	DefaultDriver = "sqlite"

	lockFileName       = "store.lock"
	defaultLockTimeout = 2 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB is a Store persisted in a SQLite file. It survives process restarts and
// may be shared by several processes; writers coordinate through Lock.
type DB struct {
	conn        *sql.DB
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// Open opens (creating if needed) the store at dbPath using the default driver.
func Open(dbPath string) (*DB, error) {
	return OpenDriver(DefaultDriver, dbPath)
}

// OpenDriver opens the store with an explicitly named database/sql driver.
// The driver must already be registered by the caller's imports.
func OpenDriver(driver, dbPath string) (*DB, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	conn, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	db := &DB{conn: conn, path: dbPath, lockTimeout: defaultLockTimeout}
	if !inMemory {
		db.lockPath = filepath.Join(filepath.Dir(dbPath), lockFileName)
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the database connection is alive.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close checkpoints the WAL and closes the database connection.
func (db *DB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

func (db *DB) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (db *DB) SetItem(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (db *DB) RemoveItem(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Lock takes the cross-process write lock next to the database file.
// In-memory databases are private to the process and need no file lock.
func (db *DB) Lock(ctx context.Context) (func(), error) {
	if db.lockPath == "" {
		return func() {}, nil
	}
	l := newWriteLocker(db.lockPath)
	if err := l.acquire(ctx, db.lockTimeout); err != nil {
		return nil, err
	}
	return func() { l.release() }, nil
}
