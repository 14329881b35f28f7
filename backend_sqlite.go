package satchel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteBackendConfig configures the SQLite snapshot backend.
type SQLiteBackendConfig struct {
	// Path to the SQLite database file.
	Path string `yaml:"path"`

	// CacheSize is the SQLite page cache size in KB (default: 2000 = 2MB).
	CacheSize int `yaml:"cache_size"`

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.).
	JournalMode string `yaml:"journal_mode"`

	// Synchronous sets the synchronous flag (OFF, NORMAL, FULL, EXTRA).
	Synchronous string `yaml:"synchronous"`

	// BusyTimeout is the timeout for acquiring locks in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// MaxConnections is the max number of database connections.
	MaxConnections int `yaml:"max_connections"`
}

// DefaultSQLiteBackendConfig returns default configuration.
func DefaultSQLiteBackendConfig() SQLiteBackendConfig {
	return SQLiteBackendConfig{
		Path:           "satchel.db",
		CacheSize:      2000,
		JournalMode:    "WAL",
		Synchronous:    "NORMAL",
		BusyTimeout:    5000,
		MaxConnections: 10,
	}
}

// SQLiteBackend implements SnapshotBackend using SQLite, so snapshots can be
// inspected with standard SQLite tooling.
type SQLiteBackend struct {
	db     *sql.DB
	config SQLiteBackendConfig
	mu     sync.RWMutex
	closed bool

	// Prepared statements for common operations
	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
	deleteStmt *sql.Stmt
	existsStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// NewSQLiteBackend creates a new SQLite-based snapshot backend.
func NewSQLiteBackend(config SQLiteBackendConfig) (*SQLiteBackend, error) {
	if config.Path == "" {
		config.Path = "satchel.db"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 2000
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.Synchronous == "" {
		config.Synchronous = "NORMAL"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxIdleTime(time.Minute)

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", config.CacheSize),
		fmt.Sprintf("PRAGMA journal_mode = %s", config.JournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", config.Synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", config.BusyTimeout),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS objects (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	b := &SQLiteBackend{db: db, config: config}
	if err := b.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) prepareStatements() error {
	var err error
	if b.insertStmt, err = b.db.Prepare(
		`INSERT INTO objects (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	); err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	if b.selectStmt, err = b.db.Prepare(`SELECT data FROM objects WHERE key = ?`); err != nil {
		return fmt.Errorf("failed to prepare select: %w", err)
	}
	if b.deleteStmt, err = b.db.Prepare(`DELETE FROM objects WHERE key = ?`); err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	if b.existsStmt, err = b.db.Prepare(`SELECT 1 FROM objects WHERE key = ?`); err != nil {
		return fmt.Errorf("failed to prepare exists: %w", err)
	}
	if b.listStmt, err = b.db.Prepare(
		`SELECT key FROM objects WHERE key LIKE ? || '%' ORDER BY key`,
	); err != nil {
		return fmt.Errorf("failed to prepare list: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Read(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	var data []byte
	err := b.selectStmt.QueryRowContext(ctx, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, os.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read failed: %w", err)
	}
	return data, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, key string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	_, err := b.insertStmt.ExecContext(ctx, key, data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite write failed: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if _, err := b.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	rows, err := b.listStmt.QueryContext(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite list failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (b *SQLiteBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false, ErrClosed
	}

	var one int
	err := b.existsStmt.QueryRowContext(ctx, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite exists failed: %w", err)
	}
	return true, nil
}

func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for _, stmt := range []*sql.Stmt{b.insertStmt, b.selectStmt, b.deleteStmt, b.existsStmt, b.listStmt} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return b.db.Close()
}
