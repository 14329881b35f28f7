package satchel

import (
	"context"
	"sync"
	"time"
)

// DB is the main database handle: a set of reactive document collections
// with optional snapshot persistence and a change feed.
type DB struct {
	config   Config
	provider *MemoryProvider
	feed     *Feed
	cache    *queryCache

	backend     SnapshotBackend
	ownsBackend bool

	mu      sync.RWMutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Open creates a database from the given configuration. When a snapshot
// backend is configured and holds a snapshot, the collections are restored
// from it before Open returns.
func Open(cfg Config) (*DB, error) {
	cfg.normalize()

	backend, owns, err := cfg.Snapshot.resolveBackend()
	if err != nil {
		return nil, err
	}

	db := &DB{
		config:      cfg,
		provider:    NewMemoryProvider(),
		cache:       newQueryCache(cfg.Query.CacheSize),
		backend:     backend,
		ownsBackend: owns,
		closeCh:     make(chan struct{}),
	}

	if backend != nil {
		if err := db.restore(context.Background()); err != nil {
			if owns {
				_ = backend.Close()
			}
			return nil, err
		}
	}

	if cfg.Changefeed.Enabled {
		db.feed = NewFeed(cfg.Changefeed)
		db.feed.Start()
	}

	if backend != nil && cfg.Snapshot.Interval > 0 {
		db.wg.Add(1)
		go db.snapshotWorker(cfg.Snapshot.Interval)
	}

	return db, nil
}

// Collection returns a handle for the collection at path, creating it on
// first use.
func (db *DB) Collection(path string) (*Collection, error) {
	db.mu.RLock()
	closed := db.closed
	db.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	table, err := db.provider.Table(path)
	if err != nil {
		return nil, err
	}
	return &Collection{db: db, table: table, path: path}, nil
}

// Collections returns the paths of all collections, sorted.
func (db *DB) Collections() []string {
	return db.provider.Paths()
}

// Drop removes a collection and all its documents.
func (db *DB) Drop(path string) bool {
	return db.provider.Drop(path)
}

// Feed returns the change feed engine, or nil when disabled.
func (db *DB) Feed() *Feed {
	return db.feed
}

// Provider returns the underlying memory provider.
func (db *DB) Provider() *MemoryProvider {
	return db.provider
}

// Snapshot writes the current contents of all collections to the snapshot
// backend. Each collection is captured atomically; the snapshot as a whole
// is a best-effort materialization, not a point-in-time transaction.
func (db *DB) Snapshot(ctx context.Context) error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrClosed
	}
	db.mu.RUnlock()

	return db.snapshot(ctx)
}

func (db *DB) snapshot(ctx context.Context) error {
	if db.backend == nil {
		return nil
	}

	collections := make(map[string]map[string]Document)
	for _, path := range db.provider.Paths() {
		table, err := db.provider.Table(path)
		if err != nil {
			continue
		}
		collections[path] = table.Snapshot()
	}

	var enc *Encryptor
	if db.config.Snapshot.Encryption != nil {
		var err error
		enc, err = NewEncryptor(*db.config.Snapshot.Encryption)
		if err != nil {
			return err
		}
	}

	return writeSnapshot(ctx, db.backend, db.config.Snapshot.Key, collections, enc)
}

func (db *DB) restore(ctx context.Context) error {
	ok, err := db.backend.Exists(ctx, db.config.Snapshot.Key)
	if err != nil || !ok {
		return err
	}

	payload, err := readSnapshot(ctx, db.backend, db.config.Snapshot.Key, db.config.Snapshot.Encryption)
	if err != nil {
		return err
	}

	for path, docs := range payload.Collections {
		table, err := db.provider.Table(path)
		if err != nil {
			return err
		}
		table.loadDocs(docs)
	}
	return nil
}

func (db *DB) snapshotWorker(interval time.Duration) {
	defer db.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-db.closeCh:
			return
		case <-ticker.C:
			_ = db.snapshot(context.Background())
		}
	}
}

// DBStats summarizes database state.
type DBStats struct {
	Collections int        `json:"collections"`
	Documents   int        `json:"documents"`
	Feed        FeedStats  `json:"feed"`
	Cache       CacheStats `json:"cache"`
}

// Stats returns current database statistics.
func (db *DB) Stats() DBStats {
	stats := DBStats{Cache: db.cache.stats()}
	for _, path := range db.provider.Paths() {
		table, err := db.provider.Table(path)
		if err != nil {
			continue
		}
		stats.Collections++
		stats.Documents += table.Len()
	}
	if db.feed != nil {
		stats.Feed = db.feed.Stats()
	}
	return stats
}

// Close stops background workers, writes a final snapshot when persistence
// is configured, and releases all resources.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	close(db.closeCh)
	db.wg.Wait()

	var firstErr error
	if db.backend != nil {
		if err := db.snapshot(context.Background()); err != nil {
			firstErr = err
		}
	}

	if db.feed != nil {
		db.feed.Stop()
	}

	if err := db.provider.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if db.backend != nil && db.ownsBackend {
		if err := db.backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// queryContext derives the execution context for a query, applying the
// configured timeout.
func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.config.Query.Timeout > 0 {
		return context.WithTimeout(ctx, db.config.Query.Timeout)
	}
	return context.WithCancel(ctx)
}
