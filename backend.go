package satchel

import "context"

// SnapshotBackend is the storage interface for snapshot persistence. It
// allows snapshots to live on the local filesystem, in memory, in S3, or in
// a SQLite file.
type SnapshotBackend interface {
	// Read reads an object from storage.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write writes an object to storage.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes an object from storage.
	Delete(ctx context.Context, key string) error

	// List returns all object keys matching a prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks whether an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented
var (
	_ SnapshotBackend = (*MemoryBackend)(nil)
	_ SnapshotBackend = (*FileBackend)(nil)
	_ SnapshotBackend = (*S3Backend)(nil)
	_ SnapshotBackend = (*SQLiteBackend)(nil)
)
