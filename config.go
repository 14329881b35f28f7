package satchel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines database configuration.
type Config struct {
	// Snapshot configures persistence of collection contents.
	Snapshot SnapshotConfig

	// Changefeed configures the change feed engine.
	Changefeed ChangefeedConfig

	// Query configures query execution.
	Query QueryConfig
}

// SnapshotConfig groups snapshot persistence settings. With no backend
// configured the database is purely in-memory.
type SnapshotConfig struct {
	// Backend is an explicit snapshot backend. Takes precedence over the
	// declarative fields below.
	Backend SnapshotBackend

	// Dir, when set, persists snapshots to this directory via FileBackend.
	Dir string

	// SQLite, when set, persists snapshots into a SQLite file.
	SQLite *SQLiteBackendConfig

	// S3, when set, persists snapshots to S3-compatible storage.
	S3 *S3BackendConfig

	// Key is the object key snapshots are stored under.
	// Default: "satchel.snapshot".
	Key string

	// Interval is how often a snapshot is written in the background.
	// 0 means snapshots happen only on Close or explicit Snapshot calls.
	Interval time.Duration

	// Encryption configures snapshot encryption at rest.
	// If nil or Enabled is false, snapshots are stored unencrypted.
	Encryption *EncryptionConfig
}

// QueryConfig groups query execution settings.
type QueryConfig struct {
	// Timeout is the maximum duration for query execution.
	// Default: 30 seconds.
	Timeout time.Duration

	// CacheSize is the number of result pages the query cache holds.
	// Default: 256. Negative disables caching.
	CacheSize int
}

// DefaultConfig returns a configuration with sensible defaults: an
// in-memory database with the change feed enabled and no persistence.
func DefaultConfig() Config {
	return Config{
		Snapshot: SnapshotConfig{
			Key: "satchel.snapshot",
		},
		Changefeed: DefaultChangefeedConfig(),
		Query: QueryConfig{
			Timeout:   30 * time.Second,
			CacheSize: 256,
		},
	}
}

// normalize fills in zero values with defaults.
func (c *Config) normalize() {
	if c.Snapshot.Key == "" {
		c.Snapshot.Key = "satchel.snapshot"
	}
	if c.Query.Timeout <= 0 {
		c.Query.Timeout = 30 * time.Second
	}
	if c.Query.CacheSize == 0 {
		c.Query.CacheSize = 256
	}
	if c.Changefeed.BufferSize <= 0 {
		c.Changefeed.BufferSize = 4096
	}
	if c.Changefeed.MaxSubscribers <= 0 {
		c.Changefeed.MaxSubscribers = 64
	}
	if c.Changefeed.FlushInterval <= 0 {
		c.Changefeed.FlushInterval = 50 * time.Millisecond
	}
}

// resolveBackend picks the snapshot backend from the configuration.
// Returns (nil, nil) when no persistence is configured. The bool reports
// whether the backend is owned by the DB and should be closed with it.
func (c *SnapshotConfig) resolveBackend() (SnapshotBackend, bool, error) {
	switch {
	case c.Backend != nil:
		return c.Backend, false, nil
	case c.SQLite != nil:
		b, err := NewSQLiteBackend(*c.SQLite)
		return b, true, err
	case c.S3 != nil:
		b, err := NewS3Backend(*c.S3)
		return b, true, err
	case c.Dir != "":
		b, err := NewFileBackend(c.Dir)
		return b, true, err
	}
	return nil, false, nil
}

// fileConfig mirrors Config for YAML, with durations as strings ("30s").
type fileConfig struct {
	Snapshot struct {
		Dir        string               `yaml:"dir"`
		SQLite     *SQLiteBackendConfig `yaml:"sqlite"`
		S3         *S3BackendConfig     `yaml:"s3"`
		Key        string               `yaml:"key"`
		Interval   string               `yaml:"interval"`
		Encryption *EncryptionConfig    `yaml:"encryption"`
	} `yaml:"snapshot"`
	Changefeed struct {
		Enabled            *bool    `yaml:"enabled"`
		BufferSize         int      `yaml:"buffer_size"`
		MaxSubscribers     int      `yaml:"max_subscribers"`
		FlushInterval      string   `yaml:"flush_interval"`
		IncludeCollections []string `yaml:"include_collections"`
		ExcludeCollections []string `yaml:"exclude_collections"`
	} `yaml:"changefeed"`
	Query struct {
		Timeout   string `yaml:"timeout"`
		CacheSize *int   `yaml:"cache_size"`
	} `yaml:"query"`
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Snapshot.Dir = fc.Snapshot.Dir
	cfg.Snapshot.SQLite = fc.Snapshot.SQLite
	cfg.Snapshot.S3 = fc.Snapshot.S3
	cfg.Snapshot.Encryption = fc.Snapshot.Encryption
	if fc.Snapshot.Key != "" {
		cfg.Snapshot.Key = fc.Snapshot.Key
	}
	if cfg.Snapshot.Interval, err = parseDuration(fc.Snapshot.Interval, cfg.Snapshot.Interval); err != nil {
		return cfg, err
	}

	if fc.Changefeed.Enabled != nil {
		cfg.Changefeed.Enabled = *fc.Changefeed.Enabled
	}
	if fc.Changefeed.BufferSize > 0 {
		cfg.Changefeed.BufferSize = fc.Changefeed.BufferSize
	}
	if fc.Changefeed.MaxSubscribers > 0 {
		cfg.Changefeed.MaxSubscribers = fc.Changefeed.MaxSubscribers
	}
	if cfg.Changefeed.FlushInterval, err = parseDuration(fc.Changefeed.FlushInterval, cfg.Changefeed.FlushInterval); err != nil {
		return cfg, err
	}
	cfg.Changefeed.IncludeCollections = fc.Changefeed.IncludeCollections
	cfg.Changefeed.ExcludeCollections = fc.Changefeed.ExcludeCollections

	if cfg.Query.Timeout, err = parseDuration(fc.Query.Timeout, cfg.Query.Timeout); err != nil {
		return cfg, err
	}
	if fc.Query.CacheSize != nil {
		cfg.Query.CacheSize = *fc.Query.CacheSize
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
