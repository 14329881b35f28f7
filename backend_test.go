package satchel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sort"
	"testing"
)

// exerciseBackend runs the shared SnapshotBackend contract against an
// implementation.
func exerciseBackend(t *testing.T, b SnapshotBackend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Read(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read of missing key = %v, want os.ErrNotExist", err)
	}
	if ok, err := b.Exists(ctx, "missing"); err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v, want false, nil", ok, err)
	}

	if err := b.Write(ctx, "snap/a", []byte("alpha")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(ctx, "snap/b", []byte("beta")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(ctx, "other", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := b.Read(ctx, "snap/a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte("alpha")) {
		t.Errorf("Read = %q, want alpha", data)
	}

	// Overwrite.
	if err := b.Write(ctx, "snap/a", []byte("alpha2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = b.Read(ctx, "snap/a")
	if !bytes.Equal(data, []byte("alpha2")) {
		t.Errorf("Read after overwrite = %q, want alpha2", data)
	}

	if ok, err := b.Exists(ctx, "snap/b"); err != nil || !ok {
		t.Errorf("Exists(snap/b) = %v, %v, want true, nil", ok, err)
	}

	keys, err := b.List(ctx, "snap/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "snap/a" || keys[1] != "snap/b" {
		t.Errorf("List(snap/) = %v, want [snap/a snap/b]", keys)
	}

	if err := b.Delete(ctx, "snap/a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := b.Exists(ctx, "snap/a"); ok {
		t.Error("deleted key should not exist")
	}
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	exerciseBackend(t, b)

	if b.Size() != 2 {
		t.Errorf("Size = %d, want 2", b.Size())
	}
}

func TestMemoryBackendCopiesData(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	src := []byte("original")
	_ = b.Write(ctx, "k", src)
	src[0] = 'X'

	data, _ := b.Read(ctx, "k")
	if !bytes.Equal(data, []byte("original")) {
		t.Error("backend should store its own copy of written data")
	}
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer b.Close()
	exerciseBackend(t, b)
}

func TestFileBackendRejectsTraversal(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	for _, key := range []string{"../escape", "../../etc/passwd"} {
		if err := b.Write(ctx, key, []byte("x")); err == nil {
			t.Errorf("Write(%q) should reject path traversal", key)
		}
		if _, err := b.Read(ctx, key); err == nil {
			t.Errorf("Read(%q) should reject path traversal", key)
		}
	}
}

func TestFileBackendListSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	_ = b.Write(ctx, "real", []byte("x"))
	if err := os.WriteFile(dir+"/leftover.tmp", []byte("y"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	keys, err := b.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0] != "real" {
		t.Errorf("List = %v, want [real]", keys)
	}
}

func TestSQLiteBackend(t *testing.T) {
	cfg := DefaultSQLiteBackendConfig()
	cfg.Path = t.TempDir() + "/objects.db"
	b, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSQLiteBackendClosed(t *testing.T) {
	cfg := DefaultSQLiteBackendConfig()
	cfg.Path = t.TempDir() + "/objects.db"
	b, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	if _, err := b.Read(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close = %v, want ErrClosed", err)
	}
	if err := b.Write(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestSQLiteBackendPersistsAcrossOpens(t *testing.T) {
	cfg := DefaultSQLiteBackendConfig()
	cfg.Path = t.TempDir() + "/objects.db"

	b, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	if err := b.Write(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b2, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b2.Close()
	data, err := b2.Read(context.Background(), "k")
	if err != nil || !bytes.Equal(data, []byte("v")) {
		t.Errorf("Read after reopen = %q, %v, want v", data, err)
	}
}
