package userplane

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"inboxguard/config"
	"inboxguard/internal/storage"
)

func newTestFileManager(t *testing.T) *FileManager {
	t.Helper()
	cfg := &config.Config{DataRoot: t.TempDir()}
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })
	return NewFileManager(filepath.Join(cfg.DataRoot, "archive"), factory)
}

func TestFileManagerWriteAndRead(t *testing.T) {
	m := newTestFileManager(t)
	ctx := context.Background()

	meta, err := m.Write(ctx, "alice", "export.json", "json", []byte(`{"ok":true}`), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if meta.SHA256 == "" {
		t.Fatal("expected a computed SHA-256 checksum")
	}

	data, got, err := m.Read(ctx, "alice", meta.ID, "alice")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("Read returned %q", data)
	}
	if got.ID != meta.ID {
		t.Errorf("got metadata for %s, want %s", got.ID, meta.ID)
	}
}

func TestFileManagerReadDeniesUngranted(t *testing.T) {
	m := newTestFileManager(t)
	ctx := context.Background()

	meta, err := m.Write(ctx, "alice", "export.json", "json", []byte("data"), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, _, err := m.Read(ctx, "alice", meta.ID, "bob"); err == nil {
		t.Fatal("expected Read to deny a principal with no grant")
	}
}

func TestFileManagerCleanupExpiredFiles(t *testing.T) {
	m := newTestFileManager(t)
	ctx := context.Background()

	meta, err := m.Write(ctx, "alice", "export.json", "json", []byte("data"), time.Millisecond)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	n, err := m.CleanupExpiredFiles(ctx, "alice", time.Now())
	if err != nil {
		t.Fatalf("CleanupExpiredFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d files, want 1", n)
	}

	if _, _, err := m.Read(ctx, "alice", meta.ID, "alice"); err == nil {
		t.Fatal("expected the expired file's metadata to be gone")
	}
}
