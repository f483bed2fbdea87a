package walletdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "wallet.bin")
	store := NewFileStore(path)
	ctx := context.Background()

	snapshot := []byte("serialized container bytes")
	if err := store.Save(ctx, "w1", "hunter2", snapshot); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "w1", "hunter2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(snapshot) {
		t.Fatalf("Load = %q, want %q", got, snapshot)
	}
}

func TestFileStoreLoadMissingFileReturnsErrNotFound(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.bin"))
	if _, err := store.Load(context.Background(), "w1", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load: err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreLoadWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.bin")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, "w1", "correct", []byte("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load(ctx, "w1", "wrong"); err == nil {
		t.Fatalf("Load with wrong password succeeded, want an error")
	}
}

func TestFileStoreSaveOverwritesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.bin")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, "w1", "pw", []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "w1", "pw", []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "w1", "pw")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Load = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries after overwrite, want 1 (no leftover temp files)", len(entries))
	}
}
