package walletdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rawblock/cryptonote-core/internal/vault"
)

// FileStore is the default Store: one vault-sealed file on local disk.
// It is the walletdb analogue of the teacher's schema-file-backed
// PostgresStore, minus the database.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path. The file and its
// parent directory are created on first Save; Load on a FileStore whose
// file doesn't exist yet returns ErrNotFound.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save seals snapshot under password and writes it to a temp file next to
// path, then renames over path — a crash mid-write leaves the previous
// snapshot intact rather than a half-written one. walletID is unused: a
// FileStore backs exactly one wallet's snapshot.
func (s *FileStore) Save(_ context.Context, _ string, password string, snapshot []byte) error {
	sealed, err := vault.Seal(password, snapshot)
	if err != nil {
		return fmt.Errorf("walletdb: seal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("walletdb: create container directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wallet-snapshot-*")
	if err != nil {
		return fmt.Errorf("walletdb: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("walletdb: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("walletdb: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("walletdb: replace container file: %w", err)
	}
	return nil
}

// Load reads and unseals the snapshot at path.
func (s *FileStore) Load(_ context.Context, _ string, password string) ([]byte, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("walletdb: read container file: %w", err)
	}
	snapshot, err := vault.Open(password, sealed)
	if err != nil {
		return nil, fmt.Errorf("walletdb: unseal container file: %w", err)
	}
	return snapshot, nil
}
