// Package walletdb persists a sealed wallet snapshot — the opaque byte
// stream internal/wallet's Wallet.Save produces — either to a local
// file or to Postgres, both wrapping internal/vault for at-rest secrecy.
package walletdb

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet for
// the given wallet id.
var ErrNotFound = errors.New("walletdb: no snapshot stored for this wallet")

// Store seals and persists a wallet snapshot under a caller-supplied
// password, and reverses the operation on Load. walletID namespaces
// multiple wallets sharing one backing store; FileStore, which backs a
// single file, ignores it.
type Store interface {
	Save(ctx context.Context, walletID, password string, snapshot []byte) error
	Load(ctx context.Context, walletID, password string) ([]byte, error)
}
