package walletdb

import (
	"context"
	"errors"
	"os"
	"testing"
)

// These run only against a real Postgres instance, pointed to by
// WALLET_TEST_DATABASE_URL — there's no ecosystem fake for pgx's wire
// protocol in the retrieval pack, so CI without a database skips them.
func connectTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	connStr := os.Getenv("WALLET_TEST_DATABASE_URL")
	if connStr == "" {
		t.Skip("WALLET_TEST_DATABASE_URL not set; skipping postgres-backed test")
	}
	ctx := context.Background()
	store, err := ConnectPostgres(ctx, connStr)
	if err != nil {
		t.Fatalf("ConnectPostgres: %v", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStoreSaveLoadRoundTrip(t *testing.T) {
	store := connectTestStore(t)
	ctx := context.Background()

	snapshot := []byte("serialized container bytes")
	if err := store.Save(ctx, "wallet-a", "hunter2", snapshot); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "wallet-a", "hunter2")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(snapshot) {
		t.Fatalf("Load = %q, want %q", got, snapshot)
	}
}

func TestPostgresStoreLoadUnknownWalletReturnsErrNotFound(t *testing.T) {
	store := connectTestStore(t)
	if _, err := store.Load(context.Background(), "no-such-wallet", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load: err = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreSaveUpsertsExistingWallet(t *testing.T) {
	store := connectTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "wallet-b", "pw", []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "wallet-b", "pw", []byte("second")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "wallet-b", "pw")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Load = %q, want %q", got, "second")
	}
}
