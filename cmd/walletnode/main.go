// Command walletnode wires the wallet core, the pool-diff observer and a
// snapshot store into a long-running process. It mirrors cmd/engine's
// config and startup shape: required secrets via requireEnv, everything
// else defaulted via getEnvOrDefault, connect-then-wire-then-run.
package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawblock/cryptonote-core/internal/node"
	"github.com/rawblock/cryptonote-core/internal/poolobserver"
	"github.com/rawblock/cryptonote-core/internal/wallet"
	"github.com/rawblock/cryptonote-core/internal/walletdb"
)

// walletID namespaces this process's snapshot in a shared store; a
// deployment running more than one wallet would source this from
// configuration instead of hardcoding it.
const walletID = "default"

func main() {
	log.Println("Starting cryptonote-core wallet node...")

	password := requireEnv("WALLET_PASSWORD")
	snapshotInterval := getEnvOrDefaultDuration("WALLET_SNAPSHOT_INTERVAL", 30*time.Second)
	poolPollInterval := getEnvOrDefaultDuration("WALLET_POOL_POLL_INTERVAL", 10*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx)
	defer closeStore()

	// internal/node.Client's concrete RPC implementation is out of this
	// module's scope (spec component H); node.Mock stands in so this
	// process can actually run end to end for local testing of address
	// lifecycle, persistence and the pool-diff observer's wiring.
	if endpoint := os.Getenv("NODE_RPC_ENDPOINT"); endpoint != "" {
		log.Printf("NODE_RPC_ENDPOINT=%s set, but no concrete node RPC client ships with this module; using a no-op mock client", endpoint)
	} else {
		log.Println("NODE_RPC_ENDPOINT not set; using a no-op mock node client")
	}
	nodeClient := &node.Mock{}

	w := wallet.New(nodeClient, 256)
	restoreWallet(ctx, store, w, password)

	observer := poolobserver.New(nodeClient, 8)
	observer.OnPoolUpdated = func(newTxs []node.TxDetails, removed []poolobserver.RemovedEntry) {
		log.Printf("[walletnode] pool changed: %d new, %d removed", len(newTxs), len(removed))
	}
	observer.SetSynchronized(true)
	observer.AddObserver()

	go drainEvents(w)
	go pollPool(ctx, observer, poolPollInterval)

	snapshotTicker := time.NewTicker(snapshotInterval)
	defer snapshotTicker.Stop()

	log.Println("wallet node running; Ctrl-C to stop")
	for {
		select {
		case <-snapshotTicker.C:
			saveWallet(ctx, store, w, password)
		case <-ctx.Done():
			log.Println("shutting down, saving final snapshot...")
			saveWallet(context.Background(), store, w, password)
			w.Stop()
			return
		}
	}
}

func openStore(ctx context.Context) (store walletdb.Store, closeFn func()) {
	if dbURL := os.Getenv("WALLET_DATABASE_URL"); dbURL != "" {
		pg, err := walletdb.ConnectPostgres(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect wallet database: %v", err)
		}
		if err := pg.InitSchema(ctx); err != nil {
			log.Fatalf("init wallet database schema: %v", err)
		}
		return pg, pg.Close
	}

	path := getEnvOrDefault("WALLET_CONTAINER_PATH", "./data/wallet.bin")
	return walletdb.NewFileStore(path), func() {}
}

func restoreWallet(ctx context.Context, store walletdb.Store, w *wallet.Wallet, password string) {
	snapshot, err := store.Load(ctx, walletID, password)
	switch {
	case errors.Is(err, walletdb.ErrNotFound):
		if err := w.Initialize(password); err != nil {
			log.Fatalf("initialize new wallet: %v", err)
		}
		log.Println("no saved snapshot found; initialized a fresh wallet")
	case err != nil:
		log.Fatalf("load wallet snapshot: %v", err)
	default:
		if err := w.Load(bytes.NewReader(snapshot)); err != nil {
			log.Fatalf("restore wallet from snapshot: %v", err)
		}
		log.Println("restored wallet from saved snapshot")
	}
}

func saveWallet(ctx context.Context, store walletdb.Store, w *wallet.Wallet, password string) {
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		log.Printf("Warning: failed to serialize wallet snapshot: %v", err)
		return
	}
	if err := store.Save(ctx, walletID, password, buf.Bytes()); err != nil {
		log.Printf("Warning: failed to persist wallet snapshot: %v", err)
	}
}

// drainEvents logs every wallet event until Stop unblocks GetEvent during
// shutdown.
func drainEvents(w *wallet.Wallet) {
	for {
		evt, err := w.GetEvent()
		if err != nil {
			return
		}
		log.Printf("[walletnode] event kind=%d processed=%d total=%d txID=%s",
			evt.Kind, evt.Processed, evt.Total, evt.TxID)
	}
}

func pollPool(ctx context.Context, observer *poolobserver.Observer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := observer.PoolChanged(ctx); err != nil {
				log.Printf("Warning: pool poll failed: %v", err)
			}
		}
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set, the same fail-fast convention cmd/engine uses for credentials.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid duration for %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return d
}
