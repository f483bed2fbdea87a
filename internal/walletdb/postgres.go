package walletdb

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/cryptonote-core/internal/vault"
)

// PostgresStore persists sealed wallet snapshots in a shared Postgres
// database instead of on local disk, for deployments running the wallet
// node stateless behind a database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool against connStr and verifies it with a
// ping, mirroring the teacher's PostgresStore.Connect.
func ConnectPostgres(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("walletdb: connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("walletdb: ping postgres: %w", err)
	}
	log.Println("[walletdb] connected to postgres wallet snapshot store")
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const createSnapshotTable = `
CREATE TABLE IF NOT EXISTS wallet_snapshots (
	wallet_id  TEXT PRIMARY KEY,
	sealed     BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// InitSchema creates the wallet_snapshots table if it doesn't already
// exist, the way the teacher's InitSchema applies its schema.sql.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createSnapshotTable); err != nil {
		return fmt.Errorf("walletdb: init schema: %w", err)
	}
	return nil
}

// Save seals snapshot under password and upserts it by walletID.
func (s *PostgresStore) Save(ctx context.Context, walletID, password string, snapshot []byte) error {
	sealed, err := vault.Seal(password, snapshot)
	if err != nil {
		return fmt.Errorf("walletdb: seal snapshot: %w", err)
	}

	const sql = `
		INSERT INTO wallet_snapshots (wallet_id, sealed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (wallet_id) DO UPDATE
		SET sealed = EXCLUDED.sealed, updated_at = EXCLUDED.updated_at;
	`
	if _, err := s.pool.Exec(ctx, sql, walletID, sealed); err != nil {
		return fmt.Errorf("walletdb: upsert snapshot: %w", err)
	}
	return nil
}

// Load fetches and unseals the snapshot stored for walletID.
func (s *PostgresStore) Load(ctx context.Context, walletID, password string) ([]byte, error) {
	const sql = `SELECT sealed FROM wallet_snapshots WHERE wallet_id = $1;`

	var sealed []byte
	err := s.pool.QueryRow(ctx, sql, walletID).Scan(&sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("walletdb: query snapshot: %w", err)
	}

	snapshot, err := vault.Open(password, sealed)
	if err != nil {
		return nil, fmt.Errorf("walletdb: unseal snapshot: %w", err)
	}
	return snapshot, nil
}
