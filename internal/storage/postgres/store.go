package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardanoScope/internal/model"
	"cardanoScope/internal/normalize"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS native_asset (
		id BIGSERIAL PRIMARY KEY,
		policy_id BYTEA NOT NULL,
		asset_name BYTEA NOT NULL,
		cip14_fingerprint TEXT NOT NULL,
		first_slot BIGINT NOT NULL DEFAULT 0,
		UNIQUE (policy_id, asset_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_native_asset_fingerprint ON native_asset (cip14_fingerprint)`,
	`CREATE TABLE IF NOT EXISTS indexer_state (
		name TEXT PRIMARY KEY,
		last_processed_slot BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Store provides Postgres access to the native asset registry and the
// indexer checkpoint table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables used by the indexer if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InTx runs fn in a read-write transaction, committing when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, fn)
}

// WithLookup runs fn with an asset lookup bound to a read-only transaction.
func (s *Store) WithLookup(ctx context.Context, fn func(normalize.AssetLookup) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(NewTxLookup(tx))
	})
}

// InsertNativeAssets registers assets inside tx, leaving existing pairs untouched.
func InsertNativeAssets(ctx context.Context, tx pgx.Tx, assets []model.NativeAsset) error {
	if len(assets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, asset := range assets {
		batch.Queue(`
			INSERT INTO native_asset (policy_id, asset_name, cip14_fingerprint, first_slot)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (policy_id, asset_name) DO NOTHING
		`,
			asset.PolicyID,
			asset.AssetName,
			asset.CIP14Fingerprint,
			asset.FirstSlot,
		)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for range assets {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_slot for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var slot int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_slot FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&slot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(slot), true, nil
}

// SaveState upserts last_processed_slot for a name.
func (s *Store) SaveState(ctx context.Context, name string, slot uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_slot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_slot = EXCLUDED.last_processed_slot, updated_at = now()
	`, name, int64(slot))
	return err
}
