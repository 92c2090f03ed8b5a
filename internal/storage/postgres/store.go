package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dromadaire/internal/model"
	"dromadaire/internal/storage"
)

const selectionKey = "selection"

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	source_id     TEXT NOT NULL,
	pool_address  TEXT NOT NULL,
	source_name   TEXT NOT NULL,
	factory       TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	stable        BOOLEAN NOT NULL,
	pool_kind     TEXT NOT NULL DEFAULT 'volatile',
	token0        TEXT NOT NULL,
	token0_symbol TEXT NOT NULL,
	token1        TEXT NOT NULL,
	token1_symbol TEXT NOT NULL,
	reserve0      NUMERIC,
	reserve1      NUMERIC,
	tvl           NUMERIC,
	fee_percent   NUMERIC NOT NULL,
	gauge         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source_id, pool_address)
);
ALTER TABLE pools ADD COLUMN IF NOT EXISTS pool_kind TEXT NOT NULL DEFAULT 'volatile';
CREATE TABLE IF NOT EXISTS app_state (
	name       TEXT PRIMARY KEY,
	chain_ids  TEXT[] NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pool snapshots and the selection.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.SelectionStore = (*Store)(nil)
	_ storage.PoolSink       = (*Store)(nil)
)

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

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutPools inserts or updates one row per pool.
func (s *Store) PutPools(ctx context.Context, pools []model.LiquidityPool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				source_id, pool_address, source_name, factory, symbol, stable, pool_kind,
				token0, token0_symbol, token1, token1_symbol,
				reserve0, reserve1, tvl, fee_percent, gauge, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (source_id, pool_address)
			DO UPDATE SET
				source_name = EXCLUDED.source_name,
				factory = EXCLUDED.factory,
				symbol = EXCLUDED.symbol,
				stable = EXCLUDED.stable,
				pool_kind = EXCLUDED.pool_kind,
				token0 = EXCLUDED.token0,
				token0_symbol = EXCLUDED.token0_symbol,
				token1 = EXCLUDED.token1,
				token1_symbol = EXCLUDED.token1_symbol,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				tvl = EXCLUDED.tvl,
				fee_percent = EXCLUDED.fee_percent,
				gauge = EXCLUDED.gauge,
				updated_at = now()
		`,
			pool.SourceID,
			pool.Address,
			pool.SourceName,
			pool.Factory,
			pool.Symbol,
			pool.Stable,
			pool.Kind(),
			pool.Token0.Address,
			pool.Token0.Symbol,
			pool.Token1.Address,
			pool.Token1.Symbol,
			numeric(pool.Reserve0),
			numeric(pool.Reserve1),
			tvl(pool),
			pool.FeePercent.String(),
			pool.Contracts.Gauge,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadSelection returns the saved selection.
func (s *Store) LoadSelection(ctx context.Context) ([]string, bool, error) {
	var ids []string
	row := s.pool.QueryRow(ctx, `SELECT chain_ids FROM app_state WHERE name=$1`, selectionKey)
	if err := row.Scan(&ids); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

// SaveSelection upserts the selection.
func (s *Store) SaveSelection(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_state (name, chain_ids, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET chain_ids = EXCLUDED.chain_ids, updated_at = now()
	`, selectionKey, ids)
	return err
}

// numeric renders a known amount in token units; unknown amounts are NULL.
func numeric(amount model.Amount) *string {
	value, ok := amount.Value()
	if !ok {
		return nil
	}
	text := value.String()
	return &text
}

func tvl(pool model.LiquidityPool) *string {
	value, state := pool.TVL()
	if state == model.TVLUnknown {
		return nil
	}
	text := value.String()
	return &text
}
