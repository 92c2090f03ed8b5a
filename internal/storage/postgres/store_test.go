package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dromadaire/internal/model"
)

// setupTestStore connects to DROMADAIRE_TEST_PG_DSN when set, otherwise starts
// a throwaway Postgres container.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("DROMADAIRE_TEST_PG_DSN")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
			tcpostgres.WithDatabase("testdb"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		require.NoError(t, err, "failed to start postgres container")
		t.Cleanup(func() {
			if err := container.Terminate(ctx); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.EnsureSchema(ctx))
	_, err = store.pool.Exec(ctx, `TRUNCATE pools; DELETE FROM app_state`)
	require.NoError(t, err)
	return store
}

func testPool(address string, raw0, raw1 *big.Int) model.LiquidityPool {
	t0 := model.Token{SourceID: "10", SourceName: "Optimism", Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18}
	t1 := model.Token{SourceID: "10", SourceName: "Optimism", Address: "0x0b2c639c533813f4aa9d7837caf62653d097ff85", Symbol: "USDC", Decimals: 6}
	pool := model.LiquidityPool{
		SourceID:   "10",
		SourceName: "Optimism",
		Address:    address,
		Factory:    "0xf1046053aa5682b4f9a81b5481394da16be5ff5a",
		Symbol:     "vAMM-WETH/USDC",
		Token0:     t0,
		Token1:     t1,
		Reserve0:   model.Amount{Token: t0},
		Reserve1:   model.Amount{Token: t1},
		FeePercent: decimal.RequireFromString("0.3"),
	}
	if raw0 != nil {
		pool.Reserve0 = model.NewAmount(t0, raw0)
	}
	if raw1 != nil {
		pool.Reserve1 = model.NewAmount(t1, raw1)
	}
	return pool
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestSelectionRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LoadSelection(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveSelection(ctx, []string{"8453", "10"}))
	require.NoError(t, store.SaveSelection(ctx, []string{"130"}))
	ids, ok, err := store.LoadSelection(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"130"}, ids)

	require.NoError(t, store.SaveSelection(ctx, nil))
	ids, ok, err = store.LoadSelection(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ids)
}

func TestPutPoolsUpserts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	known := testPool("0x0000000000000000000000000000000000001001", big.NewInt(2_000_000_000_000_000_000), big.NewInt(5_000_000))
	unknown := testPool("0x0000000000000000000000000000000000001002", nil, big.NewInt(1))
	require.NoError(t, store.PutPools(ctx, []model.LiquidityPool{known, unknown}))

	known.Reserve1 = model.NewAmount(known.Token1, big.NewInt(8_000_000))
	known.TickSpacing = 100
	require.NoError(t, store.PutPools(ctx, []model.LiquidityPool{known}))
	require.NoError(t, store.PutPools(ctx, nil))

	var count int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT count(*) FROM pools`).Scan(&count))
	assert.Equal(t, 2, count)

	var tvlText, kind string
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT tvl::text, pool_kind FROM pools WHERE pool_address=$1`, known.Address,
	).Scan(&tvlText, &kind))
	assert.True(t, decimal.RequireFromString("10").Equal(decimal.RequireFromString(tvlText)))
	assert.Equal(t, "concentrated", kind)

	var tvlNull *string
	var reserve0Null *string
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT tvl::text, reserve0::text FROM pools WHERE pool_address=$1`, unknown.Address,
	).Scan(&tvlNull, &reserve0Null))
	assert.Nil(t, tvlNull)
	assert.Nil(t, reserve0Null)
}
