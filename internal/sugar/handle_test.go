package sugar

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

var (
	weth = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdc = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	velo = common.HexToAddress("0x9560e827aF36c94D2Ac33a39bCE1Fe78631088Db")
	mkr  = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	dead = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

func baseSource(t *testing.T) registry.Source {
	t.Helper()
	src, ok := registry.Lookup("8453")
	require.True(t, ok)
	return src
}

func seededChain() *fakeChain {
	fc := newFakeChain(8453)
	fc.tokens = []TokenRow{
		{TokenAddress: weth, Symbol: "WETH", Decimals: 18, Listed: true},
		{TokenAddress: usdc, Symbol: "USDC", Decimals: 6, Listed: true},
	}
	fc.erc20[velo] = erc20Token{decimals: 18, symbol: "VELO", name: "Velodrome"}
	fc.erc20[mkr] = erc20Token{decimals: 18, symbol: "MKR", name: "Maker", bytes32: true}
	return fc
}

func newTestHandle(t *testing.T, fc *fakeChain, cfg HandleConfig) *Handle {
	t.Helper()
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return NewHandle(baseSource(t), fc, fc.sugar, cfg, fc.Close, nil)
}

func TestListPoolsBuildsPools(t *testing.T) {
	fc := seededChain()
	fc.pools = []LpRow{lpRow(1, weth, usdc, 2_000_000_000_000_000_000, 5_000_000)}
	h := newTestHandle(t, fc, HandleConfig{})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)

	p := pools[0]
	assert.NoError(t, p.Validate())
	assert.Equal(t, "8453", p.SourceID)
	assert.Equal(t, "Base", p.SourceName)
	assert.Equal(t, strings.ToLower(addr(0x1001).Hex()), p.Address)
	assert.Equal(t, "WETH", p.Token0.Symbol)
	assert.Equal(t, "USDC", p.Token1.Symbol)
	assert.Equal(t, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", p.Token1.Address)
	assert.Equal(t, "[Base] WETH / USDC", p.Label())
	assert.Equal(t, "$7.00", p.TVLLabel())
	assert.Equal(t, "0.30%", p.FeeLabel())
	assert.Equal(t, model.Some("vAMM-1"), p.Name)
	assert.False(t, p.Stable)
	assert.Equal(t, "", p.Contracts.Fee)
	assert.NotEmpty(t, p.Contracts.Gauge)
	assert.Equal(t, 0, big.NewInt(1000).Cmp(p.TotalSupply))
}

func TestListPoolsMapsPoolTypes(t *testing.T) {
	fc := seededChain()
	fc.pools = []LpRow{
		lpRow(1, weth, usdc, 1, 1),
		lpRow(2, weth, usdc, 1, 1),
		clRow(3, weth, usdc, 100, 500),
	}
	h := newTestHandle(t, fc, HandleConfig{})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)

	assert.Equal(t, "volatile", pools[0].Kind())
	assert.False(t, pools[0].Stable)
	assert.Equal(t, "0.30%", pools[0].FeeLabel())

	assert.Equal(t, "stable", pools[1].Kind())
	assert.True(t, pools[1].Stable)

	assert.Equal(t, "concentrated", pools[2].Kind())
	assert.Equal(t, int32(100), pools[2].TickSpacing)
	assert.False(t, pools[2].Stable)
	assert.Equal(t, "0.05%", pools[2].FeeLabel())
	assert.Equal(t, model.Some("CL100-3"), pools[2].Name)
}

func TestTokensCallUsesDeployedSignature(t *testing.T) {
	parsed, err := LpSugarABI()
	require.NoError(t, err)

	tokens, ok := parsed.Methods["tokens"]
	require.True(t, ok)
	assert.Equal(t, "tokens(uint256,uint256,address,address[])", tokens.Sig)

	all, ok := parsed.Methods["all"]
	require.True(t, ok)
	assert.Equal(t, "all(uint256,uint256)", all.Sig)
	require.Len(t, all.Outputs, 1)
	assert.Len(t, all.Outputs[0].Type.TupleElems, 0)
	assert.Len(t, all.Outputs[0].Type.Elem.TupleElems, 28)
}

func TestListPoolsPagesUntilShortPage(t *testing.T) {
	fc := seededChain()
	for i := 0; i < 5; i++ {
		fc.pools = append(fc.pools, lpRow(i, weth, usdc, 1, 1))
	}
	h := newTestHandle(t, fc, HandleConfig{PageSize: 2, MaxPools: 10})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 5)
	for i, p := range pools {
		assert.Equal(t, strings.ToLower(addr(0x1000+i).Hex()), p.Address)
	}
	assert.Equal(t, 3, fc.count("all"))
}

func TestListPoolsStopsAtMaxPools(t *testing.T) {
	fc := seededChain()
	for i := 0; i < 5; i++ {
		fc.pools = append(fc.pools, lpRow(i, weth, usdc, 1, 1))
	}
	h := newTestHandle(t, fc, HandleConfig{PageSize: 2, MaxPools: 4})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 4)
	assert.Equal(t, 2, fc.count("all"))
}

func TestListPoolsResolvesUnlistedTokens(t *testing.T) {
	fc := seededChain()
	fc.pools = []LpRow{
		lpRow(1, velo, usdc, 1_000_000_000_000_000_000, 1_000_000),
		lpRow(2, mkr, weth, 0, 0),
		lpRow(3, dead, weth, 10, 10),
	}
	h := newTestHandle(t, fc, HandleConfig{})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)

	assert.Equal(t, "VELO", pools[0].Token0.Symbol)
	assert.Equal(t, "Velodrome", pools[0].Token0.Name)
	_, state := pools[0].TVL()
	assert.Equal(t, model.TVLKnown, state)

	assert.Equal(t, "MKR", pools[1].Token0.Symbol)
	assert.Equal(t, "Maker", pools[1].Token0.Name)
	_, state = pools[1].TVL()
	assert.Equal(t, model.TVLZero, state)
	assert.Equal(t, "N/A", pools[1].TVLLabel())

	assert.Empty(t, pools[2].Token0.Symbol)
	_, state = pools[2].TVL()
	assert.Equal(t, model.TVLUnknown, state)
	assert.Equal(t, "[Base] N/A / WETH", pools[2].Label())
}

func TestListPoolsCachesTokens(t *testing.T) {
	fc := seededChain()
	fc.pools = []LpRow{lpRow(1, velo, usdc, 1, 1)}
	h := newTestHandle(t, fc, HandleConfig{})

	_, err := h.ListPools(context.Background())
	require.NoError(t, err)
	erc20Calls := fc.count("erc20")
	_, err = h.ListPools(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fc.count("tokens"))
	assert.Equal(t, 2, fc.count("all"))
	assert.Equal(t, erc20Calls, fc.count("erc20"))
	assert.Equal(t, 1, h.meta.Len())
}

func TestListPoolsRetriesTransientFailure(t *testing.T) {
	fc := seededChain()
	fc.failAll = 1
	fc.pools = []LpRow{lpRow(1, weth, usdc, 1, 1)}
	h := newTestHandle(t, fc, HandleConfig{MaxRetries: 2})

	pools, err := h.ListPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 1)
	assert.Equal(t, 2, fc.count("all"))
}

func TestListPoolsGivesUp(t *testing.T) {
	fc := seededChain()
	fc.failAll = 5
	h := newTestHandle(t, fc, HandleConfig{MaxRetries: 1})

	_, err := h.ListPools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestListTokensSorted(t *testing.T) {
	fc := seededChain()
	h := newTestHandle(t, fc, HandleConfig{})

	tokens, err := h.ListTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, "WETH", tokens[1].Symbol)
	assert.True(t, tokens[0].Listed)
}

func TestHandleCloseWaitsForRelease(t *testing.T) {
	fc := seededChain()
	h := newTestHandle(t, fc, HandleConfig{})

	require.NoError(t, h.Acquire(context.Background()))
	require.NoError(t, h.Close())
	assert.Equal(t, 0, fc.closed)
	assert.ErrorIs(t, h.Acquire(context.Background()), clients.ErrHandleClosed)

	h.Release()
	assert.Equal(t, 1, fc.closed)
	require.NoError(t, h.Close())
	assert.Equal(t, 1, fc.closed)
}

func TestHandleCloseIdle(t *testing.T) {
	fc := seededChain()
	h := newTestHandle(t, fc, HandleConfig{})

	require.NoError(t, h.Close())
	assert.Equal(t, 1, fc.closed)
}

func TestHandleAcquireBoundedByConcurrency(t *testing.T) {
	fc := seededChain()
	h := newTestHandle(t, fc, HandleConfig{MaxConcurrency: 1})

	require.NoError(t, h.Acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(h.Acquire(ctx), context.DeadlineExceeded))

	h.Release()
	require.NoError(t, h.Acquire(context.Background()))
	h.Release()
}
