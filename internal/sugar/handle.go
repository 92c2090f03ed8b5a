package sugar

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"dromadaire/internal/chain"
	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

// ErrNoSugarContract is returned when no LpSugar address is known for a source.
var ErrNoSugarContract = errors.New("no sugar contract configured")

// HandleConfig controls paging and retries of one handle.
type HandleConfig struct {
	PageSize       uint64
	MaxPools       uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxConcurrency int64
	// OpenTimeout bounds dialing and the chain id check of Opener.Open.
	OpenTimeout time.Duration
}

func (c HandleConfig) withDefaults() HandleConfig {
	if c.PageSize == 0 {
		c.PageSize = 300
	}
	if c.MaxPools == 0 {
		c.MaxPools = 3000
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 300 * time.Millisecond
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 15 * time.Second
	}
	return c
}

// Handle lists pools and tokens of one source through its LpSugar contract.
// The token list and ERC20 metadata are cached for the life of the handle.
type Handle struct {
	source   registry.Source
	caller   chain.Caller
	teardown func()
	contract common.Address
	cfg      HandleConfig
	logger   *zap.Logger
	sem      *semaphore.Weighted
	meta     *TokenMetaCache

	mu     sync.Mutex
	active int
	closed bool
	torn   bool

	tokensMu sync.Mutex
	tokens   map[common.Address]model.Token
}

var _ clients.Handle = (*Handle)(nil)

// NewHandle wraps caller. teardown, when set, runs once after Close and the
// last Release.
func NewHandle(src registry.Source, caller chain.Caller, contract common.Address, cfg HandleConfig, teardown func(), logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Handle{
		source:   src,
		caller:   caller,
		teardown: teardown,
		contract: contract,
		cfg:      cfg,
		logger:   logger.With(zap.String("source", src.ID)),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrency),
		meta:     NewTokenMetaCache(),
	}
}

// Source returns the source served by the handle.
func (h *Handle) Source() registry.Source {
	return h.source
}

func (h *Handle) Acquire(ctx context.Context) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return clients.ErrHandleClosed
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.sem.Release(1)
		return clients.ErrHandleClosed
	}
	h.active++
	return nil
}

func (h *Handle) Release() {
	h.sem.Release(1)

	h.mu.Lock()
	h.active--
	done := h.closed && h.active == 0
	h.mu.Unlock()

	if done {
		h.tearDown()
	}
}

// Close rejects further acquisitions. The connection is closed right away when
// idle, otherwise by the last Release.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	idle := h.active == 0
	h.mu.Unlock()

	if idle {
		h.tearDown()
	}
	return nil
}

func (h *Handle) tearDown() {
	h.mu.Lock()
	if h.torn {
		h.mu.Unlock()
		return
	}
	h.torn = true
	h.mu.Unlock()

	if h.teardown != nil {
		h.teardown()
	}
	h.logger.Debug("connection closed")
}

// ListTokens returns the tokens known to the LpSugar contract. The first
// successful listing is cached.
func (h *Handle) ListTokens(ctx context.Context) ([]model.Token, error) {
	index, err := h.tokenIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Token, 0, len(index))
	for _, token := range index {
		out = append(out, token)
	}
	sortTokens(out)
	return out, nil
}

func (h *Handle) tokenIndex(ctx context.Context) (map[common.Address]model.Token, error) {
	h.tokensMu.Lock()
	defer h.tokensMu.Unlock()
	if h.tokens != nil {
		return h.tokens, nil
	}

	parsed, err := LpSugarABI()
	if err != nil {
		return nil, fmt.Errorf("parse sugar abi: %w", err)
	}

	index := make(map[common.Address]model.Token)
	err = h.paged(ctx, func(ctx context.Context, page Page) (int, error) {
		values, err := callMethod(ctx, h.caller, h.contract, parsed, "tokens", new(big.Int).SetUint64(page.Limit), new(big.Int).SetUint64(page.Offset), common.Address{}, []common.Address{})
		if err != nil {
			return 0, err
		}
		rows, err := convertRows[TokenRow](values[0])
		if err != nil {
			return 0, fmt.Errorf("tokens: %w", err)
		}
		for _, row := range rows {
			index[row.TokenAddress] = model.Token{
				SourceID:   h.source.ID,
				SourceName: h.source.Name,
				Address:    canonical(row.TokenAddress),
				Symbol:     row.Symbol,
				Decimals:   row.Decimals,
				Listed:     row.Listed,
			}
		}
		return len(rows), nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	h.tokens = index
	h.logger.Debug("tokens cached", zap.Int("tokens", len(index)))
	return index, nil
}

// ListPools pages through the LpSugar pool listing and resolves both tokens of
// every pool.
func (h *Handle) ListPools(ctx context.Context) ([]model.LiquidityPool, error) {
	tokens, err := h.tokenIndex(ctx)
	if err != nil {
		return nil, err
	}

	parsed, err := LpSugarABI()
	if err != nil {
		return nil, fmt.Errorf("parse sugar abi: %w", err)
	}

	var rows []LpRow
	err = h.paged(ctx, func(ctx context.Context, page Page) (int, error) {
		values, err := callMethod(ctx, h.caller, h.contract, parsed, "all", new(big.Int).SetUint64(page.Limit), new(big.Int).SetUint64(page.Offset))
		if err != nil {
			return 0, err
		}
		batch, err := convertRows[LpRow](values[0])
		if err != nil {
			return 0, fmt.Errorf("all: %w", err)
		}
		rows = append(rows, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}

	pools := make([]model.LiquidityPool, 0, len(rows))
	for _, row := range rows {
		pools = append(pools, h.buildPool(ctx, row, tokens))
	}
	return pools, nil
}

// paged calls fetch for each page until a short page or MaxPools.
func (h *Handle) paged(ctx context.Context, fetch func(context.Context, Page) (int, error)) error {
	pages, err := SplitPages(h.cfg.MaxPools, h.cfg.PageSize)
	if err != nil {
		return err
	}

	for _, page := range pages {
		var n int
		err := chain.WithRetry(ctx, h.cfg.MaxRetries, h.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			n, err = fetch(ctx, page)
			return err
		})
		if err != nil {
			return fmt.Errorf("page offset %d: %w", page.Offset, err)
		}
		if uint64(n) < page.Limit {
			return nil
		}
	}
	return nil
}

func (h *Handle) buildPool(ctx context.Context, row LpRow, tokens map[common.Address]model.Token) model.LiquidityPool {
	token0, known0 := h.resolveToken(ctx, row.Token0, tokens)
	token1, known1 := h.resolveToken(ctx, row.Token1, tokens)

	reserve0 := model.Amount{Token: token0}
	if known0 {
		reserve0 = model.NewAmount(token0, row.Reserve0)
	}
	reserve1 := model.Amount{Token: token1}
	if known1 {
		reserve1 = model.NewAmount(token1, row.Reserve1)
	}

	name := model.None[string]()
	if row.Symbol != "" {
		name = model.Some(row.Symbol)
	}

	var tickSpacing int32
	if row.Type != nil && row.Type.Sign() > 0 {
		tickSpacing = int32(row.Type.Int64())
	}
	stable := row.Type != nil && row.Type.Sign() == 0

	fee := decimal.Zero
	if row.PoolFee != nil {
		exp := int32(-2)
		if tickSpacing > 0 {
			exp = -4
		}
		fee = decimal.NewFromBigInt(row.PoolFee, exp)
	}

	var supply *big.Int
	if row.Liquidity != nil {
		supply = new(big.Int).Set(row.Liquidity)
	}

	return model.LiquidityPool{
		SourceID:    h.source.ID,
		SourceName:  h.source.Name,
		Address:     canonical(row.Lp),
		Factory:     canonical(row.Factory),
		Symbol:      row.Symbol,
		Name:        name,
		Stable:      stable,
		TickSpacing: tickSpacing,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		FeePercent:  fee,
		TotalSupply: supply,
		Decimals:    row.Decimals,
		Contracts: model.PoolContracts{
			Gauge: optionalAddress(row.Gauge),
			Fee:   optionalAddress(row.Fee),
			Bribe: optionalAddress(row.Bribe),
		},
	}
}

// resolveToken looks address up in the sugar token list and falls back to
// ERC20 metadata for unlisted tokens. known is false when the decimals could not
// be determined.
func (h *Handle) resolveToken(ctx context.Context, address common.Address, tokens map[common.Address]model.Token) (model.Token, bool) {
	if token, ok := tokens[address]; ok {
		if meta, cached := h.meta.Get(address); cached {
			token.Name = meta.Name
		}
		return token, true
	}

	token := model.Token{
		SourceID:   h.source.ID,
		SourceName: h.source.Name,
		Address:    canonical(address),
	}
	meta, cached := h.meta.Get(address)
	if !cached {
		fetched, err := FetchTokenMeta(ctx, h.caller, address, h.logger)
		if err != nil {
			h.logger.Debug("token metadata fetch failed", zap.String("token", address.Hex()), zap.Error(err))
			return token, false
		}
		meta = fetched
		h.meta.Set(address, meta)
	}
	token.Symbol = meta.Symbol
	token.Name = meta.Name
	token.Decimals = meta.Decimals
	return token, true
}

func convertRows[T any](value interface{}) (rows []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("convert %T: %v", value, r)
		}
	}()
	converted, ok := abi.ConvertType(value, new([]T)).(*[]T)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", value)
	}
	return *converted, nil
}

func canonical(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func optionalAddress(address common.Address) string {
	if address == (common.Address{}) {
		return ""
	}
	return canonical(address)
}

func sortTokens(tokens []model.Token) {
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Symbol != tokens[j].Symbol {
			return tokens[i].Symbol < tokens[j].Symbol
		}
		return tokens[i].Address < tokens[j].Address
	})
}
