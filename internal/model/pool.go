package model

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrSameTokens      = errors.New("pool tokens must differ")
	ErrReserveMismatch = errors.New("reserve token does not match pool token")
)

// TVLState tells apart a pool with zero reserves from one whose reserves are unknown.
type TVLState int

const (
	TVLKnown TVLState = iota
	TVLZero
	TVLUnknown
)

// PoolContracts holds auxiliary contract addresses of a pool.
type PoolContracts struct {
	Gauge string `json:"gauge,omitempty"`
	Fee   string `json:"fee,omitempty"`
	Bribe string `json:"bribe,omitempty"`
}

// LiquidityPool is an immutable snapshot of one pool on one source.
type LiquidityPool struct {
	SourceID    string           `json:"source_id"`
	SourceName  string           `json:"source_name"`
	Address     string           `json:"address"`
	Factory     string           `json:"factory"`
	Symbol      string           `json:"symbol"`
	Name        Optional[string] `json:"name"`
	Stable      bool             `json:"stable"`
	// TickSpacing is set on concentrated liquidity pools only.
	TickSpacing int32            `json:"tick_spacing,omitempty"`
	Token0      Token            `json:"token0"`
	Token1      Token            `json:"token1"`
	Reserve0    Amount           `json:"reserve0"`
	Reserve1    Amount           `json:"reserve1"`
	FeePercent  decimal.Decimal  `json:"fee_percent"`
	TotalSupply *big.Int         `json:"total_supply"`
	Decimals    uint8            `json:"decimals"`
	Contracts   PoolContracts    `json:"contracts"`
}

// Validate checks the structural invariants of the pool.
func (p LiquidityPool) Validate() error {
	if strings.EqualFold(p.Token0.Address, p.Token1.Address) {
		return fmt.Errorf("%w: %s", ErrSameTokens, p.Address)
	}
	if !strings.EqualFold(p.Reserve0.Token.Address, p.Token0.Address) ||
		!strings.EqualFold(p.Reserve1.Token.Address, p.Token1.Address) {
		return fmt.Errorf("%w: %s", ErrReserveMismatch, p.Address)
	}
	return nil
}

// TVL returns reserve0 + reserve1 in token units.
func (p LiquidityPool) TVL() (decimal.Decimal, TVLState) {
	v0, ok0 := p.Reserve0.Value()
	v1, ok1 := p.Reserve1.Value()
	if !ok0 || !ok1 {
		return decimal.Zero, TVLUnknown
	}
	total := v0.Add(v1)
	if total.IsZero() {
		return total, TVLZero
	}
	return total, TVLKnown
}

// Label renders "[Chain] T0 / T1".
func (p LiquidityPool) Label() string {
	return fmt.Sprintf("[%s] %s / %s", p.SourceName, symbolOrNA(p.Token0.Symbol), symbolOrNA(p.Token1.Symbol))
}

// TVLLabel renders the TVL, or N/A when zero or unknown.
func (p LiquidityPool) TVLLabel() string {
	tvl, state := p.TVL()
	if state != TVLKnown {
		return "N/A"
	}
	return "$" + formatThousands(tvl.StringFixed(2))
}

// Kind returns "concentrated", "stable" or "volatile".
func (p LiquidityPool) Kind() string {
	switch {
	case p.TickSpacing > 0:
		return "concentrated"
	case p.Stable:
		return "stable"
	default:
		return "volatile"
	}
}

// FeeLabel renders the fee rate, or N/A when zero.
func (p LiquidityPool) FeeLabel() string {
	if p.FeePercent.IsZero() {
		return "N/A"
	}
	return p.FeePercent.StringFixed(2) + "%"
}

func symbolOrNA(symbol string) string {
	if symbol == "" {
		return "N/A"
	}
	return symbol
}
