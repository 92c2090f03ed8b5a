// Package search filters an aggregate snapshot by free-text query.
package search

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dromadaire/internal/model"
)

// Rule identifies which match rule included a pool.
type Rule int

const (
	NoMatch Rule = iota
	PoolAddress
	PoolName
	TokenAddress
	Substring
)

func (r Rule) String() string {
	switch r {
	case PoolAddress:
		return "pool-address"
	case PoolName:
		return "pool-name"
	case TokenAddress:
		return "token-address"
	case Substring:
		return "substring"
	default:
		return "none"
	}
}

// Query is a parsed search input.
type Query struct {
	// Text is the trimmed, lower-cased input.
	Text string
	// Address is the canonical address form of Text, empty when Text is not an address.
	Address string
}

// ParseQuery trims and lower-cases raw and derives its address interpretation.
func ParseQuery(raw string) Query {
	text := strings.ToLower(strings.TrimSpace(raw))
	q := Query{Text: text}
	if addr, ok := NormalizeAddress(text); ok {
		q.Address = addr
	}
	return q
}

// Empty reports whether the query filters nothing.
func (q Query) Empty() bool {
	return q.Text == ""
}

// NormalizeAddress returns the lower-case 0x-prefixed form of a 20-byte hex
// address. Input without the 0x prefix is not treated as an address.
func NormalizeAddress(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || !strings.EqualFold(text[:2], "0x") {
		return "", false
	}
	if !common.IsHexAddress(text) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(text).Hex()), true
}

// Match returns the first rule under which pool matches q.
func Match(pool model.LiquidityPool, q Query) Rule {
	if q.Empty() {
		return NoMatch
	}

	if q.Address != "" {
		if addr, ok := NormalizeAddress(pool.Address); ok && addr == q.Address {
			return PoolAddress
		}
	}

	name, hasName := pool.Name.Get()
	if hasName && strings.ToLower(name) == q.Text {
		return PoolName
	}

	if q.Address != "" {
		for _, token := range []model.Token{pool.Token0, pool.Token1} {
			if addr, ok := NormalizeAddress(token.Address); ok && addr == q.Address {
				return TokenAddress
			}
		}
	}

	fields := []string{
		pool.Token0.Symbol,
		pool.Token1.Symbol,
		pool.Token0.Name,
		pool.Token1.Name,
		pool.SourceName,
	}
	if hasName {
		fields = append(fields, name)
	}
	for _, field := range fields {
		if field != "" && strings.Contains(strings.ToLower(field), q.Text) {
			return Substring
		}
	}
	return NoMatch
}

// Filter returns the pools matching query in their input order. An empty or
// whitespace-only query returns pools unchanged. Filter never modifies pools.
func Filter(pools []model.LiquidityPool, query string) []model.LiquidityPool {
	q := ParseQuery(query)
	if q.Empty() {
		return pools
	}

	out := make([]model.LiquidityPool, 0)
	for _, pool := range pools {
		if Match(pool, q) != NoMatch {
			out = append(out, pool)
		}
	}
	return out
}
