package sugar

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// lpSugarABIJSON covers the read-only listing calls of the deployed LpSugar
// contract (velodrome-finance/sugar).
const lpSugarABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "_limit", "type": "uint256"},
      {"internalType": "uint256", "name": "_offset", "type": "uint256"}
    ],
    "name": "all",
    "outputs": [
      {
        "components": [
          {"internalType": "address", "name": "lp", "type": "address"},
          {"internalType": "string", "name": "symbol", "type": "string"},
          {"internalType": "uint8", "name": "decimals", "type": "uint8"},
          {"internalType": "uint256", "name": "liquidity", "type": "uint256"},
          {"internalType": "int24", "name": "type", "type": "int24"},
          {"internalType": "int24", "name": "tick", "type": "int24"},
          {"internalType": "uint160", "name": "sqrt_ratio", "type": "uint160"},
          {"internalType": "address", "name": "token0", "type": "address"},
          {"internalType": "uint256", "name": "reserve0", "type": "uint256"},
          {"internalType": "uint256", "name": "staked0", "type": "uint256"},
          {"internalType": "address", "name": "token1", "type": "address"},
          {"internalType": "uint256", "name": "reserve1", "type": "uint256"},
          {"internalType": "uint256", "name": "staked1", "type": "uint256"},
          {"internalType": "address", "name": "gauge", "type": "address"},
          {"internalType": "uint256", "name": "gauge_liquidity", "type": "uint256"},
          {"internalType": "bool", "name": "gauge_alive", "type": "bool"},
          {"internalType": "address", "name": "fee", "type": "address"},
          {"internalType": "address", "name": "bribe", "type": "address"},
          {"internalType": "address", "name": "factory", "type": "address"},
          {"internalType": "uint256", "name": "emissions", "type": "uint256"},
          {"internalType": "address", "name": "emissions_token", "type": "address"},
          {"internalType": "uint256", "name": "pool_fee", "type": "uint256"},
          {"internalType": "uint256", "name": "unstaked_fee", "type": "uint256"},
          {"internalType": "uint256", "name": "token0_fees", "type": "uint256"},
          {"internalType": "uint256", "name": "token1_fees", "type": "uint256"},
          {"internalType": "address", "name": "nfpm", "type": "address"},
          {"internalType": "address", "name": "alm", "type": "address"},
          {"internalType": "address", "name": "root", "type": "address"}
        ],
        "internalType": "struct Lp[]",
        "name": "",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "_limit", "type": "uint256"},
      {"internalType": "uint256", "name": "_offset", "type": "uint256"},
      {"internalType": "address", "name": "_account", "type": "address"},
      {"internalType": "address[]", "name": "_addresses", "type": "address[]"}
    ],
    "name": "tokens",
    "outputs": [
      {
        "components": [
          {"internalType": "address", "name": "token_address", "type": "address"},
          {"internalType": "string", "name": "symbol", "type": "string"},
          {"internalType": "uint8", "name": "decimals", "type": "uint8"},
          {"internalType": "uint256", "name": "account_balance", "type": "uint256"},
          {"internalType": "bool", "name": "listed", "type": "bool"}
        ],
        "internalType": "struct Token[]",
        "name": "",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	lpSugarABI     abi.ABI
	lpSugarABIOnce sync.Once
	lpSugarABIErr  error
)

// LpSugarABI returns the parsed LpSugar ABI.
func LpSugarABI() (abi.ABI, error) {
	lpSugarABIOnce.Do(func() {
		lpSugarABI, lpSugarABIErr = abi.JSON(strings.NewReader(lpSugarABIJSON))
	})
	return lpSugarABI, lpSugarABIErr
}

// LpRow is one element of the all() result. Field order follows the tuple.
//
// Type is -1 for volatile pools, 0 for stable pools and the tick spacing of
// concentrated pools. PoolFee is in basis points on basic pools and in
// hundredths of a basis point on concentrated pools.
type LpRow struct {
	Lp             common.Address
	Symbol         string
	Decimals       uint8
	Liquidity      *big.Int
	Type           *big.Int
	Tick           *big.Int
	SqrtRatio      *big.Int
	Token0         common.Address
	Reserve0       *big.Int
	Staked0        *big.Int
	Token1         common.Address
	Reserve1       *big.Int
	Staked1        *big.Int
	Gauge          common.Address
	GaugeLiquidity *big.Int
	GaugeAlive     bool
	Fee            common.Address
	Bribe          common.Address
	Factory        common.Address
	Emissions      *big.Int
	EmissionsToken common.Address
	PoolFee        *big.Int
	UnstakedFee    *big.Int
	Token0Fees     *big.Int
	Token1Fees     *big.Int
	Nfpm           common.Address
	Alm            common.Address
	Root           common.Address
}

// TokenRow is one element of the tokens() result.
type TokenRow struct {
	TokenAddress   common.Address
	Symbol         string
	Decimals       uint8
	AccountBalance *big.Int
	Listed         bool
}
