package sugar

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var errReverted = errors.New("execution reverted")

type erc20Token struct {
	decimals uint8
	symbol   string
	name     string
	bytes32  bool
}

// fakeChain serves ABI-encoded LpSugar and ERC20 responses from memory.
type fakeChain struct {
	mu      sync.Mutex
	chainID int64
	sugar   common.Address
	pools   []LpRow
	tokens  []TokenRow
	erc20   map[common.Address]erc20Token
	failAll int
	calls   map[string]int
	closed  int
}

func newFakeChain(chainID int64) *fakeChain {
	return &fakeChain{
		chainID: chainID,
		sugar:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
		erc20:   make(map[common.Address]erc20Token),
		calls:   make(map[string]int),
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeChain) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeChain) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errReverted
	}
	if *msg.To == f.sugar {
		return f.callSugar(msg.Data)
	}
	return f.callToken(*msg.To, msg.Data)
}

func (f *fakeChain) callSugar(data []byte) ([]byte, error) {
	parsed, err := LpSugarABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	limit := args[0].(*big.Int).Int64()
	offset := args[1].(*big.Int).Int64()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method.Name]++

	switch method.Name {
	case "all":
		if f.failAll > 0 {
			f.failAll--
			return nil, fmt.Errorf("429 too many requests")
		}
		rows := window(f.pools, offset, limit)
		out := make([]LpRow, len(rows))
		for i, row := range rows {
			out[i] = filledLpRow(row)
		}
		return method.Outputs.Pack(out)
	case "tokens":
		if len(args) != 4 {
			return nil, errReverted
		}
		rows := window(f.tokens, offset, limit)
		out := make([]TokenRow, len(rows))
		for i, row := range rows {
			if row.AccountBalance == nil {
				row.AccountBalance = new(big.Int)
			}
			out[i] = row
		}
		return method.Outputs.Pack(out)
	default:
		return nil, errReverted
	}
}

func (f *fakeChain) callToken(address common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	token, ok := f.erc20[address]
	f.calls["erc20"]++
	f.mu.Unlock()
	if !ok {
		return nil, errReverted
	}

	stringABI, err := ERC20StringABI()
	if err != nil {
		return nil, err
	}
	method, err := stringABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(token.decimals)
	case "symbol", "name":
		text := token.symbol
		if method.Name == "name" {
			text = token.name
		}
		if !token.bytes32 {
			return method.Outputs.Pack(text)
		}
		var raw [32]byte
		copy(raw[:], text)
		return raw[:], nil
	default:
		return nil, errReverted
	}
}

func window[T any](rows []T, offset, limit int64) []T {
	if offset >= int64(len(rows)) {
		return []T{}
	}
	end := offset + limit
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	return rows[offset:end]
}

func addr(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(n)))
}

// lpRow builds a basic pool: odd n is volatile, even n is stable.
func lpRow(n int, token0, token1 common.Address, reserve0, reserve1 int64) LpRow {
	poolType := int64(-1)
	if n%2 == 0 {
		poolType = 0
	}
	return LpRow{
		Lp:        addr(0x1000 + n),
		Symbol:    fmt.Sprintf("vAMM-%d", n),
		Decimals:  18,
		Liquidity: big.NewInt(1000),
		Type:      big.NewInt(poolType),
		Token0:    token0,
		Reserve0:  big.NewInt(reserve0),
		Token1:    token1,
		Reserve1:  big.NewInt(reserve1),
		Gauge:     addr(0x2000 + n),
		Bribe:     addr(0x3000 + n),
		Factory:   addr(0x4000),
		PoolFee:   big.NewInt(30),
	}
}

// clRow builds a concentrated pool with the given tick spacing and fee in
// hundredths of a basis point.
func clRow(n int, token0, token1 common.Address, tickSpacing, fee int64) LpRow {
	row := lpRow(n, token0, token1, 1, 1)
	row.Symbol = fmt.Sprintf("CL%d-%d", tickSpacing, n)
	row.Type = big.NewInt(tickSpacing)
	row.Tick = big.NewInt(-201000)
	row.SqrtRatio = new(big.Int).Lsh(big.NewInt(1), 96)
	row.PoolFee = big.NewInt(fee)
	row.UnstakedFee = big.NewInt(fee)
	row.Nfpm = addr(0x5000)
	return row
}

func filledLpRow(row LpRow) LpRow {
	for _, field := range []**big.Int{
		&row.Liquidity, &row.Type, &row.Tick, &row.SqrtRatio,
		&row.Reserve0, &row.Staked0, &row.Reserve1, &row.Staked1,
		&row.GaugeLiquidity, &row.Emissions, &row.PoolFee, &row.UnstakedFee,
		&row.Token0Fees, &row.Token1Fees,
	} {
		if *field == nil {
			*field = new(big.Int)
		}
	}
	return row
}
