package sugar

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Some tokens return symbol and name as bytes32 instead of string.
const (
	erc20StringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`
	erc20Bytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`
)

type erc20ABIs struct {
	str     abi.ABI
	bytes32 abi.ABI
}

var (
	erc20     erc20ABIs
	erc20Once sync.Once
	erc20Err  error
)

func erc20ABI() (erc20ABIs, error) {
	erc20Once.Do(func() {
		erc20.str, erc20Err = abi.JSON(strings.NewReader(erc20StringJSON))
		if erc20Err != nil {
			return
		}
		erc20.bytes32, erc20Err = abi.JSON(strings.NewReader(erc20Bytes32JSON))
	})
	return erc20, erc20Err
}

// ERC20StringABI returns the string-returning ERC20 metadata ABI.
func ERC20StringABI() (abi.ABI, error) {
	parsed, err := erc20ABI()
	return parsed.str, err
}

// ERC20Bytes32ABI returns the bytes32-returning ERC20 metadata ABI.
func ERC20Bytes32ABI() (abi.ABI, error) {
	parsed, err := erc20ABI()
	return parsed.bytes32, err
}
