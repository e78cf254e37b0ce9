package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Some older tokens return bytes32 instead of string for symbol, so the
// token reader keeps a second ABI to retry with.
const (
	erc20JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`
	erc20Bytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`
)

type erc20ABIs struct {
	standard abi.ABI
	bytes32  abi.ABI
}

var (
	erc20Once   sync.Once
	erc20Parsed erc20ABIs
	erc20Err    error
)

func erc20() (erc20ABIs, error) {
	erc20Once.Do(func() {
		if erc20Parsed.standard, erc20Err = abi.JSON(strings.NewReader(erc20JSON)); erc20Err != nil {
			erc20Err = fmt.Errorf("parse erc20 abi: %w", erc20Err)
			return
		}
		if erc20Parsed.bytes32, erc20Err = abi.JSON(strings.NewReader(erc20Bytes32JSON)); erc20Err != nil {
			erc20Err = fmt.Errorf("parse erc20 bytes32 abi: %w", erc20Err)
		}
	})
	return erc20Parsed, erc20Err
}
