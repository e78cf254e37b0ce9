package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// lbPairABIJSON covers the Liquidity Book v2.1 pair surface the provider reads.
const lbPairABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint24", "name": "id", "type": "uint24"},
      {"indexed": false, "internalType": "bytes32", "name": "amountsIn", "type": "bytes32"},
      {"indexed": false, "internalType": "bytes32", "name": "amountsOut", "type": "bytes32"},
      {"indexed": false, "internalType": "uint24", "name": "volatilityAccumulator", "type": "uint24"},
      {"indexed": false, "internalType": "bytes32", "name": "totalFees", "type": "bytes32"},
      {"indexed": false, "internalType": "bytes32", "name": "protocolFees", "type": "bytes32"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "getTokenX",
    "outputs": [{"internalType": "address", "name": "tokenX", "type": "address"}],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getTokenY",
    "outputs": [{"internalType": "address", "name": "tokenY", "type": "address"}],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getBinStep",
    "outputs": [{"internalType": "uint16", "name": "", "type": "uint16"}],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getActiveId",
    "outputs": [{"internalType": "uint24", "name": "activeId", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint24", "name": "id", "type": "uint24"}],
    "name": "getBin",
    "outputs": [
      {"internalType": "uint128", "name": "binReserveX", "type": "uint128"},
      {"internalType": "uint128", "name": "binReserveY", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getStaticFeeParameters",
    "outputs": [
      {"internalType": "uint16", "name": "baseFactor", "type": "uint16"},
      {"internalType": "uint16", "name": "filterPeriod", "type": "uint16"},
      {"internalType": "uint16", "name": "decayPeriod", "type": "uint16"},
      {"internalType": "uint16", "name": "reductionFactor", "type": "uint16"},
      {"internalType": "uint24", "name": "variableFeeControl", "type": "uint24"},
      {"internalType": "uint16", "name": "protocolShare", "type": "uint16"},
      {"internalType": "uint24", "name": "maxVolatilityAccumulator", "type": "uint24"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getVariableFeeParameters",
    "outputs": [
      {"internalType": "uint24", "name": "volatilityAccumulator", "type": "uint24"},
      {"internalType": "uint24", "name": "volatilityReference", "type": "uint24"},
      {"internalType": "uint24", "name": "idReference", "type": "uint24"},
      {"internalType": "uint40", "name": "timeOfLastUpdate", "type": "uint40"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	lbPairABI     abi.ABI
	lbPairABIOnce sync.Once
	lbPairABIErr  error
)

// LBPairABI returns the parsed Liquidity Book pair ABI.
func LBPairABI() (abi.ABI, error) {
	lbPairABIOnce.Do(func() {
		lbPairABI, lbPairABIErr = abi.JSON(strings.NewReader(lbPairABIJSON))
	})
	return lbPairABI, lbPairABIErr
}
