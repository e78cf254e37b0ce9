package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

// swapEvent is a decoded pair Swap log. Amounts are raw token units.
type swapEvent struct {
	BinID       uint32
	InX         *big.Int
	InY         *big.Int
	FeeX        *big.Int
	FeeY        *big.Int
	BlockNumber uint64
}

// decodePacked splits a packed bytes32 into its X (low 128 bits) and
// Y (high 128 bits) halves.
func decodePacked(packed [32]byte) (*big.Int, *big.Int) {
	y := new(big.Int).SetBytes(packed[:16])
	x := new(big.Int).SetBytes(packed[16:])
	return x, y
}

func decodeSwap(pairABI abi.ABI, log types.Log) (swapEvent, error) {
	event, ok := pairABI.Events["Swap"]
	if !ok {
		return swapEvent{}, fmt.Errorf("swap event missing from abi")
	}
	if len(log.Topics) != 3 {
		return swapEvent{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != event.ID {
		return swapEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return swapEvent{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 6 {
		return swapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	id, err := asBigInt(values[0])
	if err != nil {
		return swapEvent{}, err
	}
	amountsIn, err := asBytes32(values[1])
	if err != nil {
		return swapEvent{}, err
	}
	totalFees, err := asBytes32(values[4])
	if err != nil {
		return swapEvent{}, err
	}

	inX, inY := decodePacked(amountsIn)
	feeX, feeY := decodePacked(totalFees)

	return swapEvent{
		BinID:       uint32(id.Uint64()),
		InX:         inX,
		InY:         inY,
		FeeX:        feeX,
		FeeY:        feeY,
		BlockNumber: log.BlockNumber,
	}, nil
}
