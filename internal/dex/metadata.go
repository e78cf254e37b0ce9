package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/model"
)

// pairMeta holds the fields of a pair that never change after deployment.
type pairMeta struct {
	tokenX  common.Address
	tokenY  common.Address
	binStep uint16
}

// metaCache memoizes immutable on-chain metadata by contract address.
type metaCache[T any] struct {
	mu   sync.RWMutex
	data map[common.Address]T
}

func newMetaCache[T any]() *metaCache[T] {
	return &metaCache[T]{data: make(map[common.Address]T)}
}

// load returns the cached value or fetches and stores it. Concurrent misses
// may fetch twice; the values are identical.
func (c *metaCache[T]) load(address common.Address, fetch func() (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.data[address]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	c.data[address] = v
	c.mu.Unlock()
	return v, nil
}

func fetchPairMeta(ctx context.Context, reader chain.Reader, pairABI abi.ABI, pair common.Address) (pairMeta, error) {
	var tokens [2]common.Address
	for i, method := range []string{"getTokenX", "getTokenY"} {
		values, err := call(ctx, reader, pair, pairABI, method, nil)
		if err != nil {
			return pairMeta{}, err
		}
		if tokens[i], err = asAddress(values[0]); err != nil {
			return pairMeta{}, fmt.Errorf("%s: %w", method, err)
		}
	}

	values, err := call(ctx, reader, pair, pairABI, "getBinStep", nil)
	if err != nil {
		return pairMeta{}, err
	}
	step, err := asBigInt(values[0])
	if err != nil {
		return pairMeta{}, fmt.Errorf("getBinStep: %w", err)
	}
	if step.Sign() <= 0 || step.BitLen() > 16 {
		return pairMeta{}, fmt.Errorf("bin step out of range: %s", step)
	}

	return pairMeta{tokenX: tokens[0], tokenY: tokens[1], binStep: uint16(step.Uint64())}, nil
}

// fetchToken reads decimals and a best-effort symbol. A token without a
// readable symbol is still usable.
func fetchToken(ctx context.Context, reader chain.Reader, token common.Address, logger *zap.Logger) (model.Token, error) {
	out := model.Token{Address: token.Hex()}
	parsed, err := erc20()
	if err != nil {
		return out, err
	}

	values, err := call(ctx, reader, token, parsed.standard, "decimals", nil)
	if err != nil {
		return out, err
	}
	if out.Decimals, err = asUint8(values[0]); err != nil {
		return out, fmt.Errorf("decimals: %w", err)
	}

	if values, err := call(ctx, reader, token, parsed.standard, "symbol", nil); err == nil {
		out.Symbol, _ = values[0].(string)
		return out, nil
	}
	values, err = call(ctx, reader, token, parsed.bytes32, "symbol", nil)
	if err != nil {
		logger.Debug("token symbol unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return out, nil
	}
	if raw, ok := values[0].([32]byte); ok {
		out.Symbol = string(bytes.TrimRight(raw[:], "\x00"))
	}
	return out, nil
}

// call packs method, runs it against to and unpacks the outputs.
func call(ctx context.Context, reader chain.Reader, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := reader.Call(ctx, to, data, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	if v, ok := value.(common.Address); ok {
		return v, nil
	}
	return common.Address{}, fmt.Errorf("unexpected address type %T", value)
}

// asBigInt accepts the integer shapes go-ethereum unpacks to: native types up
// to 64 bits and *big.Int above that.
func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return big.NewInt(int64(v)), nil
	case uint16:
		return big.NewInt(int64(v)), nil
	case uint32:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unexpected integer type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.BitLen() > 8 {
		return 0, fmt.Errorf("%s overflows uint8", n)
	}
	return uint8(n.Uint64()), nil
}

func asBytes32(value interface{}) ([32]byte, error) {
	if v, ok := value.([32]byte); ok {
		return v, nil
	}
	return [32]byte{}, fmt.Errorf("unexpected bytes32 type %T", value)
}
