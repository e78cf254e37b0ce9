package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultCallTimeout bounds a single RPC round trip.
const DefaultCallTimeout = 10 * time.Second

// Reader is the read-only chain surface used by pool providers.
type Reader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	// Call runs eth_call against to; a nil block reads the latest state.
	Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error)
	// Logs returns the logs of address whose first topic is topic.
	Logs(ctx context.Context, span BlockRange, address common.Address, topic common.Hash) ([]types.Log, error)
}

// Client reads from an EVM node over JSON-RPC.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	timeout time.Duration
}

func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("rpc url is empty")
	}
	conn, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{
		rpc:     conn,
		eth:     ethclient.NewClient(conn),
		timeout: DefaultCallTimeout,
	}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.BlockNumber(ctx)
}

func (c *Client) Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
}

func (c *Client) Logs(ctx context.Context, span BlockRange, address common.Address, topic common.Hash) ([]types.Log, error) {
	if span.To < span.From {
		return nil, fmt.Errorf("invalid block range %d-%d", span.From, span.To)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(span.From),
		ToBlock:   new(big.Int).SetUint64(span.To),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
	})
}
