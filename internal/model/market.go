package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open liquidity position held in one pool.
type Position struct {
	ID           string          `json:"id"`
	Pool         string          `json:"pool"`
	Range        BinRange        `json:"range"`
	Liquidity    decimal.Decimal `json:"liquidity"`
	UnclaimedFee decimal.Decimal `json:"unclaimed_fee"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// MarketData is the input of a strategy analysis pass.
type MarketData struct {
	Snapshots  map[string]*PoolSnapshot `json:"snapshots"`
	Positions  map[string]Position      `json:"positions"`
	ObservedAt time.Time                `json:"observed_at"`
}

// Metrics returns the metrics of a pool, if a snapshot is present.
func (m MarketData) Metrics(pool string) (PoolMetrics, bool) {
	snap, ok := m.Snapshots[pool]
	if !ok || snap == nil {
		return PoolMetrics{}, false
	}
	return snap.Metrics, true
}

// ExecutionResult is what the execution collaborator reports back.
type ExecutionResult struct {
	ActionID      string           `json:"action_id"`
	Success       bool             `json:"success"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Error         string           `json:"error,omitempty"`
	ActualReturn  *decimal.Decimal `json:"actual_return,omitempty"`
	ExecutedAt    time.Time        `json:"executed_at"`
}
