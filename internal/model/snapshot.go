package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolState is what a pool-data provider returns for one fetch.
// Volume and Fees cover swaps observed since the provider's previous fetch
// of the same pool, in token Y.
type PoolState struct {
	Pool        Pool
	Bins        []Bin
	Price       decimal.Decimal
	Volume      decimal.Decimal
	Fees        decimal.Decimal
	BlockNumber uint64
}

// PoolSnapshot is a published, immutable view of a tracked pool.
type PoolSnapshot struct {
	Pool        Pool            `json:"pool"`
	Bins        []Bin           `json:"bins"`
	Price       decimal.Decimal `json:"price"`
	BlockNumber uint64          `json:"block_number"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Metrics     PoolMetrics     `json:"metrics"`
}

// Age returns how old the snapshot is at now.
func (s *PoolSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
