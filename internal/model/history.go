package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the bucket width of a historical series.
type Granularity string

const (
	GranularityMinute Granularity = "1m"
	GranularityHour   Granularity = "1h"
	GranularityDay    Granularity = "1d"
)

// Duration returns the bucket width, or 0 for an unknown granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseGranularity validates a granularity string.
func ParseGranularity(input string) (Granularity, error) {
	g := Granularity(input)
	if g.Duration() == 0 {
		return "", fmt.Errorf("unknown granularity: %s", input)
	}
	return g, nil
}

// HistoricalDataPoint is one sample of a pool per sampling interval.
// Timestamp is the start of the bucket the sample belongs to.
type HistoricalDataPoint struct {
	Timestamp  time.Time       `json:"timestamp"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	Fees       decimal.Decimal `json:"fees"`
	LiquidityX decimal.Decimal `json:"liquidity_x"`
	LiquidityY decimal.Decimal `json:"liquidity_y"`
	BinID      int32           `json:"bin_id"`
}

// Liquidity returns the sample's liquidity valued in token Y.
func (p HistoricalDataPoint) Liquidity() decimal.Decimal {
	return p.LiquidityX.Mul(p.Price).Add(p.LiquidityY)
}
