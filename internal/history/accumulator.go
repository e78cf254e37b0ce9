package history

import (
	"time"

	"liquidityPilot/internal/model"
)

// accumulator merges observations that fall into one open bucket.
type accumulator struct {
	windowStart time.Time
	windowEnd   time.Time
	lastTS      time.Time
	samples     int
	point       model.HistoricalDataPoint
}

func newAccumulator(obs model.HistoricalDataPoint, windowStart time.Time, width time.Duration) *accumulator {
	acc := &accumulator{
		windowStart: windowStart,
		windowEnd:   windowStart.Add(width),
		lastTS:      obs.Timestamp,
		samples:     1,
		point:       obs,
	}
	acc.point.Timestamp = windowStart
	return acc
}

// add folds an observation into the bucket: volume and fees accumulate,
// price, liquidity and bin take the latest value.
func (a *accumulator) add(obs model.HistoricalDataPoint) {
	a.point.Volume = a.point.Volume.Add(obs.Volume)
	a.point.Fees = a.point.Fees.Add(obs.Fees)
	a.point.Price = obs.Price
	a.point.LiquidityX = obs.LiquidityX
	a.point.LiquidityY = obs.LiquidityY
	a.point.BinID = obs.BinID
	a.lastTS = obs.Timestamp
	a.samples++
}

func (a *accumulator) snapshot() model.HistoricalDataPoint {
	return a.point
}

func windowStart(ts time.Time, width time.Duration) time.Time {
	return ts.UTC().Truncate(width)
}
