package metrics

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// HourlySamplesPerYear annualizes hourly samples.
const HourlySamplesPerYear int64 = 24 * 365

// Volume24h sums the volume of the supplied window.
func Volume24h(points []model.HistoricalDataPoint) decimal.Decimal {
	total := zero
	for _, p := range points {
		total = total.Add(p.Volume)
	}
	return total
}

// Fees24h sums the fees of the supplied window.
func Fees24h(points []model.HistoricalDataPoint) decimal.Decimal {
	total := zero
	for _, p := range points {
		total = total.Add(p.Fees)
	}
	return total
}

// APR returns the linear annualized return in percent of one day of fees.
func APR(fees24h, liquidity decimal.Decimal) decimal.Decimal {
	if liquidity.Sign() <= 0 {
		return zero
	}
	return div(fees24h, liquidity).Mul(days).Mul(hundred)
}

// CompoundedAPR compounds the daily fee rate over a year, in percent.
func CompoundedAPR(fees24h, liquidity decimal.Decimal) decimal.Decimal {
	if liquidity.Sign() <= 0 {
		return zero
	}
	daily := div(fees24h, liquidity)
	growth := powInt(one.Add(daily), 365)
	return growth.Sub(one).Mul(hundred)
}

// SampleAPRs annualizes the fee yield of each sample. Samples without
// liquidity are skipped.
func SampleAPRs(points []model.HistoricalDataPoint, samplesPerYear int64) []decimal.Decimal {
	perYear := decimal.NewFromInt(samplesPerYear)
	out := make([]decimal.Decimal, 0, len(points))
	for _, p := range points {
		liq := p.Liquidity()
		if liq.Sign() <= 0 {
			continue
		}
		out = append(out, div(p.Fees, liq).Mul(perYear).Mul(hundred))
	}
	return out
}

// YieldStability scores an APR series in (0,1] as 1/(1+cv). Fewer than two
// samples count as stable.
func YieldStability(aprs []decimal.Decimal) decimal.Decimal {
	if len(aprs) < 2 {
		return one
	}
	mean, std := meanStd(aprs)
	if mean.Sign() <= 0 {
		if std.IsZero() {
			return one
		}
		return zero
	}
	cv := div(std, mean)
	return div(one, one.Add(cv))
}
