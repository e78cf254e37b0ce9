package metrics

import "github.com/shopspring/decimal"

// Volatility is the population standard deviation of consecutive relative
// returns, scaled by sqrt(samplesPerYear). Returns after a non-positive
// price are skipped. Fewer than two prices yield 0.
func Volatility(prices []decimal.Decimal, samplesPerYear int64) decimal.Decimal {
	if len(prices) < 2 || samplesPerYear <= 0 {
		return zero
	}
	returns := make([]decimal.Decimal, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev.Sign() <= 0 {
			continue
		}
		returns = append(returns, div(prices[i].Sub(prev), prev))
	}
	if len(returns) == 0 {
		return zero
	}
	_, std := meanStd(returns)
	return std.Mul(sqrt(decimal.NewFromInt(samplesPerYear))).Round(Precision)
}
