package metrics

import "github.com/shopspring/decimal"

// ImpermanentLoss returns 2*sqrt(r)/(1+r) - 1 with r = current/initial.
// Either ratio being zero yields 0. The result is <= 0. The loss is about
// -(r-1)^2/8 near r = 1, so it rounds to 0 at Precision digits once
// |r-1| falls below roughly 1e-14.
func ImpermanentLoss(initialPriceRatio, currentPriceRatio decimal.Decimal) decimal.Decimal {
	if initialPriceRatio.IsZero() || currentPriceRatio.IsZero() {
		return zero
	}
	r := div(currentPriceRatio, initialPriceRatio)
	if r.Sign() <= 0 {
		return zero
	}
	loss := div(two.Mul(sqrt(r)), one.Add(r)).Sub(one)
	if loss.IsPositive() {
		return zero
	}
	return loss
}
