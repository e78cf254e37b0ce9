package metrics

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// BinPrice returns basePrice * (1 + binStep/10000)^binID.
func BinPrice(binID int32, binStep uint16, basePrice decimal.Decimal) decimal.Decimal {
	step := one.Add(div(decimal.NewFromInt(int64(binStep)), tenK))
	return basePrice.Mul(powInt(step, int64(binID))).Round(Precision)
}

// TVL values all bins in token Y.
func TVL(bins []model.Bin) decimal.Decimal {
	total := zero
	for _, b := range bins {
		total = total.Add(b.Value())
	}
	return total
}

// Concentration returns the Herfindahl-based spread index 1 - sum(share^2)
// over bin values, and the total Y / total X ratio. An empty set yields
// (0, 0).
func Concentration(bins []model.Bin) (index decimal.Decimal, ratio decimal.Decimal) {
	if len(bins) == 0 {
		return zero, zero
	}
	totalX, totalY := zero, zero
	values := make([]decimal.Decimal, len(bins))
	for i, b := range bins {
		totalX = totalX.Add(b.AmountX)
		totalY = totalY.Add(b.AmountY)
		values[i] = b.Value()
	}
	ratio = div(totalY, totalX)

	total := sum(values)
	if total.Sign() <= 0 {
		return zero, ratio
	}
	hhi := zero
	for _, v := range values {
		share := div(v, total)
		hhi = hhi.Add(share.Mul(share))
	}
	index = Clamp(one.Sub(hhi).Round(Precision), zero, one)
	return index, ratio
}
