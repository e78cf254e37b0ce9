package model

import "github.com/shopspring/decimal"

// Bin is a discrete price interval of a pool. Amounts are in token units
// with decimals applied; price is token Y per token X.
type Bin struct {
	ID      int32           `json:"id"`
	Price   decimal.Decimal `json:"price"`
	AmountX decimal.Decimal `json:"amount_x"`
	AmountY decimal.Decimal `json:"amount_y"`
}

// Value returns the bin liquidity expressed in token Y.
func (b Bin) Value() decimal.Decimal {
	if b.Price.IsZero() {
		return b.AmountX.Add(b.AmountY)
	}
	return b.AmountX.Mul(b.Price).Add(b.AmountY)
}
