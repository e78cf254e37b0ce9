package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RiskParameters bound what a single strategy instance may do.
type RiskParameters struct {
	MaxPositionSize     decimal.Decimal `json:"max_position_size"`
	MaxSlippage         decimal.Decimal `json:"max_slippage"`
	VolatilityThreshold decimal.Decimal `json:"volatility_threshold"`
	ConcentrationLimit  decimal.Decimal `json:"concentration_limit"`
}

// Validate checks the parameters are usable.
func (r RiskParameters) Validate() error {
	if !r.MaxPositionSize.IsPositive() {
		return fmt.Errorf("max position size must be > 0")
	}
	if r.MaxSlippage.IsNegative() || r.MaxSlippage.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max slippage %s outside [0,1]", r.MaxSlippage)
	}
	if !r.VolatilityThreshold.IsPositive() {
		return fmt.Errorf("volatility threshold must be > 0")
	}
	if r.ConcentrationLimit.IsNegative() || r.ConcentrationLimit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("concentration limit %s outside [0,1]", r.ConcentrationLimit)
	}
	return nil
}
