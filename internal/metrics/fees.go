package metrics

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// FeeInput collects what the fee decomposition needs.
type FeeInput struct {
	BaseFactor            decimal.Decimal
	MaxVolatilityFactor   decimal.Decimal
	VolatilityAccumulator decimal.Decimal
	ProtocolShare         decimal.Decimal
	BinStep               uint16
	Volumes               []decimal.Decimal
}

// FeeInputFor builds a FeeInput from pool parameters and observed volumes.
func FeeInputFor(pool model.Pool, volumes []decimal.Decimal) FeeInput {
	return FeeInput{
		BaseFactor:            pool.FeeParams.BaseFactor,
		MaxVolatilityFactor:   pool.FeeParams.MaxVolatilityFactor,
		VolatilityAccumulator: pool.FeeParams.VolatilityAccumulator,
		ProtocolShare:         pool.FeeParams.ProtocolShare,
		BinStep:               pool.BinStep,
		Volumes:               volumes,
	}
}

// Fees decomposes the pool fee into base and variable parts and splits
// the resulting revenue between the protocol and liquidity providers.
func Fees(in FeeInput) model.FeeBreakdown {
	step := decimal.NewFromInt(int64(in.BinStep))
	base := div(in.BaseFactor.Mul(step), tenK)

	variable := in.VolatilityAccumulator.Mul(step)
	if variable.GreaterThan(in.MaxVolatilityFactor) {
		variable = in.MaxVolatilityFactor
	}
	if variable.IsNegative() {
		variable = zero
	}
	totalBps := base.Add(variable)

	volume := sum(in.Volumes)
	fees := volume.Mul(div(totalBps, tenK))
	share := Clamp(in.ProtocolShare, zero, one)
	protocol := fees.Mul(share)

	return model.FeeBreakdown{
		BaseFeeBps:      base,
		VariableFeeBps:  variable,
		TotalFeeBps:     totalBps,
		TotalVolume:     volume,
		TotalFees:       fees,
		ProtocolRevenue: protocol,
		LPRevenue:       fees.Sub(protocol),
	}
}
