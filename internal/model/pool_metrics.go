package model

import "github.com/shopspring/decimal"

// PoolMetrics are derived from a snapshot and its history. They are never
// stored as a source of truth.
type PoolMetrics struct {
	Volume24h          decimal.Decimal `json:"volume_24h"`
	Fees24h            decimal.Decimal `json:"fees_24h"`
	TVL                decimal.Decimal `json:"tvl"`
	APR                decimal.Decimal `json:"apr"`
	CompoundedAPR      decimal.Decimal `json:"compounded_apr"`
	Volatility         decimal.Decimal `json:"volatility"`
	ImpermanentLoss    decimal.Decimal `json:"impermanent_loss"`
	ConcentrationIndex decimal.Decimal `json:"concentration_index"`
	LiquidityRatio     decimal.Decimal `json:"liquidity_ratio"`
	YieldStability     decimal.Decimal `json:"yield_stability"`
	Fees               FeeBreakdown    `json:"fees"`
	Samples            int             `json:"samples"`
}

// FeeBreakdown splits the pool fee into its components. Rates are in bps.
type FeeBreakdown struct {
	BaseFeeBps      decimal.Decimal `json:"base_fee_bps"`
	VariableFeeBps  decimal.Decimal `json:"variable_fee_bps"`
	TotalFeeBps     decimal.Decimal `json:"total_fee_bps"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	ProtocolRevenue decimal.Decimal `json:"protocol_revenue"`
	LPRevenue       decimal.Decimal `json:"lp_revenue"`
}
