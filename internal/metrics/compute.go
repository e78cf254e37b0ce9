package metrics

import (
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// Input is everything Compute needs for one pool.
type Input struct {
	Pool  model.Pool
	Bins  []model.Bin
	Price decimal.Decimal
	// Window is the trailing 24h of samples in ascending order.
	Window         []model.HistoricalDataPoint
	SamplesPerYear int64
}

// Compute derives PoolMetrics. The oldest sample in the window is the
// entry reference for impermanent loss.
func Compute(in Input) model.PoolMetrics {
	if in.SamplesPerYear <= 0 {
		in.SamplesPerYear = HourlySamplesPerYear
	}

	volume := Volume24h(in.Window)
	fees := Fees24h(in.Window)
	tvl := TVL(in.Bins)
	index, ratio := Concentration(in.Bins)

	prices := make([]decimal.Decimal, 0, len(in.Window))
	volumes := make([]decimal.Decimal, 0, len(in.Window))
	for _, p := range in.Window {
		prices = append(prices, p.Price)
		volumes = append(volumes, p.Volume)
	}

	il := zero
	if len(in.Window) > 0 {
		il = ImpermanentLoss(in.Window[0].Price, in.Price)
	}

	return model.PoolMetrics{
		Volume24h:          volume,
		Fees24h:            fees,
		TVL:                tvl,
		APR:                APR(fees, tvl),
		CompoundedAPR:      CompoundedAPR(fees, tvl),
		Volatility:         Volatility(prices, in.SamplesPerYear),
		ImpermanentLoss:    il,
		ConcentrationIndex: index,
		LiquidityRatio:     ratio,
		YieldStability:     YieldStability(SampleAPRs(in.Window, in.SamplesPerYear)),
		Fees:               Fees(FeeInputFor(in.Pool, volumes)),
		Samples:            len(in.Window),
	}
}
