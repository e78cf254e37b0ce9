package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimals(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = d(v)
	}
	return out
}

func requireClose(t *testing.T, want, got decimal.Decimal, tolerance string) {
	t.Helper()
	diff := want.Sub(got).Abs()
	require.Truef(t, diff.LessThanOrEqual(d(tolerance)), "want %s got %s", want, got)
}

func TestAPR(t *testing.T) {
	require.True(t, APR(d("100"), d("10000")).Equal(d("365")))
	require.True(t, APR(d("0"), d("10000")).IsZero())
	require.True(t, APR(d("100"), d("0")).IsZero())

	for _, fees := range []string{"0", "0.5", "12", "1000"} {
		for _, liq := range []string{"1", "250", "10000", "1e9"} {
			apr := APR(d(fees), d(liq))
			assert.Falsef(t, apr.IsNegative(), "APR(%s, %s) = %s", fees, liq, apr)
		}
	}
}

func TestCompoundedAPRAtLeastLinear(t *testing.T) {
	cases := [][2]string{
		{"100", "10000"},
		{"1", "1000000"},
		{"3.25", "7700"},
		{"500", "1000"},
	}
	for _, c := range cases {
		linear := APR(d(c[0]), d(c[1]))
		compounded := CompoundedAPR(d(c[0]), d(c[1]))
		assert.Truef(t, compounded.GreaterThanOrEqual(linear), "compounded %s < linear %s", compounded, linear)
	}
	require.True(t, CompoundedAPR(d("100"), d("0")).IsZero())
	require.True(t, CompoundedAPR(d("0"), d("100")).IsZero())
}

func TestVolatility(t *testing.T) {
	require.True(t, Volatility(nil, HourlySamplesPerYear).IsZero())
	require.True(t, Volatility(decimals("101.5"), HourlySamplesPerYear).IsZero())
	require.True(t, Volatility(decimals("5", "5", "5", "5"), HourlySamplesPerYear).IsZero())

	// (0,1) holds for unannualized returns only; hourly annualization
	// scales the same series by sqrt(8760) to about 6.3.
	vol := Volatility(decimals("100", "110", "105", "115"), 1)
	require.True(t, vol.IsPositive())
	require.True(t, vol.LessThan(d("1")))
	requireClose(t, d("0.0675"), vol, "0.0001")
}

func TestVolatilityScaleInvariant(t *testing.T) {
	prices := decimals("100", "110", "105", "115", "98.4")
	base := Volatility(prices, HourlySamplesPerYear)

	for _, k := range []string{"0.001", "3.5", "1000"} {
		scaled := make([]decimal.Decimal, len(prices))
		for i, p := range prices {
			scaled[i] = p.Mul(d(k))
		}
		got := Volatility(scaled, HourlySamplesPerYear)
		assert.Truef(t, base.Equal(got), "k=%s: %s != %s", k, got, base)
	}
}

func TestVolatilitySkipsNonPositivePrices(t *testing.T) {
	withGap := Volatility(decimals("0", "100", "110"), 1)
	require.True(t, withGap.IsZero())
}

func TestImpermanentLoss(t *testing.T) {
	for _, r := range []string{"0.25", "1", "1.7", "420"} {
		assert.Truef(t, ImpermanentLoss(d(r), d(r)).IsZero(), "IL(%s,%s)", r, r)
	}
	for _, r := range []string{"0.5", "0.99", "1.01", "2", "4"} {
		assert.Truef(t, ImpermanentLoss(d("1"), d(r)).IsNegative(), "IL(1,%s)", r)
	}
	require.True(t, ImpermanentLoss(d("1"), d("4")).Equal(d("-0.2")))
	require.True(t, ImpermanentLoss(d("1"), d("1.0000001")).IsNegative())
	// below the precision floor the loss rounds to zero, never above it
	require.False(t, ImpermanentLoss(d("1"), d("1.000000000000001")).IsPositive())
	require.True(t, ImpermanentLoss(d("0"), d("4")).IsZero())
	require.True(t, ImpermanentLoss(d("2"), d("0")).IsZero())
}

func TestConcentration(t *testing.T) {
	index, ratio := Concentration(nil)
	require.True(t, index.IsZero())
	require.True(t, ratio.IsZero())

	single := []model.Bin{{ID: 1, Price: d("1"), AmountX: d("10"), AmountY: d("5")}}
	index, ratio = Concentration(single)
	require.True(t, index.IsZero())
	require.True(t, ratio.Equal(d("0.5")))

	for _, n := range []int{2, 3, 4, 5, 10} {
		bins := make([]model.Bin, n)
		for i := range bins {
			bins[i] = model.Bin{ID: int32(i), Price: d("1"), AmountX: d("50"), AmountY: d("50")}
		}
		index, ratio = Concentration(bins)
		want := d("1").Sub(d("1").DivRound(decimal.NewFromInt(int64(n)), 28))
		requireClose(t, want, index, "0.000000000000000000001")
		require.True(t, ratio.Equal(d("1")))
	}
}

func TestConcentrationNoX(t *testing.T) {
	bins := []model.Bin{
		{ID: 1, Price: d("2"), AmountY: d("30")},
		{ID: 2, Price: d("2.1"), AmountY: d("10")},
	}
	index, ratio := Concentration(bins)
	require.True(t, ratio.IsZero())
	// shares 0.75 and 0.25
	require.True(t, index.Equal(d("0.375")))
}

func TestBinPriceMonotonic(t *testing.T) {
	base := d("1.25")
	for _, step := range []uint16{1, 10, 25, 100} {
		prev := BinPrice(-50, step, base)
		for id := int32(-49); id <= 50; id++ {
			price := BinPrice(id, step, base)
			require.Truef(t, price.GreaterThan(prev), "step %d id %d: %s <= %s", step, id, price, prev)
			prev = price
		}
	}
	require.True(t, BinPrice(0, 25, base).Equal(base))
	require.True(t, BinPrice(1, 100, d("1")).Equal(d("1.01")))
}

func TestFees(t *testing.T) {
	out := Fees(FeeInput{
		BaseFactor:            d("5000"),
		MaxVolatilityFactor:   d("40"),
		VolatilityAccumulator: d("2"),
		ProtocolShare:         d("0.1"),
		BinStep:               25,
		Volumes:               decimals("1000", "1000"),
	})

	require.True(t, out.BaseFeeBps.Equal(d("12.5")))
	require.True(t, out.VariableFeeBps.Equal(d("40")))
	require.True(t, out.TotalFeeBps.Equal(d("52.5")))
	require.True(t, out.TotalVolume.Equal(d("2000")))
	require.True(t, out.TotalFees.Equal(d("10.5")))
	require.True(t, out.ProtocolRevenue.Equal(d("1.05")))
	require.True(t, out.LPRevenue.Equal(d("9.45")))
}

func TestFeesBelowCap(t *testing.T) {
	out := Fees(FeeInput{
		BaseFactor:            d("10000"),
		MaxVolatilityFactor:   d("100"),
		VolatilityAccumulator: d("0.5"),
		BinStep:               20,
	})
	require.True(t, out.VariableFeeBps.Equal(d("10")))
	require.True(t, out.TotalFees.IsZero())
}

func TestYieldStability(t *testing.T) {
	require.True(t, YieldStability(nil).Equal(d("1")))
	require.True(t, YieldStability(decimals("12")).Equal(d("1")))
	require.True(t, YieldStability(decimals("10", "10", "10")).Equal(d("1")))
	require.True(t, YieldStability(decimals("0", "0")).Equal(d("1")))

	// mean 10, stddev 5, cv 0.5
	score := YieldStability(decimals("5", "15"))
	requireClose(t, d("0.6666666666"), score, "0.0000000001")
}

func TestCompute(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	window := []model.HistoricalDataPoint{
		{Timestamp: start, Price: d("1"), Volume: d("5000"), Fees: d("40"), LiquidityX: d("5000"), LiquidityY: d("5000")},
		{Timestamp: start.Add(time.Hour), Price: d("1"), Volume: d("7000"), Fees: d("60"), LiquidityX: d("5000"), LiquidityY: d("5000")},
	}
	bins := []model.Bin{
		{ID: 1, Price: d("1"), AmountX: d("5000")},
		{ID: 2, Price: d("1"), AmountY: d("5000")},
	}
	pool := model.Pool{
		Address: "0xpool",
		BinStep: 20,
		FeeParams: model.FeeParameters{
			BaseFactor:    d("10000"),
			ProtocolShare: d("0.2"),
		},
	}

	m := Compute(Input{Pool: pool, Bins: bins, Price: d("1"), Window: window})

	require.Equal(t, 2, m.Samples)
	require.True(t, m.Volume24h.Equal(d("12000")))
	require.True(t, m.Fees24h.Equal(d("100")))
	require.True(t, m.TVL.Equal(d("10000")))
	require.True(t, m.APR.Equal(d("365")))
	require.True(t, m.CompoundedAPR.GreaterThan(m.APR))
	require.True(t, m.Volatility.IsZero())
	require.True(t, m.ImpermanentLoss.IsZero())
	require.True(t, m.ConcentrationIndex.Equal(d("0.5")))
	require.True(t, m.LiquidityRatio.Equal(d("1")))
	require.True(t, m.Fees.TotalVolume.Equal(d("12000")))
	require.True(t, m.YieldStability.LessThan(d("1")))
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(Input{Pool: model.Pool{Address: "0xpool", BinStep: 1}})
	require.Zero(t, m.Samples)
	require.True(t, m.APR.IsZero())
	require.True(t, m.TVL.IsZero())
	require.True(t, m.YieldStability.Equal(d("1")))
}
