package influx

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

func TestPointFieldsRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	in := model.HistoricalDataPoint{
		Timestamp:  ts,
		Price:      decimal.RequireFromString("0.000000001234567891234"),
		Volume:     decimal.RequireFromString("1500.25"),
		Fees:       decimal.RequireFromString("3.0005"),
		LiquidityX: decimal.NewFromInt(42),
		LiquidityY: decimal.Zero,
		BinID:      8388000,
	}

	p := toPoint("0xABC", in, model.GranularityHour)
	require.Equal(t, measurement, p.Name())

	values := map[string]interface{}{}
	for _, f := range p.FieldList() {
		values[f.Key] = f.Value
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	require.Equal(t, "0xabc", tags["pool"])
	require.Equal(t, "1h", tags["granularity"])

	out, err := fromValues(p.Time(), values)
	require.NoError(t, err)
	require.True(t, out.Price.Equal(in.Price))
	require.True(t, out.Fees.Equal(in.Fees))
	require.Equal(t, in.BinID, out.BinID)
	require.True(t, out.Timestamp.Equal(ts))
}

func TestFromValuesMissingField(t *testing.T) {
	_, err := fromValues(time.Now(), map[string]interface{}{"price": "1"})
	require.Error(t, err)
}

func TestWindowQuery(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	q := windowQuery("history", "0xAbC", model.GranularityDay, start, start.Add(time.Hour))
	require.True(t, strings.Contains(q, `from(bucket: "history")`))
	require.True(t, strings.Contains(q, `r.pool == "0xabc"`))
	require.True(t, strings.Contains(q, `r.granularity == "1d"`))
	require.True(t, strings.Contains(q, "start: 2024-06-01T00:00:00Z"))
}
