package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error {
	args := m.Called(ctx, pool, point, granularity)
	return args.Error(0)
}

func (m *mockStore) QueryWindow(ctx context.Context, pool string, granularity model.Granularity, start, end time.Time) ([]model.HistoricalDataPoint, error) {
	args := m.Called(ctx, pool, granularity, start, end)
	points, _ := args.Get(0).([]model.HistoricalDataPoint)
	return points, args.Error(1)
}

func (m *mockStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

var base = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func obs(at time.Time, price, volume, fees string) model.HistoricalDataPoint {
	return model.HistoricalDataPoint{
		Timestamp:  at,
		Price:      decimal.RequireFromString(price),
		Volume:     decimal.RequireFromString(volume),
		Fees:       decimal.RequireFromString(fees),
		LiquidityX: decimal.NewFromInt(10),
		LiquidityY: decimal.NewFromInt(20),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAddDataPointMergesOpenBucket(t *testing.T) {
	agg := NewAggregator(Config{Now: fixedClock(base.Add(2 * time.Hour))}, nil)
	ctx := context.Background()

	require.NoError(t, agg.AddDataPoint(ctx, "0xPool", obs(base.Add(10*time.Minute), "1.0", "5", "0.1"), model.GranularityHour))
	require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(40*time.Minute), "1.2", "7", "0.2"), model.GranularityHour))

	points := agg.GetWindow("0xpool", model.GranularityHour, base, base.Add(time.Hour))
	require.Len(t, points, 1)
	require.True(t, points[0].Timestamp.Equal(base))
	require.True(t, points[0].Volume.Equal(decimal.NewFromInt(12)))
	require.True(t, points[0].Fees.Equal(decimal.RequireFromString("0.3")))
	require.True(t, points[0].Price.Equal(decimal.RequireFromString("1.2")))
}

func TestAddDataPointClosesBucket(t *testing.T) {
	store := &mockStore{}
	isClosed := mock.MatchedBy(func(p model.HistoricalDataPoint) bool {
		return p.Timestamp.Equal(base) && p.Volume.Equal(decimal.NewFromInt(3)) && p.Price.Equal(decimal.NewFromInt(2))
	})
	store.On("AppendPoint", mock.Anything, "0xpool", isClosed, model.GranularityHour).Return(nil).Once()

	agg := NewAggregator(Config{Store: store, Now: fixedClock(base.Add(2 * time.Hour))}, nil)
	ctx := context.Background()

	require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(5*time.Minute), "2", "3", "0.03"), model.GranularityHour))
	require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(65*time.Minute), "2.1", "4", "0.04"), model.GranularityHour))

	points := agg.GetWindow("0xpool", model.GranularityHour, base, base.Add(2*time.Hour))
	require.Len(t, points, 2)
	require.True(t, points[0].Timestamp.Before(points[1].Timestamp))
	store.AssertExpectations(t)
}

func TestAddDataPointRejectsOutOfOrder(t *testing.T) {
	agg := NewAggregator(Config{}, nil)
	ctx := context.Background()

	require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(2*time.Hour), "1", "1", "0"), model.GranularityHour))

	err := agg.AddDataPoint(ctx, "0xpool", obs(base.Add(30*time.Minute), "1", "1", "0"), model.GranularityHour)
	require.ErrorIs(t, err, ErrOutOfOrder)

	err = agg.AddDataPoint(ctx, "0xpool", obs(base.Add(2*time.Hour).Add(-time.Second), "1", "1", "0"), model.GranularityHour)
	require.ErrorIs(t, err, ErrOutOfOrder)

	require.Error(t, agg.AddDataPoint(ctx, "0xpool", obs(base, "1", "1", "0"), model.Granularity("7m")))
}

func TestGetWindowEmpty(t *testing.T) {
	agg := NewAggregator(Config{}, nil)
	points := agg.GetWindow("0xnone", model.GranularityHour, base, base.Add(time.Hour))
	require.NotNil(t, points)
	require.Empty(t, points)
}

func TestGetLast24h(t *testing.T) {
	now := base.Add(30 * time.Hour).Add(30 * time.Minute)
	agg := NewAggregator(Config{Now: fixedClock(now)}, nil)
	ctx := context.Background()

	empty := agg.GetLast24h("0xpool")
	require.True(t, empty.Volume.IsZero())
	require.True(t, empty.Fees.IsZero())
	require.Empty(t, empty.PriceHistory)

	// one sample per hour from base to now
	for h := 0; h <= 30; h++ {
		require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(time.Duration(h)*time.Hour), "1", "10", "1"), model.GranularityHour))
	}

	last := agg.GetLast24h("0xpool")
	require.Len(t, last.Points, 24)
	require.Len(t, last.PriceHistory, 24)
	require.True(t, last.Volume.Equal(decimal.NewFromInt(240)))
	require.True(t, last.Fees.Equal(decimal.NewFromInt(24)))
}

func TestPrune(t *testing.T) {
	store := &mockStore{}
	now := base.Add(100 * 24 * time.Hour)
	cutoff := now.Add(-DefaultRetention)
	store.On("AppendPoint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Prune", mock.Anything, cutoff).Return(int64(3), nil).Once()

	agg := NewAggregator(Config{Store: store, Now: fixedClock(now)}, nil)
	ctx := context.Background()

	days := []int{0, 5, 20, 95}
	for _, day := range days {
		require.NoError(t, agg.AddDataPoint(ctx, "0xpool", obs(base.Add(time.Duration(day)*24*time.Hour), "1", "1", "0"), model.GranularityDay))
	}

	removed, err := agg.Prune(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	points := agg.GetWindow("0xpool", model.GranularityDay, base, now)
	require.Len(t, points, 2)
	store.AssertExpectations(t)
}

func TestWarm(t *testing.T) {
	store := &mockStore{}
	now := base.Add(48 * time.Hour)
	since := now.Add(-24 * time.Hour)
	recorded := []model.HistoricalDataPoint{
		obs(base.Add(30*time.Hour), "1.1", "2", "0.1"),
		obs(base.Add(29*time.Hour), "1.0", "1", "0.1"),
	}
	store.On("QueryWindow", mock.Anything, "0xpool", model.GranularityHour, since, now).Return(recorded, nil).Once()

	agg := NewAggregator(Config{Store: store, Now: fixedClock(now)}, nil)
	require.NoError(t, agg.Warm(context.Background(), "0xPOOL", model.GranularityHour, since))

	points := agg.GetWindow("0xpool", model.GranularityHour, since, now)
	require.Len(t, points, 2)
	require.True(t, points[0].Timestamp.Before(points[1].Timestamp))

	err := agg.AddDataPoint(context.Background(), "0xpool", obs(base.Add(29*time.Hour), "1", "1", "0"), model.GranularityHour)
	require.ErrorIs(t, err, ErrOutOfOrder)
	store.AssertExpectations(t)
}

func TestForget(t *testing.T) {
	agg := NewAggregator(Config{}, nil)
	require.NoError(t, agg.AddDataPoint(context.Background(), "0xpool", obs(base, "1", "1", "0"), model.GranularityHour))
	agg.Forget("0xPool")
	require.Empty(t, agg.GetWindow("0xpool", model.GranularityHour, base, base.Add(time.Hour)))
}

func TestConcurrentWriters(t *testing.T) {
	agg := NewAggregator(Config{Now: fixedClock(base.Add(time.Hour))}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			pool := fmt.Sprintf("0xpool%d", p)
			for i := 0; i < 50; i++ {
				_ = agg.AddDataPoint(ctx, pool, obs(base.Add(time.Duration(i)*time.Second), "1", "1", "0"), model.GranularityHour)
			}
		}(p)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = agg.Prune(ctx, base)
	}()
	wg.Wait()

	for p := 0; p < 8; p++ {
		last := agg.GetLast24h(fmt.Sprintf("0xpool%d", p))
		require.True(t, last.Volume.Equal(decimal.NewFromInt(50)))
	}
}
