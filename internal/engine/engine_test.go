package engine

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/cache"
	"liquidityPilot/internal/executor"
	"liquidityPilot/internal/history"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/strategy"
)

const testPool = "0x1111111111111111111111111111111111111111"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubProvider struct {
	calls  atomic.Int32
	active atomic.Int32
}

func (p *stubProvider) FetchPoolSnapshot(_ context.Context, address string) (model.PoolState, error) {
	p.calls.Add(1)
	active := p.active.Load()
	bins := make([]model.Bin, 0, 5)
	for id := active - 2; id <= active+2; id++ {
		bins = append(bins, model.Bin{
			ID:      id,
			Price:   decimal.NewFromInt(1),
			AmountX: decimal.NewFromInt(2000),
			AmountY: decimal.NewFromInt(2000),
		})
	}
	return model.PoolState{
		Pool: model.Pool{
			Address:   address,
			BinStep:   10,
			ActiveBin: active,
			FeeParams: model.FeeParameters{BaseFactor: decimal.NewFromInt(5000)},
		},
		Bins:   bins,
		Price:  decimal.NewFromInt(1),
		Volume: decimal.NewFromInt(5000),
		Fees:   decimal.NewFromInt(10),
	}, nil
}

type fixture struct {
	clk       *clock
	provider  *stubProvider
	positions *PositionBook
	engine    *Engine
}

func newFixture(t *testing.T, positionsPath string) fixture {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	provider := &stubProvider{}
	provider.active.Store(1000)

	hist := history.NewAggregator(history.Config{Now: clk.Now}, nil)
	poolCache := cache.New(provider, hist, cache.Config{Now: clk.Now}, nil)
	require.NoError(t, poolCache.AddPool(context.Background(), testPool))

	strat := strategy.NewBalancedLiquidity(nil)
	require.NoError(t, strat.Initialize(context.Background(), strategy.Config{
		Pools: []string{testPool},
		Risk: model.RiskParameters{
			MaxPositionSize:     decimal.NewFromInt(10000),
			MaxSlippage:         decimal.RequireFromString("0.01"),
			VolatilityThreshold: decimal.RequireFromString("0.8"),
			ConcentrationLimit:  decimal.RequireFromString("0.1"),
		},
		Executor: executor.NewDryRun(filepath.Join(t.TempDir(), "actions.jsonl"), clk.Now, nil),
		Now:      clk.Now,
	}))

	positions, err := NewPositionBook(positionsPath)
	require.NoError(t, err)

	return fixture{
		clk:       clk,
		provider:  provider,
		positions: positions,
		engine:    New(poolCache, hist, strat, positions, Config{Interval: 10 * time.Millisecond, Now: clk.Now}, nil),
	}
}

func TestCycleOpensPosition(t *testing.T) {
	f := newFixture(t, "")

	report := f.engine.Cycle(context.Background())
	require.NotEmpty(t, report.CycleID)
	require.Equal(t, 1, report.Pools)
	require.Equal(t, 1, report.Actions)
	require.Equal(t, 1, report.Executed)

	positions := f.positions.Snapshot()
	require.Contains(t, positions, testPool)
	pos := positions[testPool]
	require.Equal(t, model.BinRange{Lower: 990, Upper: 1010}, pos.Range)
	require.True(t, pos.Liquidity.IsPositive())
	require.NotEmpty(t, pos.ID)

	// the position is open, so a second cycle without movement does nothing
	f.clk.Advance(time.Minute)
	report = f.engine.Cycle(context.Background())
	require.Equal(t, 0, report.Actions)
}

func TestCycleRebalancesAfterMove(t *testing.T) {
	f := newFixture(t, "")
	f.engine.Cycle(context.Background())

	f.clk.Advance(2 * time.Hour)
	f.provider.active.Store(1012)
	report := f.engine.Cycle(context.Background())
	require.Equal(t, 1, report.Executed)
	require.Equal(t, model.BinRange{Lower: 1002, Upper: 1022}, f.positions.Snapshot()[testPool].Range)
}

func TestPositionsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "positions.json")
	f := newFixture(t, path)
	f.engine.Cycle(context.Background())

	reloaded, err := NewPositionBook(path)
	require.NoError(t, err)
	require.Equal(t, f.positions.Snapshot()[testPool].ID, reloaded.Snapshot()[testPool].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, "")
	f.engine.cfg.PruneSchedule = "@every 1h"
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.Eventually(t, func() bool { return f.provider.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	f := newFixture(t, "")
	f.engine.cfg.PruneSchedule = "not a schedule"
	require.Error(t, f.engine.Run(context.Background()))
}

func TestPositionBookAccrueAndApply(t *testing.T) {
	book, err := NewPositionBook("")
	require.NoError(t, err)
	at := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	snap := &model.PoolSnapshot{
		Pool:    model.Pool{Address: testPool, ActiveBin: 100},
		Price:   decimal.NewFromInt(2),
		Metrics: model.PoolMetrics{APR: decimal.NewFromInt(365)},
	}
	market := model.MarketData{Snapshots: map[string]*model.PoolSnapshot{testPool: snap}, ObservedAt: at}

	create := model.NewAction("s", model.ActionCreatePosition, testPool, model.ActionParams{
		Range:           &model.BinRange{Lower: 90, Upper: 110},
		LiquidityAmount: decimal.NewFromInt(1000),
	}, at)
	book.Apply(create, model.ExecutionResult{Success: true, TransactionID: "tx-1", ExecutedAt: at}, market)
	require.True(t, book.Snapshot()[testPool].EntryPrice.Equal(decimal.NewFromInt(2)))

	// 365% APR on 1000 for one day earns 10
	market.ObservedAt = at.Add(24 * time.Hour)
	book.Accrue(market)
	require.True(t, book.Snapshot()[testPool].UnclaimedFee.Equal(decimal.NewFromInt(10)), book.Snapshot()[testPool].UnclaimedFee.String())

	collect := model.NewAction("s", model.ActionCollectFees, testPool, model.ActionParams{PositionID: "tx-1"}, at)
	book.Apply(collect, model.ExecutionResult{Success: true}, market)
	require.True(t, book.Snapshot()[testPool].UnclaimedFee.IsZero())

	// 1.5s of a 3650-per-year accrual, counted in milliseconds
	market.ObservedAt = market.ObservedAt.Add(1500 * time.Millisecond)
	book.Accrue(market)
	want := decimal.NewFromInt(3650 * 1500).DivRound(decimal.NewFromInt(31536000000), metrics.Precision)
	require.True(t, book.Snapshot()[testPool].UnclaimedFee.Equal(want), book.Snapshot()[testPool].UnclaimedFee.String())

	failed := model.NewAction("s", model.ActionEmergencyExit, testPool, model.ActionParams{PositionID: "tx-1"}, at)
	book.Apply(failed, model.ExecutionResult{Success: false}, market)
	require.Contains(t, book.Snapshot(), testPool)

	book.Apply(failed, model.ExecutionResult{Success: true}, market)
	require.Empty(t, book.Snapshot())
}
