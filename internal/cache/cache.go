package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"liquidityPilot/internal/history"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
)

// DefaultTTL is how long a snapshot is served without a refresh.
const DefaultTTL = 30 * time.Second

// ErrPoolInit is returned when a pool cannot be added.
var ErrPoolInit = errors.New("pool init failed")

// errPoolRemoved aborts a refresh whose pool was removed while it fetched.
var errPoolRemoved = errors.New("pool removed")

// Provider fetches the current state of a pool.
type Provider interface {
	FetchPoolSnapshot(ctx context.Context, address string) (model.PoolState, error)
}

// PoolSink records pool descriptors when pools start being tracked.
type PoolSink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Config controls refresh behavior.
type Config struct {
	TTL         time.Duration
	Concurrency int
	Retries     int
	RetryDelay  time.Duration
	// WarmWindow is how much recorded history is loaded when a pool is added.
	WarmWindow time.Duration
	Sink       PoolSink
	Now        func() time.Time
}

type entry struct {
	snapshot atomic.Pointer[model.PoolSnapshot]
}

// PoolStateCache holds the latest snapshot of every tracked pool.
type PoolStateCache struct {
	provider Provider
	history  *history.Aggregator
	cfg      Config
	retry    retryPolicy
	logger   *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	pools map[string]*entry
}

func New(provider Provider, hist *history.Aggregator, cfg Config, logger *zap.Logger) *PoolStateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.WarmWindow <= 0 {
		cfg.WarmWindow = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &PoolStateCache{
		provider: provider,
		history:  hist,
		cfg:      cfg,
		retry: retryPolicy{
			retries:   cfg.Retries,
			baseDelay: cfg.RetryDelay,
			maxDelay:  cfg.TTL,
		},
		logger: logger,
		pools:  make(map[string]*entry),
	}
}

// AddPool starts tracking a pool. The initial snapshot must succeed;
// adding a tracked pool again only logs a warning.
func (c *PoolStateCache) AddPool(ctx context.Context, address string) error {
	key := poolKey(address)
	if key == "" {
		return fmt.Errorf("%w: empty address", ErrPoolInit)
	}
	if c.get(key) != nil {
		c.logger.Warn("pool already tracked", zap.String("pool", address))
		return nil
	}

	if c.history != nil {
		since := c.cfg.Now().Add(-c.cfg.WarmWindow)
		if err := c.history.Warm(ctx, key, model.GranularityHour, since); err != nil {
			c.logger.Warn("warm history failed", zap.String("pool", address), zap.Error(err))
		}
	}

	add := func() (interface{}, error) {
		return c.load(ctx, key, nil)
	}
	v, err, _ := c.group.Do(key, add)
	if errors.Is(err, errPoolRemoved) {
		// joined a refresh of an earlier, since removed, entry
		v, err, _ = c.group.Do(key, add)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPoolInit, address, err)
	}
	snap := v.(*model.PoolSnapshot)

	c.mu.Lock()
	if _, ok := c.pools[key]; ok {
		c.mu.Unlock()
		c.logger.Warn("pool already tracked", zap.String("pool", address))
		return nil
	}
	e := &entry{}
	e.snapshot.Store(snap)
	c.pools[key] = e
	c.mu.Unlock()

	if c.cfg.Sink != nil {
		if err := c.cfg.Sink.UpsertPools(ctx, []model.Pool{snap.Pool}); err != nil {
			c.logger.Warn("record pool failed", zap.String("pool", address), zap.Error(err))
		}
	}
	c.logger.Info("pool tracked",
		zap.String("pool", address),
		zap.Int32("active_bin", snap.Pool.ActiveBin),
		zap.Uint64("block", snap.BlockNumber),
	)
	return nil
}

// GetPoolData returns the pool snapshot, refreshing it first when it is
// older than the TTL. A failed refresh serves the previous snapshot. The
// result is (nil, false) for untracked pools.
func (c *PoolStateCache) GetPoolData(ctx context.Context, address string) (*model.PoolSnapshot, bool) {
	key := poolKey(address)
	e := c.get(key)
	if e == nil {
		return nil, false
	}

	current := e.snapshot.Load()
	if current != nil && current.Age(c.cfg.Now()) < c.cfg.TTL {
		return current, true
	}

	snap, err := c.refresh(ctx, key, e, false)
	if errors.Is(err, errPoolRemoved) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("refresh failed", zap.String("pool", address), zap.Error(err))
		if current != nil {
			return current, true
		}
		return nil, false
	}
	return snap, true
}

// RemovePool stops tracking a pool. Unknown pools are ignored.
func (c *PoolStateCache) RemovePool(address string) {
	key := poolKey(address)
	c.mu.Lock()
	_, ok := c.pools[key]
	delete(c.pools, key)
	c.mu.Unlock()
	if !ok {
		return
	}

	if c.history != nil {
		c.history.Forget(key)
	}
	if f, ok := c.provider.(interface{ Forget(string) }); ok {
		f.Forget(address)
	}
	c.logger.Info("pool removed", zap.String("pool", address))
}

// Pools returns the tracked pool keys in sorted order.
func (c *PoolStateCache) Pools() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.pools))
	for key := range c.pools {
		out = append(out, key)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// GetMarketData collects the snapshot of every tracked pool that currently
// has one. Positions are left empty for the caller to fill.
func (c *PoolStateCache) GetMarketData(ctx context.Context) model.MarketData {
	data := model.MarketData{
		Snapshots:  make(map[string]*model.PoolSnapshot),
		Positions:  make(map[string]model.Position),
		ObservedAt: c.cfg.Now().UTC(),
	}
	for _, key := range c.Pools() {
		if snap, ok := c.GetPoolData(ctx, key); ok {
			data.Snapshots[key] = snap
		}
	}
	return data
}

// RefreshAll refreshes every tracked pool regardless of age. Failures are
// independent per pool and returned joined.
func (c *PoolStateCache) RefreshAll(ctx context.Context) error {
	keys := c.Pools()
	errs := make([]error, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, key := range keys {
		i, key := i, key
		e := c.get(key)
		if e == nil {
			continue
		}
		g.Go(func() error {
			_, err := c.refresh(gctx, key, e, true)
			if err != nil && !errors.Is(err, errPoolRemoved) {
				c.logger.Warn("refresh failed", zap.String("pool", key), zap.Error(err))
				errs[i] = fmt.Errorf("refresh %s: %w", key, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// refresh loads and publishes a new snapshot. Concurrent refreshes of one
// pool share a single provider call; a non-forced refresh that finds a
// snapshot published meanwhile returns it without fetching.
func (c *PoolStateCache) refresh(ctx context.Context, key string, e *entry, force bool) (*model.PoolSnapshot, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if !force {
			if cur := e.snapshot.Load(); cur != nil && cur.Age(c.cfg.Now()) < c.cfg.TTL {
				return cur, nil
			}
		}
		snap, err := c.load(ctx, key, e)
		if err != nil {
			return nil, err
		}
		e.snapshot.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PoolSnapshot), nil
}

// load fetches the pool, records the observation and computes metrics. A
// non-nil e is the tracked entry being refreshed; when the pool is no longer
// tracked by it after the fetch, nothing is recorded.
func (c *PoolStateCache) load(ctx context.Context, key string, e *entry) (*model.PoolSnapshot, error) {
	var state model.PoolState
	err := c.retry.do(ctx, func(ctx context.Context) error {
		var err error
		state, err = c.provider.FetchPoolSnapshot(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", key, err)
	}
	if err := state.Pool.Validate(); err != nil {
		return nil, err
	}

	now := c.cfg.Now().UTC()
	var window []model.HistoricalDataPoint
	if !c.record(ctx, key, e, observation(state, now)) {
		return nil, errPoolRemoved
	}
	if c.history != nil {
		window = c.history.GetLast24h(key).Points
	}

	snap := &model.PoolSnapshot{
		Pool:        state.Pool,
		Bins:        state.Bins,
		Price:       state.Price,
		BlockNumber: state.BlockNumber,
		FetchedAt:   now,
		Metrics: metrics.Compute(metrics.Input{
			Pool:           state.Pool,
			Bins:           state.Bins,
			Price:          state.Price,
			Window:         window,
			SamplesPerYear: metrics.HourlySamplesPerYear,
		}),
	}
	c.logger.Debug("pool refreshed",
		zap.String("pool", key),
		zap.Int32("active_bin", state.Pool.ActiveBin),
		zap.String("tvl", snap.Metrics.TVL.String()),
		zap.String("apr", snap.Metrics.APR.String()),
	)
	return snap, nil
}

// record adds the observation to history unless the pool was removed during
// the fetch. The read lock orders it before RemovePool's Forget.
func (c *PoolStateCache) record(ctx context.Context, key string, e *entry, point model.HistoricalDataPoint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e != nil && c.pools[key] != e {
		return false
	}
	if c.history == nil {
		return true
	}
	if err := c.history.AddDataPoint(ctx, key, point, model.GranularityHour); err != nil {
		c.logger.Warn("record observation failed", zap.String("pool", key), zap.Error(err))
	}
	return true
}

// observation turns a fetched state into one history sample. Liquidity is
// the sum over the fetched bin window.
func observation(state model.PoolState, at time.Time) model.HistoricalDataPoint {
	liqX, liqY := decimal.Zero, decimal.Zero
	for _, b := range state.Bins {
		liqX = liqX.Add(b.AmountX)
		liqY = liqY.Add(b.AmountY)
	}
	return model.HistoricalDataPoint{
		Timestamp:  at,
		Price:      state.Price,
		Volume:     state.Volume,
		Fees:       state.Fees,
		LiquidityX: liqX,
		LiquidityY: liqY,
		BinID:      state.Pool.ActiveBin,
	}
}

func (c *PoolStateCache) get(key string) *entry {
	c.mu.RLock()
	e := c.pools[key]
	c.mu.RUnlock()
	return e
}

func poolKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
