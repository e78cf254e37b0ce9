package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// DefaultRetention is how long recorded points are kept.
const DefaultRetention = 90 * 24 * time.Hour

// ErrOutOfOrder is returned for observations older than the open bucket.
var ErrOutOfOrder = errors.New("data point out of order")

// Store persists closed buckets.
type Store interface {
	AppendPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error
	QueryWindow(ctx context.Context, pool string, granularity model.Granularity, start, end time.Time) ([]model.HistoricalDataPoint, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Config controls aggregation behavior.
type Config struct {
	Retention time.Duration
	Store     Store
	Now       func() time.Time
}

// Last24h aggregates the trailing day of hourly samples.
type Last24h struct {
	Volume       decimal.Decimal
	Fees         decimal.Decimal
	PriceHistory []decimal.Decimal
	Points       []model.HistoricalDataPoint
}

type seriesKey struct {
	pool        string
	granularity model.Granularity
}

type series struct {
	mu     sync.RWMutex
	points []model.HistoricalDataPoint
	open   *accumulator
}

// Aggregator owns the per-pool time series.
type Aggregator struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	series map[seriesKey]*series
}

func NewAggregator(cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		cfg:    cfg,
		logger: logger,
		series: make(map[seriesKey]*series),
	}
}

// AddDataPoint records an observation. Observations inside the open bucket
// are merged into it; one that opens a newer bucket closes the current one,
// which is then immutable and handed to the store.
func (a *Aggregator) AddDataPoint(ctx context.Context, pool string, point model.HistoricalDataPoint, granularity model.Granularity) error {
	width := granularity.Duration()
	if width == 0 {
		return fmt.Errorf("unknown granularity: %s", granularity)
	}
	if point.Timestamp.IsZero() {
		return fmt.Errorf("data point timestamp is required")
	}

	s := a.getOrCreate(seriesKey{pool: poolKey(pool), granularity: granularity})
	start := windowStart(point.Timestamp, width)

	var closed *model.HistoricalDataPoint
	s.mu.Lock()
	switch {
	case s.open == nil:
		if n := len(s.points); n > 0 && !start.After(s.points[n-1].Timestamp) {
			s.mu.Unlock()
			return fmt.Errorf("pool %s at %s: %w", pool, point.Timestamp.Format(time.RFC3339), ErrOutOfOrder)
		}
		s.open = newAccumulator(point, start, width)
	case start.Equal(s.open.windowStart):
		if point.Timestamp.Before(s.open.lastTS) {
			s.mu.Unlock()
			return fmt.Errorf("pool %s at %s: %w", pool, point.Timestamp.Format(time.RFC3339), ErrOutOfOrder)
		}
		s.open.add(point)
	case start.After(s.open.windowStart):
		flushed := s.open.snapshot()
		closed = &flushed
		s.points = append(s.points, flushed)
		s.open = newAccumulator(point, start, width)
	default:
		s.mu.Unlock()
		return fmt.Errorf("pool %s at %s: %w", pool, point.Timestamp.Format(time.RFC3339), ErrOutOfOrder)
	}
	s.mu.Unlock()

	if closed != nil && a.cfg.Store != nil {
		if err := a.cfg.Store.AppendPoint(ctx, poolKey(pool), *closed, granularity); err != nil {
			a.logger.Warn("persist data point", zap.String("pool", pool), zap.String("granularity", string(granularity)), zap.Error(err))
		}
	}
	return nil
}

// GetWindow returns points with start <= timestamp <= end in ascending
// order. The open bucket is included as a provisional point.
func (a *Aggregator) GetWindow(pool string, granularity model.Granularity, start, end time.Time) []model.HistoricalDataPoint {
	s := a.get(seriesKey{pool: poolKey(pool), granularity: granularity})
	if s == nil {
		return []model.HistoricalDataPoint{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	from := sort.Search(len(s.points), func(i int) bool {
		return !s.points[i].Timestamp.Before(start)
	})
	out := make([]model.HistoricalDataPoint, 0, len(s.points)-from+1)
	for _, p := range s.points[from:] {
		if p.Timestamp.After(end) {
			break
		}
		out = append(out, p)
	}
	if s.open != nil {
		ts := s.open.windowStart
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, s.open.snapshot())
		}
	}
	return out
}

// GetLast24h sums hourly volume and fees over the trailing 24 hours.
func (a *Aggregator) GetLast24h(pool string) Last24h {
	now := a.cfg.Now().UTC()
	points := a.GetWindow(pool, model.GranularityHour, now.Add(-24*time.Hour).Add(time.Nanosecond), now)

	out := Last24h{
		Volume:       decimal.Zero,
		Fees:         decimal.Zero,
		PriceHistory: make([]decimal.Decimal, 0, len(points)),
		Points:       points,
	}
	for _, p := range points {
		out.Volume = out.Volume.Add(p.Volume)
		out.Fees = out.Fees.Add(p.Fees)
		out.PriceHistory = append(out.PriceHistory, p.Price)
	}
	return out
}

// Warm loads recorded points from the store into an empty series.
func (a *Aggregator) Warm(ctx context.Context, pool string, granularity model.Granularity, since time.Time) error {
	if a.cfg.Store == nil {
		return nil
	}
	points, err := a.cfg.Store.QueryWindow(ctx, poolKey(pool), granularity, since, a.cfg.Now())
	if err != nil {
		return fmt.Errorf("warm history %s: %w", pool, err)
	}
	if len(points) == 0 {
		return nil
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	s := a.getOrCreate(seriesKey{pool: poolKey(pool), granularity: granularity})
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.points) > 0 || s.open != nil {
		return nil
	}
	s.points = append(s.points, points...)
	a.logger.Debug("history warmed", zap.String("pool", pool), zap.Int("points", len(points)))
	return nil
}

// Prune drops points older than the retention horizon, one series at a
// time, then prunes the store. It returns the number of in-memory points
// removed.
func (a *Aggregator) Prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-a.cfg.Retention)

	a.mu.RLock()
	all := make([]*series, 0, len(a.series))
	for _, s := range a.series {
		all = append(all, s)
	}
	a.mu.RUnlock()

	removed := 0
	for _, s := range all {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s.mu.Lock()
		idx := sort.Search(len(s.points), func(i int) bool {
			return !s.points[i].Timestamp.Before(cutoff)
		})
		if idx > 0 {
			kept := make([]model.HistoricalDataPoint, len(s.points)-idx)
			copy(kept, s.points[idx:])
			s.points = kept
			removed += idx
		}
		s.mu.Unlock()
	}

	if a.cfg.Store != nil {
		deleted, err := a.cfg.Store.Prune(ctx, cutoff)
		if err != nil {
			return removed, fmt.Errorf("prune store: %w", err)
		}
		a.logger.Info("history pruned",
			zap.Time("cutoff", cutoff),
			zap.Int("memory", removed),
			zap.Int64("store", deleted),
		)
	}
	return removed, nil
}

// Forget drops every series of a pool.
func (a *Aggregator) Forget(pool string) {
	key := poolKey(pool)
	a.mu.Lock()
	for k := range a.series {
		if k.pool == key {
			delete(a.series, k)
		}
	}
	a.mu.Unlock()
}

func (a *Aggregator) get(key seriesKey) *series {
	a.mu.RLock()
	s := a.series[key]
	a.mu.RUnlock()
	return s
}

func (a *Aggregator) getOrCreate(key seriesKey) *series {
	if s := a.get(key); s != nil {
		return s
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.series[key]
	if !ok {
		s = &series{}
		a.series[key] = s
	}
	return s
}

func poolKey(address string) string {
	return strings.ToLower(address)
}
