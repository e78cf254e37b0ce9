package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"liquidityPilot/internal/cache"
	"liquidityPilot/internal/history"
	"liquidityPilot/internal/strategy"
)

// DefaultInterval is the refresh tick of the scheduling loop.
const DefaultInterval = 30 * time.Second

// Config controls the scheduling loop.
type Config struct {
	Interval time.Duration
	// PruneSchedule is a cron spec for history retention; empty disables it.
	PruneSchedule string
	Now           func() time.Time
}

// CycleReport summarizes one refresh/analyze/execute pass.
type CycleReport struct {
	CycleID  string
	Pools    int
	Actions  int
	Executed int
	Failed   int
}

// Engine drives the refresh, analysis and execution loop.
type Engine struct {
	cache     *cache.PoolStateCache
	history   *history.Aggregator
	strategy  strategy.Strategy
	positions *PositionBook
	cfg       Config
	logger    *zap.Logger
}

func New(poolCache *cache.PoolStateCache, hist *history.Aggregator, strat strategy.Strategy, positions *PositionBook, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		cache:     poolCache,
		history:   hist,
		strategy:  strat,
		positions: positions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes a cycle immediately and then on every tick until ctx is
// canceled. Cycles never overlap.
func (e *Engine) Run(ctx context.Context) error {
	if e.cache == nil || e.strategy == nil || e.positions == nil {
		return fmt.Errorf("engine dependencies are not set")
	}

	if e.cfg.PruneSchedule != "" && e.history != nil {
		scheduler := cron.New(cron.WithLocation(time.UTC))
		if _, err := scheduler.AddFunc(e.cfg.PruneSchedule, func() { e.Prune(ctx) }); err != nil {
			return fmt.Errorf("prune schedule %q: %w", e.cfg.PruneSchedule, err)
		}
		scheduler.Start()
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.logger.Info("engine start",
		zap.Duration("interval", e.cfg.Interval),
		zap.String("prune_schedule", e.cfg.PruneSchedule),
		zap.String("strategy", e.strategy.Name()),
	)
	e.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stop")
			return nil
		case <-ticker.C:
			e.Cycle(ctx)
		}
	}
}

// Cycle refreshes every pool, analyzes the market and executes the
// accepted actions in priority order.
func (e *Engine) Cycle(ctx context.Context) CycleReport {
	report := CycleReport{CycleID: uuid.NewString()}
	logger := e.logger.With(zap.String("cycle_id", report.CycleID))
	start := time.Now()

	if err := e.cache.RefreshAll(ctx); err != nil {
		logger.Warn("refresh incomplete", zap.Error(err))
	}
	if ctx.Err() != nil {
		return report
	}

	market := e.cache.GetMarketData(ctx)
	e.positions.Accrue(market)
	market.Positions = e.positions.Snapshot()
	report.Pools = len(market.Snapshots)

	actions, err := e.strategy.Analyze(ctx, market)
	if err != nil {
		logger.Error("analyze failed", zap.Error(err))
		return report
	}
	report.Actions = len(actions)

	for _, action := range actions {
		if ctx.Err() != nil {
			break
		}
		result, err := e.strategy.Execute(ctx, action)
		if err != nil {
			logger.Error("execute failed", zap.String("action_id", action.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if !result.Success {
			report.Failed++
			continue
		}
		report.Executed++
		e.positions.Apply(action, result, market)
	}

	if err := e.positions.Save(e.cfg.Now()); err != nil {
		logger.Warn("save positions failed", zap.Error(err))
	}

	logger.Info("cycle complete",
		zap.Int("pools", report.Pools),
		zap.Int("actions", report.Actions),
		zap.Int("executed", report.Executed),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report
}

// Prune applies history retention.
func (e *Engine) Prune(ctx context.Context) {
	if e.history == nil {
		return
	}
	removed, err := e.history.Prune(ctx, e.cfg.Now())
	if err != nil {
		e.logger.Warn("prune failed", zap.Error(err))
		return
	}
	e.logger.Info("prune complete", zap.Int("removed", removed))
}
