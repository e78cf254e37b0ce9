package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/risk"
)

// BalancedName is the registry name of the balanced liquidity policy.
const BalancedName = "balanced-liquidity"

var (
	// createVolatilityLimit is the hard cap for new positions, independent
	// of the configured ceiling.
	createVolatilityLimit = decimal.RequireFromString("0.4")
	priorityVolatility    = decimal.RequireFromString("0.3")
	priorityAPR           = decimal.NewFromInt(20)
	aprPivot              = decimal.NewFromInt(20)
	liquidityPivot        = decimal.NewFromInt(100000)
	baseAllocation        = decimal.RequireFromString("0.1")
	hundred               = decimal.NewFromInt(100)
)

// BalancedConfig parameterizes BalancedLiquidity. Zero values take defaults.
type BalancedConfig struct {
	// BinRadius is N, the number of bins kept on each side of the active bin.
	BinRadius                  int32
	RebalanceThresholdFraction decimal.Decimal
	RebalanceCooldown          time.Duration
	FeeCollectThreshold        decimal.Decimal
	VolatilityCeiling          decimal.Decimal
	EmergencyVolatility        decimal.Decimal
	MinAPR                     decimal.Decimal
	MinTVL                     decimal.Decimal
	MinLiquidity               decimal.Decimal
	MaxLiquidity               decimal.Decimal
	Slippage                   decimal.Decimal
}

// DefaultBalancedConfig returns the stock parameters.
func DefaultBalancedConfig() BalancedConfig {
	return BalancedConfig{
		BinRadius:                  10,
		RebalanceThresholdFraction: decimal.RequireFromString("0.05"),
		RebalanceCooldown:          time.Hour,
		FeeCollectThreshold:        decimal.NewFromInt(10),
		VolatilityCeiling:          decimal.RequireFromString("0.4"),
		EmergencyVolatility:        decimal.NewFromInt(1),
		MinAPR:                     decimal.NewFromInt(10),
		MinTVL:                     decimal.NewFromInt(10000),
		Slippage:                   decimal.RequireFromString("0.005"),
	}
}

func (c BalancedConfig) withDefaults(riskParams model.RiskParameters) BalancedConfig {
	d := DefaultBalancedConfig()
	if c.BinRadius == 0 {
		c.BinRadius = d.BinRadius
	}
	if c.RebalanceThresholdFraction.IsZero() {
		c.RebalanceThresholdFraction = d.RebalanceThresholdFraction
	}
	if c.RebalanceCooldown == 0 {
		c.RebalanceCooldown = d.RebalanceCooldown
	}
	if c.FeeCollectThreshold.IsZero() {
		c.FeeCollectThreshold = d.FeeCollectThreshold
	}
	if c.VolatilityCeiling.IsZero() {
		c.VolatilityCeiling = d.VolatilityCeiling
	}
	if c.EmergencyVolatility.IsZero() {
		c.EmergencyVolatility = d.EmergencyVolatility
	}
	if c.MinAPR.IsZero() {
		c.MinAPR = d.MinAPR
	}
	if c.MinTVL.IsZero() {
		c.MinTVL = d.MinTVL
	}
	if c.MaxLiquidity.IsZero() {
		c.MaxLiquidity = riskParams.MaxPositionSize
	}
	if c.Slippage.IsZero() {
		c.Slippage = d.Slippage
	}
	return c
}

func (c BalancedConfig) validate() error {
	if c.BinRadius <= 0 {
		return fmt.Errorf("bin radius must be > 0")
	}
	if c.RebalanceThresholdFraction.IsNegative() || c.RebalanceThresholdFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("rebalance threshold fraction %s outside [0,1]", c.RebalanceThresholdFraction)
	}
	if c.RebalanceCooldown < 0 {
		return fmt.Errorf("rebalance cooldown must be >= 0")
	}
	if c.MinLiquidity.IsNegative() || c.MinLiquidity.GreaterThan(c.MaxLiquidity) {
		return fmt.Errorf("liquidity bounds [%s, %s] invalid", c.MinLiquidity, c.MaxLiquidity)
	}
	if c.EmergencyVolatility.LessThan(c.VolatilityCeiling) {
		return fmt.Errorf("emergency volatility %s below ceiling %s", c.EmergencyVolatility, c.VolatilityCeiling)
	}
	return nil
}

// rebalanceState is the hysteresis bookkeeping of one pool. Movement is
// measured from anchor, the centre of the range set by the last rebalance
// (or of the open position before any), not from the last observed bin.
type rebalanceState struct {
	anchor        int32
	lastRebalance time.Time
}

// BalancedLiquidity keeps a band of N bins on each side of the active bin.
type BalancedLiquidity struct {
	logger *zap.Logger
	life   lifecycle

	mu       sync.RWMutex
	cfg      BalancedConfig
	riskCfg  model.RiskParameters
	pools    []string
	executor Executor
	filter   *risk.Filter
	now      func() time.Time
	book     map[string]rebalanceState
}

func NewBalancedLiquidity(logger *zap.Logger) *BalancedLiquidity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalancedLiquidity{
		logger: logger.With(zap.String("strategy", BalancedName)),
		book:   make(map[string]rebalanceState),
	}
}

func (b *BalancedLiquidity) Name() string { return BalancedName }

func (b *BalancedLiquidity) State() State { return b.life.current() }

// Initialize validates cfg and makes the strategy usable.
func (b *BalancedLiquidity) Initialize(ctx context.Context, cfg Config) error {
	if err := cfg.Risk.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(cfg.Pools) == 0 {
		return fmt.Errorf("%w: at least one pool is required", ErrInvalidConfig)
	}
	if cfg.Executor == nil {
		return fmt.Errorf("%w: executor is required", ErrInvalidConfig)
	}
	balanced := cfg.Balanced.withDefaults(cfg.Risk)
	if err := balanced.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	pools := make([]string, 0, len(cfg.Pools))
	seen := make(map[string]struct{}, len(cfg.Pools))
	for _, p := range cfg.Pools {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			return fmt.Errorf("%w: empty pool address", ErrInvalidConfig)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pools = append(pools, key)
	}
	sort.Strings(pools)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	if s := b.life.current(); s == StateCleanedUp {
		return ErrCleanedUp
	}
	b.mu.Lock()
	b.cfg = balanced
	b.riskCfg = cfg.Risk
	b.pools = pools
	b.executor = cfg.Executor
	b.now = now
	b.filter = risk.NewFilter(cfg.Risk, b.logger, risk.CheckerFunc(b.Check))
	b.mu.Unlock()
	if err := b.life.initialize(); err != nil {
		return err
	}

	b.logger.Info("strategy initialized", zap.Strings("pools", pools), zap.Int32("bin_radius", balanced.BinRadius))
	return nil
}

// Analyze proposes actions for every configured pool. A pool that cannot
// be analyzed is logged and skipped.
func (b *BalancedLiquidity) Analyze(ctx context.Context, market model.MarketData) ([]model.StrategyAction, error) {
	if err := b.life.beginAnalyze(); err != nil {
		return nil, err
	}
	defer b.life.endAnalyze()

	b.mu.RLock()
	pools := b.pools
	filter := b.filter
	now := b.now
	b.mu.RUnlock()

	if market.ObservedAt.IsZero() {
		market.ObservedAt = now()
	}

	candidates := make([]model.StrategyAction, 0)
	for _, pool := range pools {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actions, err := b.analyzePool(pool, market)
		if err != nil {
			b.logger.Warn("pool analysis failed", zap.String("pool", pool), zap.Error(err))
			continue
		}
		candidates = append(candidates, actions...)
	}

	out := filter.Apply(candidates, market)
	b.logger.Debug("analysis done", zap.Int("candidates", len(candidates)), zap.Int("accepted", len(out)))
	return out, nil
}

func (b *BalancedLiquidity) analyzePool(pool string, market model.MarketData) ([]model.StrategyAction, error) {
	snap, ok := market.Snapshots[pool]
	if !ok || snap == nil {
		return nil, fmt.Errorf("no snapshot")
	}

	b.mu.RLock()
	cfg := b.cfg
	state, tracked := b.book[pool]
	b.mu.RUnlock()

	m := snap.Metrics
	active := snap.Pool.ActiveBin
	now := market.ObservedAt
	band := model.BinRange{Lower: active - cfg.BinRadius, Upper: active + cfg.BinRadius}

	position, open := market.Positions[pool]
	if !open {
		if m.Volatility.LessThan(cfg.VolatilityCeiling) && m.APR.GreaterThan(cfg.MinAPR) && m.TVL.GreaterThan(cfg.MinTVL) {
			size := b.positionSize(m)
			er := m.APR.Div(hundred)
			action := model.NewAction(BalancedName, model.ActionCreatePosition, pool, model.ActionParams{
				Range:           &band,
				LiquidityAmount: size,
				Slippage:        cfg.Slippage,
			}, now)
			action.ExpectedReturn = &er
			action.EstimatedCost = size.Mul(cfg.Slippage)
			action.Reason = fmt.Sprintf("apr %s%% volatility %s tvl %s", m.APR.StringFixed(2), m.Volatility.StringFixed(4), m.TVL.StringFixed(2))
			return []model.StrategyAction{b.prioritize(action, m)}, nil
		}
		return nil, nil
	}

	if m.Volatility.GreaterThan(cfg.EmergencyVolatility) {
		action := model.NewAction(BalancedName, model.ActionEmergencyExit, pool, model.ActionParams{
			Range:           &position.Range,
			LiquidityAmount: position.Liquidity,
			Slippage:        cfg.Slippage,
			PositionID:      position.ID,
		}, now)
		action.EstimatedCost = position.Liquidity.Mul(cfg.Slippage)
		action.Reason = fmt.Sprintf("volatility %s above %s", m.Volatility.StringFixed(4), cfg.EmergencyVolatility)
		return []model.StrategyAction{b.prioritize(action, m)}, nil
	}

	actions := make([]model.StrategyAction, 0, 2)
	if position.UnclaimedFee.GreaterThan(cfg.FeeCollectThreshold) {
		var er decimal.Decimal
		if position.Liquidity.IsPositive() {
			er = position.UnclaimedFee.DivRound(position.Liquidity, metrics.Precision)
		}
		action := model.NewAction(BalancedName, model.ActionCollectFees, pool, model.ActionParams{
			PositionID: position.ID,
		}, now)
		action.ExpectedReturn = &er
		action.Reason = fmt.Sprintf("unclaimed fees %s above %s", position.UnclaimedFee, cfg.FeeCollectThreshold)
		actions = append(actions, b.prioritize(action, m))
	}

	anchor := (position.Range.Lower + position.Range.Upper) / 2
	var last time.Time
	if tracked {
		anchor = state.anchor
		last = state.lastRebalance
	}
	moved := active - anchor
	if moved < 0 {
		moved = -moved
	}
	if cooldownElapsed(last, now, cfg.RebalanceCooldown) && moved >= rebalanceThreshold(cfg) {
		action := model.NewAction(BalancedName, model.ActionRebalance, pool, model.ActionParams{
			Range:           &band,
			LiquidityAmount: position.Liquidity,
			Slippage:        cfg.Slippage,
			PositionID:      position.ID,
		}, now)
		action.EstimatedCost = position.Liquidity.Mul(cfg.Slippage)
		action.Reason = fmt.Sprintf("active bin %d moved %d bins from %d", active, moved, anchor)
		actions = append(actions, b.prioritize(action, m))
	}
	return actions, nil
}

// positionSize scales 10% of the max position size by APR, volatility and
// liquidity multipliers, then bounds it to the configured range.
func (b *BalancedLiquidity) positionSize(m model.PoolMetrics) decimal.Decimal {
	b.mu.RLock()
	cfg := b.cfg
	maxSize := b.riskCfg.MaxPositionSize
	b.mu.RUnlock()

	one := decimal.NewFromInt(1)
	aprMult := metrics.Clamp(m.APR.DivRound(aprPivot, metrics.Precision), decimal.RequireFromString("0.5"), decimal.NewFromInt(2))
	volMult := decimal.Max(decimal.RequireFromString("0.3"), one.Sub(m.Volatility))
	liqMult := metrics.Clamp(m.TVL.DivRound(liquidityPivot, metrics.Precision), decimal.RequireFromString("0.5"), decimal.RequireFromString("1.5"))

	size := maxSize.Mul(baseAllocation).Mul(aprMult).Mul(volMult).Mul(liqMult)
	return metrics.Clamp(size, cfg.MinLiquidity, cfg.MaxLiquidity).Round(metrics.Precision)
}

func (b *BalancedLiquidity) prioritize(action model.StrategyAction, m model.PoolMetrics) model.StrategyAction {
	p := 50
	switch action.Type {
	case model.ActionEmergencyExit:
		p += 50
	case model.ActionCollectFees:
		p += 30
	}
	if action.ExpectedReturn != nil && action.ExpectedReturn.IsPositive() {
		bonus := decimal.Min(decimal.NewFromInt(20), action.ExpectedReturn.Mul(hundred))
		p += int(bonus.IntPart())
	}
	if m.Volatility.GreaterThan(priorityVolatility) {
		p -= 20
	}
	if m.APR.GreaterThan(priorityAPR) {
		p += 15
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return action.WithPriority(p)
}

// Check holds the policy-specific limits: no new position above 0.4
// volatility and no rebalance inside the cooldown.
func (b *BalancedLiquidity) Check(action model.StrategyAction, market model.MarketData) error {
	switch action.Type {
	case model.ActionCreatePosition:
		if m, ok := market.Metrics(action.Pool); ok && m.Volatility.GreaterThan(createVolatilityLimit) {
			return fmt.Errorf("%w: create at volatility %s", risk.ErrVolatilityTooHigh, m.Volatility)
		}
	case model.ActionRebalance:
		b.mu.RLock()
		state, ok := b.book[action.Pool]
		cooldown := b.cfg.RebalanceCooldown
		b.mu.RUnlock()
		if ok && !cooldownElapsed(state.lastRebalance, market.ObservedAt, cooldown) {
			return fmt.Errorf("rebalance cooldown: last at %s", state.lastRebalance.Format(time.RFC3339))
		}
	}
	return nil
}

// Execute hands the action to the executor and updates the rebalance
// bookkeeping when a range-setting action succeeds.
func (b *BalancedLiquidity) Execute(ctx context.Context, action model.StrategyAction) (model.ExecutionResult, error) {
	if err := b.life.usable(); err != nil {
		return model.ExecutionResult{}, err
	}
	b.mu.RLock()
	executor := b.executor
	now := b.now
	b.mu.RUnlock()

	result := executor.Execute(ctx, action)
	if !result.Success {
		b.logger.Warn("action failed",
			zap.String("action_id", action.ID),
			zap.String("type", string(action.Type)),
			zap.String("error", result.Error),
		)
		return result, nil
	}

	at := result.ExecutedAt
	if at.IsZero() {
		at = now()
	}
	b.mu.Lock()
	switch {
	case action.Type.IsEntry() && action.Params.Range != nil:
		r := action.Params.Range
		b.book[action.Pool] = rebalanceState{anchor: (r.Lower + r.Upper) / 2, lastRebalance: at}
	case action.Type.IsExit():
		delete(b.book, action.Pool)
	}
	b.mu.Unlock()
	return result, nil
}

// Cleanup drops the bookkeeping. The instance cannot be used afterwards.
func (b *BalancedLiquidity) Cleanup(ctx context.Context) error {
	b.life.cleanup()
	b.mu.Lock()
	b.book = make(map[string]rebalanceState)
	b.mu.Unlock()
	b.logger.Info("strategy cleaned up")
	return nil
}

func rebalanceThreshold(cfg BalancedConfig) int32 {
	n := decimal.NewFromInt(int64(cfg.BinRadius)).Mul(cfg.RebalanceThresholdFraction).Floor().IntPart()
	if n < 1 {
		n = 1
	}
	return int32(n)
}

func cooldownElapsed(last, now time.Time, cooldown time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= cooldown
}
