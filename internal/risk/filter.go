package risk

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

var (
	ErrPositionTooLarge         = errors.New("liquidity amount exceeds max position size")
	ErrVolatilityTooHigh        = errors.New("pool volatility exceeds threshold")
	ErrSlippageTooHigh          = errors.New("slippage exceeds max slippage")
	ErrLiquidityTooConcentrated = errors.New("pool liquidity too concentrated")
	ErrNoMarketData             = errors.New("no market data for pool")
)

// Checker is a strategy-specific gate run after the generic limits.
type Checker interface {
	Check(action model.StrategyAction, market model.MarketData) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(action model.StrategyAction, market model.MarketData) error

func (f CheckerFunc) Check(action model.StrategyAction, market model.MarketData) error {
	return f(action, market)
}

// Filter drops actions that break the risk parameters of a strategy.
type Filter struct {
	params   model.RiskParameters
	checkers []Checker
	logger   *zap.Logger
}

func NewFilter(params model.RiskParameters, logger *zap.Logger, checkers ...Checker) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{params: params, checkers: checkers, logger: logger}
}

// Check returns the first reason the action is unsafe, or nil.
func (f *Filter) Check(action model.StrategyAction, market model.MarketData) error {
	params := action.Params
	if params.LiquidityAmount.GreaterThan(f.params.MaxPositionSize) {
		return fmt.Errorf("%w: %s > %s", ErrPositionTooLarge, params.LiquidityAmount, f.params.MaxPositionSize)
	}
	if params.Slippage.GreaterThan(f.params.MaxSlippage) {
		return fmt.Errorf("%w: %s > %s", ErrSlippageTooHigh, params.Slippage, f.params.MaxSlippage)
	}

	if !action.Type.IsExit() {
		metrics, ok := market.Metrics(action.Pool)
		if !ok {
			if action.Type.IsEntry() {
				return fmt.Errorf("%w: %s", ErrNoMarketData, action.Pool)
			}
		} else {
			if metrics.Volatility.GreaterThan(f.params.VolatilityThreshold) {
				return fmt.Errorf("%w: %s > %s", ErrVolatilityTooHigh, metrics.Volatility, f.params.VolatilityThreshold)
			}
			limit := f.params.ConcentrationLimit
			if action.Type.IsEntry() && limit.IsPositive() && metrics.ConcentrationIndex.LessThan(limit) {
				return fmt.Errorf("%w: index %s < %s", ErrLiquidityTooConcentrated, metrics.ConcentrationIndex, limit)
			}
		}
	}

	for _, checker := range f.checkers {
		if err := checker.Check(action, market); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns the actions that pass every check, highest priority first.
// Rejections are logged, never returned.
func (f *Filter) Apply(actions []model.StrategyAction, market model.MarketData) []model.StrategyAction {
	out := make([]model.StrategyAction, 0, len(actions))
	for _, action := range actions {
		if err := f.Check(action, market); err != nil {
			f.logger.Info("action rejected",
				zap.String("action_id", action.ID),
				zap.String("type", string(action.Type)),
				zap.String("pool", action.Pool),
				zap.String("reason", err.Error()),
			)
			continue
		}
		out = append(out, action)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
