package strategy

import (
	"context"
	"errors"
	"time"

	"liquidityPilot/internal/model"
)

var (
	ErrNotInitialized     = errors.New("strategy not initialized")
	ErrCleanedUp          = errors.New("strategy cleaned up")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrInvalidConfig      = errors.New("invalid strategy config")
	ErrStrategyNotFound   = errors.New("strategy not found")
)

// Executor carries out actions that passed the risk filter.
type Executor interface {
	Execute(ctx context.Context, action model.StrategyAction) model.ExecutionResult
}

// Config is supplied once at initialization and is immutable afterwards.
type Config struct {
	Pools    []string
	Risk     model.RiskParameters
	Balanced BalancedConfig
	Executor Executor
	Now      func() time.Time
}

// Strategy turns market data into prioritized, risk-filtered actions.
type Strategy interface {
	Name() string
	Initialize(ctx context.Context, cfg Config) error
	Analyze(ctx context.Context, market model.MarketData) ([]model.StrategyAction, error)
	Execute(ctx context.Context, action model.StrategyAction) (model.ExecutionResult, error)
	Cleanup(ctx context.Context) error
	State() State
}
