package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActionType enumerates what a strategy can ask the executor to do.
type ActionType string

const (
	ActionCreatePosition ActionType = "create_position"
	ActionClosePosition  ActionType = "close_position"
	ActionRebalance      ActionType = "rebalance"
	ActionCollectFees    ActionType = "collect_fees"
	ActionAdjustRange    ActionType = "adjust_range"
	ActionEmergencyExit  ActionType = "emergency_exit"
)

// IsExit reports whether the action only unwinds exposure.
func (t ActionType) IsExit() bool {
	return t == ActionClosePosition || t == ActionEmergencyExit
}

// IsEntry reports whether the action places liquidity into bins.
func (t ActionType) IsEntry() bool {
	return t == ActionCreatePosition || t == ActionRebalance || t == ActionAdjustRange
}

// BinRange is an inclusive range of bin ids.
type BinRange struct {
	Lower int32 `json:"lower"`
	Upper int32 `json:"upper"`
}

// Width returns the number of bins in the range.
func (r BinRange) Width() int32 {
	if r.Upper < r.Lower {
		return 0
	}
	return r.Upper - r.Lower + 1
}

// ActionParams is the parameter bag of an action.
type ActionParams struct {
	Range           *BinRange       `json:"range,omitempty"`
	LiquidityAmount decimal.Decimal `json:"liquidity_amount"`
	Slippage        decimal.Decimal `json:"slippage"`
	PositionID      string          `json:"position_id,omitempty"`
}

// StrategyAction is a candidate operation produced by a strategy.
// Values are never mutated after creation; use WithPriority to derive.
type StrategyAction struct {
	ID             string           `json:"id"`
	Type           ActionType       `json:"type"`
	Pool           string           `json:"pool"`
	Params         ActionParams     `json:"params"`
	Priority       int              `json:"priority"`
	EstimatedCost  decimal.Decimal  `json:"estimated_cost"`
	ExpectedReturn *decimal.Decimal `json:"expected_return,omitempty"`
	Strategy       string           `json:"strategy"`
	Reason         string           `json:"reason"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewAction builds an action with a fresh id.
func NewAction(strategy string, actionType ActionType, pool string, params ActionParams, createdAt time.Time) StrategyAction {
	return StrategyAction{
		ID:        uuid.NewString(),
		Type:      actionType,
		Pool:      pool,
		Params:    params,
		Strategy:  strategy,
		CreatedAt: createdAt,
	}
}

// WithPriority returns a copy of the action carrying priority p.
func (a StrategyAction) WithPriority(p int) StrategyAction {
	a.Priority = p
	return a
}
