package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/storage"
)

// Executor carries out a risk-filtered action.
type Executor interface {
	Execute(ctx context.Context, action model.StrategyAction) model.ExecutionResult
}

type journalRecord struct {
	TransactionID string               `json:"transaction_id"`
	ExecutedAt    time.Time            `json:"executed_at"`
	Action        model.StrategyAction `json:"action"`
}

// DryRun accepts every valid action without touching the chain and appends
// it to a JSONL journal.
type DryRun struct {
	journal *storage.JsonlWriter
	logger  *zap.Logger
	now     func() time.Time
}

// NewDryRun builds a DryRun journaling to journalPath; an empty path skips
// the journal. now defaults to time.Now.
func NewDryRun(journalPath string, now func() time.Time, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	d := &DryRun{logger: logger, now: now}
	if journalPath != "" {
		d.journal = storage.NewJsonlWriter(journalPath)
	}
	return d
}

func (d *DryRun) Execute(ctx context.Context, action model.StrategyAction) model.ExecutionResult {
	result := model.ExecutionResult{ActionID: action.ID, ExecutedAt: d.now().UTC()}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := validate(action); err != nil {
		result.Error = err.Error()
		return result
	}

	txID := uuid.NewString()
	if d.journal != nil {
		record := journalRecord{TransactionID: txID, ExecutedAt: result.ExecutedAt, Action: action}
		if err := d.journal.Append(record); err != nil {
			result.Error = fmt.Sprintf("journal action: %v", err)
			return result
		}
	}

	result.Success = true
	result.TransactionID = txID
	d.logger.Info("dry-run action",
		zap.String("action_id", action.ID),
		zap.String("tx_id", txID),
		zap.String("type", string(action.Type)),
		zap.String("pool", action.Pool),
		zap.Int("priority", action.Priority),
		zap.String("amount", action.Params.LiquidityAmount.String()),
	)
	return result
}

func validate(action model.StrategyAction) error {
	if action.ID == "" {
		return fmt.Errorf("action id is required")
	}
	if action.Pool == "" {
		return fmt.Errorf("action pool is required")
	}
	if action.Params.LiquidityAmount.IsNegative() {
		return fmt.Errorf("liquidity amount must be >= 0")
	}
	switch action.Type {
	case model.ActionCreatePosition, model.ActionRebalance, model.ActionAdjustRange:
		if action.Params.Range == nil || action.Params.Range.Width() == 0 {
			return fmt.Errorf("%s requires a bin range", action.Type)
		}
	case model.ActionClosePosition, model.ActionCollectFees, model.ActionEmergencyExit:
		if action.Params.PositionID == "" {
			return fmt.Errorf("%s requires a position id", action.Type)
		}
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
	return nil
}
