package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

func createAction() model.StrategyAction {
	return model.NewAction("balanced-liquidity", model.ActionCreatePosition, "0xpool", model.ActionParams{
		Range:           &model.BinRange{Lower: 90, Upper: 110},
		LiquidityAmount: decimal.NewFromInt(500),
		Slippage:        decimal.RequireFromString("0.005"),
	}, time.Now()).WithPriority(70)
}

func TestDryRunJournalsAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "actions.jsonl")
	d := NewDryRun(path, nil, nil)
	action := createAction()

	res := d.Execute(context.Background(), action)
	require.True(t, res.Success, res.Error)
	require.NotEmpty(t, res.TransactionID)
	require.Equal(t, action.ID, res.ActionID)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []journalRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec journalRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 1)
	require.Equal(t, res.TransactionID, records[0].TransactionID)
	require.Equal(t, action.ID, records[0].Action.ID)
	require.True(t, records[0].Action.Params.LiquidityAmount.Equal(decimal.NewFromInt(500)))
}

func TestDryRunRejectsInvalidAction(t *testing.T) {
	d := NewDryRun("", nil, nil)

	missingRange := createAction()
	missingRange.Params.Range = nil
	res := d.Execute(context.Background(), missingRange)
	require.False(t, res.Success)
	require.Contains(t, res.Error, "bin range")

	collect := model.NewAction("s", model.ActionCollectFees, "0xpool", model.ActionParams{}, time.Now())
	res = d.Execute(context.Background(), collect)
	require.False(t, res.Success)
	require.Contains(t, res.Error, "position id")

	unknown := createAction()
	unknown.Type = "teleport"
	require.False(t, d.Execute(context.Background(), unknown).Success)
}

func TestDryRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewDryRun("", nil, nil).Execute(ctx, createAction())
	require.False(t, res.Success)
	require.Equal(t, context.Canceled.Error(), res.Error)
}
