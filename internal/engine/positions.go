package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
)

var (
	yearMs  = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Millisecond))
	percent = decimal.NewFromInt(100)
)

// PositionBook tracks the positions opened through executed actions. Fees
// accrue at the pool APR while the active bin sits inside the range.
type PositionBook struct {
	store checkpointStore

	mu        sync.RWMutex
	positions map[string]model.Position
	accrued   map[string]time.Time
}

// NewPositionBook loads the book from path; an empty path keeps it in
// memory only.
func NewPositionBook(path string) (*PositionBook, error) {
	b := &PositionBook{
		store:     checkpointStore{path: path},
		positions: make(map[string]model.Position),
		accrued:   make(map[string]time.Time),
	}
	loaded, _, err := b.store.load()
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		key := strings.ToLower(p.Pool)
		b.positions[key] = p
	}
	return b, nil
}

// Snapshot returns a copy of the open positions keyed by pool.
func (b *PositionBook) Snapshot() map[string]model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]model.Position, len(b.positions))
	for k, v := range b.positions {
		out[k] = v
	}
	return out
}

// Accrue credits fees earned since the previous accrual.
func (b *PositionBook) Accrue(market model.MarketData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pool, pos := range b.positions {
		snap, ok := market.Snapshots[pool]
		if !ok || snap == nil {
			continue
		}
		last := b.accrued[pool]
		b.accrued[pool] = market.ObservedAt
		if last.IsZero() || !market.ObservedAt.After(last) {
			continue
		}
		active := snap.Pool.ActiveBin
		if active < pos.Range.Lower || active > pos.Range.Upper {
			continue
		}
		elapsed := decimal.NewFromInt(int64(market.ObservedAt.Sub(last) / time.Millisecond))
		earned := pos.Liquidity.Mul(snap.Metrics.APR).Div(percent).Mul(elapsed).DivRound(yearMs, metrics.Precision)
		pos.UnclaimedFee = pos.UnclaimedFee.Add(earned)
		b.positions[pool] = pos
	}
}

// Apply folds a successful execution into the book.
func (b *PositionBook) Apply(action model.StrategyAction, result model.ExecutionResult, market model.MarketData) {
	if !result.Success {
		return
	}
	pool := strings.ToLower(action.Pool)
	at := result.ExecutedAt
	if at.IsZero() {
		at = market.ObservedAt
	}
	price := decimal.Zero
	if snap, ok := market.Snapshots[pool]; ok && snap != nil {
		price = snap.Price
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	pos, open := b.positions[pool]
	switch action.Type {
	case model.ActionCreatePosition:
		if open || action.Params.Range == nil {
			return
		}
		b.positions[pool] = model.Position{
			ID:           result.TransactionID,
			Pool:         pool,
			Range:        *action.Params.Range,
			Liquidity:    action.Params.LiquidityAmount,
			UnclaimedFee: decimal.Zero,
			EntryPrice:   price,
			OpenedAt:     at,
		}
		b.accrued[pool] = at
	case model.ActionRebalance, model.ActionAdjustRange:
		if !open || action.Params.Range == nil {
			return
		}
		pos.Range = *action.Params.Range
		pos.EntryPrice = price
		b.positions[pool] = pos
	case model.ActionCollectFees:
		if !open {
			return
		}
		pos.UnclaimedFee = decimal.Zero
		b.positions[pool] = pos
	case model.ActionClosePosition, model.ActionEmergencyExit:
		delete(b.positions, pool)
		delete(b.accrued, pool)
	}
}

// Save writes the book to its checkpoint file.
func (b *PositionBook) Save(at time.Time) error {
	b.mu.RLock()
	list := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		list = append(list, p)
	}
	b.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Pool < list[j].Pool })
	return b.store.save(list, at)
}
