package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/metrics"
	"liquidityPilot/internal/model"
)

// activeIDOffset is the bin id whose price is 1 before decimal scaling.
const activeIDOffset = 1 << 23

// volatilityPrecision is the scale of on-chain volatility accumulators.
var volatilityPrecision = decimal.NewFromInt(10000)

// ProviderConfig controls how much of a pair is read per fetch.
type ProviderConfig struct {
	BinRadius   int
	MaxLogSpan  uint64
	Concurrency int
}

// LBProvider reads Liquidity Book pairs over JSON-RPC.
type LBProvider struct {
	reader chain.Reader
	cfg    ProviderConfig
	logger *zap.Logger
	pairs  *metaCache[pairMeta]
	tokens *metaCache[model.Token]

	mu        sync.Mutex
	lastBlock map[common.Address]uint64
}

func NewLBProvider(reader chain.Reader, cfg ProviderConfig, logger *zap.Logger) *LBProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BinRadius <= 0 {
		cfg.BinRadius = 25
	}
	if cfg.MaxLogSpan == 0 {
		cfg.MaxLogSpan = 2000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	return &LBProvider{
		reader:    reader,
		cfg:       cfg,
		logger:    logger,
		pairs:     newMetaCache[pairMeta](),
		tokens:    newMetaCache[model.Token](),
		lastBlock: make(map[common.Address]uint64),
	}
}

// FetchPoolSnapshot reads the active bin, the bin window around it, the fee
// parameters and the swaps seen since the previous fetch of the pool. The
// first fetch of a pool starts the swap cursor and reports no volume.
func (p *LBProvider) FetchPoolSnapshot(ctx context.Context, address string) (model.PoolState, error) {
	pool, err := chain.ParseAddress(address)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("pool: %w", err)
	}

	pairABI, err := LBPairABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	latest, err := p.reader.BlockNumber(ctx)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("latest block: %w", err)
	}
	block := new(big.Int).SetUint64(latest)

	meta, err := p.pairs.load(pool, func() (pairMeta, error) {
		return fetchPairMeta(ctx, p.reader, pairABI, pool)
	})
	if err != nil {
		return model.PoolState{}, fmt.Errorf("pair meta %s: %w", pool.Hex(), err)
	}
	tokenX, err := p.token(ctx, meta.tokenX)
	if err != nil {
		return model.PoolState{}, err
	}
	tokenY, err := p.token(ctx, meta.tokenY)
	if err != nil {
		return model.PoolState{}, err
	}

	values, err := call(ctx, p.reader, pool, pairABI, "getActiveId", block)
	if err != nil {
		return model.PoolState{}, err
	}
	activeRaw, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("active id: %w", err)
	}
	activeID := int32(activeRaw.Int64())

	feeParams, err := p.feeParams(ctx, pairABI, pool, meta.binStep, block)
	if err != nil {
		return model.PoolState{}, err
	}

	scale := priceScale(tokenX.Decimals, tokenY.Decimals)
	bins, err := p.fetchBins(ctx, pairABI, pool, activeID, meta.binStep, scale, tokenX.Decimals, tokenY.Decimals, block)
	if err != nil {
		return model.PoolState{}, err
	}

	volume, fees, err := p.observeSwaps(ctx, pairABI, pool, latest, meta.binStep, scale, tokenX.Decimals, tokenY.Decimals)
	if err != nil {
		p.logger.Warn("swap scan failed", zap.String("pool", pool.Hex()), zap.Error(err))
		volume, fees = decimal.Zero, decimal.Zero
	}

	state := model.PoolState{
		Pool: model.Pool{
			Address:   pool.Hex(),
			TokenX:    tokenX,
			TokenY:    tokenY,
			BinStep:   meta.binStep,
			ActiveBin: activeID,
			FeeParams: feeParams,
		},
		Bins:        bins,
		Price:       binPrice(activeID, meta.binStep, scale),
		Volume:      volume,
		Fees:        fees,
		BlockNumber: latest,
	}
	if err := state.Pool.Validate(); err != nil {
		return model.PoolState{}, err
	}
	return state, nil
}

func (p *LBProvider) token(ctx context.Context, address common.Address) (model.Token, error) {
	token, err := p.tokens.load(address, func() (model.Token, error) {
		return fetchToken(ctx, p.reader, address, p.logger)
	})
	if err != nil {
		return model.Token{}, fmt.Errorf("token %s: %w", address.Hex(), err)
	}
	return token, nil
}

func (p *LBProvider) feeParams(ctx context.Context, pairABI abi.ABI, pool common.Address, binStep uint16, block *big.Int) (model.FeeParameters, error) {
	static, err := call(ctx, p.reader, pool, pairABI, "getStaticFeeParameters", block)
	if err != nil {
		return model.FeeParameters{}, err
	}
	if len(static) != 7 {
		return model.FeeParameters{}, fmt.Errorf("unexpected static fee values: %d", len(static))
	}
	variable, err := call(ctx, p.reader, pool, pairABI, "getVariableFeeParameters", block)
	if err != nil {
		return model.FeeParameters{}, err
	}
	if len(variable) != 4 {
		return model.FeeParameters{}, fmt.Errorf("unexpected variable fee values: %d", len(variable))
	}

	baseFactor, err := asBigInt(static[0])
	if err != nil {
		return model.FeeParameters{}, fmt.Errorf("base factor: %w", err)
	}
	protocolShare, err := asBigInt(static[5])
	if err != nil {
		return model.FeeParameters{}, fmt.Errorf("protocol share: %w", err)
	}
	maxVolAcc, err := asBigInt(static[6])
	if err != nil {
		return model.FeeParameters{}, fmt.Errorf("max volatility accumulator: %w", err)
	}
	volAcc, err := asBigInt(variable[0])
	if err != nil {
		return model.FeeParameters{}, fmt.Errorf("volatility accumulator: %w", err)
	}

	step := decimal.NewFromInt(int64(binStep))
	return model.FeeParameters{
		BaseFactor:            decimal.NewFromBigInt(baseFactor, 0),
		MaxVolatilityFactor:   decimal.NewFromBigInt(maxVolAcc, 0).Div(volatilityPrecision).Mul(step),
		VolatilityAccumulator: decimal.NewFromBigInt(volAcc, 0).Div(volatilityPrecision),
		ProtocolShare:         decimal.NewFromBigInt(protocolShare, 0).Div(volatilityPrecision),
	}, nil
}

func (p *LBProvider) fetchBins(ctx context.Context, pairABI abi.ABI, pool common.Address, activeID int32, binStep uint16, scale decimal.Decimal, decX, decY uint8, block *big.Int) ([]model.Bin, error) {
	lower := activeID - int32(p.cfg.BinRadius)
	if lower < 0 {
		lower = 0
	}
	upper := activeID + int32(p.cfg.BinRadius)
	bins := make([]model.Bin, upper-lower+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for id := lower; id <= upper; id++ {
		id := id
		g.Go(func() error {
			values, err := call(gctx, p.reader, pool, pairABI, "getBin", block, big.NewInt(int64(id)))
			if err != nil {
				return fmt.Errorf("bin %d: %w", id, err)
			}
			reserveX, err := asBigInt(values[0])
			if err != nil {
				return fmt.Errorf("bin %d reserve x: %w", id, err)
			}
			reserveY, err := asBigInt(values[1])
			if err != nil {
				return fmt.Errorf("bin %d reserve y: %w", id, err)
			}
			bins[id-lower] = model.Bin{
				ID:      id,
				Price:   binPrice(id, binStep, scale),
				AmountX: toDecimal(reserveX, decX),
				AmountY: toDecimal(reserveY, decY),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bins, nil
}

func (p *LBProvider) observeSwaps(ctx context.Context, pairABI abi.ABI, pool common.Address, latest uint64, binStep uint16, scale decimal.Decimal, decX, decY uint8) (decimal.Decimal, decimal.Decimal, error) {
	volume, fees := decimal.Zero, decimal.Zero

	p.mu.Lock()
	last, seen := p.lastBlock[pool]
	if !seen {
		p.lastBlock[pool] = latest
	}
	p.mu.Unlock()
	if !seen || latest <= last {
		return volume, fees, nil
	}

	chunks, err := chain.BlockRange{From: last + 1, To: latest}.Chunks(p.cfg.MaxLogSpan)
	if err != nil {
		return volume, fees, err
	}
	topic := pairABI.Events["Swap"].ID
	for _, r := range chunks {
		logs, err := p.reader.Logs(ctx, r, pool, topic)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("filter logs %d-%d: %w", r.From, r.To, err)
		}
		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := decodeSwap(pairABI, lg)
			if err != nil {
				p.logger.Warn("decode swap", zap.String("pool", pool.Hex()), zap.Uint64("block", lg.BlockNumber), zap.Error(err))
				continue
			}
			price := binPrice(int32(ev.BinID), binStep, scale)
			volume = volume.Add(toDecimal(ev.InX, decX).Mul(price)).Add(toDecimal(ev.InY, decY))
			fees = fees.Add(toDecimal(ev.FeeX, decX).Mul(price)).Add(toDecimal(ev.FeeY, decY))
		}
	}

	p.mu.Lock()
	p.lastBlock[pool] = latest
	p.mu.Unlock()
	return volume, fees, nil
}

// Forget drops the swap cursor of a pool.
func (p *LBProvider) Forget(address string) {
	p.mu.Lock()
	delete(p.lastBlock, common.HexToAddress(address))
	p.mu.Unlock()
}

func binPrice(id int32, binStep uint16, scale decimal.Decimal) decimal.Decimal {
	return metrics.BinPrice(id-activeIDOffset, binStep, scale)
}

// priceScale converts a raw Y-per-X price into token units.
func priceScale(decX, decY uint8) decimal.Decimal {
	return decimal.New(1, int32(decX)-int32(decY))
}

func toDecimal(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}
