package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/strategy"
)

// RunConfig holds the settings of the engine loop.
type RunConfig struct {
	RPCURL        string
	Pools         []string
	Interval      time.Duration
	TTL           time.Duration
	Concurrency   int
	MaxRetries    int
	RetryBackoff  time.Duration
	BinWindow     int
	MaxLogSpan    uint64
	Store         StoreConfig
	Retention     time.Duration
	PruneSchedule string
	Journal       string
	Positions     string
	Strategy      string
	Risk          model.RiskParameters
	Balanced      strategy.BalancedConfig
	LogLevel      string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	defaults := map[string]interface{}{
		"interval":             30 * time.Second,
		"ttl":                  30 * time.Second,
		"concurrency":          4,
		"max-retries":          3,
		"retry-backoff":        500 * time.Millisecond,
		"bin-window":           25,
		"max-log-span":         uint64(2000),
		"retention":            90 * 24 * time.Hour,
		"prune-schedule":       "@hourly",
		"journal":              "./data/actions.jsonl",
		"positions":            "./data/positions.json",
		"strategy":             "balanced-liquidity",
		"max-position-size":    "10000",
		"max-slippage":         "0.01",
		"volatility-threshold": "0.8",
		"concentration-limit":  "0.1",
		"band-bins":            10,
		"rebalance-threshold":  "0.05",
		"rebalance-cooldown":   time.Hour,
		"fee-threshold":        "10",
		"volatility-ceiling":   "0.4",
		"emergency-volatility": "1",
		"min-apr":              "10",
		"min-tvl":              "10000",
		"slippage":             "0.005",
		"log-level":            "info",
	}
	for k, val := range storeDefaults {
		defaults[k] = val
	}

	v, err := newViper(cfgFile, flags, defaults)
	if err != nil {
		return RunConfig{}, err
	}

	store, err := loadStore(v)
	if err != nil {
		return RunConfig{}, err
	}

	pools, err := getStringSlice(v, "pool")
	if err != nil {
		return RunConfig{}, err
	}

	cfg := RunConfig{
		RPCURL:        v.GetString("rpc"),
		Pools:         pools,
		Interval:      v.GetDuration("interval"),
		TTL:           v.GetDuration("ttl"),
		Concurrency:   v.GetInt("concurrency"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		BinWindow:     v.GetInt("bin-window"),
		MaxLogSpan:    v.GetUint64("max-log-span"),
		Store:         store,
		Retention:     v.GetDuration("retention"),
		PruneSchedule: v.GetString("prune-schedule"),
		Journal:       v.GetString("journal"),
		Positions:     v.GetString("positions"),
		Strategy:      v.GetString("strategy"),
		LogLevel:      v.GetString("log-level"),
	}

	b := strategy.BalancedConfig{
		BinRadius:         int32(v.GetInt("band-bins")),
		RebalanceCooldown: v.GetDuration("rebalance-cooldown"),
	}
	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"max-position-size", &cfg.Risk.MaxPositionSize},
		{"max-slippage", &cfg.Risk.MaxSlippage},
		{"volatility-threshold", &cfg.Risk.VolatilityThreshold},
		{"concentration-limit", &cfg.Risk.ConcentrationLimit},
		{"rebalance-threshold", &b.RebalanceThresholdFraction},
		{"fee-threshold", &b.FeeCollectThreshold},
		{"volatility-ceiling", &b.VolatilityCeiling},
		{"emergency-volatility", &b.EmergencyVolatility},
		{"min-apr", &b.MinAPR},
		{"min-tvl", &b.MinTVL},
		{"min-liquidity", &b.MinLiquidity},
		{"max-liquidity", &b.MaxLiquidity},
		{"slippage", &b.Slippage},
	}
	for _, d := range decimals {
		if *d.dst, err = getDecimal(v, d.key); err != nil {
			return RunConfig{}, err
		}
	}
	cfg.Balanced = b

	if cfg.RPCURL == "" {
		return RunConfig{}, fmt.Errorf("rpc url is required")
	}
	if len(cfg.Pools) == 0 {
		return RunConfig{}, fmt.Errorf("at least one pool is required")
	}
	if cfg.Interval <= 0 {
		return RunConfig{}, fmt.Errorf("interval must be > 0")
	}
	if err := cfg.Risk.Validate(); err != nil {
		return RunConfig{}, fmt.Errorf("risk parameters: %w", err)
	}
	return cfg, nil
}
