package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// SnapshotConfig holds settings for a one-shot pool read.
type SnapshotConfig struct {
	RPCURL     string
	Pools      []string
	BinWindow  int
	MaxLogSpan uint64
	LogLevel   string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"bin-window":   25,
		"max-log-span": uint64(2000),
		"log-level":    "warn",
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	pools, err := getStringSlice(v, "pool")
	if err != nil {
		return SnapshotConfig{}, err
	}

	cfg := SnapshotConfig{
		RPCURL:     v.GetString("rpc"),
		Pools:      pools,
		BinWindow:  v.GetInt("bin-window"),
		MaxLogSpan: v.GetUint64("max-log-span"),
		LogLevel:   v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return SnapshotConfig{}, fmt.Errorf("rpc url is required")
	}
	if len(cfg.Pools) == 0 {
		return SnapshotConfig{}, fmt.Errorf("at least one pool is required")
	}
	return cfg, nil
}

// PruneConfig holds settings for a one-shot history prune.
type PruneConfig struct {
	Store     StoreConfig
	Retention time.Duration
	Before    time.Time
	LogLevel  string
}

// Cutoff is the explicit --before time when set, otherwise now minus retention.
func (c PruneConfig) Cutoff(now time.Time) time.Time {
	if !c.Before.IsZero() {
		return c.Before
	}
	return now.Add(-c.Retention)
}

// LoadPrune merges config file, environment variables, and flags into PruneConfig.
func LoadPrune(cfgFile string, flags *pflag.FlagSet) (PruneConfig, error) {
	defaults := map[string]interface{}{
		"retention": 90 * 24 * time.Hour,
		"log-level": "info",
	}
	for k, val := range storeDefaults {
		defaults[k] = val
	}

	v, err := newViper(cfgFile, flags, defaults)
	if err != nil {
		return PruneConfig{}, err
	}

	store, err := loadStore(v)
	if err != nil {
		return PruneConfig{}, err
	}
	if store.Kind == "memory" {
		return PruneConfig{}, fmt.Errorf("nothing to prune in the memory store")
	}

	before, err := ParseTime(v.GetString("before"))
	if err != nil {
		return PruneConfig{}, fmt.Errorf("parse before: %w", err)
	}

	cfg := PruneConfig{
		Store:     store,
		Retention: v.GetDuration("retention"),
		Before:    before,
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.Before.IsZero() && cfg.Retention <= 0 {
		return PruneConfig{}, fmt.Errorf("retention must be > 0")
	}
	return cfg, nil
}
