package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.StringSlice("pool", nil, "")
	flags.String("store", "jsonl", "")
	flags.Duration("interval", 30*time.Second, "")
	flags.String("min-apr", "10", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadRunDefaults(t *testing.T) {
	cfg, err := LoadRun("", runFlags(t, "--rpc", "http://localhost:8545", "--pool", " 0xAAA , 0xBBB,"))
	require.NoError(t, err)

	require.Equal(t, []string{"0xAAA", "0xBBB"}, cfg.Pools)
	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, "jsonl", cfg.Store.Kind)
	require.Equal(t, "@hourly", cfg.PruneSchedule)
	require.True(t, cfg.Risk.MaxPositionSize.Equal(decimal.NewFromInt(10000)))
	require.True(t, cfg.Balanced.MinAPR.Equal(decimal.NewFromInt(10)))
	require.Equal(t, int32(10), cfg.Balanced.BinRadius)
	require.Equal(t, time.Hour, cfg.Balanced.RebalanceCooldown)
}

func TestLoadRunEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	body := "rpc: http://file:8545\npool:\n  - \"0xCCC\"\nmax-slippage: \"0.02\"\nrebalance-cooldown: 30m\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("PILOT_MIN_TVL", "5000")

	cfg, err := LoadRun(path, runFlags(t))
	require.NoError(t, err)
	require.Equal(t, "http://file:8545", cfg.RPCURL)
	require.Equal(t, []string{"0xCCC"}, cfg.Pools)
	require.True(t, cfg.Risk.MaxSlippage.Equal(decimal.RequireFromString("0.02")))
	require.True(t, cfg.Balanced.MinTVL.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, 30*time.Minute, cfg.Balanced.RebalanceCooldown)
}

func TestLoadRunRejectsUnquotedHexPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	body := "rpc: http://file:8545\npool: [0x00000000000000000000000000000000000000ab]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := LoadRun(path, runFlags(t))
	require.ErrorContains(t, err, "pool[0]")

	_, err = LoadSnapshot(path, runFlags(t))
	require.ErrorContains(t, err, "quote hex values")
}

func TestLoadRunErrors(t *testing.T) {
	_, err := LoadRun("", runFlags(t, "--pool", "0xAAA"))
	require.ErrorContains(t, err, "rpc url")

	_, err = LoadRun("", runFlags(t, "--rpc", "http://x"))
	require.ErrorContains(t, err, "pool")

	_, err = LoadRun("", runFlags(t, "--rpc", "http://x", "--pool", "0xAAA", "--store", "postgres"))
	require.ErrorContains(t, err, "pg-dsn")

	_, err = LoadRun("", runFlags(t, "--rpc", "http://x", "--pool", "0xAAA", "--store", "sqlite"))
	require.ErrorContains(t, err, "unknown store")

	_, err = LoadRun("", runFlags(t, "--rpc", "http://x", "--pool", "0xAAA", "--min-apr", "lots"))
	require.ErrorContains(t, err, "min-apr")
}

func TestLoadPruneCutoff(t *testing.T) {
	flags := pflag.NewFlagSet("prune", pflag.ContinueOnError)
	flags.String("before", "", "")
	flags.Duration("retention", 0, "")
	require.NoError(t, flags.Parse([]string{"--retention", "48h"}))

	cfg, err := LoadPrune("", flags)
	require.NoError(t, err)
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, now.Add(-48*time.Hour), cfg.Cutoff(now))

	require.NoError(t, flags.Set("before", "2024-05-01T00:00:00Z"))
	cfg, err = LoadPrune("", flags)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), cfg.Cutoff(now))
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("1700000000")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), ts.Unix())

	ts, err = ParseTime("")
	require.NoError(t, err)
	require.True(t, ts.IsZero())

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}
