package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityPilot/internal/chain"
)

func main() {
	// .env is optional; real environment variables still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "pilot",
		Short:        "Liquidity Book position manager",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the strategy loop",
		RunE:  runPilot,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	runCmd.Flags().Duration("interval", 30*time.Second, "strategy cycle interval")
	runCmd.Flags().Duration("ttl", 30*time.Second, "pool snapshot freshness window")
	runCmd.Flags().Int("concurrency", 4, "concurrent pool refreshes")
	runCmd.Flags().Int("max-retries", 3, "maximum retry attempts per refresh")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("bin-window", 25, "bins read on each side of the active bin")
	runCmd.Flags().Uint64("max-log-span", 2000, "blocks per swap log query")
	addStoreFlags(runCmd)
	runCmd.Flags().Duration("retention", 90*24*time.Hour, "history retention")
	runCmd.Flags().String("prune-schedule", "@hourly", "cron spec for history pruning, empty disables")
	runCmd.Flags().String("journal", "./data/actions.jsonl", "dry-run action journal JSONL")
	runCmd.Flags().String("positions", "./data/positions.json", "position checkpoint file")
	runCmd.Flags().String("strategy", "balanced-liquidity", "strategy name")
	runCmd.Flags().String("max-position-size", "10000", "largest liquidity amount per action")
	runCmd.Flags().String("max-slippage", "0.01", "largest slippage tolerance per action")
	runCmd.Flags().String("volatility-threshold", "0.8", "volatility above which entries are refused")
	runCmd.Flags().String("concentration-limit", "0.1", "minimum concentration for entries, 0 disables")
	runCmd.Flags().Int("band-bins", 10, "bins on each side of the active bin in a position")
	runCmd.Flags().String("min-apr", "10", "minimum APR (percent) to open a position")
	runCmd.Flags().String("min-tvl", "10000", "minimum TVL to open a position")
	runCmd.Flags().Duration("rebalance-cooldown", time.Hour, "minimum time between rebalances")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current state and metrics of pools",
		RunE:  runSnapshot,
	}

	snapshotCmd.Flags().String("rpc", "", "RPC URL")
	snapshotCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	snapshotCmd.Flags().Int("bin-window", 25, "bins read on each side of the active bin")
	snapshotCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored history older than the retention window",
		RunE:  runPrune,
	}

	addStoreFlags(pruneCmd)
	pruneCmd.Flags().Duration("retention", 90*24*time.Hour, "history retention")
	pruneCmd.Flags().String("before", "", "explicit cutoff (unix seconds or RFC3339), overrides retention")
	pruneCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(pruneCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "jsonl", "history store (memory, jsonl, postgres, influx)")
	cmd.Flags().String("history-path", "./data/history.jsonl", "history JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("influx-url", "", "InfluxDB URL")
	cmd.Flags().String("influx-token", "", "InfluxDB token")
	cmd.Flags().String("influx-org", "", "InfluxDB organization")
	cmd.Flags().String("influx-bucket", "pool_history", "InfluxDB bucket")
}

// parsePools validates and dedupes pool addresses, returning them lowercased.
func parsePools(inputs []string) ([]string, error) {
	addresses, err := chain.ParseAddresses(inputs)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("pool list is required")
	}
	pools := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		pools = append(pools, strings.ToLower(addr.Hex()))
	}
	return pools, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
