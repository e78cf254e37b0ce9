package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityPilot/internal/cache"
	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/history"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	pools, err := parsePools(cfg.Pools)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	provider := dex.NewLBProvider(chainClient, dex.ProviderConfig{
		BinRadius:  cfg.BinWindow,
		MaxLogSpan: cfg.MaxLogSpan,
	}, logger)
	poolCache := cache.New(provider, history.NewAggregator(history.Config{}, logger), cache.Config{}, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, pool := range pools {
		if err := poolCache.AddPool(ctx, pool); err != nil {
			return err
		}
		snap, ok := poolCache.GetPoolData(ctx, pool)
		if !ok {
			return fmt.Errorf("no snapshot for %s", pool)
		}
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	}
	return nil
}
