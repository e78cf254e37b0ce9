package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/cache"
	"liquidityPilot/internal/chain"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/engine"
	"liquidityPilot/internal/executor"
	"liquidityPilot/internal/history"
	"liquidityPilot/internal/strategy"
)

func runPilot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
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

	backend, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	provider := dex.NewLBProvider(chainClient, dex.ProviderConfig{
		BinRadius:   cfg.BinWindow,
		MaxLogSpan:  cfg.MaxLogSpan,
		Concurrency: cfg.Concurrency,
	}, logger.Named("dex"))

	hist := history.NewAggregator(history.Config{
		Retention: cfg.Retention,
		Store:     backend.store,
	}, logger.Named("history"))

	poolCache := cache.New(provider, hist, cache.Config{
		TTL:         cfg.TTL,
		Concurrency: cfg.Concurrency,
		Retries:     cfg.MaxRetries,
		RetryDelay:  cfg.RetryBackoff,
		Sink:        backend.sink,
	}, logger.Named("cache"))

	for _, pool := range pools {
		if err := poolCache.AddPool(ctx, pool); err != nil {
			return err
		}
	}

	registry := strategy.NewRegistry()
	if err := registry.Register(strategy.NewBalancedLiquidity(logger.Named("strategy"))); err != nil {
		return err
	}
	strat, err := registry.Get(cfg.Strategy)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, registry.List())
	}

	if err := strat.Initialize(ctx, strategy.Config{
		Pools:    pools,
		Risk:     cfg.Risk,
		Balanced: cfg.Balanced,
		Executor: executor.NewDryRun(cfg.Journal, nil, logger.Named("executor")),
	}); err != nil {
		return err
	}
	defer func() {
		if err := strat.Cleanup(context.Background()); err != nil {
			logger.Warn("strategy cleanup failed", zap.Error(err))
		}
	}()

	positions, err := engine.NewPositionBook(cfg.Positions)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	logger.Info("pilot start",
		zap.String("rpc", cfg.RPCURL),
		zap.Strings("pools", pools),
		zap.String("strategy", strat.Name()),
		zap.String("store", cfg.Store.Kind),
		zap.Duration("interval", cfg.Interval),
		zap.String("journal", cfg.Journal),
	)

	eng := engine.New(poolCache, hist, strat, positions, engine.Config{
		Interval:      cfg.Interval,
		PruneSchedule: cfg.PruneSchedule,
	}, logger.Named("engine"))
	return eng.Run(ctx)
}
