package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPilot/internal/config"
)

func runPrune(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrune(cfgFile, cmd.Flags())
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

	backend, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	cutoff := cfg.Cutoff(time.Now().UTC())
	deleted, err := backend.store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}

	logger.Info("prune complete", zap.Time("cutoff", cutoff), zap.Int64("deleted", deleted))
	return nil
}
