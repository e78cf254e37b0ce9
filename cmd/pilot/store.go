package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityPilot/internal/cache"
	"liquidityPilot/internal/config"
	"liquidityPilot/internal/history"
	"liquidityPilot/internal/storage"
	"liquidityPilot/internal/storage/influx"
	"liquidityPilot/internal/storage/postgres"
)

type historyBackend struct {
	store history.Store
	sink  cache.PoolSink
	close func()
}

// openStore opens the configured history store. The memory kind returns a
// nil store, which keeps history in process only.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (historyBackend, error) {
	backend := historyBackend{close: func() {}}

	switch cfg.Kind {
	case "memory":
	case "jsonl":
		backend.store = storage.NewJsonlHistoryStore(cfg.HistoryPath)
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return backend, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return backend, fmt.Errorf("migrate postgres: %w", err)
		}
		backend.store = store
		backend.sink = store
		backend.close = store.Close
	case "influx":
		store, err := influx.NewStore(ctx, influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			return backend, fmt.Errorf("connect influx: %w", err)
		}
		backend.store = store
		backend.close = store.Close
	default:
		return backend, fmt.Errorf("unknown store %q", cfg.Kind)
	}

	logger.Info("history store", zap.String("kind", cfg.Kind))
	return backend, nil
}
