package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolve-cli/internal/config"
	"github.com/sells-group/resolve-cli/internal/store"
)

// initSink opens the configured persistence backend.
func initSink(ctx context.Context, cfg *config.Config) (store.Sink, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// initReader opens the configured backend for read-back commands.
func initReader(ctx context.Context, cfg *config.Config) (store.Reader, store.Sink, error) {
	sink, err := initSink(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reader, ok := sink.(store.Reader)
	if !ok {
		sink.Close()
		return nil, nil, eris.Errorf("store driver %q does not support read-back", cfg.Store.Driver)
	}
	return reader, sink, nil
}
