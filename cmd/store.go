package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/banjirlab/floodmap/internal/classify"
	"github.com/banjirlab/floodmap/internal/config"
	"github.com/banjirlab/floodmap/internal/resilience"
	"github.com/banjirlab/floodmap/internal/store"
	"github.com/banjirlab/floodmap/pkg/fuzzy"
)

// newStore opens the configured backend.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
		})
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// newDispatcher wires the fuzzy client and dispatcher from config.
func newDispatcher(st store.Store, cfg *config.Config) *classify.Dispatcher {
	client := fuzzy.NewClient(cfg.Fuzzy.BaseURL,
		fuzzy.WithMaxAttempts(cfg.Fuzzy.MaxAttempts),
	)

	retry := resilience.DefaultRetryConfig()
	if cfg.Fuzzy.TimeoutSecs > 0 {
		retry.MaxBackoff = time.Duration(cfg.Fuzzy.TimeoutSecs) * time.Second
	}

	return classify.New(st, client,
		classify.WithConcurrency(cfg.Dispatch.Concurrency),
		classify.WithRateLimit(cfg.Fuzzy.RateLimit, cfg.Fuzzy.RateBurst),
		classify.WithRetryConfig(retry),
	)
}
