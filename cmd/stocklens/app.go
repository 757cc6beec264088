package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"StockLens/internal/cache"
	"StockLens/internal/collector"
	"StockLens/internal/config"
	"StockLens/internal/etl"
	"StockLens/internal/ratelimit"
	"StockLens/internal/store"
)

// openStore opens the configured database driver.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, store.PostgresConfig{
			URL:             c.Database.PostgresURL,
			MaxConns:        c.Database.MaxConns,
			MinConns:        c.Database.MinConns,
			MaxConnLifetime: c.Database.MaxConnLifetime,
		})
	default:
		if dir := filepath.Dir(c.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return store.NewSQLiteStore(c.Database.SQLitePath)
	}
}

// openCache connects to Redis when configured. A Redis outage degrades to
// no caching instead of failing startup.
func openCache(ctx context.Context, c *config.Config) cache.Cache {
	if c.Redis.Addr == "" {
		return cache.NewNoopCache()
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, ranking cache disabled")
		return cache.NewNoopCache()
	}
	return rc
}

func newFinnhub(c *config.Config) *collector.FinnhubFetcher {
	return collector.NewFinnhubFetcher(c.Finnhub.BaseURL, c.Finnhub.APIKey, c.Proxy, c.Finnhub.Timeout)
}

func newLimiter(c *config.Config) *ratelimit.Limiter {
	return ratelimit.New(c.RateLimit(), c.ETL.MaxConcurrent)
}

// newPipeline wires the upstream clients, limiter and store into a pipeline.
func newPipeline(c *config.Config, w store.Writer) (*etl.Pipeline, error) {
	if err := c.RequireFinnhub(); err != nil {
		return nil, err
	}
	fh := newFinnhub(c)
	av := collector.NewAlphaVantageFetcher(c.AlphaVantage.BaseURL, c.AlphaVantage.APIKey, c.Proxy, c.Finnhub.Timeout)
	candles, err := collector.NewCandleSource(c.ETL.PriceSource, fh, av)
	if err != nil {
		return nil, err
	}
	log.Info().Str("candles", candles.(interface{ Name() string }).Name()).Int("batch_size", c.ETL.BatchSize).
		Dur("rate_limit", c.RateLimit()).Msg("etl pipeline configured")

	src := etl.SourcesFrom(fh)
	src.Candles = candles
	return etl.NewPipeline(src, w, newLimiter(c), etl.Options{
		BatchSize:      c.ETL.BatchSize,
		EnrichProfiles: c.ETL.EnrichProfiles,
	}), nil
}
