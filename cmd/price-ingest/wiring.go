package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/price-ingest/internal/config"
	"github.com/trogers1052/price-ingest/internal/database"
	"github.com/trogers1052/price-ingest/internal/kafka"
	"github.com/trogers1052/price-ingest/internal/pipeline"
	"github.com/trogers1052/price-ingest/internal/provider"
)

// app holds the long-lived collaborators shared by run and serve
type app struct {
	db          *database.DB
	coordinator *pipeline.Coordinator
	closers     []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("error during shutdown", "error", err)
		}
	}
}

func openDB(cfg *config.Config) (*database.DB, error) {
	return database.New(cfg.Database.ConnectionString(),
		database.WithStatementTimeout(cfg.Database.StatementTimeout))
}

// newApp validates cfg and wires the coordinator. Redis and Kafka are only
// used when configured.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, closers: []func() error{db.Close}}

	var fetcher provider.Fetcher = provider.NewClient(cfg.Provider.APIKey, cfg.Provider.URLTemplate,
		provider.WithTimeout(cfg.Provider.Timeout))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, provider responses will not be cached", "addr", cfg.Redis.Addr, "error", err)
		}
		a.closers = append(a.closers, rdb.Close)
		fetcher = provider.NewCachedFetcher(fetcher, rdb, cfg.Redis.TTL)
	}

	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Ingest.Concurrency),
		pipeline.WithRateLimitRetries(cfg.Ingest.RateLimitRetries),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, pipeline.WithPublisher(producer))
	}

	a.coordinator = pipeline.New(fetcher, db, opts...)
	return a, nil
}
