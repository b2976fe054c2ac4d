package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/price-ingest/internal/models"
)

const cacheKeyPrefix = "price-ingest:series"

// CachedFetcher serves repeat requests for a symbol from Redis for one
// provider day, so a retried run does not spend provider quota again.
// Redis failures are logged and bypassed; they never fail a fetch.
type CachedFetcher struct {
	next Fetcher
	rdb  redis.Cmdable
	ttl  time.Duration
	now  func() time.Time
}

// NewCachedFetcher wraps next with a Redis cache
func NewCachedFetcher(next Fetcher, rdb redis.Cmdable, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, rdb: rdb, ttl: ttl, now: time.Now}
}

// FetchDailySeries returns the cached series when present, otherwise
// fetches it and stores successful responses.
func (c *CachedFetcher) FetchDailySeries(ctx context.Context, symbol string) (models.DailySeries, error) {
	key := c.key(symbol)

	if series, ok := c.load(ctx, key); ok {
		slog.Debug("provider cache hit", "symbol", symbol, "key", key)
		return series, nil
	}

	series, err := c.next.FetchDailySeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, series)
	return series, nil
}

func (c *CachedFetcher) key(symbol string) string {
	day := c.now().UTC().Format(models.DateLayout)
	return fmt.Sprintf("%s:%s:%s", cacheKeyPrefix, strings.ToUpper(strings.TrimSpace(symbol)), day)
}

func (c *CachedFetcher) load(ctx context.Context, key string) (models.DailySeries, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("provider cache read failed", "key", key, "error", err)
		return nil, false
	}

	var series models.DailySeries
	if err := json.Unmarshal(data, &series); err != nil {
		slog.Warn("provider cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	for date, q := range series {
		q.Date = date
		series[date] = q
	}
	return series, true
}

func (c *CachedFetcher) store(ctx context.Context, key string, series models.DailySeries) {
	data, err := json.Marshal(series)
	if err != nil {
		slog.Warn("provider cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("provider cache write failed", "key", key, "error", err)
	}
}
