// Package cache is an optional Redis read-through layer in front of
// Store.SearchSongs / Store.ListArtists (component C10). Absent a
// configured Redis URL, callers skip straight to the Store; the cache is
// never load-bearing for correctness, only latency.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/metrics"
)

const ttl = 30 * time.Second

// NewClient dials Redis with the same pool shape the rest of the corpus
// uses for its cache connections.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 8 * time.Millisecond
	opts.MaxRetryBackoff = 512 * time.Millisecond
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return redis.NewClient(opts), nil
}

// SearchCache wraps a Redis client to cache SearchSongs/ListArtists
// results keyed by their query parameters.
type SearchCache struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(client *redis.Client, logger *zap.Logger, m *metrics.Metrics) *SearchCache {
	return &SearchCache{client: client, logger: logger, metrics: m}
}

// GetSongs returns a cached SearchSongs page, or ok=false on a miss or
// any Redis error (treated identically — the caller falls through to
// Store).
func (c *SearchCache) GetSongs(ctx context.Context, opts entities.ListSongsOptions) (entities.Page[entities.Song], bool) {
	var page entities.Page[entities.Song]
	return page, c.get(ctx, songsKey(opts), &page)
}

func (c *SearchCache) SetSongs(ctx context.Context, opts entities.ListSongsOptions, page entities.Page[entities.Song]) {
	c.set(ctx, songsKey(opts), page)
}

func (c *SearchCache) GetArtists(ctx context.Context, opts entities.ListArtistsOptions) (entities.Page[entities.Artist], bool) {
	var page entities.Page[entities.Artist]
	return page, c.get(ctx, artistsKey(opts), &page)
}

func (c *SearchCache) SetArtists(ctx context.Context, opts entities.ListArtistsOptions, page entities.Page[entities.Artist]) {
	c.set(ctx, artistsKey(opts), page)
}

// Invalidate drops every cached search/list result. Called by Coordinator
// after any write that could change a result set (song create/update/delete).
func (c *SearchCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, "openkaraoke:search:*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache invalidation scan failed", zap.Error(err))
	}
}

func (c *SearchCache) get(ctx context.Context, key string, dest interface{}) bool {
	start := time.Now()
	raw, err := c.client.Get(ctx, key).Bytes()
	c.metrics.CacheLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if err == redis.Nil {
		c.metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
		return false
	}
	if err != nil {
		c.metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		c.logger.Warn("cache get failed", zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.metrics.CacheOperationsTotal.WithLabelValues("get", "corrupt").Inc()
		c.logger.Warn("cache payload unmarshal failed", zap.Error(err))
		return false
	}
	c.metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return true
}

func (c *SearchCache) set(ctx context.Context, key string, value interface{}) {
	start := time.Now()
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache payload marshal failed", zap.Error(err))
		return
	}
	err = c.client.Set(ctx, key, raw, ttl).Err()
	c.metrics.CacheLatency.WithLabelValues("set").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		c.logger.Warn("cache set failed", zap.Error(err))
		return
	}
	c.metrics.CacheOperationsTotal.WithLabelValues("set", "ok").Inc()
}

func songsKey(opts entities.ListSongsOptions) string {
	return "openkaraoke:search:songs:" + hashKey(opts)
}

func artistsKey(opts entities.ListArtistsOptions) string {
	return "openkaraoke:search:artists:" + hashKey(opts)
}

func hashKey(v interface{}) string {
	raw, _ := json.Marshal(v)
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
