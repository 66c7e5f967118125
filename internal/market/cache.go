package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/ees/internal/metrics"
)

// cacheEntry is one L1 slot: a JSON-encoded payload with an expiry.
type cacheEntry struct {
	data    []byte
	expires time.Time
}

// localCache is a small bounded in-process cache sitting in front of
// Redis. There is no LRU library anywhere in the retrieval corpus, so
// this is a plain size-capped map with random eviction on overflow and
// lazy TTL expiry on read, rather than reaching for an algorithm nothing
// else in the corpus needed.
type localCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	maxSize int
}

func newLocalCache(maxSize int) *localCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &localCache{entries: make(map[string]cacheEntry), maxSize: maxSize}
}

func (c *localCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.data, true
}

func (c *localCache) set(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = cacheEntry{data: data, expires: time.Now().Add(ttl)}
}

// TieredCache layers an in-process L1 in front of a Redis L2, the same
// cache-aside shape the teacher uses for its price lookups, generalized
// to arbitrary typed payloads keyed by data kind (quote/bar/indicator) so
// one cache serves the whole market-data fabric instead of one per
// client.
type TieredCache struct {
	l1    *localCache
	redis *redis.Client
	log   zerolog.Logger

	quoteTTL     time.Duration
	barTTL       time.Duration
	indicatorTTL time.Duration

	mu           sync.Mutex
	hits, misses int64
}

// NewTieredCache constructs the fabric's cache. redisClient may be nil,
// in which case only the L1 tier is used.
func NewTieredCache(redisClient *redis.Client, l1Size int, quoteTTL, barTTL, indicatorTTL time.Duration, log zerolog.Logger) *TieredCache {
	return &TieredCache{
		l1:           newLocalCache(l1Size),
		redis:        redisClient,
		log:          log,
		quoteTTL:     quoteTTL,
		barTTL:       barTTL,
		indicatorTTL: indicatorTTL,
	}
}

func quoteKey(provider, symbol string) string     { return fmt.Sprintf("market:quote:%s:%s", provider, symbol) }
func barsKey(provider, symbol, tf string) string   { return fmt.Sprintf("market:bars:%s:%s:%s", provider, symbol, tf) }
func indicatorKey(symbol, timeframe string) string { return fmt.Sprintf("market:indicators:%s:%s", symbol, timeframe) }

// Get attempts the L1 tier then the L2 (Redis) tier, unmarshalling into
// out on either hit. It reports whether a value was found.
func (c *TieredCache) Get(ctx context.Context, key string, out interface{}) bool {
	if data, ok := c.l1.get(key); ok {
		if err := json.Unmarshal(data, out); err == nil {
			c.recordHit()
			return true
		}
	}

	if c.redis == nil {
		c.recordMiss()
		return false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	metrics.RecordRedisOperation("get")
	cached, err := c.redis.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("redis cache lookup failed, treating as miss")
		}
		c.recordMiss()
		return false
	}
	if err := json.Unmarshal([]byte(cached), out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		c.recordMiss()
		return false
	}
	c.l1.set(key, []byte(cached), c.quoteTTL)
	c.recordHit()
	return true
}

// Set writes value to both tiers with ttl.
func (c *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to marshal value for cache")
		return
	}
	c.l1.set(key, data, ttl)

	if c.redis == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	metrics.RecordRedisOperation("set")
	if err := c.redis.Set(cacheCtx, key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to write cache entry to redis")
	}
}

func (c *TieredCache) recordHit() {
	c.mu.Lock()
	c.hits++
	hits, misses := c.hits, c.misses
	c.mu.Unlock()
	metrics.RedisCacheHitRate.Set(float64(hits) / float64(hits+misses))
}

func (c *TieredCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	hits, misses := c.hits, c.misses
	c.mu.Unlock()
	metrics.RedisCacheHitRate.Set(float64(hits) / float64(hits+misses))
}

// QuoteTTL, BarTTL and IndicatorTTL expose the configured TTLs so callers
// building cache keys don't need to duplicate the fabric's config.
func (c *TieredCache) QuoteTTL() time.Duration     { return c.quoteTTL }
func (c *TieredCache) BarTTL() time.Duration       { return c.barTTL }
func (c *TieredCache) IndicatorTTL() time.Duration { return c.indicatorTTL }
