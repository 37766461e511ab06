package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fxlab/forex-portfolio-go/internal/models"
	"github.com/fxlab/forex-portfolio-go/pkg/interfaces"
)

// PriceCacheStats tracks cache performance metrics
type PriceCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// priceCacheEntry is the serialized payload stored in Redis.
type priceCacheEntry struct {
	Bars     []models.PriceBar `json:"bars"`
	CachedAt time.Time         `json:"cached_at"`
}

// CachedPriceProvider is a read-through Redis cache in front of a
// PriceSeriesProvider. The optimizer re-reads the same series hundreds
// of times per grid, so the first read per (symbol, from) pair fills
// the cache and the rest are served from Redis. Redis failures fall
// through to the underlying provider.
type CachedPriceProvider struct {
	provider interfaces.PriceSeriesProvider
	redis    *redis.Client
	ttl      time.Duration
	stats    *PriceCacheStats
	prefix   string
}

// NewCachedPriceProvider creates a new caching decorator.
func NewCachedPriceProvider(provider interfaces.PriceSeriesProvider, redisClient *redis.Client, ttl time.Duration) *CachedPriceProvider {
	return &CachedPriceProvider{
		provider: provider,
		redis:    redisClient,
		ttl:      ttl,
		stats:    &PriceCacheStats{},
		prefix:   "price_series:",
	}
}

// GetBars implements interfaces.PriceSeriesProvider.
func (c *CachedPriceProvider) GetBars(ctx context.Context, symbol string, from time.Time) ([]models.PriceBar, error) {
	cacheKey := c.key(symbol, from)

	data, err := c.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var entry priceCacheEntry
		if err := json.Unmarshal([]byte(data), &entry); err == nil {
			c.stats.mu.Lock()
			c.stats.Hits++
			c.stats.mu.Unlock()
			return entry.Bars, nil
		}
		logrus.WithField("key", cacheKey).Warn("Failed to deserialize cached price series")
	} else if err != redis.Nil {
		logrus.WithError(err).WithField("symbol", symbol).Warn("Redis error reading price series")
	}

	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()

	bars, err := c.provider.GetBars(ctx, symbol, from)
	if err != nil {
		return nil, err
	}

	c.store(ctx, cacheKey, bars)
	return bars, nil
}

// Stats returns a snapshot of the hit/miss counters.
func (c *CachedPriceProvider) Stats() (hits, misses, sets int64) {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return c.stats.Hits, c.stats.Misses, c.stats.Sets
}

func (c *CachedPriceProvider) key(symbol string, from time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, symbol, from.Format("2006-01-02"))
}

func (c *CachedPriceProvider) store(ctx context.Context, key string, bars []models.PriceBar) {
	entry := priceCacheEntry{
		Bars:     bars,
		CachedAt: time.Now(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).Warn("Failed to serialize price series for caching")
		return
	}

	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Redis error caching price series")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}
