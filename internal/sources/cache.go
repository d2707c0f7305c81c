package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by KV.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// KV is the minimal key/value store the source cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

// OpenRedis returns nil when addr is empty so callers can skip caching.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func NewRedisKV(client *redis.Client) *RedisKV { return &RedisKV{client: client} }

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// cache holds the shared lookup/store logic of the cached sources. Cache
// failures are logged and fall through to the wrapped source.
type cache struct {
	kv      KV
	ttl     time.Duration
	source  string
	log     *slog.Logger
	metrics *observability.Metrics
}

func (c *cache) load(ctx context.Context, key string, out any) bool {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("cache get failed", "source", c.source, "key", key, "error", err)
		}
		c.metrics.SourceCache.WithLabelValues(c.source, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn("cache entry undecodable", "source", c.source, "key", key, "error", err)
		c.metrics.SourceCache.WithLabelValues(c.source, "miss").Inc()
		return false
	}
	c.metrics.SourceCache.WithLabelValues(c.source, "hit").Inc()
	return true
}

func (c *cache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("cache set failed", "source", c.source, "key", key, "error", err)
	}
}

// CacheOptions configures the cached source decorators.
type CacheOptions struct {
	TTL     time.Duration
	Log     *slog.Logger
	Metrics *observability.Metrics
}

func newCache(kv KV, source string, opts CacheOptions) *cache {
	return &cache{kv: kv, ttl: opts.TTL, source: source, log: opts.Log, metrics: opts.Metrics}
}

// CachedDemographics caches non-empty demographic lookups.
type CachedDemographics struct {
	inner DemographicsSource
	cache *cache
}

func NewCachedDemographics(inner DemographicsSource, kv KV, opts CacheOptions) *CachedDemographics {
	return &CachedDemographics{inner: inner, cache: newCache(kv, inner.Tag(), opts)}
}

func (c *CachedDemographics) Tag() string { return c.inner.Tag() }

func (c *CachedDemographics) FetchDemographics(ctx context.Context, code string, year int) (Demographics, error) {
	key := fmt.Sprintf("cii:demographics:%s:%d", code, year)
	var d Demographics
	if c.cache.load(ctx, key, &d) {
		return d, nil
	}
	d, err := c.inner.FetchDemographics(ctx, code, year)
	if err != nil {
		return d, err
	}
	// Empty results are retried on the next pass rather than pinned.
	if !d.IsEmpty() {
		c.cache.store(ctx, key, d)
	}
	return d, nil
}

// CachedAirQuality caches non-empty measurement lists.
type CachedAirQuality struct {
	inner AirQualitySource
	cache *cache
}

func NewCachedAirQuality(inner AirQualitySource, kv KV, opts CacheOptions) *CachedAirQuality {
	return &CachedAirQuality{inner: inner, cache: newCache(kv, inner.Tag(), opts)}
}

func (c *CachedAirQuality) Tag() string { return c.inner.Tag() }

func (c *CachedAirQuality) FetchMeasurements(ctx context.Context, code, pollutant string) ([]float64, error) {
	key := fmt.Sprintf("cii:airquality:%s:%s", code, pollutant)
	var values []float64
	if c.cache.load(ctx, key, &values) {
		return values, nil
	}
	values, err := c.inner.FetchMeasurements(ctx, code, pollutant)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		c.cache.store(ctx, key, values)
	}
	return values, nil
}

// CachedClimate caches known precipitation values.
type CachedClimate struct {
	inner ClimateSource
	cache *cache
}

func NewCachedClimate(inner ClimateSource, kv KV, opts CacheOptions) *CachedClimate {
	return &CachedClimate{inner: inner, cache: newCache(kv, inner.Tag(), opts)}
}

func (c *CachedClimate) Tag() string { return c.inner.Tag() }

func (c *CachedClimate) FetchPrecipitation(ctx context.Context, code string, year int) (*float64, error) {
	key := fmt.Sprintf("cii:precipitation:%s:%d", code, year)
	var v float64
	if c.cache.load(ctx, key, &v) {
		return &v, nil
	}
	p, err := c.inner.FetchPrecipitation(ctx, code, year)
	if err != nil || p == nil {
		return p, err
	}
	c.cache.store(ctx, key, *p)
	return p, nil
}
