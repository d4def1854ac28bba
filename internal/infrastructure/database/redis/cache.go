package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

const nullMarker = "__null__"

// Loader produces the value for a cache key on a miss.  Returning an untyped
// nil records a negative entry and makes GetOrSet report ErrCacheMiss.
type Loader func(ctx context.Context) (interface{}, error)

// Cache is the read-through result cache used by the search service for
// compound details, publication lists and autocomplete suggestions.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// GetOrSet fills dest from the cache, or from loader on a miss.  Cache
	// outages never fail the call; the loader result is returned instead.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error

	Ping(ctx context.Context) error
}

// Recorder receives one observation per GetOrSet call.  result is "hit",
// "miss" or "error".
type Recorder interface {
	RecordResultCache(cache, result string)
}

type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (s *jsonSerializer) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *jsonSerializer) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

type redisCache struct {
	client       *Client
	logger       logging.Logger
	name         string
	prefix       string
	defaultTTL   time.Duration
	serializer   Serializer
	nullCacheTTL time.Duration
	recorder     Recorder
	singleflight singleflight.Group
}

type CacheOption func(*redisCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

func WithNullCacheTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.nullCacheTTL = ttl }
}

// WithRecorder reports hits and misses under name.
func WithRecorder(name string, r Recorder) CacheOption {
	return func(c *redisCache) {
		c.name = name
		c.recorder = r
	}
}

func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{
		client:       client,
		logger:       log,
		name:         "result",
		prefix:       "metabo:",
		defaultTTL:   15 * time.Minute,
		serializer:   &jsonSerializer{},
		nullCacheTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return 0
	}
	// +/- 10%
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

func (c *redisCache) record(result string) {
	if c.recorder != nil {
		c.recorder.RecordResultCache(c.name, result)
	}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	_, err := c.lookup(ctx, key, dest)
	return err
}

// lookup decodes key into dest.  negative is true when the key holds the
// marker written for a loader that found nothing.
func (c *redisCache) lookup(ctx context.Context, key string, dest interface{}) (negative bool, err error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return false, ErrCacheMiss
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	if string(data) == nullMarker {
		return true, ErrCacheMiss
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return false, ErrSerializationFailed.WithCause(err)
	}
	return false, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache entry")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	if err := c.client.Del(ctx, fullKeys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete cache entries")
	}
	return nil
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader Loader) error {
	negative, err := c.lookup(ctx, key, dest)
	switch {
	case err == nil:
		c.record("hit")
		return nil
	case negative:
		c.record("hit")
		return ErrCacheMiss
	case errors.Is(err, ErrCacheMiss):
		c.record("miss")
	default:
		c.record("error")
		c.logger.Warn("Result cache read failed, loading from source",
			logging.String("key", key), logging.Err(err))
	}

	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			if setErr := c.client.Set(ctx, c.fullKey(key), nullMarker, c.nullCacheTTL).Err(); setErr != nil {
				c.logger.Warn("Failed to cache negative entry", logging.String("key", key), logging.Err(setErr))
			}
			return nil, nil
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			c.logger.Warn("Failed to set cache in GetOrSet", logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	if val == nil {
		return ErrCacheMiss
	}
	return copyInto(c.serializer, val, dest)
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// copyInto moves a loaded value into dest through the serializer so that
// cached and freshly loaded values decode identically.
func copyInto(s Serializer, val, dest interface{}) error {
	data, err := s.Marshal(val)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := s.Unmarshal(data, dest); err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// passthrough
// ─────────────────────────────────────────────────────────────────────────────

type passthroughCache struct {
	serializer Serializer
}

// NewPassthroughCache returns a Cache that stores nothing.  GetOrSet always
// calls the loader.  It is used when redis.enabled is false.
func NewPassthroughCache() Cache {
	return &passthroughCache{serializer: &jsonSerializer{}}
}

func (p *passthroughCache) Get(context.Context, string, interface{}) error { return ErrCacheMiss }

func (p *passthroughCache) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}

func (p *passthroughCache) Delete(context.Context, ...string) error { return nil }

func (p *passthroughCache) GetOrSet(ctx context.Context, _ string, dest interface{}, _ time.Duration, loader Loader) error {
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrCacheMiss
	}
	return copyInto(p.serializer, v, dest)
}

func (p *passthroughCache) Ping(context.Context) error { return nil }
