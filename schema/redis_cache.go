package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultSchemaCacheTTL is deliberately long: resolved schemas rarely
// change once a registry is loaded.
const DefaultSchemaCacheTTL = 24 * time.Hour

// DefaultRedisPrefix namespaces cache keys for multi-tenant deployments.
const DefaultRedisPrefix = "stepflow:schema:"

// RedisCache is an optional decorator that shares resolved schemas across
// runner replicas, mirroring the teacher's core.RedisSchemaCache. It sits
// in front of Resolver.Resolve: a hit skips the resolver entirely, a miss
// falls through and the freshly resolved result is written back.
type RedisCache struct {
	client   *redis.Client
	resolver *Resolver
	ttl      time.Duration
	prefix   string

	hits   int64
	misses int64
}

// RedisCacheOption customizes a RedisCache.
type RedisCacheOption func(*RedisCache)

// WithTTL overrides DefaultSchemaCacheTTL.
func WithTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) { c.ttl = ttl }
}

// WithPrefix overrides DefaultRedisPrefix.
func WithPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// NewRedisCache wraps resolver with a Redis-backed cache in front of it.
func NewRedisCache(client *redis.Client, resolver *Resolver, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client:   client,
		resolver: resolver,
		ttl:      DefaultSchemaCacheTTL,
		prefix:   DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve checks Redis first, falling back to the wrapped Resolver and
// populating Redis on success. Redis errors degrade gracefully to a
// resolver-only resolution — never to a hard failure — keeping the cache
// purely additive to the 2-strike contract in Manager.
func (c *RedisCache) Resolve(ctx context.Context, file, schemaName string) (map[string]interface{}, error) {
	key := c.key(file, schemaName)

	if val, err := c.client.Get(ctx, key).Result(); err == nil {
		var schema map[string]interface{}
		if jsonErr := json.Unmarshal([]byte(val), &schema); jsonErr == nil {
			atomic.AddInt64(&c.hits, 1)
			return schema, nil
		}
	}
	atomic.AddInt64(&c.misses, 1)

	schema, err := c.resolver.Resolve(file, schemaName)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(schema); err == nil {
		_ = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	return schema, nil
}

func (c *RedisCache) key(file, schemaName string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, file, schemaName)
}

// Stats reports Redis-layer hit/miss counters, in addition to the
// underlying Resolver's own Stats().
func (c *RedisCache) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	return map[string]interface{}{
		"redis_hits":   hits,
		"redis_misses": misses,
		"resolver":     c.resolver.Stats(),
	}
}
