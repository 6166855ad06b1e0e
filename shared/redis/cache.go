package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; each instance holds a Redis client and an
// optional TTL (pass 0 for keys that should not expire).
//
// Cache failures never surface to callers: a miss falls through to the
// database and a failed write is only logged.
type ViewCache[T any] struct {
	client goredis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client goredis.UniversalClient, ttl time.Duration, log zerolog.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl, log: log.With().Str("component", "view_cache").Logger()}
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return nil, false
	}
	return &v, true
}

// Set marshals value and stores it in Redis under key.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// SetTracked stores value and records key in the index set so that every key
// of a group can be dropped at once with DeleteTracked.
func (c *ViewCache[T]) SetTracked(ctx context.Context, index, key string, value *T) {
	c.Set(ctx, key, value)
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, index, key)
	if c.ttl > 0 {
		pipe.Expire(ctx, index, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Str("index", index).Msg("cache index write failed")
	}
}

// Delete removes keys from Redis.
func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// DeleteTracked removes every key recorded under index, and the index itself.
func (c *ViewCache[T]) DeleteTracked(ctx context.Context, index string) {
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("index", index).Msg("cache index read failed")
		return
	}
	c.Delete(ctx, append(keys, index)...)
}

// Cache is the subset of ViewCache the read repositories depend on.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (*T, bool)
	Set(ctx context.Context, key string, value *T)
	SetTracked(ctx context.Context, index, key string, value *T)
	Delete(ctx context.Context, keys ...string)
	DeleteTracked(ctx context.Context, index string)
}

// NopCache always misses. It stands in when Redis is disabled.
type NopCache[T any] struct{}

func (NopCache[T]) Get(context.Context, string) (*T, bool)         { return nil, false }
func (NopCache[T]) Set(context.Context, string, *T)                {}
func (NopCache[T]) SetTracked(context.Context, string, string, *T) {}
func (NopCache[T]) Delete(context.Context, ...string)              {}
func (NopCache[T]) DeleteTracked(context.Context, string)          {}
