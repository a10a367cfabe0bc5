package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/metrics"
	"accredit-dashboard/internal/pkg/secret"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "accredit:records:"

// Commander is the subset of the go-redis client the record cache uses
type Commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient builds a go-redis client from config
func NewRedisClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// RecordCache keeps fetched collections for a short TTL, one entry per kind
// and upstream token so a list is only served to the credentials that read it.
// Each kind carries a generation counter; Invalidate bumps it, which retires
// every user's entry for that kind at once.
type RecordCache struct {
	client  Commander
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewRecordCache(client Commander, ttl time.Duration, m *metrics.Metrics) *RecordCache {
	return &RecordCache{client: client, ttl: ttl, metrics: m}
}

func generationKey(kind domain.RecordKind) string {
	return keyPrefix + string(kind) + ":gen"
}

func entryKey(kind domain.RecordKind, generation, token string) string {
	return keyPrefix + string(kind) + ":" + generation + ":" + secret.HashToken(token)
}

func (c *RecordCache) generation(ctx context.Context, kind domain.RecordKind) (string, error) {
	gen, err := c.client.Get(ctx, generationKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Load decodes the collection cached for token into dest. It reports false on a miss.
func (c *RecordCache) Load(ctx context.Context, kind domain.RecordKind, token string, dest interface{}) (bool, error) {
	gen, err := c.generation(ctx, kind)
	if err != nil {
		c.metrics.CacheLookup("error")
		return false, fmt.Errorf("cache generation %s: %w", kind, err)
	}

	raw, err := c.client.Get(ctx, entryKey(kind, gen, token)).Result()
	if errors.Is(err, redis.Nil) {
		c.metrics.CacheLookup("miss")
		return false, nil
	}
	if err != nil {
		c.metrics.CacheLookup("error")
		return false, fmt.Errorf("cache get %s: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.metrics.CacheLookup("error")
		return false, fmt.Errorf("cache decode %s: %w", kind, err)
	}
	c.metrics.CacheLookup("hit")
	return true, nil
}

// Store caches value for token under the current generation of kind
func (c *RecordCache) Store(ctx context.Context, kind domain.RecordKind, token string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", kind, err)
	}
	gen, err := c.generation(ctx, kind)
	if err != nil {
		return fmt.Errorf("cache generation %s: %w", kind, err)
	}
	return c.client.Set(ctx, entryKey(kind, gen, token), string(raw), c.ttl).Err()
}

// Invalidate retires every cached collection of kind
func (c *RecordCache) Invalidate(ctx context.Context, kind domain.RecordKind) error {
	return c.client.Incr(ctx, generationKey(kind)).Err()
}

// Ping checks the Redis connection
func (c *RecordCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
