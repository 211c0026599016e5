// Package cache keeps derived dispatch statistics in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-dispatch-ws/internal/service"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient pings before returning so a bad address fails at startup.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// StatsCache namespaces entries under a generation counter. Invalidate bumps the
// generation, so every earlier entry becomes unreachable at once and expires by TTL.
type StatsCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Verify interface compliance
var _ service.StatsCache = (*StatsCache)(nil)

func NewStatsCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) *StatsCache {
	if prefix == "" {
		prefix = "dispatch:stats"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *StatsCache) Get(ctx context.Context, key string) ([]byte, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := c.rdb.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}
	return raw, gen, true, nil
}

// Set stores value under gen, the generation returned by the Get that missed.
func (c *StatsCache) Set(ctx context.Context, key string, gen int64, value []byte) error {
	return c.rdb.Set(ctx, c.entryKey(gen, key), value, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, c.genKey()).Err()
}

func (c *StatsCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *StatsCache) genKey() string {
	return c.prefix + ":gen"
}

func (c *StatsCache) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}
