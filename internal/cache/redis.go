package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pricescan/internal/models"
)

// RedisCache mirrors resolved prices in Redis with a fixed TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing client and pings it once to make sure the
// server is reachable.
func NewRedisCache(ctx context.Context, rdb *redis.Client, ttl time.Duration) (*RedisCache, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, token, network string, ts int64) (float64, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(token, network, ts)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get: %w", err)
	}

	var p entryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return 0, false, nil
	}
	return p.Price, true, nil
}

func (c *RedisCache) Set(ctx context.Context, token, network string, ts int64, price float64, source models.Source) error {
	b, err := json.Marshal(entryPayload{Price: price, Source: string(source)})
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, Key(token, network, ts), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
