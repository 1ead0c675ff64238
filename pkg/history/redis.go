// Package history persists region selection counts outside the process so
// fairness survives restarts and is shared between replicas.
package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the hash holding region -> selection count.
const DefaultKey = "carbonsched:selections"

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisHistory implements fairness.HistoryStore on a single Redis hash.
type RedisHistory struct {
	client *redis.Client
	key    string
}

func NewRedisHistory(client *redis.Client, key string) *RedisHistory {
	if key == "" {
		key = DefaultKey
	}
	return &RedisHistory{client: client, key: key}
}

func (h *RedisHistory) Increment(ctx context.Context, region string) error {
	if err := h.client.HIncrBy(ctx, h.key, region, 1).Err(); err != nil {
		return fmt.Errorf("history: increment %s: %w", region, err)
	}
	return nil
}

func (h *RedisHistory) Counts(ctx context.Context) (map[string]int64, error) {
	data, err := h.client.HGetAll(ctx, h.key).Result()
	if err != nil {
		return nil, fmt.Errorf("history: read counts: %w", err)
	}
	out := make(map[string]int64, len(data))
	for region, raw := range data {
		n, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			continue
		}
		out[region] = n
	}
	return out, nil
}

// Reset clears all counts.
func (h *RedisHistory) Reset(ctx context.Context) error {
	return h.client.Del(ctx, h.key).Err()
}

func (h *RedisHistory) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}
