package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the counter backend on Redis sorted sets, one set
// per key with event timestamps as scores. Useful when several API
// instances must share limits.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Record(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	zkey := "ratelimit:" + key

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, zkey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	count := pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record rate event: %w", err)
	}
	return int(count.Val()), nil
}

func (r *RedisStore) Blocked(ctx context.Context, ip string) (bool, error) {
	exists, err := r.client.Exists(ctx, "ratelimit:block:"+ip).Result()
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists > 0, nil
}

func (r *RedisStore) Block(ctx context.Context, ip string, duration time.Duration) error {
	if err := r.client.Set(ctx, "ratelimit:block:"+ip, "1", duration).Err(); err != nil {
		return fmt.Errorf("block ip: %w", err)
	}
	return nil
}
