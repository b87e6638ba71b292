package store

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mycvconnect/mhire/pkg/component/redis"
)

// RedisKV is the byte store behind the query-embedding cache.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV creates a RedisKV.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get returns (nil, false, nil) on a miss.
func (kv *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := kv.client.Client().Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value; ttl <= 0 keeps it without expiry.
func (kv *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return kv.client.Client().Set(ctx, key, value, ttl).Err()
}
