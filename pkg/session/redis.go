package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis.
const DefaultRedisPrefix = "ucp:session:"

// RedisStore keeps session records in Redis so several adapter instances
// share idempotency state.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	expiry time.Duration
}

// NewRedisStore creates a Redis-backed store. Records are dropped by Redis
// after expiry; zero keeps them until overwritten.
func NewRedisStore(redisClient *redis.Client, expiry time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: DefaultRedisPrefix,
		expiry: expiry,
	}
}

// Get loads the record stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &record, nil
}

// Set stores record under key.
func (s *RedisStore) Set(ctx context.Context, key string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	if err := s.redis.Set(ctx, s.prefix+key, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
