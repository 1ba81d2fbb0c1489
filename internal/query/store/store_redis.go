package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vitalia/pkg/platform/sentinel"
)

const redisKeyPrefix = "vitalia:query:"

// RedisStore is an optional cache backend for deployments where several UI
// processes share one data layer host. Entries still expire; the registry
// remains the only durable source of truth.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// redisEnvelope is the stored shape: the encoded value plus its fetch instant.
type redisEnvelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Value     json.RawMessage `json:"value"`
}

// NewRedisStore creates a Redis-backed store. Retention bounds how long an
// entry may linger past its last fetch; it should be a comfortable multiple
// of the staleness window.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// Get retrieves an entry by key.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, fmt.Errorf("redis entry for %s is corrupt: %w", key, err)
	}
	return Entry{Value: env.Value, FetchedAt: env.FetchedAt}, nil
}

// Set stores an entry with bounded retention.
func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(redisEnvelope{FetchedAt: entry.FetchedAt, Value: entry.Value})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing key is a no-op.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	pattern := redisKeyPrefix + prefix + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k[len(redisKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
