package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/redis/go-redis/v9"
)

const linkKeyPrefix = "tablelink:link:"

// RedisStore shares entries between instances. Keys expire after the
// retention passed to PutNew.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) PutNew(ctx context.Context, entry domain.LinkEntry, retention time.Duration) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to encode link entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ok, err := s.client.SetNX(ctx, linkKeyPrefix+entry.Code, data, retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store link entry: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (domain.LinkEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, linkKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LinkEntry{}, ErrNotFound
	}
	if err != nil {
		return domain.LinkEntry{}, fmt.Errorf("failed to read link entry: %w", err)
	}

	var entry domain.LinkEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.LinkEntry{}, fmt.Errorf("failed to decode link entry: %w", err)
	}
	return entry, nil
}

func (s *RedisStore) Delete(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	n, err := s.client.Del(ctx, linkKeyPrefix+code).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete link entry: %w", err)
	}
	return n > 0, nil
}

const idempotencyKeyPrefix = "tablelink:"

// RedisIdempotencyStore backs the idempotency middleware with Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, value, ttl).Err()
}
