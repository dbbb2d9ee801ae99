package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// KVStore implements repository.KVStore on Redis strings.
type KVStore struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewKVStore creates a Redis-backed store. Keys are prefixed with
// "<namespace>:" when namespace is set. A zero ttl stores keys without expiry.
func NewKVStore(client redis.UniversalClient, namespace string, ttl time.Duration) *KVStore {
	return &KVStore{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (s *KVStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set overwrites the value stored under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
