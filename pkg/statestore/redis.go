package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veridian-labs/govpipe/pkg/domain"
)

// RedisStore is a Store backed by Redis, for deployments where multiple
// pipeline instances share the idempotency cache. A zero TTL keeps entries
// until evicted.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient builds a client from an address like "localhost:6379".
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (s *RedisStore) Get(ctx context.Context, workflowType, eventID string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, Key(workflowType, eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return Decode(raw)
}

func (s *RedisStore) Set(ctx context.Context, workflowType, eventID string, state map[string]any) error {
	raw, err := Encode(state)
	if err != nil {
		return err
	}
	key := Key(workflowType, eventID)

	existing, err := s.client.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if err == nil {
		if sameContent(existing, raw) {
			return nil
		}
		return domain.NewIdempotencyConflictError(eventID,
			"finalized state for event "+eventID+" diverged from the stored entry")
	}

	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
