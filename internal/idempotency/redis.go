package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"av-rental/internal/model"

	"github.com/redis/go-redis/v9"
)

// inFlight marks a reserved key whose request has not finished yet.
const inFlight = "in-flight"

// RedisStore keeps reservations and results in Redis so retries land on the
// same answer across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store whose entries expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*model.CheckoutSession, error) {
	// A key can expire between SetNX and Get; one retry covers that window.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, key, inFlight, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return nil, nil
		}

		session, err := s.get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			continue
		}
		return session, err
	}
	return nil, model.ErrCheckoutInProgress
}

func (s *RedisStore) get(ctx context.Context, key string) (*model.CheckoutSession, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if string(data) == inFlight {
		return nil, model.ErrCheckoutInProgress
	}

	var session model.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session failed: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, session *model.CheckoutSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal checkout session failed: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
