package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "attendance:draft:"

// RedisStore keeps drafts in Redis as JSON with an expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Draft, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft %s: %w", key, err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", key, err)
	}
	return &d, nil
}

func (s *RedisStore) Save(ctx context.Context, key Key, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft %s: %w", key, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write draft %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}

// MemoryStore is a process-local store used when Redis is not configured.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: map[Key][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Draft, error) {
	s.mu.RLock()
	raw, ok := s.drafts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save stores a serialized copy so later mutation by the caller is not seen.
func (s *MemoryStore) Save(_ context.Context, key Key, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.drafts[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.drafts, key)
	s.mu.Unlock()
	return nil
}
