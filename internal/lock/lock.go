// Package lock serializes work on a shared key across API instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"
)

// ErrNotObtained means another holder owns the key.
var ErrNotObtained = errors.New("lock is held by another request")

// Locker runs fn while holding the lock for key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// RedisLocker uses redislock with a short retry window.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

func NewRedisLocker(client *redislock.Client, ttl, wait time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, log: log}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.wait/(100*time.Millisecond))),
	}
	lk, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrNotObtained
	}
	if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	defer release(lk, key, &l.log)
	return fn(ctx)
}

type releaser interface {
	Release(ctx context.Context) error
}

// release frees a held lock. A lock that cannot be released expires after
// its TTL, so the failure is only logged.
func release(lk releaser, key string, log *zerolog.Logger) {
	if err := lk.Release(context.Background()); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release lock")
	}
}

// LocalLocker serializes by key inside one process. It is used when Redis
// is not configured. Keys are dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localLock{}}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	defer func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()
	return fn(ctx)
}
