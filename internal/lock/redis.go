package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/pricelist/internal/core"
)

const (
	DefaultRedisTTL   = 30 * time.Second
	DefaultRedisRetry = 100 * time.Millisecond
)

// RedisLocker locks suppliers across instances through redislock. The lock
// is refreshed at half its TTL until released so long merges keep it.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a locker over rdb. Keys are prefixed with prefix.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if retry <= 0 {
		retry = DefaultRedisRetry
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
		retry:  retry,
	}
}

var _ core.SupplierLocker = (*RedisLocker)(nil)

// LockSupplier retries until the lock is obtained or ctx ends. Without a
// deadline on ctx, redislock gives up after one TTL.
func (l *RedisLocker) LockSupplier(ctx context.Context, scope core.Scope) (func(), error) {
	key := RedisKey(l.prefix, scope)

	lk, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, busy(err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, busy(ctx.Err())
		}
		return nil, fmt.Errorf("obtain redis lock: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lk, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				slog.Warn("redis lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(lk *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			err := lk.Refresh(ctx, l.ttl, nil)
			cancel()
			if err != nil {
				slog.Error("redis lock refresh failed", "key", key, "error", err)
				return
			}
		}
	}
}
