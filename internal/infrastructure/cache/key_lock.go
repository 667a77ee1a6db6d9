package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

const lockKeyPrefix = "ledger:lock:"

// RedisKeyLock is a distributed lock per key backed by redislock
type RedisKeyLock struct {
	locker  *redislock.Client
	backoff time.Duration
	retries int
}

// NewRedisKeyLock creates a lock client; a contended key is retried retries times, backoff apart
func NewRedisKeyLock(client redis.UniversalClient, backoff time.Duration, retries int) *RedisKeyLock {
	return &RedisKeyLock{locker: redislock.New(client), backoff: backoff, retries: retries}
}

// Acquire obtains the lock for key, holding it at most ttl
func (l *RedisKeyLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	}
	lock, err := l.locker.Obtain(ctx, lockKeyPrefix+key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	release := func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.L(ctx).Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

var _ appshared.KeyLock = (*RedisKeyLock)(nil)
