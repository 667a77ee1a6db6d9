package shared

import (
	"context"
	"time"
)

// KeyLock serializes work on a key across processes.
// Acquire returns ok=false when the key stayed held for the whole wait;
// callers then continue and rely on database constraints.
type KeyLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// NopKeyLock always succeeds immediately
type NopKeyLock struct{}

// Acquire implements KeyLock
func (NopKeyLock) Acquire(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}
