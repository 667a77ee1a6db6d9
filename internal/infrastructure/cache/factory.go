package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/infrastructure/config"
)

// NewHintStore picks the hint store named in cfg. A redis store without a
// client falls back to memory so a single instance keeps working.
func NewHintStore(cfg config.IdentityConfig, client redis.UniversalClient, log *zap.Logger) identity.HintStore {
	if cfg.HintStore == "redis" {
		if client != nil {
			return NewRedisHintStore(client, "")
		}
		log.Warn("Redis hint store requested but Redis is unavailable, using memory")
	}
	return NewMemoryHintStore(time.Minute)
}

// NewKeyLock returns a Redis lock when a client is configured, otherwise a no-op lock
func NewKeyLock(client redis.UniversalClient) appshared.KeyLock {
	if client == nil {
		return appshared.NopKeyLock{}
	}
	return NewRedisKeyLock(client, 50*time.Millisecond, 20)
}
