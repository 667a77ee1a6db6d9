package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerbase/backend/internal/domain/identity"
)

const hintKeyPrefix = "identity:hint:"

type hintEntry struct {
	value     *identity.Introspection
	expiresAt time.Time
}

// MemoryHintStore keeps introspection hints in process memory.
// Suitable for single-instance deployments and tests.
type MemoryHintStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]hintEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryHintStore creates the store and starts a sweeper for expired hints
func NewMemoryHintStore(sweepInterval time.Duration) *MemoryHintStore {
	s := &MemoryHintStore{
		entries:  make(map[uuid.UUID]hintEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns a copy of the hint for actorID
func (s *MemoryHintStore) Get(_ context.Context, actorID uuid.UUID) (*identity.Introspection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[actorID]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return cloneIntrospection(e.value), true, nil
}

// Set stores a copy of value for ttl
func (s *MemoryHintStore) Set(_ context.Context, actorID uuid.UUID, value *identity.Introspection, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[actorID] = hintEntry{value: cloneIntrospection(value), expiresAt: s.now().Add(ttl)}
	return nil
}

// Invalidate drops the hints of the given actors
func (s *MemoryHintStore) Invalidate(_ context.Context, actorIDs ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range actorIDs {
		delete(s.entries, id)
	}
	return nil
}

// Size returns the number of stored hints, expired ones included
func (s *MemoryHintStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweeper
func (s *MemoryHintStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryHintStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryHintStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func cloneIntrospection(in *identity.Introspection) *identity.Introspection {
	out := *in
	out.Organizations = make([]identity.OrganizationAccess, len(in.Organizations))
	for i, o := range in.Organizations {
		o.Roles = slices.Clone(o.Roles)
		o.Permissions = slices.Clone(o.Permissions)
		o.Apps = slices.Clone(o.Apps)
		out.Organizations[i] = o
	}
	return &out
}

// RedisHintStore shares introspection hints between instances
type RedisHintStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisHintStore creates a store over an existing client
func NewRedisHintStore(client redis.UniversalClient, keyPrefix string) *RedisHintStore {
	if keyPrefix == "" {
		keyPrefix = hintKeyPrefix
	}
	return &RedisHintStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisHintStore) key(actorID uuid.UUID) string {
	return s.keyPrefix + actorID.String()
}

// Get reads and decodes the hint for actorID
func (s *RedisHintStore) Get(ctx context.Context, actorID uuid.UUID) (*identity.Introspection, bool, error) {
	raw, err := s.client.Get(ctx, s.key(actorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read identity hint: %w", err)
	}
	var out identity.Introspection
	if err := json.Unmarshal(raw, &out); err != nil {
		// a hint that cannot be decoded is treated as a miss
		return nil, false, nil
	}
	return &out, true, nil
}

// Set stores value under the actor's key with ttl
func (s *RedisHintStore) Set(ctx context.Context, actorID uuid.UUID, value *identity.Introspection, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode identity hint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(actorID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write identity hint: %w", err)
	}
	return nil
}

// Invalidate deletes the hints of the given actors
func (s *RedisHintStore) Invalidate(ctx context.Context, actorIDs ...uuid.UUID) error {
	if len(actorIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(actorIDs))
	for _, id := range actorIDs {
		keys = append(keys, s.key(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate identity hints: %w", err)
	}
	return nil
}

var (
	_ identity.HintStore = (*MemoryHintStore)(nil)
	_ identity.HintStore = (*RedisHintStore)(nil)
)
