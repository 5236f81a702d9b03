package livetoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore tracks live tokens in Redis so single use holds across
// replicas. Keys expire with the token TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "livetoken:"}
}

func (s *RedisStore) Save(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("save live token: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("consume live token: %w", err)
	}
	return n > 0, nil
}

// MemoryStore tracks live tokens in process memory. Single-node only; used
// for development and tests when Redis is not configured.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore constructs an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[jti]
	if !ok {
		return false, nil
	}
	delete(s.tokens, jti)
	if s.now().After(expiry) {
		return false, nil
	}
	return true, nil
}

// Verify interfaces are satisfied.
var (
	_ TokenStore = (*RedisStore)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)
