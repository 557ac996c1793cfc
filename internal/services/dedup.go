package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "lycapay:msg:"

// Deduplicator remembers webhook message ids so redeliveries are dropped.
type Deduplicator interface {
	// Seen records messageID and reports whether it had been recorded before.
	Seen(ctx context.Context, messageID string) (bool, error)
}

// RedisDeduplicator keeps message ids in Redis with a TTL.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduplicator creates a Redis-backed deduplicator.
func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (r *RedisDeduplicator) Seen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	created, err := r.client.SetNX(ctx, dedupKeyPrefix+messageID, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

// MemoryDeduplicator is the single-process variant used without Redis.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDeduplicator creates an in-process deduplicator.
func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryDeduplicator{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryDeduplicator) Seen(_ context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, at := range m.seen {
		if now.Sub(at) >= m.ttl {
			delete(m.seen, id)
		}
	}
	if _, ok := m.seen[messageID]; ok {
		return true, nil
	}
	m.seen[messageID] = now
	return false, nil
}
