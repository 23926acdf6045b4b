package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActionGuard suppresses repeated identical interactions within a window.
type ActionGuard interface {
	// Acquire returns true when key was not seen within ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisActionGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisActionGuard stores guard keys in Redis with SET NX.
func NewRedisActionGuard(client *redis.Client, prefix string) ActionGuard {
	return &redisActionGuard{client: client, prefix: prefix}
}

func (g *redisActionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
}

type memoryActionGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryActionGuard keeps guard keys in process memory.
func NewMemoryActionGuard() ActionGuard {
	return &memoryActionGuard{expires: make(map[string]time.Time), now: time.Now}
}

func (g *memoryActionGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)

	// opportunistic cleanup keeps the map bounded
	if len(g.expires) > 1024 {
		for k, exp := range g.expires {
			if !now.Before(exp) {
				delete(g.expires, k)
			}
		}
	}
	return true, nil
}
