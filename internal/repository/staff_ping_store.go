package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StaffPingStore tracks the last staff ping of each member per tenant.
type StaffPingStore interface {
	// Reserve records a ping by userID at now unless an earlier ping lies
	// within cooldown. When refused it returns false and the earlier ping time.
	Reserve(ctx context.Context, tenantID, userID string, now time.Time, cooldown time.Duration) (time.Time, bool, error)
	// Release forgets the reservation of a ping that could not be delivered.
	Release(ctx context.Context, tenantID, userID string) error
}

func staffPingKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

type redisStaffPingStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStaffPingStore keeps one key per member that expires with the cooldown.
func NewRedisStaffPingStore(client *redis.Client, prefix string) StaffPingStore {
	return &redisStaffPingStore{client: client, prefix: prefix}
}

func (s *redisStaffPingStore) Reserve(ctx context.Context, tenantID, userID string, now time.Time, cooldown time.Duration) (time.Time, bool, error) {
	key := s.prefix + staffPingKey(tenantID, userID)
	// a key can expire between SETNX and GET, so try twice
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, key, now.UnixMilli(), cooldown).Result()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("reserve staff ping: %w", err)
		}
		if ok {
			return now, true, nil
		}
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return time.Time{}, false, fmt.Errorf("read staff ping: %w", err)
		}
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("decode staff ping %q: %w", raw, err)
		}
		return time.UnixMilli(millis).UTC(), false, nil
	}
	return time.Time{}, false, fmt.Errorf("reserve staff ping: key %s kept changing", key)
}

func (s *redisStaffPingStore) Release(ctx context.Context, tenantID, userID string) error {
	return s.client.Del(ctx, s.prefix+staffPingKey(tenantID, userID)).Err()
}

// MemoryStaffPingStore keeps ping times in process memory.
type MemoryStaffPingStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewMemoryStaffPingStore returns an empty store.
func NewMemoryStaffPingStore() *MemoryStaffPingStore {
	return &MemoryStaffPingStore{last: make(map[string]time.Time)}
}

func (s *MemoryStaffPingStore) Reserve(_ context.Context, tenantID, userID string, now time.Time, cooldown time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := staffPingKey(tenantID, userID)
	if prev, ok := s.last[key]; ok && now.Before(prev.Add(cooldown)) {
		return prev, false, nil
	}
	s.last[key] = now
	return now, true, nil
}

func (s *MemoryStaffPingStore) Release(_ context.Context, tenantID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, staffPingKey(tenantID, userID))
	return nil
}
