// Package cache keeps an in-memory snapshot of tenant ticket configurations.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
)

// DefaultRefreshInterval is the snapshot age after which a read triggers a reload.
const DefaultRefreshInterval = time.Minute

// TenantConfigSource is the read side of the config store.
type TenantConfigSource interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	List(ctx context.Context) ([]domain.TenantConfig, error)
}

// TenantConfigCache serves tenant configs from a periodically refreshed
// snapshot. Reads may be up to one refresh interval stale.
type TenantConfigCache struct {
	source   TenantConfigSource
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu       sync.RWMutex
	snapshot map[string]domain.TenantConfig
	loadedAt time.Time

	group singleflight.Group
}

// NewTenantConfigCache builds an empty cache; the first read loads it.
func NewTenantConfigCache(source TenantConfigSource, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *TenantConfigCache {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &TenantConfigCache{
		source:   source,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		snapshot: make(map[string]domain.TenantConfig),
	}
}

// Get returns the config for tenantID, refreshing first when forced or stale.
func (c *TenantConfigCache) Get(ctx context.Context, tenantID string, force bool) (domain.TenantConfig, bool) {
	c.ensureFresh(ctx, force)

	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.snapshot[tenantID]
	return cfg, ok
}

// All returns every cached config ordered by tenant id.
func (c *TenantConfigCache) All(ctx context.Context, force bool) []domain.TenantConfig {
	c.ensureFresh(ctx, force)

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.TenantConfig, 0, len(c.snapshot))
	for _, cfg := range c.snapshot {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

// Refresh reloads the full snapshot. On failure the previous snapshot stays
// in place and the error is returned for callers that care.
func (c *TenantConfigCache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("all", func() (any, error) {
		configs, err := c.source.List(ctx)
		if err != nil {
			c.metrics.RecordCacheReload(false)
			c.logger.Error("failed to reload ticket configs; keeping previous snapshot", zap.Error(err))
			return nil, err
		}

		next := make(map[string]domain.TenantConfig, len(configs))
		for _, cfg := range configs {
			next[cfg.TenantID] = cfg
		}

		c.mu.Lock()
		c.snapshot = next
		c.loadedAt = c.now()
		c.mu.Unlock()

		c.metrics.RecordCacheReload(true)
		c.logger.Debug("ticket configs reloaded", zap.Int("count", len(next)))
		return nil, nil
	})
	return err
}

// Reload re-reads a single tenant. A missing record evicts the key.
func (c *TenantConfigCache) Reload(ctx context.Context, tenantID string) (domain.TenantConfig, bool, error) {
	cfg, err := c.source.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		c.Invalidate(tenantID)
		return domain.TenantConfig{}, false, nil
	}
	if err != nil {
		c.metrics.RecordCacheReload(false)
		return domain.TenantConfig{}, false, err
	}

	c.mu.Lock()
	c.snapshot[tenantID] = *cfg
	c.mu.Unlock()
	c.metrics.RecordCacheReload(true)
	return *cfg, true, nil
}

// Invalidate removes a single tenant from the snapshot.
func (c *TenantConfigCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshot, tenantID)
}

func (c *TenantConfigCache) ensureFresh(ctx context.Context, force bool) {
	c.mu.RLock()
	stale := c.loadedAt.IsZero() || c.now().Sub(c.loadedAt) > c.interval
	c.mu.RUnlock()

	if force || stale {
		// errors are logged inside Refresh; readers get the last snapshot
		_ = c.Refresh(ctx)
	}
}
