package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
)

type countingSource struct {
	*repository.MemoryTenantConfigRepository
	lists atomic.Int32
	fail  atomic.Bool
}

func (s *countingSource) List(ctx context.Context) ([]domain.TenantConfig, error) {
	s.lists.Add(1)
	if s.fail.Load() {
		return nil, errors.New("store unavailable")
	}
	return s.MemoryTenantConfigRepository.List(ctx)
}

func newFixture(t *testing.T, seed ...domain.TenantConfig) (*TenantConfigCache, *countingSource, *time.Time) {
	t.Helper()
	src := &countingSource{MemoryTenantConfigRepository: repository.NewMemoryTenantConfigRepository(seed...)}
	c := NewTenantConfigCache(src, time.Minute, zap.NewNop(), nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, src, &now
}

func TestCache_LoadsLazilyAndRespectsInterval(t *testing.T) {
	ctx := context.Background()
	c, src, now := newFixture(t, domain.TenantConfig{TenantID: "g1", Enabled: true})

	cfg, ok := c.Get(ctx, "g1", false)
	require.True(t, ok)
	assert.Equal(t, "g1", cfg.TenantID)
	assert.Equal(t, int32(1), src.lists.Load())

	*now = now.Add(30 * time.Second)
	c.Get(ctx, "g1", false)
	assert.Equal(t, int32(1), src.lists.Load())

	*now = now.Add(31 * time.Second)
	c.Get(ctx, "g1", false)
	assert.Equal(t, int32(2), src.lists.Load())

	c.Get(ctx, "g1", true)
	assert.Equal(t, int32(3), src.lists.Load())
}

func TestCache_KeepsSnapshotWhenReloadFails(t *testing.T) {
	ctx := context.Background()
	c, src, _ := newFixture(t, domain.TenantConfig{TenantID: "g1"})

	_, ok := c.Get(ctx, "g1", false)
	require.True(t, ok)

	src.fail.Store(true)
	_, ok = c.Get(ctx, "g1", true)
	assert.True(t, ok)
	assert.Error(t, c.Refresh(ctx))
}

func TestCache_ReloadSingleKeyAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c, src, _ := newFixture(t, domain.TenantConfig{TenantID: "g1", AdminRoleID: "r1"})
	c.Get(ctx, "g1", false)

	require.NoError(t, src.Upsert(ctx, &domain.TenantConfig{TenantID: "g1", AdminRoleID: "r2"}))
	cfg, ok, err := c.Reload(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r2", cfg.AdminRoleID)

	require.NoError(t, src.Delete(ctx, "g1"))
	_, ok, err = c.Reload(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Invalidate("g1")
	all := c.All(ctx, false)
	assert.Empty(t, all)
}

func TestCache_ConcurrentReadersShareOneReload(t *testing.T) {
	ctx := context.Background()
	c, src, _ := newFixture(t, domain.TenantConfig{TenantID: "g1"}, domain.TenantConfig{TenantID: "g2"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.All(ctx, false)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, src.lists.Load(), int32(20))
	assert.Len(t, c.All(ctx, false), 2)
}
