package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/cache"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/guild-ticket-bot/pkg/util/errorutil"
)

type syncFixture struct {
	svc      *SyncService
	configs  *repository.MemoryTenantConfigRepository
	tickets  *repository.MemoryTicketRepository
	history  *repository.MemoryTicketHistoryRepository
	cache    *cache.TenantConfigCache
	platform *fakePlatform
}

func newSyncFixture(t *testing.T, seed ...domain.TenantConfig) *syncFixture {
	t.Helper()
	f := &syncFixture{
		configs:  repository.NewMemoryTenantConfigRepository(seed...),
		tickets:  repository.NewMemoryTicketRepository(),
		history:  repository.NewMemoryTicketHistoryRepository(),
		platform: newFakePlatform(),
	}
	f.cache = cache.NewTenantConfigCache(f.configs, time.Minute, zap.NewNop(), nil)
	f.platform.addChannel(platform.Channel{ID: "intake", GuildID: "g1", Name: "tickets"})
	f.svc = NewSyncService(SyncDependencies{
		Configs:  f.configs,
		Tickets:  f.tickets,
		History:  f.history,
		Cache:    f.cache,
		Platform: f.platform,
		Logger:   zap.NewNop(),
	})
	return f
}

func TestEnsurePromptIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	posted, err := f.svc.EnsurePrompt(ctx, testConfig())
	require.NoError(t, err)
	assert.True(t, posted)

	posted, err = f.svc.EnsurePrompt(ctx, testConfig())
	require.NoError(t, err)
	assert.False(t, posted)

	msgs := f.platform.messages("intake")
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Rows, 1)
	require.NotNil(t, msgs[0].Rows[0].Select)
	assert.Equal(t, string(domain.ActionSelectType), msgs[0].Rows[0].Select.CustomID)
	assert.Len(t, msgs[0].Rows[0].Select.Options, len(domain.TicketTypes))
}

func TestEnsurePromptIgnoresOtherChatter(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	_, err := f.platform.SendMessage(ctx, "intake", platform.OutgoingMessage{Content: "hello"})
	require.NoError(t, err)

	posted, err := f.svc.EnsurePrompt(ctx, testConfig())
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestEnsurePromptSkipsMissingIntake(t *testing.T) {
	f := newSyncFixture(t)
	cfg := testConfig()
	cfg.IntakeChannelID = "gone"

	posted, err := f.svc.EnsurePrompt(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, posted)

	cfg.IntakeChannelID = ""
	posted, err = f.svc.EnsurePrompt(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, posted)
}

func TestSyncAllCoversEnabledTenants(t *testing.T) {
	disabled := testConfig()
	disabled.TenantID = "g2"
	disabled.IntakeChannelID = "intake2"
	disabled.Enabled = false
	f := newSyncFixture(t, testConfig(), disabled)
	f.platform.addChannel(platform.Channel{ID: "intake2", GuildID: "g2"})

	f.svc.SyncAll(context.Background())
	f.svc.SyncAll(context.Background())

	assert.Len(t, f.platform.messages("intake"), 1)
	assert.Empty(t, f.platform.messages("intake2"))
}

func TestUpsertTenantValidatesAndReloads(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertTenant(ctx, domain.TenantConfig{TenantID: "g1", Enabled: true})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	cfg, err := f.svc.UpsertTenant(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "intake", cfg.IntakeChannelID)
	assert.False(t, cfg.UpdatedAt.IsZero())

	cached, ok := f.cache.Get(ctx, "g1", false)
	require.True(t, ok)
	assert.Equal(t, "staff", cached.AdminRoleID)
	assert.Len(t, f.platform.messages("intake"), 1)

	stored, err := f.svc.Tenant(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "archive", stored.ArchiveCategoryID)
}

func TestReloadAndTenantUnknown(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.ReloadTenant(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.Tenant(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDecommissionTenantRemovesEverything(t *testing.T) {
	other := testConfig()
	other.TenantID = "g2"
	f := newSyncFixture(t, testConfig(), other)
	ctx := context.Background()

	for i, owner := range []string{"u1", "u2"} {
		ch := "c" + owner
		require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{
			ID: domain.TicketID(owner, ch), OwnerUserID: owner, TenantID: "g1", ChannelID: ch,
			CreatedAt: time.Unix(int64(i), 0),
		}))
	}
	require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{ID: "u3-c9", OwnerUserID: "u3", TenantID: "g2", ChannelID: "c9"}))
	require.NoError(t, f.history.Create(ctx, &domain.TicketHistory{ID: "h1", TenantID: "g1", EventType: "ticket_created"}))
	require.NoError(t, f.history.Create(ctx, &domain.TicketHistory{ID: "h2", TenantID: "g2", EventType: "ticket_created"}))
	_, ok := f.cache.Get(ctx, "g1", true)
	require.True(t, ok)

	removed, err := f.svc.DecommissionTenant(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, ok = f.cache.Get(ctx, "g1", false)
	assert.False(t, ok)
	_, err = f.configs.Get(ctx, "g1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	left, err := f.svc.TenantTickets(ctx, "g2", "", 0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
	gone, err := f.svc.TenantTickets(ctx, "g1", "", 0)
	require.NoError(t, err)
	assert.Empty(t, gone)

	entries, err := f.history.ListByTenant(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	entries, err = f.history.ListByTenant(ctx, "g2", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTenantTicketsFiltersByState(t *testing.T) {
	f := newSyncFixture(t, testConfig())
	ctx := context.Background()
	closedAt := time.Unix(100, 0)
	require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{ID: "u1-c1", OwnerUserID: "u1", TenantID: "g1", ChannelID: "c1"}))
	require.NoError(t, f.tickets.Create(ctx, &domain.Ticket{ID: "u1-c2", OwnerUserID: "u1", TenantID: "g1", ChannelID: "c2", ClosedAt: &closedAt}))

	open, err := f.svc.TenantTickets(ctx, "g1", domain.TicketStateOpen, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "c1", open[0].ChannelID)

	closed, err := f.svc.TenantTickets(ctx, "g1", domain.TicketStateClosed, 10)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "c2", closed[0].ChannelID)
}
