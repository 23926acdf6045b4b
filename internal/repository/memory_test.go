package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

func newTicket(owner, tenant, channel string, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:               domain.TicketID(owner, channel),
		OwnerUserID:      owner,
		TenantID:         tenant,
		ChannelID:        channel,
		Type:             domain.TicketTypeSupport,
		CreatedAt:        created,
		LastActivityTime: created,
	}
}

func TestMemoryTicketRepository_OneOpenTicketPerOwnerAndTenant(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newTicket("u1", "g1", "c1", now)))
	assert.ErrorIs(t, repo.Create(ctx, newTicket("u1", "g1", "c2", now)), ErrConflict)

	// another tenant is fine
	require.NoError(t, repo.Create(ctx, newTicket("u1", "g2", "c3", now)))

	// once closed, the owner may open again
	first, err := repo.Get(ctx, TicketFilter{ID: "u1-c1"})
	require.NoError(t, err)
	closedAt := now
	first.ClosedAt = &closedAt
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, repo.Create(ctx, newTicket("u1", "g1", "c2", now)))
}

func TestMemoryTicketRepository_ChannelUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, newTicket("u1", "g1", "c1", time.Now())))
	assert.ErrorIs(t, repo.Create(ctx, newTicket("u2", "g1", "c1", time.Now())), ErrConflict)
}

func TestMemoryTicketRepository_FiltersAreStrict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := newTicket("u1", "g1", "c1", now.Add(-73*time.Hour))
	fresh := newTicket("u2", "g1", "c2", now.Add(-71*time.Hour))
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))

	cutoff := now.Add(-72 * time.Hour)
	got, err := repo.List(ctx, TicketFilter{State: domain.TicketStateOpen, InactiveBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1-c1", got[0].ID)

	closed := now.Add(-25 * time.Hour)
	recent := now.Add(-23 * time.Hour)
	stale.ClosedAt = &closed
	fresh.ClosedAt = &recent
	require.NoError(t, repo.Update(ctx, stale))
	require.NoError(t, repo.Update(ctx, fresh))

	retention := now.Add(-24 * time.Hour)
	got, err = repo.List(ctx, TicketFilter{State: domain.TicketStateClosed, ClosedBefore: &retention})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1-c1", got[0].ID)
}

func TestMemoryTicketRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, newTicket("u1", "g1", "c1", time.Now())))

	got, err := repo.Get(ctx, TicketFilter{ChannelID: "c1"})
	require.NoError(t, err)
	got.ReasonText = "mutated"

	again, err := repo.Get(ctx, TicketFilter{ChannelID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, again.ReasonText)
}

func TestMemoryTicketRepository_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, newTicket("u1", "g1", "c1", time.Now())))
	require.NoError(t, repo.Create(ctx, newTicket("u2", "g1", "c2", time.Now())))
	require.NoError(t, repo.Create(ctx, newTicket("u3", "g2", "c3", time.Now())))

	require.NoError(t, repo.Delete(ctx, "u1-c1"))
	require.NoError(t, repo.Delete(ctx, "u1-c1"))

	n, err := repo.DeleteMany(ctx, TicketFilter{TenantID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, TicketFilter{ID: "u2-c2"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, TicketFilter{ID: "u3-c3"})
	assert.NoError(t, err)
}

func TestMemoryActionGuard(t *testing.T) {
	ctx := context.Background()
	guard := NewMemoryActionGuard().(*memoryActionGuard)
	now := time.Now()
	guard.now = func() time.Time { return now }

	ok, err := guard.Acquire(ctx, "close:u1-c1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = guard.Acquire(ctx, "close:u1-c1", time.Second)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = guard.Acquire(ctx, "close:u1-c1", time.Second)
	assert.True(t, ok)
}

func TestMemoryTicketHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketHistoryRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.Create(ctx, &domain.TicketHistory{ID: id, TenantID: "g1", EventType: "ticket_created", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{ID: "e1", TenantID: "g1"}))
	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{ID: "x1", TenantID: "g2"}))

	got, err := repo.ListByTenant(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)

	removed, err := repo.DeleteByTenant(ctx, "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	got, err = repo.ListByTenant(ctx, "g1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = repo.ListByTenant(ctx, "g2", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStaffPingStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStaffPingStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 6 * time.Hour

	_, ok, err := store.Reserve(ctx, "g1", "u1", now, cooldown)
	require.NoError(t, err)
	assert.True(t, ok)

	last, ok, err := store.Reserve(ctx, "g1", "u1", now.Add(time.Hour), cooldown)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, now, last)

	_, ok, _ = store.Reserve(ctx, "g1", "u2", now.Add(time.Hour), cooldown)
	assert.True(t, ok, "members are tracked separately")
	_, ok, _ = store.Reserve(ctx, "g2", "u1", now.Add(time.Hour), cooldown)
	assert.True(t, ok, "tenants are tracked separately")

	_, ok, _ = store.Reserve(ctx, "g1", "u1", now.Add(cooldown), cooldown)
	assert.True(t, ok, "cooldown has elapsed")

	require.NoError(t, store.Release(ctx, "g1", "u1"))
	_, ok, _ = store.Reserve(ctx, "g1", "u1", now.Add(cooldown+time.Minute), cooldown)
	assert.True(t, ok)
}
