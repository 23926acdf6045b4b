package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// MemoryTicketRepository is an in-process TicketRepository used when no
// database is configured and in tests. It enforces the same uniqueness rules
// as the PostgreSQL schema.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[ticket.ID]; ok {
		return ErrConflict
	}
	if err := r.checkUnique(*ticket); err != nil {
		return err
	}
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) Get(ctx context.Context, filter TicketFilter) (*domain.Ticket, error) {
	filter.Limit = 1
	tickets, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, t := range r.tickets {
		if matches(t, filter) {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[ticket.ID]; !ok {
		return ErrNotFound
	}
	if err := r.checkUnique(*ticket); err != nil {
		return err
	}
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *MemoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
	return nil
}

func (r *MemoryTicketRepository) DeleteMany(_ context.Context, filter TicketFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tickets {
		if matches(t, filter) {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}

// checkUnique mirrors the unique channel index and the partial index on open
// tickets per (owner, tenant). Caller holds the lock.
func (r *MemoryTicketRepository) checkUnique(candidate domain.Ticket) error {
	for id, t := range r.tickets {
		if id == candidate.ID {
			continue
		}
		if t.ChannelID == candidate.ChannelID {
			return ErrConflict
		}
		if t.ClosedAt == nil && candidate.ClosedAt == nil &&
			t.OwnerUserID == candidate.OwnerUserID && t.TenantID == candidate.TenantID {
			return ErrConflict
		}
	}
	return nil
}

func matches(t domain.Ticket, f TicketFilter) bool {
	switch {
	case f.ID != "" && t.ID != f.ID:
		return false
	case f.OwnerUserID != "" && t.OwnerUserID != f.OwnerUserID:
		return false
	case f.TenantID != "" && t.TenantID != f.TenantID:
		return false
	case f.ChannelID != "" && t.ChannelID != f.ChannelID:
		return false
	case f.State != "" && t.State() != f.State:
		return false
	case f.InactiveBefore != nil && !t.LastActivityTime.Before(*f.InactiveBefore):
		return false
	case f.ClosedBefore != nil && (t.ClosedAt == nil || !t.ClosedAt.Before(*f.ClosedBefore)):
		return false
	}
	return true
}

// MemoryTenantConfigRepository is an in-process TenantConfigRepository.
type MemoryTenantConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]domain.TenantConfig
	now     func() time.Time
}

// NewMemoryTenantConfigRepository builds a store seeded with configs.
func NewMemoryTenantConfigRepository(seed ...domain.TenantConfig) *MemoryTenantConfigRepository {
	r := &MemoryTenantConfigRepository{
		configs: make(map[string]domain.TenantConfig),
		now:     time.Now,
	}
	for _, cfg := range seed {
		r.configs[cfg.TenantID] = cfg
	}
	return r
}

func (r *MemoryTenantConfigRepository) Get(_ context.Context, tenantID string) (*domain.TenantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (r *MemoryTenantConfigRepository) List(_ context.Context) ([]domain.TenantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.TenantConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TenantID < result[j].TenantID })
	return result, nil
}

func (r *MemoryTenantConfigRepository) Upsert(_ context.Context, cfg *domain.TenantConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.UpdatedAt = r.now()
	r.configs[cfg.TenantID] = *cfg
	return nil
}

func (r *MemoryTenantConfigRepository) Delete(_ context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, tenantID)
	return nil
}

// MemoryTicketHistoryRepository is an in-process TicketHistoryRepository.
type MemoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.TicketHistory
	seen    map[string]struct{}
}

// NewMemoryTicketHistoryRepository builds an empty store.
func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{seen: make(map[string]struct{})}
}

func (r *MemoryTicketHistoryRepository) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seen[history.ID]; dup {
		return nil
	}
	r.seen[history.ID] = struct{}{}
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTenant(_ context.Context, tenantID string, limit int) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var result []domain.TicketHistory
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

func (r *MemoryTicketHistoryRepository) DeleteByTenant(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			delete(r.seen, e.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}
