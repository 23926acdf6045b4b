package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	// Create is idempotent on the entry id.
	Create(ctx context.Context, history *domain.TicketHistory) error
	// ListByTenant returns the newest entries first.
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.TicketHistory, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, tenant_id, ticket_id, channel_id, event_type, actor_id, system_actor, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		history.ID,
		history.TenantID,
		history.TicketID,
		history.ChannelID,
		history.EventType,
		history.ActorID,
		history.System,
		history.Payload,
		history.CreatedAt,
	)
	return translate(err)
}

func (r *ticketHistoryRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.TicketHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, tenant_id, ticket_id, channel_id, event_type, actor_id, system_actor, payload, created_at
        FROM ticket_history WHERE tenant_id=$1 ORDER BY created_at DESC, id LIMIT $2`
	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TenantID,
			&history.TicketID,
			&history.ChannelID,
			&history.EventType,
			&history.ActorID,
			&history.System,
			&history.Payload,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

func (r *ticketHistoryRepository) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ticket_history WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
