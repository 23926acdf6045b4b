package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TicketFilter selects tickets. Zero-valued fields are ignored.
type TicketFilter struct {
	ID             string
	OwnerUserID    string
	TenantID       string
	ChannelID      string
	State          domain.TicketState
	InactiveBefore *time.Time
	ClosedBefore   *time.Time
	Limit          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, filter TicketFilter) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, filter TicketFilter) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, owner_user_id, tenant_id, channel_id, ticket_type, reason_text,
       created_at, last_activity_at, closed_at, last_staff_ping_at, original_channel_position`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, owner_user_id, tenant_id, channel_id, ticket_type, reason_text,
                             created_at, last_activity_at, closed_at, last_staff_ping_at, original_channel_position)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.OwnerUserID,
		ticket.TenantID,
		ticket.ChannelID,
		ticket.Type,
		ticket.ReasonText,
		ticket.CreatedAt,
		ticket.LastActivityTime,
		ticket.ClosedAt,
		ticket.LastStaffPingTime,
		ticket.OriginalChannelPosition,
	)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET reason_text=$1, last_activity_at=$2, closed_at=$3,
            last_staff_ping_at=$4, original_channel_position=$5
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.ReasonText,
		ticket.LastActivityTime,
		ticket.ClosedAt,
		ticket.LastStaffPingTime,
		ticket.OriginalChannelPosition,
		ticket.ID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Get(ctx context.Context, filter TicketFilter) (*domain.Ticket, error) {
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

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC`, ticketColumns, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Delete is idempotent: deleting a missing record is not an error.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	return translate(err)
}

func (r *ticketRepository) DeleteMany(ctx context.Context, filter TicketFilter) (int64, error) {
	where, args := buildTicketWhere(filter)
	if len(args) == 0 {
		return 0, fmt.Errorf("delete many: refusing to delete without a filter")
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE `+where, args...)
	if err != nil {
		return 0, translate(err)
	}
	return cmd.RowsAffected(), nil
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.ID != "" {
		add("id=$%d", filter.ID)
	}
	if filter.OwnerUserID != "" {
		add("owner_user_id=$%d", filter.OwnerUserID)
	}
	if filter.TenantID != "" {
		add("tenant_id=$%d", filter.TenantID)
	}
	if filter.ChannelID != "" {
		add("channel_id=$%d", filter.ChannelID)
	}
	switch filter.State {
	case domain.TicketStateOpen:
		clauses = append(clauses, "closed_at IS NULL")
	case domain.TicketStateClosed:
		clauses = append(clauses, "closed_at IS NOT NULL")
	}
	if filter.InactiveBefore != nil {
		add("last_activity_at < $%d", *filter.InactiveBefore)
	}
	if filter.ClosedBefore != nil {
		add("closed_at < $%d", *filter.ClosedBefore)
	}
	return strings.Join(clauses, " AND "), args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket     domain.Ticket
			ticketType string
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OwnerUserID,
			&ticket.TenantID,
			&ticket.ChannelID,
			&ticketType,
			&ticket.ReasonText,
			&ticket.CreatedAt,
			&ticket.LastActivityTime,
			&ticket.ClosedAt,
			&ticket.LastStaffPingTime,
			&ticket.OriginalChannelPosition,
		); err != nil {
			return nil, err
		}
		ticket.Type = domain.TicketType(ticketType)
		result = append(result, ticket)
	}
	return result, rows.Err()
}
