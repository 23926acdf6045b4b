package dto

import (
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// TicketListQuery captures query filters for the tenant ticket listing.
type TicketListQuery struct {
	State domain.TicketState
	Limit int
}

// TicketSummary response.
type TicketSummary struct {
	ID              string             `json:"id"`
	OwnerUserID     string             `json:"owner_user_id"`
	ChannelID       string             `json:"channel_id"`
	Type            domain.TicketType  `json:"type"`
	Reason          string             `json:"reason"`
	State           domain.TicketState `json:"state"`
	Pinned          bool               `json:"pinned"`
	CreatedAt       time.Time          `json:"created_at"`
	LastActivityAt  time.Time          `json:"last_activity_at"`
	ClosedAt        *time.Time         `json:"closed_at,omitempty"`
	LastStaffPingAt *time.Time         `json:"last_staff_ping_at,omitempty"`
}

// NewTicketSummary converts a domain ticket.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              t.ID,
		OwnerUserID:     t.OwnerUserID,
		ChannelID:       t.ChannelID,
		Type:            t.Type,
		Reason:          t.ReasonText,
		State:           t.State(),
		Pinned:          t.OriginalChannelPosition != nil,
		CreatedAt:       t.CreatedAt,
		LastActivityAt:  t.LastActivityTime,
		ClosedAt:        t.ClosedAt,
		LastStaffPingAt: t.LastStaffPingTime,
	}
}
