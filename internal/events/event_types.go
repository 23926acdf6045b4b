package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketCloseScheduled EventType = "ticket_close_scheduled"
	EventTicketClosed         EventType = "ticket_closed"
	EventTicketReopened       EventType = "ticket_reopened"
	EventTicketDeleted        EventType = "ticket_deleted"
	EventTicketPinned         EventType = "ticket_pinned"
	EventTicketUnpinned       EventType = "ticket_unpinned"
	EventTicketClaimed        EventType = "ticket_claimed"
	EventStaffPinged          EventType = "staff_pinged"
)

// AllEventTypes lists every lifecycle event, used by subscribers that audit everything.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketCloseScheduled,
	EventTicketClosed,
	EventTicketReopened,
	EventTicketDeleted,
	EventTicketPinned,
	EventTicketUnpinned,
	EventTicketClaimed,
	EventStaffPinged,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	System   bool   `json:"system,omitempty"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, Username: a.Username, System: a.IsSystem()}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	TenantID  string      `json:"tenant_id"`
	ChannelID string      `json:"channel_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event for ticket with a fresh id.
func New(eventType EventType, ticket domain.Ticket, actor domain.Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		TenantID:  ticket.TenantID,
		ChannelID: ticket.ChannelID,
		Actor:     ActorFrom(actor),
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Type   domain.TicketType `json:"type"`
	Reason string            `json:"reason"`
}

// TicketCloseScheduledPayload payload.
type TicketCloseScheduledPayload struct {
	Automatic bool          `json:"automatic"`
	Delay     time.Duration `json:"delay"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Archived bool `json:"archived"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	CancelledPendingClose bool `json:"cancelled_pending_close"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Reason          string `json:"reason"`
	TranscriptSaved bool   `json:"transcript_saved"`
}

// TicketPinnedPayload payload.
type TicketPinnedPayload struct {
	FromPosition int `json:"from_position"`
	ToPosition   int `json:"to_position"`
}

// StaffPingedPayload payload.
type StaffPingedPayload struct {
	RoleID string `json:"role_id"`
}
