package domain

import "time"

// TicketHistory is an immutable audit trail entry: one lifecycle event of one ticket.
type TicketHistory struct {
	ID        string
	TenantID  string
	TicketID  string
	ChannelID string
	EventType string
	ActorID   string
	System    bool
	Payload   map[string]any
	CreatedAt time.Time
}
