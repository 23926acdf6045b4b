package domain

import (
	"strings"
	"time"
)

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateOpen   TicketState = "OPEN"
	TicketStateClosed TicketState = "CLOSED"
)

// TicketType is the user-chosen category of a ticket.
type TicketType string

const (
	TicketTypeSupport    TicketType = "support"
	TicketTypeSuggestion TicketType = "suggestion"
	TicketTypeFeedback   TicketType = "feedback"
	TicketTypeReport     TicketType = "report"
)

// TicketTypes lists the selectable types in menu order.
var TicketTypes = []TicketType{
	TicketTypeSupport,
	TicketTypeSuggestion,
	TicketTypeFeedback,
	TicketTypeReport,
}

// ParseTicketType validates a raw type value.
func ParseTicketType(raw string) (TicketType, bool) {
	candidate := TicketType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range TicketTypes {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// Title returns the capitalised display form, e.g. "Support".
func (t TicketType) Title() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// TicketHandle identifies a ticket by its owner and backing channel.
type TicketHandle struct {
	OwnerID   string
	ChannelID string
}

// ID returns the derived ticket identifier "<owner>-<channel>".
func (h TicketHandle) ID() string {
	return TicketID(h.OwnerID, h.ChannelID)
}

// TicketID derives the ticket identifier from owner and channel.
func TicketID(ownerID, channelID string) string {
	return ownerID + "-" + channelID
}

// Ticket is the persisted record of an open or recently closed ticket.
type Ticket struct {
	ID                      string
	OwnerUserID             string
	TenantID                string
	ChannelID               string
	Type                    TicketType
	ReasonText              string
	CreatedAt               time.Time
	LastActivityTime        time.Time
	ClosedAt                *time.Time
	LastStaffPingTime       *time.Time
	OriginalChannelPosition *int
}

// State derives the lifecycle state from ClosedAt.
func (t *Ticket) State() TicketState {
	if t.ClosedAt == nil {
		return TicketStateOpen
	}
	return TicketStateClosed
}

// Handle returns the structured handle used by UI actions.
func (t *Ticket) Handle() TicketHandle {
	return TicketHandle{OwnerID: t.OwnerUserID, ChannelID: t.ChannelID}
}

// Clone returns a deep copy so stores never share pointer fields with callers.
func (t Ticket) Clone() Ticket {
	out := t
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		out.ClosedAt = &v
	}
	if t.LastStaffPingTime != nil {
		v := *t.LastStaffPingTime
		out.LastStaffPingTime = &v
	}
	if t.OriginalChannelPosition != nil {
		v := *t.OriginalChannelPosition
		out.OriginalChannelPosition = &v
	}
	return out
}
