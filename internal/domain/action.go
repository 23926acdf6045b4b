package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ActionKind enumerates the UI actions a member can trigger.
type ActionKind string

const (
	ActionSelectType   ActionKind = "select_ticket_type"
	ActionSubmitReason ActionKind = "ticket_modal"
	ActionClose        ActionKind = "close_ticket"
	ActionClaim        ActionKind = "claim_ticket"
	ActionPin          ActionKind = "pin_ticket"
	ActionUnpin        ActionKind = "unpin_ticket"
	ActionDelete       ActionKind = "delete_ticket"
	ActionReopenClosed ActionKind = "reopen_closed_ticket"
	ActionDeleteClosed ActionKind = "delete_closed_ticket"
	ActionPingStaff    ActionKind = "ping_staff"
)

// ErrUnknownAction is returned for custom ids this bot does not own.
var ErrUnknownAction = errors.New("unknown action")

// handleActions carry a ticket handle after their prefix.
var handleActions = []ActionKind{
	ActionReopenClosed,
	ActionDeleteClosed,
	ActionUnpin,
	ActionClose,
	ActionClaim,
	ActionPin,
	ActionDelete,
	ActionPingStaff,
}

// Action is a decoded UI event. Only the fields relevant to Kind are set.
type Action struct {
	Kind     ActionKind
	Handle   TicketHandle
	TenantID string
	Type     TicketType
}

// DecodeAction parses a component or modal custom id.
func DecodeAction(customID string) (Action, error) {
	if customID == string(ActionSelectType) {
		return Action{Kind: ActionSelectType}, nil
	}

	if rest, ok := strings.CutPrefix(customID, string(ActionSubmitReason)+"_"); ok {
		// <tenant>_<type>_<owner>
		parts := strings.Split(rest, "_")
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return Action{}, fmt.Errorf("%w: malformed modal id %q", ErrUnknownAction, customID)
		}
		ticketType, ok := ParseTicketType(parts[1])
		if !ok {
			return Action{}, fmt.Errorf("%w: unknown ticket type %q", ErrUnknownAction, parts[1])
		}
		return Action{
			Kind:     ActionSubmitReason,
			TenantID: parts[0],
			Type:     ticketType,
			Handle:   TicketHandle{OwnerID: parts[2]},
		}, nil
	}

	for _, kind := range handleActions {
		rest, ok := strings.CutPrefix(customID, string(kind)+"_")
		if !ok {
			continue
		}
		handle, err := parseHandle(rest)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %s: %v", ErrUnknownAction, customID, err)
		}
		return Action{Kind: kind, Handle: handle}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, customID)
}

// parseHandle accepts "<owner>-<channel>" or a bare "<channel>" (legacy unpin ids).
func parseHandle(raw string) (TicketHandle, error) {
	if raw == "" {
		return TicketHandle{}, errors.New("empty ticket handle")
	}
	owner, channel, found := strings.Cut(raw, "-")
	if !found {
		return TicketHandle{ChannelID: raw}, nil
	}
	if owner == "" || channel == "" || strings.Contains(channel, "-") {
		return TicketHandle{}, fmt.Errorf("malformed ticket handle %q", raw)
	}
	return TicketHandle{OwnerID: owner, ChannelID: channel}, nil
}

// CustomID encodes the action for a component or modal.
func (a Action) CustomID() string {
	switch a.Kind {
	case ActionSelectType:
		return string(ActionSelectType)
	case ActionSubmitReason:
		return fmt.Sprintf("%s_%s_%s_%s", ActionSubmitReason, a.TenantID, a.Type, a.Handle.OwnerID)
	}
	if a.Handle.OwnerID == "" {
		return string(a.Kind) + "_" + a.Handle.ChannelID
	}
	return string(a.Kind) + "_" + a.Handle.ID()
}

// IsTicketAction reports whether the action targets an existing ticket.
func (a Action) IsTicketAction() bool {
	return a.Kind != ActionSelectType && a.Kind != ActionSubmitReason
}
