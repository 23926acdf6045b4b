package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction_TicketButtons(t *testing.T) {
	cases := []struct {
		customID string
		kind     ActionKind
	}{
		{"close_ticket_111-222", ActionClose},
		{"claim_ticket_111-222", ActionClaim},
		{"pin_ticket_111-222", ActionPin},
		{"unpin_ticket_111-222", ActionUnpin},
		{"delete_ticket_111-222", ActionDelete},
		{"reopen_closed_ticket_111-222", ActionReopenClosed},
		{"delete_closed_ticket_111-222", ActionDeleteClosed},
		{"ping_staff_111-222", ActionPingStaff},
	}
	for _, tc := range cases {
		t.Run(tc.customID, func(t *testing.T) {
			action, err := DecodeAction(tc.customID)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, action.Kind)
			assert.Equal(t, TicketHandle{OwnerID: "111", ChannelID: "222"}, action.Handle)
			assert.Equal(t, tc.customID, action.CustomID())
		})
	}
}

func TestDecodeAction_LegacyUnpinCarriesChannelOnly(t *testing.T) {
	action, err := DecodeAction("unpin_ticket_999")
	require.NoError(t, err)

	assert.Equal(t, ActionUnpin, action.Kind)
	assert.Equal(t, "", action.Handle.OwnerID)
	assert.Equal(t, "999", action.Handle.ChannelID)
	assert.Equal(t, "unpin_ticket_999", action.CustomID())
}

func TestDecodeAction_ModalSubmit(t *testing.T) {
	action, err := DecodeAction("ticket_modal_guild1_report_user7")
	require.NoError(t, err)

	assert.Equal(t, ActionSubmitReason, action.Kind)
	assert.Equal(t, "guild1", action.TenantID)
	assert.Equal(t, TicketTypeReport, action.Type)
	assert.Equal(t, "user7", action.Handle.OwnerID)
	assert.Equal(t, "ticket_modal_guild1_report_user7", action.CustomID())
}

func TestDecodeAction_SelectMenu(t *testing.T) {
	action, err := DecodeAction("select_ticket_type")
	require.NoError(t, err)
	assert.Equal(t, ActionSelectType, action.Kind)
	assert.False(t, action.IsTicketAction())
}

func TestDecodeAction_Rejects(t *testing.T) {
	for _, id := range []string{
		"",
		"play_sound_1",
		"close_ticket_",
		"close_ticket_-222",
		"close_ticket_1-2-3",
		"ticket_modal_guild_unknown_user",
		"ticket_modal_guild_support",
	} {
		_, err := DecodeAction(id)
		assert.True(t, errors.Is(err, ErrUnknownAction), id)
	}
}

func TestParseTicketType(t *testing.T) {
	got, ok := ParseTicketType(" Feedback ")
	assert.True(t, ok)
	assert.Equal(t, TicketTypeFeedback, got)
	assert.Equal(t, "Feedback", got.Title())

	_, ok = ParseTicketType("refund")
	assert.False(t, ok)
}

func TestTicketStateFollowsClosedAt(t *testing.T) {
	ticket := &Ticket{OwnerUserID: "u", ChannelID: "c"}
	assert.Equal(t, TicketStateOpen, ticket.State())
	assert.Equal(t, "u-c", ticket.Handle().ID())

	pos := 3
	ticket.OriginalChannelPosition = &pos
	clone := ticket.Clone()
	*clone.OriginalChannelPosition = 9
	assert.Equal(t, 3, *ticket.OriginalChannelPosition)
}
