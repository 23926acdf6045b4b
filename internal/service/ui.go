package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// IntakePromptAuthor marks the entry-point prompt so it is posted only once.
const IntakePromptAuthor = "Welcome to Ticket Support"

const (
	colorGreen  = 0x00FF00
	colorOrange = 0xFF6B00
	colorGrey   = 0x808080
	colorRed    = 0xFF0000
	colorGold   = 0xFFD700
	colorBlue   = 0x0099FF
	colorAmber  = 0xE67E22
)

// Assets holds the static images shown in ticket embeds.
type Assets struct {
	IconURL   string
	BannerURL string
}

var typeLabels = map[domain.TicketType]string{
	domain.TicketTypeSupport:    "🆘 Support",
	domain.TicketTypeSuggestion: "📂 Suggestion",
	domain.TicketTypeFeedback:   "💜 Feedback",
	domain.TicketTypeReport:     "⚠️ Report",
}

func intakePrompt(assets Assets, now time.Time) platform.OutgoingMessage {
	options := make([]platform.SelectOption, 0, len(domain.TicketTypes))
	for _, t := range domain.TicketTypes {
		options = append(options, platform.SelectOption{Label: typeLabels[t], Value: string(t)})
	}
	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			AuthorName:    IntakePromptAuthor,
			AuthorIconURL: assets.IconURL,
			Description: "- Please click below menu to create a new ticket.\n\n" +
				"**Ticket Guidelines:**\n" +
				"- Empty tickets are not permitted.\n" +
				"- Please be patient while waiting for a response from our support team.",
			FooterText:    "We are here to Help!",
			FooterIconURL: assets.IconURL,
			ImageURL:      assets.BannerURL,
			Color:         colorGreen,
			Timestamp:     now,
		}},
		Rows: []platform.ComponentRow{{
			Select: &platform.SelectMenu{
				CustomID:    domain.Action{Kind: domain.ActionSelectType}.CustomID(),
				Placeholder: "Choose ticket type",
				Options:     options,
			},
		}},
	}
}

// isIntakePrompt recognises a previously posted entry-point prompt.
func isIntakePrompt(m platform.Message) bool {
	return m.AuthorBot && len(m.Embeds) > 0 && m.Embeds[0].AuthorName == IntakePromptAuthor
}

func controlPanel(ticket domain.Ticket, cfg domain.TenantConfig, assets Assets, inactivity time.Duration, now time.Time) platform.OutgoingMessage {
	reason := ticket.ReasonText
	if strings.TrimSpace(reason) == "" {
		reason = "[No reason provided]"
	}
	title := ticket.Type.Title()
	handle := ticket.Handle()

	content := platform.UserMention(ticket.OwnerUserID)
	msg := platform.OutgoingMessage{MentionUsers: []string{ticket.OwnerUserID}}
	if cfg.AdminRoleID != "" {
		content += " " + platform.RoleMention(cfg.AdminRoleID)
		msg.MentionRoles = []string{cfg.AdminRoleID}
	}
	msg.Content = content

	msg.Embeds = []platform.Embed{{
		Title: title + " Ticket",
		Color: colorOrange,
		Description: "**Please provide us with a detailed description of your issue!**\n" +
			"**The support staff are human volunteers, so please be patient, you'll get an answer as soon as possible.**\n\n" +
			fmt.Sprintf("**%s details:**\n\n```\n%s\n```\n\n", title, reason) +
			fmt.Sprintf("⏰ **This ticket will be autoclosed when inactive for %s!**", HumanDuration(inactivity)),
		FooterText:    "Your satisfaction is our priority",
		FooterIconURL: assets.IconURL,
		Timestamp:     now,
	}}
	msg.Rows = []platform.ComponentRow{
		{Buttons: []platform.Button{
			button(domain.ActionClaim, handle, "Claim Ticket", "👋", platform.ButtonSuccess),
			button(domain.ActionPin, handle, "Pin Ticket", "📌", platform.ButtonPrimary),
			button(domain.ActionPingStaff, handle, "Ping Staff", "🔔", platform.ButtonSecondary),
		}},
		{Buttons: []platform.Button{
			button(domain.ActionClose, handle, "Close Ticket", "🔒", platform.ButtonDanger),
			button(domain.ActionDelete, handle, "Delete Ticket", "✖", platform.ButtonDanger),
		}},
	}
	return msg
}

func createdDM(ticket domain.Ticket, channelURL string, assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:         colorBlue,
		AuthorName:    "Ticket Created!",
		AuthorIconURL: assets.IconURL,
		Description:   fmt.Sprintf("Your **%s** ticket has been created.", ticket.Type),
		Fields:        []platform.EmbedField{{Name: "Ticket Channel", Value: channelURL}},
		FooterText:    "Thank you for reaching out!",
		FooterIconURL: assets.IconURL,
		Timestamp:     now,
	}}}
}

func closedPanel(handle domain.TicketHandle, automatic bool, inactivity, retention time.Duration, assets Assets, now time.Time) platform.OutgoingMessage {
	author := "Ticket Closed & Archived"
	desc := "This ticket has been closed and moved to the archive. You can still view the conversation but cannot send messages."
	if automatic {
		author = "Ticket Auto-Closed"
		desc = fmt.Sprintf("This ticket was automatically closed due to %s of inactivity.", HumanDuration(inactivity))
	}
	desc += fmt.Sprintf("\n\n⏰ This channel will be automatically deleted after %s.", HumanDuration(retention))

	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			Color:         colorGrey,
			AuthorName:    author,
			AuthorIconURL: assets.IconURL,
			Description:   desc,
			Timestamp:     now,
		}},
		Rows: []platform.ComponentRow{{Buttons: []platform.Button{
			button(domain.ActionReopenClosed, handle, "Reopen Ticket", "🔓", platform.ButtonSuccess),
			button(domain.ActionDeleteClosed, handle, "Delete Ticket", "🗑️", platform.ButtonDanger),
		}}},
	}
}

func autoCloseWarning(inactivity, delay time.Duration, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color: colorOrange,
		Title: "⏰ Ticket Auto-Closing",
		Description: fmt.Sprintf("This ticket has been inactive for %s and will be automatically closed in %s.\n\n"+
			"If you need further assistance, please open a new ticket.", HumanDuration(inactivity), HumanDuration(delay)),
		Timestamp: now,
	}}}
}

func reopenedNotice(actor domain.Actor, assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:         colorGreen,
		AuthorName:    "Ticket Reopened",
		AuthorIconURL: assets.IconURL,
		Description:   fmt.Sprintf("This ticket has been reopened by %s.", actorName(actor)),
		Timestamp:     now,
	}}}
}

func closeCancelledNotice(actor domain.Actor, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:       colorGreen,
		AuthorName:  "Ticket Close Cancelled",
		Description: fmt.Sprintf("%s cancelled the pending close. This ticket stays open.", actorName(actor)),
		Timestamp:   now,
	}}}
}

func staffPingNotice(actor domain.Actor, roleID string, assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{
		Content:      platform.RoleMention(roleID),
		MentionRoles: []string{roleID},
		Embeds: []platform.Embed{{
			Color:         colorAmber,
			AuthorName:    "Staff Assistance Requested",
			AuthorIconURL: assets.IconURL,
			Description:   fmt.Sprintf("%s has requested support in this ticket.", platform.UserMention(actor.UserID)),
			FooterText:    "Notification sent via the ticket system",
			Timestamp:     now,
		}},
	}
}

func claimNotice(actor domain.Actor, assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:         colorGreen,
		AuthorName:    "Ticket Claimed",
		AuthorIconURL: assets.IconURL,
		Description:   fmt.Sprintf("%s has claimed this ticket and will assist you shortly.", platform.UserMention(actor.UserID)),
		Timestamp:     now,
	}}}
}

func pinnedNotice(handle domain.TicketHandle, assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			Color:         colorGold,
			AuthorName:    "Ticket Pinned",
			AuthorIconURL: assets.IconURL,
			Description:   "This ticket has been pinned for quick access.",
			Timestamp:     now,
		}},
		Rows: []platform.ComponentRow{{Buttons: []platform.Button{
			button(domain.ActionUnpin, handle, "Unpin Ticket", "📍", platform.ButtonSecondary),
		}}},
	}
}

func unpinnedNotice(assets Assets, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:         colorGrey,
		AuthorName:    "Ticket Unpinned",
		AuthorIconURL: assets.IconURL,
		Description:   "This ticket has been unpinned.",
		Timestamp:     now,
	}}}
}

func deletionNotice(actor domain.Actor, closed bool, delay time.Duration, assets Assets, now time.Time) platform.OutgoingMessage {
	author := "Ticket Deleted"
	verb := "deleted"
	if closed {
		author = "Closed Ticket Deleted"
		verb = "permanently deleted"
	}
	return platform.OutgoingMessage{Embeds: []platform.Embed{{
		Color:         colorRed,
		AuthorName:    author,
		AuthorIconURL: assets.IconURL,
		Description: fmt.Sprintf("This ticket is being %s by %s. Channel will be deleted in %s.",
			verb, actorName(actor), HumanDuration(delay)),
		Timestamp: now,
	}}}
}

func button(kind domain.ActionKind, handle domain.TicketHandle, label, emoji string, style platform.ButtonStyle) platform.Button {
	return platform.Button{
		CustomID: domain.Action{Kind: kind, Handle: handle}.CustomID(),
		Label:    label,
		Emoji:    emoji,
		Style:    style,
	}
}

func actorName(a domain.Actor) string {
	if a.Username != "" {
		return a.Username
	}
	return platform.UserMention(a.UserID)
}

// channelName builds "<type>-<username>" in the platform's lowercase, dash
// separated channel form.
func channelName(t domain.TicketType, username string) string {
	name := strings.ToLower(strings.TrimSpace(username))
	name = strings.Join(strings.Fields(name), "-")
	if name == "" {
		name = "user"
	}
	out := string(t) + "-" + name
	if r := []rune(out); len(r) > 100 {
		out = string(r[:100])
	}
	return out
}

// HumanDuration renders whole hours as "72 hours", otherwise the Go form.
func HumanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d >= time.Second && d%time.Second == 0 && d < time.Minute:
		s := int(d / time.Second)
		if s == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", s)
	}
	return d.String()
}
