package discord

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// mapError folds Discord's "unknown resource" answers into platform.ErrNotFound.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
		}
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownGuild,
				discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownMember:
				return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func overwriteType(kind platform.OverwriteKind) discordgo.PermissionOverwriteType {
	if kind == platform.OverwriteMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

func toChannel(c *discordgo.Channel) *platform.Channel {
	return &platform.Channel{
		ID:       c.ID,
		GuildID:  c.GuildID,
		ParentID: c.ParentID,
		Name:     c.Name,
		Position: c.Position,
	}
}

func toMessage(m *discordgo.Message) *platform.Message {
	out := &platform.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = m.Author.Username
		out.AuthorBot = m.Author.Bot
	}
	for _, e := range m.Embeds {
		out.Embeds = append(out.Embeds, fromEmbed(e))
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, platform.Attachment{Name: a.Filename, URL: a.URL})
	}
	return out
}

func fromEmbed(e *discordgo.MessageEmbed) platform.Embed {
	out := platform.Embed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Author != nil {
		out.AuthorName = e.Author.Name
		out.AuthorIconURL = e.Author.IconURL
	}
	if e.Footer != nil {
		out.FooterText = e.Footer.Text
		out.FooterIconURL = e.Footer.IconURL
	}
	if e.Image != nil {
		out.ImageURL = e.Image.URL
	}
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		out.Timestamp = ts
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, platform.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func toEmbeds(embeds []platform.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.AuthorName != "" {
			me.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIconURL}
		}
		if e.FooterText != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText, IconURL: e.FooterIconURL}
		}
		if e.ImageURL != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		}
		if !e.Timestamp.IsZero() {
			me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, me)
	}
	return out
}

func buttonStyle(s platform.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case platform.ButtonSecondary:
		return discordgo.SecondaryButton
	case platform.ButtonSuccess:
		return discordgo.SuccessButton
	case platform.ButtonDanger:
		return discordgo.DangerButton
	}
	return discordgo.PrimaryButton
}

func toComponents(rows []platform.ComponentRow) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var comps []discordgo.MessageComponent
		if row.Select != nil {
			options := make([]discordgo.SelectMenuOption, 0, len(row.Select.Options))
			for _, o := range row.Select.Options {
				options = append(options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value})
			}
			comps = append(comps, discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
				Options:     options,
			})
		}
		for _, b := range row.Buttons {
			label := b.Label
			if b.Emoji != "" {
				label = b.Emoji + " " + label
			}
			comps = append(comps, discordgo.Button{
				CustomID: b.CustomID,
				Label:    label,
				Style:    buttonStyle(b.Style),
			})
		}
		if len(comps) > 0 {
			out = append(out, discordgo.ActionsRow{Components: comps})
		}
	}
	return out
}

func toMessageSend(msg platform.OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Rows),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: msg.MentionUsers,
			Roles: msg.MentionRoles,
		},
	}
	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return send
}
