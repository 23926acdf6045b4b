package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// transcriptNotice customises the embeds that accompany a transcript.
type transcriptNotice struct {
	title    string
	dmText   string // formatted with the guild name
	logField platform.EmbedField
}

// deliverTranscript renders the channel history and sends it to the owner by
// DM and to the tenant's transcript channel. Delivery failures are logged and
// never abort the caller. It reports whether a transcript was produced.
func (s *LifecycleService) deliverTranscript(ctx context.Context, cfg domain.TenantConfig, channel platform.Channel, ownerID string, notice transcriptNotice) bool {
	if s.transcripts == nil {
		return false
	}
	log := s.logger.With(zap.String("channel_id", channel.ID))

	file, err := s.transcripts.Generate(ctx, channel)
	if err != nil {
		log.Warn("failed to generate transcript", zap.Error(err))
		return false
	}

	guildName := channel.GuildID
	if guild, err := s.platform.Guild(ctx, channel.GuildID); err == nil && guild.Name != "" {
		guildName = guild.Name
	}

	ownerName := "Unknown"
	if ownerID != "" {
		if user, err := s.platform.User(ctx, ownerID); err == nil {
			ownerName = user.Username
		}
	}

	now := s.now()
	if ownerID != "" {
		dm := platform.OutgoingMessage{
			Content: "Here is your ticket transcript:",
			Embeds: []platform.Embed{{
				Color:         colorRed,
				AuthorName:    notice.title,
				AuthorIconURL: s.assets.IconURL,
				Description:   fmt.Sprintf(notice.dmText, guildName),
				FooterText:    "Thanks for using our support system!",
				FooterIconURL: s.assets.IconURL,
				Timestamp:     now,
			}},
			Files: []platform.File{file},
		}
		sent, err := s.platform.SendDirectMessage(ctx, ownerID, dm)
		if err != nil {
			log.Info("could not DM transcript to owner", zap.String("user_id", ownerID), zap.Error(err))
		} else if url := sent.FirstAttachmentURL(); url != "" {
			if _, err := s.platform.SendDirectMessage(ctx, ownerID, viewTranscriptLink(url)); err != nil {
				log.Info("could not DM transcript link", zap.String("user_id", ownerID), zap.Error(err))
			}
		}
	}

	if cfg.TranscriptChannelID != "" {
		logMsg := platform.OutgoingMessage{
			Content: "📩 Transcript from ticket " + channel.Name,
			Embeds: []platform.Embed{{
				Color: colorRed,
				Title: notice.title,
				Fields: []platform.EmbedField{
					{Name: "Ticket", Value: channel.Name, Inline: true},
					notice.logField,
					{Name: "Original Owner", Value: ownerName, Inline: true},
				},
				Timestamp: now,
			}},
			Files: []platform.File{file},
		}
		sent, err := s.platform.SendMessage(ctx, cfg.TranscriptChannelID, logMsg)
		if err != nil {
			log.Warn("failed to post transcript to log channel", zap.String("log_channel_id", cfg.TranscriptChannelID), zap.Error(err))
		} else if url := sent.FirstAttachmentURL(); url != "" {
			if _, err := s.platform.SendMessage(ctx, cfg.TranscriptChannelID, viewTranscriptLink(url)); err != nil {
				log.Warn("failed to post transcript link", zap.Error(err))
			}
		}
	}
	return true
}

func viewTranscriptLink(url string) platform.OutgoingMessage {
	return platform.OutgoingMessage{Content: "🔗 **View Transcript**: " + url}
}
