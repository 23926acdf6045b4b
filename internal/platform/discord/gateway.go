package discord

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/api/gateway"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// interactionTimeout bounds one interaction's work, followup included.
const interactionTimeout = 30 * time.Second

// Handler receives decoded gateway events.
type Handler interface {
	HandleInteraction(ctx context.Context, in gateway.Interaction) (gateway.Reply, bool)
	HandleMessage(ctx context.Context, guildID string, msg platform.Message)
	HandleTenantRemoved(ctx context.Context, guildID string)
	HandleReady(ctx context.Context)
}

// Gateway owns the websocket session and feeds events to a Handler.
type Gateway struct {
	session *discordgo.Session
	logger  *zap.Logger
	ready   atomic.Bool
}

// NewSession creates an unopened bot session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return session, nil
}

// NewGateway builds a gateway over session.
func NewGateway(session *discordgo.Session, logger *zap.Logger) *Gateway {
	return &Gateway{session: session, logger: logger}
}

// Ready reports whether the session has completed its handshake.
func (g *Gateway) Ready() bool {
	return g.ready.Load()
}

// Run registers handler, opens the session and blocks until ctx ends.
func (g *Gateway) Run(ctx context.Context, handler Handler) error {
	g.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.ready.Store(true)
		g.logger.Info("discord gateway ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		go handler.HandleReady(ctx)
	})
	g.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		g.ready.Store(false)
		g.logger.Warn("discord gateway disconnected")
	})
	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil || m.GuildID == "" {
			return
		}
		handler.HandleMessage(ctx, m.GuildID, *toMessage(m.Message))
	})
	g.session.AddHandler(func(_ *discordgo.Session, gd *discordgo.GuildDelete) {
		// an outage also emits GuildDelete, with Unavailable set
		if gd.Guild == nil || gd.Unavailable {
			return
		}
		g.logger.Info("removed from guild", zap.String("tenant_id", gd.ID))
		handler.HandleTenantRemoved(ctx, gd.ID)
	})
	g.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		g.onInteraction(ctx, s, ic, handler)
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()
	g.ready.Store(false)
	if err := g.session.Close(); err != nil {
		g.logger.Warn("closing discord gateway", zap.Error(err))
	}
	return nil
}

func (g *Gateway) onInteraction(parent context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, handler Handler) {
	in, ok := decodeInteraction(ic)
	if !ok {
		return
	}
	action, err := domain.DecodeAction(in.CustomID)
	if err != nil {
		return
	}
	log := g.logger.With(zap.String("custom_id", in.CustomID), zap.String("tenant_id", in.GuildID))

	ctx, cancel := context.WithTimeout(parent, interactionTimeout)
	defer cancel()

	// A modal can only be the first response, so type selection runs before
	// anything is acknowledged.
	if action.Kind == domain.ActionSelectType {
		reply, _ := handler.HandleInteraction(ctx, in)
		if err := s.InteractionRespond(ic.Interaction, initialResponse(reply)); err != nil {
			log.Warn("failed to respond to interaction", zap.Error(err))
		}
		return
	}

	err = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Warn("failed to defer interaction", zap.Error(err))
		return
	}

	reply, _ := handler.HandleInteraction(ctx, in)
	if reply.Content == "" && len(reply.Embeds) == 0 {
		return
	}
	_, err = s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content: reply.Content,
		Embeds:  toEmbeds(reply.Embeds),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Warn("failed to send interaction followup", zap.Error(err))
	}
}

func initialResponse(reply gateway.Reply) *discordgo.InteractionResponse {
	if p := reply.Modal; p != nil {
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: p.CustomID,
				Title:    p.Title,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    p.FieldID,
							Label:       p.FieldLabel,
							Style:       discordgo.TextInputParagraph,
							Placeholder: p.Placeholder,
							Required:    true,
							MaxLength:   1000,
						},
					}},
				},
			},
		}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply.Content,
			Embeds:  toEmbeds(reply.Embeds),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func decodeInteraction(ic *discordgo.InteractionCreate) (gateway.Interaction, bool) {
	if ic.Interaction == nil {
		return gateway.Interaction{}, false
	}
	in := gateway.Interaction{
		GuildID:   ic.GuildID,
		ChannelID: ic.ChannelID,
		Actor:     actorOf(ic.Interaction),
	}

	switch ic.Type {
	case discordgo.InteractionMessageComponent:
		data := ic.MessageComponentData()
		in.CustomID = data.CustomID
		in.Values = data.Values
	case discordgo.InteractionModalSubmit:
		data := ic.ModalSubmitData()
		in.CustomID = data.CustomID
		in.Fields = make(map[string]string)
		for _, comp := range data.Components {
			row, ok := comp.(*discordgo.ActionsRow)
			if !ok {
				continue
			}
			for _, c := range row.Components {
				if ti, ok := c.(*discordgo.TextInput); ok {
					in.Fields[ti.CustomID] = ti.Value
				}
			}
		}
	default:
		return gateway.Interaction{}, false
	}
	return in, true
}

func actorOf(i *discordgo.Interaction) domain.Actor {
	if i.Member != nil && i.Member.User != nil {
		return domain.Actor{
			UserID:            i.Member.User.ID,
			Username:          i.Member.User.Username,
			RoleIDs:           i.Member.Roles,
			CanManageChannels: i.Member.Permissions&(discordgo.PermissionManageChannels|discordgo.PermissionAdministrator) != 0,
			Bot:               i.Member.User.Bot,
		}
	}
	if i.User != nil {
		return domain.Actor{UserID: i.User.ID, Username: i.User.Username, Bot: i.User.Bot}
	}
	return domain.Actor{}
}
