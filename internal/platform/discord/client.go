// Package discord adapts a discordgo session to the platform capabilities the
// ticket core needs.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// Client implements platform.Client over the Discord REST API.
type Client struct {
	session *discordgo.Session
}

var _ platform.Client = (*Client)(nil)

var errNotReady = errors.New("discord: gateway session not ready")

// NewClient wraps an existing session.
func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

func opts(ctx context.Context, reason string) []discordgo.RequestOption {
	o := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		o = append(o, discordgo.WithAuditLogReason(reason))
	}
	return o
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, spec platform.ChannelSpec) (*platform.Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for _, ow := range spec.Overwrites {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    ow.SubjectID,
			Type:  overwriteType(ow.Kind),
			Allow: int64(ow.Allow),
			Deny:  int64(ow.Deny),
		})
	}
	ch, err := c.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites,
	}, opts(ctx, spec.Reason)...)
	if err != nil {
		return nil, mapError("create channel", err)
	}
	return toChannel(ch), nil
}

func (c *Client) Channel(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, err := c.session.Channel(channelID, opts(ctx, "")...)
	if err != nil {
		return nil, mapError("get channel", err)
	}
	return toChannel(ch), nil
}

func (c *Client) CategoryChannels(ctx context.Context, guildID, categoryID string) ([]platform.Channel, error) {
	all, err := c.session.GuildChannels(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, mapError("list guild channels", err)
	}
	var out []platform.Channel
	for _, ch := range all {
		if ch.ParentID == categoryID {
			out = append(out, *toChannel(ch))
		}
	}
	return out, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := c.session.ChannelDelete(channelID, opts(ctx, reason)...)
	return mapError("delete channel", err)
}

func (c *Client) SetParentCategory(ctx context.Context, channelID, categoryID string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: categoryID}, opts(ctx, "")...)
	return mapError("move channel", err)
}

func (c *Client) SetChannelName(ctx context.Context, channelID, name, reason string) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, opts(ctx, reason)...)
	return mapError("rename channel", err)
}

func (c *Client) SetChannelPosition(ctx context.Context, channelID string, position int) error {
	_, err := c.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Position: &position}, opts(ctx, "")...)
	return mapError("reposition channel", err)
}

func (c *Client) EditPermissionOverwrite(ctx context.Context, channelID string, ow platform.PermissionOverwrite) error {
	err := c.session.ChannelPermissionSet(channelID, ow.SubjectID, overwriteType(ow.Kind), int64(ow.Allow), int64(ow.Deny), opts(ctx, "")...)
	return mapError("set permission overwrite", err)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg platform.OutgoingMessage) (*platform.Message, error) {
	sent, err := c.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), opts(ctx, "")...)
	if err != nil {
		return nil, mapError("send message", err)
	}
	return toMessage(sent), nil
}

func (c *Client) FetchRecentMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]platform.Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, beforeID, "", "", opts(ctx, "")...)
	if err != nil {
		return nil, mapError("fetch messages", err)
	}
	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *toMessage(m))
	}
	return out, nil
}

// SendDirectMessage fails with platform.ErrDeliveryFailed when the user
// cannot be reached, e.g. because they closed their DMs.
func (c *Client) SendDirectMessage(ctx context.Context, userID string, msg platform.OutgoingMessage) (*platform.Message, error) {
	dm, err := c.session.UserChannelCreate(userID, opts(ctx, "")...)
	if err != nil {
		return nil, fmt.Errorf("%w: open dm channel: %v", platform.ErrDeliveryFailed, err)
	}
	sent, err := c.session.ChannelMessageSendComplex(dm.ID, toMessageSend(msg), opts(ctx, "")...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrDeliveryFailed, err)
	}
	return toMessage(sent), nil
}

func (c *Client) User(ctx context.Context, userID string) (*platform.User, error) {
	u, err := c.session.User(userID, opts(ctx, "")...)
	if err != nil {
		return nil, mapError("get user", err)
	}
	return &platform.User{ID: u.ID, Username: u.Username, Bot: u.Bot}, nil
}

func (c *Client) Guild(ctx context.Context, guildID string) (*platform.Guild, error) {
	g, err := c.guild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return &platform.Guild{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID}, nil
}

func (c *Client) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := c.session.State.Guild(guildID); err == nil {
		return g, nil
	}
	g, err := c.session.Guild(guildID, opts(ctx, "")...)
	if err != nil {
		return nil, mapError("get guild", err)
	}
	return g, nil
}

// CanManageChannels resolves the bot's guild-level permissions from its roles.
func (c *Client) CanManageChannels(ctx context.Context, guildID string) (bool, error) {
	if c.session.State.User == nil {
		return false, errNotReady
	}
	botID := c.session.State.User.ID

	g, err := c.guild(ctx, guildID)
	if err != nil {
		return false, err
	}
	if g.OwnerID == botID {
		return true, nil
	}

	member, err := c.session.State.Member(guildID, botID)
	if err != nil {
		if member, err = c.session.GuildMember(guildID, botID, opts(ctx, "")...); err != nil {
			return false, mapError("get bot member", err)
		}
	}

	roles := g.Roles
	if len(roles) == 0 {
		if roles, err = c.session.GuildRoles(guildID, opts(ctx, "")...); err != nil {
			return false, mapError("list roles", err)
		}
	}

	var perms int64
	for _, r := range roles {
		if r.ID == guildID || slices.Contains(member.Roles, r.ID) {
			perms |= r.Permissions
		}
	}
	return perms&discordgo.PermissionAdministrator != 0 || perms&discordgo.PermissionManageChannels != 0, nil
}
