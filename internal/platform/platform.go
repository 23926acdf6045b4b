// Package platform describes the chat platform capabilities the ticket core consumes.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a channel, user or guild no longer resolves.
	ErrNotFound = errors.New("platform: resource not found")
	// ErrDeliveryFailed is returned when a direct message cannot be delivered.
	ErrDeliveryFailed = errors.New("platform: direct message delivery failed")
)

// Permission is a permission bit set. Bit values match Discord's.
type Permission int64

const (
	PermissionManageChannels     Permission = 1 << 4
	PermissionAddReactions       Permission = 1 << 6
	PermissionViewChannel        Permission = 1 << 10
	PermissionSendMessages       Permission = 1 << 11
	PermissionReadMessageHistory Permission = 1 << 16
)

// OverwriteKind selects whether an overwrite targets a role or a member.
type OverwriteKind int

const (
	OverwriteRole OverwriteKind = iota
	OverwriteMember
)

// PermissionOverwrite is a channel-level allow/deny for one subject.
type PermissionOverwrite struct {
	SubjectID string
	Kind      OverwriteKind
	Allow     Permission
	Deny      Permission
}

// ChannelSpec describes a text channel to create.
type ChannelSpec struct {
	Name       string
	ParentID   string
	Overwrites []PermissionOverwrite
	Reason     string
}

// Channel is a guild text channel.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Position int
}

// Guild is the minimal guild view used for notices.
type Guild struct {
	ID      string
	Name    string
	OwnerID string
}

// User is a platform account.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message block.
type Embed struct {
	Title         string
	Description   string
	AuthorName    string
	AuthorIconURL string
	FooterText    string
	FooterIconURL string
	ImageURL      string
	Color         int
	Fields        []EmbedField
	Timestamp     time.Time
}

// ButtonStyle mirrors the platform button colours.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable component carrying an encoded action.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Style    ButtonStyle
}

// SelectOption is one entry of a select menu.
type SelectOption struct {
	Label string
	Value string
}

// SelectMenu is a single-choice dropdown.
type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// ComponentRow holds either buttons or one select menu.
type ComponentRow struct {
	Buttons []Button
	Select  *SelectMenu
}

// File is an attachment uploaded with a message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// OutgoingMessage is a message to post.
type OutgoingMessage struct {
	Content      string
	Embeds       []Embed
	Rows         []ComponentRow
	Files        []File
	MentionUsers []string
	MentionRoles []string
}

// Attachment is an uploaded file on a received message.
type Attachment struct {
	Name string
	URL  string
}

// Message is a posted message.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Embeds      []Embed
	Attachments []Attachment
	Timestamp   time.Time
}

// FirstAttachmentURL returns the URL of the first attachment, if any.
func (m *Message) FirstAttachmentURL() string {
	if m == nil || len(m.Attachments) == 0 {
		return ""
	}
	return m.Attachments[0].URL
}

// Client is the capability set the ticket core needs from the chat platform.
type Client interface {
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error)
	Channel(ctx context.Context, channelID string) (*Channel, error)
	CategoryChannels(ctx context.Context, guildID, categoryID string) ([]Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	SetParentCategory(ctx context.Context, channelID, categoryID string) error
	SetChannelName(ctx context.Context, channelID, name, reason string) error
	SetChannelPosition(ctx context.Context, channelID string, position int) error
	EditPermissionOverwrite(ctx context.Context, channelID string, overwrite PermissionOverwrite) error
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (*Message, error)
	FetchRecentMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error)
	SendDirectMessage(ctx context.Context, userID string, msg OutgoingMessage) (*Message, error)
	User(ctx context.Context, userID string) (*User, error)
	Guild(ctx context.Context, guildID string) (*Guild, error)
	CanManageChannels(ctx context.Context, guildID string) (bool, error)
}

// PinMarker prefixes the names of pinned ticket channels.
const PinMarker = "📌"

// HasPinMarker reports whether a channel name carries the pin marker.
func HasPinMarker(name string) bool {
	return strings.HasPrefix(name, PinMarker)
}

// EveryoneRoleID returns the id of the implicit @everyone role of a guild.
func EveryoneRoleID(guildID string) string {
	return guildID
}

func UserMention(id string) string    { return fmt.Sprintf("<@%s>", id) }
func RoleMention(id string) string    { return fmt.Sprintf("<@&%s>", id) }
func ChannelMention(id string) string { return fmt.Sprintf("<#%s>", id) }

// ChannelURL links to a guild channel.
func ChannelURL(guildID, channelID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, channelID)
}

// RelativeTimestamp renders a timestamp the client shows as "in 2 hours".
func RelativeTimestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
