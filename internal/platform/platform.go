// Package platform describes the messaging-platform operations the relay core
// depends on, in platform-neutral terms. The discord subpackage implements it.
package platform

import (
	"context"
	"fmt"
	"time"
)

type User struct {
	ID        string
	Username  string
	Tag       string
	AvatarURL string
	CreatedAt time.Time
	Bot       bool
}

type Guild struct {
	ID      string
	Name    string
	IconURL string
}

type Attachment struct {
	ID          string
	Name        string
	URL         string
	ContentType string
}

// MessageEvent is an inbound message as delivered by the platform.
type MessageEvent struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      User
	Content     string
	Attachments []Attachment

	// IsDM is set for messages in the bot's direct channel with Author.
	IsDM bool
	// IsThread and ParentID describe the channel the message was posted in.
	IsThread bool
	ParentID string
}

type InteractionKind int

const (
	InteractionCommand InteractionKind = iota + 1
	InteractionButton
)

// Interaction is a slash command invocation or a button press.
type Interaction struct {
	ID          string
	Kind        InteractionKind
	Name        string
	CustomID    string
	Options     map[string]Option
	ChannelID   string
	GuildID     string
	User        User
	Permissions int64

	// Raw is the platform object needed to respond; opaque to the core.
	Raw any
}

// Option is one resolved slash-command argument.
type Option struct {
	String     string
	Bool       bool
	ChannelID  string
	Attachment *Attachment
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title         string
	Description   string
	Color         int
	AuthorName    string
	AuthorIconURL string
	ThumbnailURL  string
	ImageURL      string
	Footer        string
	Fields        []EmbedField
	Timestamp     time.Time
}

type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Danger   bool
}

// OutgoingMessage is any message the bot posts. Files are URLs fetched by the
// implementation before upload.
type OutgoingMessage struct {
	Content        string
	Embeds         []Embed
	Files          []string
	Buttons        []Button
	ReplyTo        string
	NoMentionReply bool
}

// AttachmentError reports a file that could not be fetched for upload. The
// message it belonged to was not sent.
type AttachmentError struct {
	URL string
	Err error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("fetch attachment %s: %v", e.URL, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// Response answers an Interaction.
type Response struct {
	Content   string
	Embeds    []Embed
	Ephemeral bool
}

// Client is the set of platform operations the router performs. Every call
// returns an explicit error; none of them retry.
type Client interface {
	BotUserID() string
	CreateThread(ctx context.Context, parentChannelID, name, reason string) (string, error)
	ThreadExists(ctx context.Context, threadID string) (bool, error)
	DeleteThread(ctx context.Context, threadID, reason string) error
	Send(ctx context.Context, channelID string, msg OutgoingMessage) (string, error)
	SendDirect(ctx context.Context, userID string, msg OutgoingMessage) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	FetchUser(ctx context.Context, userID string) (*User, error)
	Guild(ctx context.Context, guildID string) (*Guild, error)
	HasPermission(ctx context.Context, channelID, userID string, permission int64) (bool, error)
	RespondInteraction(ctx context.Context, in *Interaction, resp Response) error
}

// PermissionAdministrator is the administrator bit. Permission values use
// Discord's bit layout.
const PermissionAdministrator int64 = 1 << 3

// Allows reports whether granted covers every bit of required. The
// administrator bit covers everything.
func Allows(granted, required int64) bool {
	if granted&PermissionAdministrator != 0 {
		return true
	}
	return granted&required == required
}
