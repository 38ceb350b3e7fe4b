package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// translateMessage converts a gateway message. Channel details come from the
// state cache first and fall back to REST. Messages without an author are
// dropped.
func (c *Client) translateMessage(m *discordgo.MessageCreate) (platform.MessageEvent, bool) {
	if m.Message == nil || m.Author == nil {
		return platform.MessageEvent{}, false
	}

	ev := platform.MessageEvent{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		Author:      toUser(m.Author),
		Content:     m.Content,
		Attachments: toAttachments(m.Attachments),
		IsDM:        m.GuildID == "",
	}

	if ev.IsDM {
		return ev, true
	}

	ch, err := c.session.State.Channel(m.ChannelID)
	if err != nil {
		ch, err = c.session.Channel(m.ChannelID)
		if err != nil {
			log.Warn().Err(err).Str("channelId", m.ChannelID).Msg("failed to resolve message channel")
			return ev, true
		}
	}
	ev.IsThread = ch.IsThread()
	ev.ParentID = ch.ParentID

	return ev, true
}

func translateInteraction(i *discordgo.Interaction) (platform.Interaction, bool) {
	in := platform.Interaction{
		ID:        i.ID,
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Raw:       i,
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		in.User = toUser(i.Member.User)
		in.Permissions = i.Member.Permissions
	case i.User != nil:
		in.User = toUser(i.User)
	default:
		return in, false
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		in.Kind = platform.InteractionCommand
		in.Name = data.Name
		in.Options = toOptions(data)
	case discordgo.InteractionMessageComponent:
		in.Kind = platform.InteractionButton
		in.CustomID = i.MessageComponentData().CustomID
	default:
		return in, false
	}

	return in, true
}

func toOptions(data discordgo.ApplicationCommandInteractionData) map[string]platform.Option {
	options := make(map[string]platform.Option, len(data.Options))
	for _, opt := range data.Options {
		var o platform.Option
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			o.String = opt.StringValue()
		case discordgo.ApplicationCommandOptionBoolean:
			o.Bool = opt.BoolValue()
		case discordgo.ApplicationCommandOptionChannel:
			o.ChannelID = fmt.Sprint(opt.Value)
		case discordgo.ApplicationCommandOptionAttachment:
			id := fmt.Sprint(opt.Value)
			if data.Resolved != nil {
				if att, ok := data.Resolved.Attachments[id]; ok {
					converted := toAttachment(att)
					o.Attachment = &converted
				}
			}
		default:
			o.String = fmt.Sprint(opt.Value)
		}
		options[opt.Name] = o
	}
	return options
}

func toUser(u *discordgo.User) platform.User {
	user := platform.User{
		ID:        u.ID,
		Username:  u.Username,
		Tag:       u.String(),
		AvatarURL: u.AvatarURL(""),
		Bot:       u.Bot,
	}
	if created, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		user.CreatedAt = created
	}
	return user
}

func toAttachments(in []*discordgo.MessageAttachment) []platform.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]platform.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, toAttachment(a))
	}
	return out
}

func toAttachment(a *discordgo.MessageAttachment) platform.Attachment {
	return platform.Attachment{
		ID:          a.ID,
		Name:        a.Filename,
		URL:         a.URL,
		ContentType: a.ContentType,
	}
}

func toEmbeds(in []platform.Embed) []*discordgo.MessageEmbed {
	if len(in) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(in))
	for _, e := range in {
		out = append(out, toEmbed(e))
	}
	return out
}

func toEmbed(e platform.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIconURL}
	}
	if e.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		embed.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return embed
}

func toButton(b platform.Button) discordgo.Button {
	button := discordgo.Button{
		Label:    b.Label,
		CustomID: b.CustomID,
		Style:    discordgo.PrimaryButton,
	}
	if b.Danger {
		button.Style = discordgo.DangerButton
	}
	if b.Emoji != "" {
		button.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
	}
	return button
}
