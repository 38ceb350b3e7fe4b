package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/modmail-relay-go/internal/config"
	"github.com/openclaw/modmail-relay-go/internal/model"
	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// Embed colors
const (
	colorBlurple = 0x5865F2
	colorGreen   = 0x57F287
	colorRed     = 0xED4245
	colorYellow  = 0xFEE75C
)

const (
	embedDescriptionMax = 4096
	embedFieldValueMax  = 1024
	embedFieldsMax      = 25
	ackEmoji            = "👍🏻"

	userLookupConcurrency = 5
)

const (
	msgProcessingError   = "⚠️ There was an error processing your message. Please try again or contact an administrator."
	msgDMUnreachable     = "❌ **Error:** Unable to send DM. User may have DMs disabled."
	msgReplyFailed       = "❌ **Error:** Unable to send DM."
	msgAttachmentFailed  = "❌ **Error:** Unable to forward attachment(s). The file may be too large or no longer available."
	msgSayFailed         = "❌ **Error:** Unable to send message. Check channel permissions and ID."
	msgNoTicket          = "❌ No active ticket found for this user."
	msgCloseFailed       = "❌ Error closing ticket. The thread will remain open."
	msgNoConversations   = "🔭 No active conversations."
	msgInternalError     = "❌ Something went wrong. Please try again."
	msgContentRejected   = "🚫 Your message contains prohibited content and was not delivered. Please keep the conversation respectful."
	msgStaffReplyHeading = "📨 **Support Team:**"
	msgStaffSentFiles    = "📨 **Support Team:** *Sent you file(s)*"
)

func relativeTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func permissionDenied(label, action string) string {
	return fmt.Sprintf("❌ You do not have permission to %s. (Requires %s)", action, label)
}

func rateLimitNotice(d model.RateDecision) string {
	return fmt.Sprintf("⏳ You're sending messages too quickly. Please wait **%d seconds** before sending another message.", d.RemainingSeconds())
}

// ticketInfoCard opens every ticket thread. previousTickets < 0 means the
// history is unknown.
func ticketInfoCard(user platform.User, previousTickets int, now time.Time) platform.OutgoingMessage {
	fields := []platform.EmbedField{
		{Name: "User", Value: user.Tag, Inline: true},
		{Name: "User ID", Value: user.ID, Inline: true},
		{Name: "Account Created", Value: relativeTime(user.CreatedAt), Inline: true},
	}
	if previousTickets >= 0 {
		fields = append(fields, platform.EmbedField{Name: "Previous Tickets", Value: fmt.Sprintf("%d", previousTickets), Inline: true})
	}

	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			Title:        "📬 New ModMail Ticket",
			Color:        colorBlurple,
			ThumbnailURL: user.AvatarURL,
			Fields:       fields,
			Footer:       "Reply directly in this thread",
			Timestamp:    now,
		}},
		Buttons: []platform.Button{{
			CustomID: config.CloseButtonPrefix + user.ID,
			Label:    "Close Ticket",
			Emoji:    "🔒",
			Danger:   true,
		}},
	}
}

// relayCard carries one user message into the ticket thread. Attachments are
// linked, and the first image is previewed.
func relayCard(ev platform.MessageEvent, index int, now time.Time) platform.OutgoingMessage {
	embed := platform.Embed{
		Color:         colorBlurple,
		AuthorName:    ev.Author.Tag,
		AuthorIconURL: ev.Author.AvatarURL,
		Footer:        fmt.Sprintf("Message #%d", index),
		Timestamp:     now,
	}
	if ev.Content != "" {
		embed.Description = truncateRunes(ev.Content, embedDescriptionMax)
	}

	if len(ev.Attachments) > 0 {
		links := make([]string, 0, len(ev.Attachments))
		for _, a := range ev.Attachments {
			links = append(links, fmt.Sprintf("[%s](%s)", a.Name, a.URL))
		}
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name:  "📎 Attachments",
			Value: truncateRunes(strings.Join(links, "\n"), embedFieldValueMax),
		})
		embed.ImageURL = firstImageURL(ev.Attachments)
	}

	if embed.Description == "" && len(embed.Fields) == 0 {
		embed.Description = "*No text content*"
	}

	return platform.OutgoingMessage{Embeds: []platform.Embed{embed}}
}

func ticketOpenedNotice(now time.Time) platform.Embed {
	return platform.Embed{
		Title:       "🎫 Ticket Opened",
		Description: "Your support ticket has been created! Our staff team will respond to you shortly. Please be patient.",
		Color:       colorGreen,
		Footer:      "You can continue sending messages here",
		Timestamp:   now,
	}
}

func ticketClosedNotice(now time.Time) platform.Embed {
	return platform.Embed{
		Title:       "🔒 Ticket Closed",
		Description: "Your support ticket has been closed by staff. If you need further assistance, feel free to send another message!",
		Color:       colorRed,
		Timestamp:   now,
	}
}

func spamAlert(user platform.User, cooldown time.Duration, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			Title: "⚠️ Spam Detected",
			Description: fmt.Sprintf("<@%s> (%s) sent %d messages within %d seconds and is muted for %d minutes.",
				user.ID, user.Tag, config.RateThreshold, int(config.RateWindow.Seconds()), int(cooldown.Minutes())),
			Color: colorYellow,
			Fields: []platform.EmbedField{
				{Name: "User ID", Value: user.ID, Inline: true},
				{Name: "Cooldown Ends", Value: relativeTime(now.Add(cooldown)), Inline: true},
			},
			Timestamp: now,
		}},
	}
}

func filteredAlert(user platform.User, content string, now time.Time) platform.OutgoingMessage {
	return platform.OutgoingMessage{
		Embeds: []platform.Embed{{
			Title:       "🚫 Prohibited Content Blocked",
			Description: fmt.Sprintf("A message from <@%s> (%s) was not delivered.", user.ID, user.Tag),
			Color:       colorRed,
			Fields: []platform.EmbedField{
				{Name: "User ID", Value: user.ID, Inline: true},
				{Name: "Message", Value: truncateRunes(content, min(config.StaffAlertMaxLen, embedFieldValueMax))},
			},
			Timestamp: now,
		}},
	}
}

// staffRelay builds the direct message for a reply typed in a ticket thread.
func staffRelay(content string, attachments []platform.Attachment) platform.OutgoingMessage {
	msg := platform.OutgoingMessage{Files: attachmentURLs(attachments)}
	if strings.TrimSpace(content) != "" {
		msg.Content = msgStaffReplyHeading + "\n" + content
	} else {
		msg.Content = msgStaffSentFiles
	}
	return msg
}

func staffResponseEmbed(message, guildIconURL string, now time.Time) platform.Embed {
	return platform.Embed{
		Color:         colorGreen,
		AuthorName:    "Staff Response",
		AuthorIconURL: guildIconURL,
		Description:   truncateRunes(message, embedDescriptionMax),
		Timestamp:     now,
	}
}

func replySentEmbed(tag string, now time.Time) platform.Embed {
	return platform.Embed{
		Color:       colorGreen,
		Description: fmt.Sprintf("✅ **Reply sent to %s**", tag),
		Timestamp:   now,
	}
}

func announcementEmbed(guild *platform.Guild, message string, attachments []platform.Attachment, now time.Time) platform.Embed {
	embed := platform.Embed{
		Color:       colorBlurple,
		Description: truncateRunes(message, embedDescriptionMax),
		ImageURL:    firstImageURL(attachments),
		Timestamp:   now,
	}
	if guild != nil {
		embed.AuthorName = guild.Name
		embed.AuthorIconURL = guild.IconURL
	}
	return embed
}

// conversationsEmbed lists open tickets. tags maps user IDs to display names.
func conversationsEmbed(convs []model.Conversation, tags map[string]string, now time.Time) platform.Embed {
	embed := platform.Embed{
		Title:     "📬 Active Conversations",
		Color:     colorBlurple,
		Timestamp: now,
	}

	for i, c := range convs {
		if i == embedFieldsMax {
			embed.Footer = fmt.Sprintf("…and %d more", len(convs)-embedFieldsMax)
			break
		}
		name, ok := tags[c.UserID]
		if !ok {
			name = fmt.Sprintf("Unknown (%s)", c.UserID)
		}
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name:  name,
			Value: fmt.Sprintf("Messages: %d | Last: %s\nThread: <#%s>", c.MessageCount, relativeTime(c.LastMessageAt), c.ThreadID),
		})
	}

	return embed
}

func firstImageURL(attachments []platform.Attachment) string {
	for _, a := range attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			return a.URL
		}
	}
	return ""
}

func attachmentURLs(attachments []platform.Attachment) []string {
	if len(attachments) == 0 {
		return nil
	}
	urls := make([]string, 0, len(attachments))
	for _, a := range attachments {
		urls = append(urls, a.URL)
	}
	return urls
}
