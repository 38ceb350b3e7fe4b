package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/modmail-relay-go/internal/audit"
	"github.com/openclaw/modmail-relay-go/internal/command"
	apperrors "github.com/openclaw/modmail-relay-go/internal/errors"
	"github.com/openclaw/modmail-relay-go/internal/model"
	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// invocation is where a command came from and how to answer it.
type invocation struct {
	ChannelID   string
	GuildID     string
	Actor       platform.User
	ThreadOwner string
	// MessageID is set for text commands.
	MessageID string

	respond func(ctx context.Context, resp platform.Response) error
}

func (inv invocation) Reply(ctx context.Context, content string) {
	inv.Respond(ctx, platform.Response{Content: content})
}

func (inv invocation) Respond(ctx context.Context, resp platform.Response) {
	if err := inv.respond(ctx, resp); err != nil {
		log.Warn().Err(err).Str("channelId", inv.ChannelID).Msg("failed to answer command")
	}
}

func (r *Router) dispatch(ctx context.Context, inv invocation, cmd command.Command) {
	log.Info().
		Str("command", cmd.Name()).
		Str("actorId", inv.Actor.ID).
		Str("channelId", inv.ChannelID).
		Msg("staff command")

	switch c := cmd.(type) {
	case command.Say:
		r.say(ctx, inv, c)
	case command.Reply:
		r.reply(ctx, inv, c)
	case command.Close:
		r.closeTicket(ctx, inv, c)
	case command.ListConversations:
		r.listConversations(ctx, inv)
	}
}

// say posts an announcement, as an embed or as plain text.
func (r *Router) say(ctx context.Context, inv invocation, c command.Say) {
	channelID := c.ChannelID
	if channelID == "" {
		channelID = inv.ChannelID
	}

	msg := platform.OutgoingMessage{Files: attachmentURLs(c.Attachments)}
	kind := "Normal"
	if c.Embed {
		kind = "Embed"
		var guild *platform.Guild
		if inv.GuildID != "" {
			g, err := r.deps.Platform.Guild(ctx, inv.GuildID)
			if err != nil {
				log.Warn().Err(err).Str("guildId", inv.GuildID).Msg("failed to fetch guild for announcement")
			}
			guild = g
		}
		msg.Embeds = []platform.Embed{announcementEmbed(guild, c.Message, c.Attachments, r.deps.Now())}
	} else {
		msg.Content = c.Message
	}

	if _, err := r.deps.Platform.Send(ctx, channelID, msg); err != nil {
		r.deps.Metrics.RecordError("say")
		log.Error().Err(err).Str("channelId", channelID).Msg("failed to send announcement")
		var attErr *platform.AttachmentError
		if errors.As(err, &attErr) {
			inv.Reply(ctx, msgAttachmentFailed)
			return
		}
		inv.Reply(ctx, msgSayFailed)
		return
	}

	r.deps.Audit.Record(ctx, audit.Event{
		Type:    model.TicketEventBroadcast,
		UserID:  inv.Actor.ID,
		ActorID: inv.Actor.ID,
		Detail:  "channel " + channelID,
	})

	if inv.MessageID != "" {
		inv.Reply(ctx, fmt.Sprintf("✅ Message sent to <#%s>", channelID))
		if err := r.deps.Platform.DeleteMessage(ctx, inv.ChannelID, inv.MessageID); err != nil {
			log.Debug().Err(err).Str("messageId", inv.MessageID).Msg("failed to delete say command message")
		}
		return
	}
	inv.Reply(ctx, fmt.Sprintf("📨 %s message sent to <#%s>", kind, channelID))
}

// reply sends a staff response to the user's direct channel.
func (r *Router) reply(ctx context.Context, inv invocation, c command.Reply) {
	user, err := r.deps.Platform.FetchUser(ctx, c.UserID)
	if err != nil {
		log.Warn().Err(err).Str("userId", c.UserID).Msg("failed to fetch reply target")
		inv.Reply(ctx, msgReplyFailed)
		return
	}

	iconURL := ""
	if inv.GuildID != "" {
		if g, err := r.deps.Platform.Guild(ctx, inv.GuildID); err == nil {
			iconURL = g.IconURL
		}
	}

	unlock := r.userLocks.Lock(c.UserID)
	defer unlock()

	embed := staffResponseEmbed(c.Message, iconURL, r.deps.Now())
	if err := r.deps.Platform.SendDirect(ctx, c.UserID, platform.OutgoingMessage{Embeds: []platform.Embed{embed}}); err != nil {
		r.deps.Metrics.RecordError("reply")
		log.Warn().Err(err).Str("userId", c.UserID).Msg("failed to send staff reply")
		r.deps.Audit.Record(ctx, audit.Event{Type: model.TicketEventDeliveryFailed, UserID: c.UserID, ActorID: inv.Actor.ID})
		inv.Reply(ctx, msgReplyFailed)
		return
	}

	r.recordStaffReply(ctx, c.UserID, inv.Actor.ID, "")
	inv.Respond(ctx, platform.Response{Embeds: []platform.Embed{replySentEmbed(user.Tag, r.deps.Now())}})
}

// closeTicket deletes the ticket thread and only then drops the
// conversation. A failed deletion leaves the ticket open for a retry.
func (r *Router) closeTicket(ctx context.Context, inv invocation, c command.Close) {
	userID := c.UserID
	if userID == "" {
		userID = inv.ThreadOwner
	}
	if userID == "" {
		inv.Reply(ctx, command.Usage(command.NameClose, r.deps.Prefix))
		return
	}

	unlock := r.userLocks.Lock(userID)
	defer unlock()

	conv, err := r.deps.Conversations.FindOpen(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to look up ticket")
		inv.Reply(ctx, msgInternalError)
		return
	}
	if conv == nil {
		inv.Reply(ctx, msgNoTicket)
		return
	}

	notice := platform.OutgoingMessage{Embeds: []platform.Embed{ticketClosedNotice(r.deps.Now())}}
	if err := r.deps.Platform.SendDirect(ctx, userID, notice); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to notify user of closed ticket")
	}

	if err := r.deps.Platform.DeleteThread(ctx, conv.ThreadID, "Ticket closed by staff"); err != nil {
		appErr := apperrors.ThreadDeleteFailed(conv.ThreadID, err)
		r.deps.Metrics.RecordError("close")
		log.Error().Err(appErr).Str("userId", userID).Msg("ticket stays open")
		r.deps.Audit.Record(ctx, audit.Event{
			Type:     model.TicketEventCloseFailed,
			UserID:   userID,
			ThreadID: conv.ThreadID,
			ActorID:  inv.Actor.ID,
		})
		inv.Reply(ctx, msgCloseFailed)
		return
	}

	if _, err := r.deps.Conversations.Close(ctx, userID); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to drop closed conversation")
	}
	r.deps.Metrics.TicketsClosed.Inc()
	r.deps.Audit.Record(ctx, audit.Event{
		Type:     model.TicketEventClosed,
		UserID:   userID,
		ThreadID: conv.ThreadID,
		ActorID:  inv.Actor.ID,
	})

	// Commands issued inside the deleted thread have nowhere to answer.
	if inv.ChannelID == conv.ThreadID {
		return
	}
	inv.Reply(ctx, fmt.Sprintf("✅ Ticket closed for <@%s>", userID))
}

func (r *Router) listConversations(ctx context.Context, inv invocation) {
	convs, err := r.deps.Conversations.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		inv.Reply(ctx, msgInternalError)
		return
	}
	if len(convs) == 0 {
		inv.Reply(ctx, msgNoConversations)
		return
	}

	var (
		mu   sync.Mutex
		tags = make(map[string]string, len(convs))
		g    errgroup.Group
	)
	g.SetLimit(userLookupConcurrency)
	for i, c := range convs {
		if i == embedFieldsMax {
			break
		}
		userID := c.UserID
		g.Go(func() error {
			user, err := r.deps.Platform.FetchUser(ctx, userID)
			if err != nil {
				log.Debug().Err(err).Str("userId", userID).Msg("failed to fetch user for conversation list")
				return nil
			}
			mu.Lock()
			tags[userID] = user.Tag
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	inv.Respond(ctx, platform.Response{Embeds: []platform.Embed{conversationsEmbed(convs, tags, r.deps.Now())}})
}
