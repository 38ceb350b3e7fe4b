package handler

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/audit"
	"github.com/openclaw/modmail-relay-go/internal/command"
	"github.com/openclaw/modmail-relay-go/internal/config"
	apperrors "github.com/openclaw/modmail-relay-go/internal/errors"
	"github.com/openclaw/modmail-relay-go/internal/metrics"
	"github.com/openclaw/modmail-relay-go/internal/model"
	"github.com/openclaw/modmail-relay-go/internal/platform"
	"github.com/openclaw/modmail-relay-go/internal/service"
)

// TicketHistory counts a user's past ticket events.
type TicketHistory interface {
	CountByUserIDAndType(ctx context.Context, userID string, eventType model.TicketEventType) (int, error)
}

type RouterDeps struct {
	Platform      platform.Client
	Conversations *service.ConversationService
	RateLimiter   *service.RateLimiter
	Filter        *service.ContentFilter
	Dedup         *service.Deduper
	Metrics       *metrics.Metrics

	// Audit and History are optional.
	Audit   *audit.Recorder
	History TicketHistory

	StaffChannelID     string
	Prefix             string
	RequiredPermission int64
	PermissionLabel    string
	EventTimeout       time.Duration
	Now                func() time.Time
}

// Router relays messages between users' direct channels and the staff
// channel's ticket threads, and runs staff commands. Events for one user are
// handled one at a time.
type Router struct {
	deps      RouterDeps
	userLocks *service.KeyedMutex
}

func NewRouter(deps RouterDeps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EventTimeout <= 0 {
		deps.EventTimeout = config.DefaultEventTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.PermissionLabel == "" {
		deps.PermissionLabel = "Administrator"
	}
	return &Router{
		deps:      deps,
		userLocks: service.NewKeyedMutex(),
	}
}

// HandleMessage processes one inbound message event.
func (r *Router) HandleMessage(ctx context.Context, ev platform.MessageEvent) {
	defer r.recoverPanic("message", ev.ID)

	if ev.Author.Bot || ev.Author.ID == r.deps.Platform.BotUserID() {
		return
	}
	if r.deps.Dedup.Seen(ev.ID) {
		log.Debug().Str("eventId", ev.ID).Msg("duplicate message event skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.deps.EventTimeout)
	defer cancel()
	start := time.Now()

	switch {
	case ev.IsDM:
		r.handleUserMessage(ctx, ev)
		r.deps.Metrics.ObserveEvent("user_message", time.Since(start).Seconds())
	case ev.IsThread && ev.ParentID == r.deps.StaffChannelID:
		r.handleThreadMessage(ctx, ev)
		r.deps.Metrics.ObserveEvent("staff_message", time.Since(start).Seconds())
	case ev.ChannelID == r.deps.StaffChannelID:
		r.handleCommandText(ctx, ev, "")
		r.deps.Metrics.ObserveEvent("staff_command", time.Since(start).Seconds())
	}
}

// HandleInteraction processes a slash command or a close button press.
func (r *Router) HandleInteraction(ctx context.Context, in platform.Interaction) {
	defer r.recoverPanic("interaction", in.ID)

	ctx, cancel := context.WithTimeout(ctx, r.deps.EventTimeout)
	defer cancel()
	start := time.Now()

	inv := invocation{
		ChannelID: in.ChannelID,
		GuildID:   in.GuildID,
		Actor:     in.User,
		respond: func(ctx context.Context, resp platform.Response) error {
			resp.Ephemeral = true
			return r.deps.Platform.RespondInteraction(ctx, &in, resp)
		},
	}
	allowed := platform.Allows(in.Permissions, r.deps.RequiredPermission)

	switch in.Kind {
	case platform.InteractionButton:
		userID, ok := strings.CutPrefix(in.CustomID, config.CloseButtonPrefix)
		if !ok {
			return
		}
		if !allowed {
			r.deny(ctx, inv, "close tickets")
			return
		}
		r.closeTicket(ctx, inv, command.Close{UserID: userID})
		r.deps.Metrics.ObserveEvent("close_button", time.Since(start).Seconds())

	case platform.InteractionCommand:
		if !allowed {
			r.deny(ctx, inv, "use this command")
			return
		}
		cmd, err := command.FromSlash(in.Name, in.Options)
		if err != nil {
			inv.Reply(ctx, "❌ "+userMessage(err))
			return
		}
		r.dispatch(ctx, inv, cmd)
		r.deps.Metrics.ObserveEvent("slash_command", time.Since(start).Seconds())
	}
}

// handleUserMessage relays a direct message into the user's ticket thread.
func (r *Router) handleUserMessage(ctx context.Context, ev platform.MessageEvent) {
	userID := ev.Author.ID
	unlock := r.userLocks.Lock(userID)
	defer unlock()

	now := r.deps.Now()

	decision := r.deps.RateLimiter.CheckAndRecord(userID, now)
	if !decision.Allowed {
		r.rejectRateLimited(ctx, ev, decision, now)
		return
	}

	if r.deps.Filter.IsProhibited(ev.Content) {
		r.rejectFiltered(ctx, ev, now)
		return
	}

	// Accepted messages are acknowledged even when the relay below fails.
	defer r.acknowledge(ctx, ev)

	conv, created, err := r.deps.Conversations.OpenOrReuse(ctx, userID, r.threadFactory(ev.Author))
	if err != nil {
		r.failUser(ctx, ev, "open_ticket", err)
		return
	}
	if created {
		r.deps.Metrics.TicketsOpened.Inc()
		r.deps.Audit.Record(ctx, audit.Event{Type: model.TicketEventOpened, UserID: userID, ThreadID: conv.ThreadID})
	}

	// The registry is only updated once the relay went through, so a failed
	// message never consumes an index.
	if _, err := r.deps.Platform.Send(ctx, conv.ThreadID, relayCard(ev, conv.MessageCount+1, now)); err != nil {
		r.failUser(ctx, ev, "relay_to_staff", apperrors.DeliveryFailed("ticket thread", err))
		return
	}

	conv, err = r.deps.Conversations.RecordMessage(ctx, userID, now)
	if err != nil {
		r.failUser(ctx, ev, "record_message", err)
		return
	}
	r.deps.Metrics.RecordRelay(string(model.DirectionUserToStaff))

	log.Debug().
		Str("userId", userID).
		Str("threadId", conv.ThreadID).
		Int("messageCount", conv.MessageCount).
		Msg("user message relayed")

	if conv.MessageCount == 1 {
		r.sendOrLog(ctx, ev.ChannelID, platform.OutgoingMessage{
			Embeds:  []platform.Embed{ticketOpenedNotice(now)},
			ReplyTo: ev.ID,
		}, "ticket opened notice")
	}
}

func (r *Router) acknowledge(ctx context.Context, ev platform.MessageEvent) {
	if err := r.deps.Platform.React(ctx, ev.ChannelID, ev.ID, ackEmoji); err != nil {
		log.Warn().Err(err).Str("userId", ev.Author.ID).Msg("failed to acknowledge message")
	}
}

func (r *Router) rejectRateLimited(ctx context.Context, ev platform.MessageEvent, decision model.RateDecision, now time.Time) {
	r.deps.Metrics.RecordRejection(string(decision.Reason))

	r.sendOrLog(ctx, ev.ChannelID, platform.OutgoingMessage{
		Content: rateLimitNotice(decision),
		ReplyTo: ev.ID,
	}, "rate limit notice")

	if decision.Reason != model.RateReasonLimitExceeded {
		return
	}

	r.sendOrLog(ctx, r.deps.StaffChannelID, spamAlert(ev.Author, decision.CooldownRemaining, now), "spam alert")
	r.deps.Audit.Record(ctx, audit.Event{
		Type:    model.TicketEventRateLimited,
		UserID:  ev.Author.ID,
		Detail:  "message rate exceeded",
		Details: map[string]interface{}{"cooldown": decision.CooldownRemaining},
	})
}

func (r *Router) rejectFiltered(ctx context.Context, ev platform.MessageEvent, now time.Time) {
	r.deps.Metrics.RecordRejection("filtered")

	r.sendOrLog(ctx, ev.ChannelID, platform.OutgoingMessage{
		Content: msgContentRejected,
		ReplyTo: ev.ID,
	}, "content rejection notice")
	r.sendOrLog(ctx, r.deps.StaffChannelID, filteredAlert(ev.Author, ev.Content, now), "filtered content alert")

	r.deps.Audit.Record(ctx, audit.Event{
		Type:   model.TicketEventFiltered,
		UserID: ev.Author.ID,
		Detail: "prohibited content",
	})
}

// threadFactory opens a ticket thread under the staff channel and posts the
// info card with the close button. A failed card does not fail the thread.
func (r *Router) threadFactory(user platform.User) service.ThreadFactory {
	return func(ctx context.Context) (string, error) {
		threadID, err := r.deps.Platform.CreateThread(ctx, r.deps.StaffChannelID,
			config.ThreadNamePrefix+user.Username, "ModMail from "+user.Tag)
		if err != nil {
			return "", apperrors.External("create thread", err)
		}

		card := ticketInfoCard(user, r.previousTickets(ctx, user.ID), r.deps.Now())
		if _, err := r.deps.Platform.Send(ctx, threadID, card); err != nil {
			r.deps.Metrics.RecordError("ticket_card")
			log.Warn().Err(err).Str("threadId", threadID).Msg("failed to post ticket info card")
		}
		return threadID, nil
	}
}

func (r *Router) previousTickets(ctx context.Context, userID string) int {
	if r.deps.History == nil {
		return -1
	}
	count, err := r.deps.History.CountByUserIDAndType(ctx, userID, model.TicketEventClosed)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to count previous tickets")
		return -1
	}
	return count
}

// handleThreadMessage relays a staff message typed in a ticket thread to the
// ticket's user. Prefixed text is a command and is never relayed.
func (r *Router) handleThreadMessage(ctx context.Context, ev platform.MessageEvent) {
	userID, ok, err := r.deps.Conversations.ResolveUserByThread(ctx, ev.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("threadId", ev.ChannelID).Msg("failed to resolve ticket thread")
		return
	}
	if !ok {
		return
	}

	if command.IsCommandText(ev.Content, r.deps.Prefix) {
		r.handleCommandText(ctx, ev, userID)
		return
	}
	if strings.TrimSpace(ev.Content) == "" && len(ev.Attachments) == 0 {
		return
	}

	unlock := r.userLocks.Lock(userID)
	defer unlock()

	if err := r.deps.Platform.SendDirect(ctx, userID, staffRelay(ev.Content, ev.Attachments)); err != nil {
		r.deps.Metrics.RecordError("relay_to_user")
		log.Warn().Err(err).Str("userId", userID).Str("threadId", ev.ChannelID).Msg("failed to relay staff reply")
		notice, detail := deliveryFailure(err)
		r.deps.Audit.Record(ctx, audit.Event{
			Type:     model.TicketEventDeliveryFailed,
			UserID:   userID,
			ThreadID: ev.ChannelID,
			ActorID:  ev.Author.ID,
			Detail:   detail,
		})
		r.sendOrLog(ctx, ev.ChannelID, platform.OutgoingMessage{
			Content:        notice,
			ReplyTo:        ev.ID,
			NoMentionReply: true,
		}, "delivery failure notice")
		return
	}

	if err := r.deps.Platform.React(ctx, ev.ChannelID, ev.ID, ackEmoji); err != nil {
		log.Warn().Err(err).Str("threadId", ev.ChannelID).Msg("failed to confirm staff reply")
	}

	r.recordStaffReply(ctx, userID, ev.Author.ID, ev.ChannelID)
}

func (r *Router) recordStaffReply(ctx context.Context, userID, actorID, threadID string) {
	now := r.deps.Now()
	r.deps.RateLimiter.RecordStaffReply(userID, now)
	if err := r.deps.Conversations.RecordStaffActivity(ctx, userID, now); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to stamp staff activity")
	}
	r.deps.Metrics.RecordRelay(string(model.DirectionStaffToUser))
	r.deps.Audit.Record(ctx, audit.Event{
		Type:     model.TicketEventStaffReply,
		UserID:   userID,
		ThreadID: threadID,
		ActorID:  actorID,
	})
}

// handleCommandText runs a prefixed staff command. threadOwner is the user of
// the ticket thread the command was typed in, if any.
func (r *Router) handleCommandText(ctx context.Context, ev platform.MessageEvent, threadOwner string) {
	cmd, err := command.ParseText(ev.Content, r.deps.Prefix)
	if errors.Is(err, command.ErrNotCommand) {
		return
	}

	inv := invocation{
		ChannelID:   ev.ChannelID,
		GuildID:     ev.GuildID,
		Actor:       ev.Author,
		ThreadOwner: threadOwner,
		MessageID:   ev.ID,
		respond: func(ctx context.Context, resp platform.Response) error {
			_, err := r.deps.Platform.Send(ctx, ev.ChannelID, platform.OutgoingMessage{
				Content:        resp.Content,
				Embeds:         resp.Embeds,
				ReplyTo:        ev.ID,
				NoMentionReply: true,
			})
			return err
		},
	}

	allowed, permErr := r.deps.Platform.HasPermission(ctx, r.deps.StaffChannelID, ev.Author.ID, r.deps.RequiredPermission)
	if permErr != nil {
		log.Warn().Err(permErr).Str("actorId", ev.Author.ID).Msg("permission lookup failed")
	}
	if !allowed {
		r.deny(ctx, inv, "use this command")
		return
	}

	if err != nil {
		inv.Reply(ctx, userMessage(err))
		return
	}

	if say, ok := cmd.(command.Say); ok {
		say.Attachments = ev.Attachments
		cmd = say
	}
	r.dispatch(ctx, inv, cmd)
}

// failUser logs a relay failure and tells the user to retry.
func (r *Router) failUser(ctx context.Context, ev platform.MessageEvent, op string, err error) {
	r.deps.Metrics.RecordError(op)
	log.Error().
		Err(err).
		Str("op", op).
		Str("code", string(apperrors.GetCode(err))).
		Str("userId", ev.Author.ID).
		Msg("failed to relay user message")
	r.sendOrLog(ctx, ev.ChannelID, platform.OutgoingMessage{Content: msgProcessingError, ReplyTo: ev.ID}, "retry notice")
}

func (r *Router) deny(ctx context.Context, inv invocation, action string) {
	err := apperrors.Forbidden(permissionDenied(r.deps.PermissionLabel, action))
	log.Warn().Err(err).Str("actorId", inv.Actor.ID).Str("channelId", inv.ChannelID).Msg("permission denied")
	inv.Reply(ctx, userMessage(err))
}

func (r *Router) sendOrLog(ctx context.Context, channelID string, msg platform.OutgoingMessage, what string) {
	if _, err := r.deps.Platform.Send(ctx, channelID, msg); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msgf("failed to send %s", what)
	}
}

func (r *Router) recoverPanic(kind, id string) {
	if rec := recover(); rec != nil {
		r.deps.Metrics.RecordError("panic")
		log.Error().
			Interface("panic", rec).
			Str("kind", kind).
			Str("eventId", id).
			Bytes("stack", debug.Stack()).
			Msg("recovered from panic in event handler")
	}
}

// deliveryFailure picks the staff notice and audit detail for a failed direct
// message. Only a rejected send means the user's DMs are closed.
func deliveryFailure(err error) (notice, detail string) {
	var attErr *platform.AttachmentError
	if errors.As(err, &attErr) {
		return msgAttachmentFailed, "attachment unavailable"
	}
	return msgDMUnreachable, "direct message rejected"
}

// userMessage extracts the text safe to show for err.
func userMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return msgInternalError
}
