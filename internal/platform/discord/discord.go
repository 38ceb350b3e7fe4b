package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/config"
	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// EventHandler receives translated gateway events. Calls arrive on the gateway
// goroutine in arrival order, so implementations must return quickly.
type EventHandler interface {
	HandleMessage(ctx context.Context, ev platform.MessageEvent)
	HandleInteraction(ctx context.Context, in platform.Interaction)
}

type Options struct {
	Token          string
	StaffChannelID string
	PresenceText   string
	HTTPClient     *http.Client
}

// Client implements platform.Client on a discordgo session.
type Client struct {
	session        *discordgo.Session
	staffChannelID string
	presenceText   string
	files          *fileFetcher

	mu        sync.RWMutex
	botUserID string
}

var _ platform.Client = (*Client)(nil)

func New(opts Options) (*Client, error) {
	session, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	// Handlers run inline so events reach the EventHandler in arrival order.
	session.SyncEvents = true

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		session:        session,
		staffChannelID: opts.StaffChannelID,
		presenceText:   opts.PresenceText,
		files:          newFileFetcher(httpClient, config.AttachmentMaxBytes),
	}, nil
}

// Start registers the gateway handlers and opens the connection.
func (c *Client) Start(h EventHandler) error {
	log.Info().Msg("starting discord bot")

	c.session.AddHandler(c.onReady)
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ev, ok := c.translateMessage(m)
		if !ok {
			return
		}
		h.HandleMessage(context.Background(), ev)
	})
	c.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		in, ok := translateInteraction(i.Interaction)
		if !ok {
			return
		}
		h.HandleInteraction(context.Background(), in)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.setBotUserID(user.ID)

	log.Info().Str("username", user.Username).Str("botId", user.ID).Msg("discord bot connected")
	return nil
}

func (c *Client) Stop() error {
	log.Info().Msg("stopping discord bot")
	return c.session.Close()
}

func (c *Client) BotUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botUserID
}

func (c *Client) setBotUserID(id string) {
	c.mu.Lock()
	c.botUserID = id
	c.mu.Unlock()
}

func (c *Client) CreateThread(ctx context.Context, parentChannelID, name, reason string) (string, error) {
	thread, err := c.session.ThreadStart(
		parentChannelID,
		truncate(name, 100),
		discordgo.ChannelTypeGuildPublicThread,
		config.ThreadAutoArchiveMinutes,
		discordgo.WithContext(ctx),
		discordgo.WithAuditLogReason(reason),
	)
	if err != nil {
		return "", fmt.Errorf("start thread: %w", err)
	}
	return thread.ID, nil
}

func (c *Client) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	ch, err := c.session.Channel(threadID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownChannel(err) {
			return false, nil
		}
		return false, fmt.Errorf("fetch thread: %w", err)
	}
	return ch.IsThread(), nil
}

// DeleteThread deletes a thread. A thread that is already gone counts as
// deleted.
func (c *Client) DeleteThread(ctx context.Context, threadID, reason string) error {
	_, err := c.session.ChannelDelete(threadID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil && !isUnknownChannel(err) {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

func (c *Client) Send(ctx context.Context, channelID string, msg platform.OutgoingMessage) (string, error) {
	send, err := c.buildMessage(ctx, msg)
	if err != nil {
		return "", err
	}

	sent, err := c.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.ID, nil
}

func (c *Client) SendDirect(ctx context.Context, userID string, msg platform.OutgoingMessage) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open direct channel: %w", err)
	}
	if _, err := c.Send(ctx, dm.ID, msg); err != nil {
		return err
	}
	return nil
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (c *Client) FetchUser(ctx context.Context, userID string) (*platform.User, error) {
	u, err := c.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	user := toUser(u)
	return &user, nil
}

func (c *Client) Guild(ctx context.Context, guildID string) (*platform.Guild, error) {
	g, err := c.session.State.Guild(guildID)
	if err != nil {
		g, err = c.session.Guild(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch guild: %w", err)
		}
	}
	return &platform.Guild{ID: g.ID, Name: g.Name, IconURL: g.IconURL("")}, nil
}

func (c *Client) HasPermission(ctx context.Context, channelID, userID string, permission int64) (bool, error) {
	perms, err := c.session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("compute permissions: %w", err)
	}
	return platform.Allows(perms, permission), nil
}

func (c *Client) RespondInteraction(ctx context.Context, in *platform.Interaction, resp platform.Response) error {
	raw, ok := in.Raw.(*discordgo.Interaction)
	if !ok || raw == nil {
		return errors.New("respond interaction: missing discord interaction")
	}

	data := &discordgo.InteractionResponseData{
		Content:         resp.Content,
		Embeds:          toEmbeds(resp.Embeds),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := c.session.InteractionRespond(raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("respond interaction: %w", err)
	}
	return nil
}

func (c *Client) buildMessage(ctx context.Context, msg platform.OutgoingMessage) (*discordgo.MessageSend, error) {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg.Embeds),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			RepliedUser: !msg.NoMentionReply,
		},
	}

	if msg.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo}
	}

	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, b := range msg.Buttons {
			row.Components = append(row.Components, toButton(b))
		}
		send.Components = []discordgo.MessageComponent{row}
	}

	for _, url := range msg.Files {
		file, err := c.files.Fetch(ctx, url)
		if err != nil {
			return nil, &platform.AttachmentError{URL: url, Err: err}
		}
		send.Files = append(send.Files, file)
	}

	return send, nil
}

// onReady sets the presence and logs whether the bot can work in the staff
// channel.
func (c *Client) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.setBotUserID(r.User.ID)

	log.Info().
		Str("botTag", r.User.String()).
		Str("staffChannelId", c.staffChannelID).
		Msg("modmail ready")

	if c.presenceText != "" {
		err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
			Status: string(discordgo.StatusOnline),
			Activities: []*discordgo.Activity{{
				Name:  c.presenceText,
				Type:  discordgo.ActivityTypeCustom,
				State: c.presenceText,
			}},
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to set presence")
		}
	}

	c.checkStaffChannel(s, r.User.ID)
}

func (c *Client) checkStaffChannel(s *discordgo.Session, botID string) {
	ch, err := s.Channel(c.staffChannelID)
	if err != nil {
		log.Error().Err(err).Str("staffChannelId", c.staffChannelID).Msg("cannot access staff channel")
		return
	}

	perms, err := s.UserChannelPermissions(botID, ch.ID)
	if err != nil {
		log.Warn().Err(err).Str("staffChannelId", ch.ID).Msg("cannot compute bot permissions")
		return
	}

	checks := []struct {
		name string
		bit  int64
	}{
		{"viewChannel", discordgo.PermissionViewChannel},
		{"sendMessages", discordgo.PermissionSendMessages},
		{"createPublicThreads", discordgo.PermissionCreatePublicThreads},
		{"sendMessagesInThreads", discordgo.PermissionSendMessagesInThreads},
		{"manageThreads", discordgo.PermissionManageThreads},
		{"attachFiles", discordgo.PermissionAttachFiles},
	}

	event := log.Info().Str("staffChannel", ch.Name)
	missing := 0
	for _, check := range checks {
		ok := platform.Allows(perms, check.bit)
		if !ok {
			missing++
		}
		event = event.Bool(check.name, ok)
	}
	event.Int("missing", missing).Msg("staff channel permission check")
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
