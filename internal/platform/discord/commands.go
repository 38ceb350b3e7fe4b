package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/openclaw/modmail-relay-go/internal/command"
)

var permissionsByName = map[string]int64{
	"administrator":    discordgo.PermissionAdministrator,
	"manage_guild":     discordgo.PermissionManageServer,
	"manage_messages":  discordgo.PermissionManageMessages,
	"manage_threads":   discordgo.PermissionManageThreads,
	"moderate_members": discordgo.PermissionModerateMembers,
}

// ParsePermission maps a REQUIRED_PERMISSION name to its permission bit.
func ParsePermission(name string) (int64, error) {
	perm, ok := permissionsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown permission %q", name)
	}
	return perm, nil
}

// PermissionLabel is the human readable name used in denial notices.
func PermissionLabel(name string) string {
	words := strings.Split(strings.ToLower(name), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ApplicationCommands returns the slash commands, restricted by default to
// members holding permission.
func ApplicationCommands(permission int64) []*discordgo.ApplicationCommand {
	dmAllowed := false

	return []*discordgo.ApplicationCommand{
		{
			Name:                     command.NameSay,
			Description:              "Send a message to a channel",
			DefaultMemberPermissions: &permission,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Message text",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel where message will be sent (defaults to this one)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "embed",
					Description: "Send as embed? true = embed, false = normal",
				},
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "attachment",
					Description: "Optional file/image",
				},
			},
		},
		{
			Name:                     command.NameReply,
			Description:              "Reply to a user via ModMail",
			DefaultMemberPermissions: &permission,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "userid",
					Description: "User ID to reply to",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Your reply message",
					Required:    true,
				},
			},
		},
		{
			Name:                     command.NameClose,
			Description:              "Close a ModMail ticket",
			DefaultMemberPermissions: &permission,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "userid",
					Description: "User ID to close ticket for",
					Required:    true,
				},
			},
		},
		{
			Name:                     command.NameConversations,
			Description:              "List all active ModMail conversations",
			DefaultMemberPermissions: &permission,
			DMPermission:             &dmAllowed,
		},
	}
}

// RegisterCommands overwrites the application's slash commands, globally or
// for one guild when guildID is set.
func RegisterCommands(token, appID, guildID string, permission int64) ([]*discordgo.ApplicationCommand, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	registered, err := session.ApplicationCommandBulkOverwrite(appID, guildID, ApplicationCommands(permission))
	if err != nil {
		return nil, fmt.Errorf("overwrite application commands: %w", err)
	}
	return registered, nil
}
