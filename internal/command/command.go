// Package command turns staff input into one of four commands, whether it
// arrived as a prefixed text message or as a slash command.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	apperrors "github.com/openclaw/modmail-relay-go/internal/errors"
	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// ErrNotCommand is returned for text that does not start with a known command.
var ErrNotCommand = errors.New("not a command")

// Command names, shared by the text and slash surfaces.
const (
	NameSay           = "say"
	NameReply         = "reply"
	NameClose         = "close"
	NameConversations = "conversations"
)

type Command interface {
	Name() string
}

// Say posts a staff announcement. An empty ChannelID means the channel the
// command was issued in.
type Say struct {
	ChannelID   string
	Message     string
	Embed       bool
	Attachments []platform.Attachment
}

// Reply sends a staff response to a user's direct channel.
type Reply struct {
	UserID  string
	Message string
}

// Close ends a user's ticket. An empty UserID means the owner of the thread
// the command was issued in.
type Close struct {
	UserID string
}

type ListConversations struct{}

func (Say) Name() string               { return NameSay }
func (Reply) Name() string             { return NameReply }
func (Close) Name() string             { return NameClose }
func (ListConversations) Name() string { return NameConversations }

// Usage returns the help text for the named command.
func Usage(name, prefix string) string {
	switch name {
	case NameSay:
		return fmt.Sprintf("❌ **Usage:** `%ssay <#channel> <message>`\n**Example:** `%ssay #announcements Hello everyone!`\n\n💡 **Tip:** Use the slash command for better experience!", prefix, prefix)
	case NameReply:
		return fmt.Sprintf("❌ **Usage:** `%sreply <userId> <message>`\n**Example:** `%sreply 123456789 Hello!`", prefix, prefix)
	case NameClose:
		return fmt.Sprintf("❌ **Usage:** `%sclose <userId>`\n**Example:** `%sclose 123456789`", prefix, prefix)
	default:
		return fmt.Sprintf("❌ **Usage:** `%sconversations`", prefix)
	}
}

// IsCommandText reports whether content would be treated as a command rather
// than relayed. Both the configured prefix and "/" count.
func IsCommandText(content, prefix string) bool {
	return strings.HasPrefix(content, prefix) || strings.HasPrefix(content, "/")
}

// ParseText parses a text command. It returns ErrNotCommand for ordinary
// text and a validation error carrying the usage string for malformed input.
func ParseText(content, prefix string) (Command, error) {
	content = strings.TrimSpace(content)
	keyword, rest := cut(content)

	var name string
	switch {
	case strings.HasPrefix(keyword, prefix):
		name = strings.TrimPrefix(keyword, prefix)
	case strings.HasPrefix(keyword, "/"):
		name = strings.TrimPrefix(keyword, "/")
	default:
		return nil, ErrNotCommand
	}
	name = strings.ToLower(name)

	switch name {
	case NameSay:
		channel, message := cut(rest)
		channelID := stripMention(channel, "<#>")
		if !isSnowflake(channelID) {
			return nil, usageError(name, prefix)
		}
		return Say{ChannelID: channelID, Message: message, Embed: true}, nil

	case NameReply:
		user, message := cut(rest)
		userID := stripMention(user, "<@!>")
		if !isSnowflake(userID) || message == "" {
			return nil, usageError(name, prefix)
		}
		return Reply{UserID: userID, Message: message}, nil

	case NameClose:
		user, _ := cut(rest)
		if user == "" {
			return Close{}, nil
		}
		userID := stripMention(user, "<@!>")
		if !isSnowflake(userID) {
			return nil, usageError(name, prefix)
		}
		return Close{UserID: userID}, nil

	case NameConversations:
		return ListConversations{}, nil
	}

	return nil, ErrNotCommand
}

// FromSlash converts a slash command invocation.
func FromSlash(name string, options map[string]platform.Option) (Command, error) {
	switch name {
	case NameSay:
		message := strings.TrimSpace(options["message"].String)
		if message == "" {
			return nil, apperrors.MissingRequired("message")
		}
		say := Say{
			ChannelID: options["channel"].ChannelID,
			Message:   message,
			Embed:     options["embed"].Bool,
		}
		if att := options["attachment"].Attachment; att != nil {
			say.Attachments = []platform.Attachment{*att}
		}
		return say, nil

	case NameReply:
		userID := strings.TrimSpace(options["userid"].String)
		message := strings.TrimSpace(options["message"].String)
		if userID == "" {
			return nil, apperrors.MissingRequired("userid")
		}
		if message == "" {
			return nil, apperrors.MissingRequired("message")
		}
		if !isSnowflake(userID) {
			return nil, apperrors.InvalidInput("userid", "must be a numeric user ID")
		}
		return Reply{UserID: userID, Message: message}, nil

	case NameClose:
		userID := strings.TrimSpace(options["userid"].String)
		if userID == "" {
			return nil, apperrors.MissingRequired("userid")
		}
		if !isSnowflake(userID) {
			return nil, apperrors.InvalidInput("userid", "must be a numeric user ID")
		}
		return Close{UserID: userID}, nil

	case NameConversations:
		return ListConversations{}, nil
	}

	return nil, apperrors.ValidationError(fmt.Sprintf("unknown command %q", name))
}

func usageError(name, prefix string) *apperrors.AppError {
	return apperrors.ValidationError(Usage(name, prefix)).WithDetails(map[string]string{"command": name})
}

// cut splits off the first whitespace-delimited word.
func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func stripMention(s, chars string) string {
	return strings.Trim(s, chars)
}

func isSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
