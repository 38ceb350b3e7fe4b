package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

// knownPermissions lists the permission names accepted by REQUIRED_PERMISSION.
var knownPermissions = []string{
	"administrator", "manage_guild", "manage_messages", "manage_threads", "moderate_members",
}

type Config struct {
	BotToken           string   `env:"BOT_TOKEN,required"`
	StaffChannelID     string   `env:"STAFF_CHANNEL_ID,required"`
	ClientID           string   `env:"CLIENT_ID"`
	GuildID            string   `env:"GUILD_ID"`
	Port               int      `env:"PORT" envDefault:"3000"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	Debug              bool     `env:"DEBUG" envDefault:"false"`
	CommandPrefix      string   `env:"COMMAND_PREFIX" envDefault:"!"`
	RequiredPermission string   `env:"REQUIRED_PERMISSION" envDefault:"administrator"`
	BannedWords        []string `env:"BANNED_WORDS" envSeparator:","`
	PresenceText       string   `env:"PRESENCE_TEXT" envDefault:"DM me for any help"`
	RedisURL           string   `env:"REDIS_URL"`
	DatabaseURL        string   `env:"DATABASE_URL"`
	EventTimeoutSecs   int      `env:"EVENT_TIMEOUT_SECONDS" envDefault:"30"`
}

// RegistrationConfig is the subset of settings cmd/register-commands needs.
type RegistrationConfig struct {
	BotToken           string `env:"BOT_TOKEN,required"`
	ClientID           string `env:"CLIENT_ID,required"`
	GuildID            string `env:"GUILD_ID"`
	RequiredPermission string `env:"REQUIRED_PERMISSION" envDefault:"administrator"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) EventTimeout() time.Duration {
	if c.EventTimeoutSecs <= 0 {
		return DefaultEventTimeout
	}
	return time.Duration(c.EventTimeoutSecs) * time.Second
}

// EffectiveLogLevel returns "debug" when DEBUG is set, otherwise LOG_LEVEL.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}
	if strings.HasPrefix(c.CommandPrefix, "/") {
		return fmt.Errorf("COMMAND_PREFIX must not start with '/': slash is reserved for /say and /reply")
	}

	perm, err := normalizePermission(c.RequiredPermission)
	if err != nil {
		return err
	}
	c.RequiredPermission = perm

	if c.RedisURL == "" {
		log.Debug().Msg("REDIS_URL is empty: ticket events will not be published")
	}
	if c.DatabaseURL == "" {
		log.Debug().Msg("DATABASE_URL is empty: ticket audit trail is log-only")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func LoadRegistration() (*RegistrationConfig, error) {
	var cfg RegistrationConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	perm, err := normalizePermission(cfg.RequiredPermission)
	if err != nil {
		return nil, err
	}
	cfg.RequiredPermission = perm
	return &cfg, nil
}

func normalizePermission(name string) (string, error) {
	perm := strings.ToLower(strings.TrimSpace(name))
	for _, p := range knownPermissions {
		if perm == p {
			return perm, nil
		}
	}
	return "", fmt.Errorf("REQUIRED_PERMISSION %q is not one of %s", name, strings.Join(knownPermissions, ", "))
}
