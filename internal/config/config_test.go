package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("EventTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{EventTimeoutSecs: 12}
		assert.Equal(t, 12*time.Second, cfg.EventTimeout())
	})

	t.Run("EventTimeout falls back to default", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t, DefaultEventTimeout, cfg.EventTimeout())
	})

	t.Run("Debug forces debug level", func(t *testing.T) {
		cfg := &Config{LogLevel: "warn", Debug: true}
		assert.Equal(t, "debug", cfg.EffectiveLogLevel())

		cfg.Debug = false
		assert.Equal(t, "warn", cfg.EffectiveLogLevel())
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts defaults", func(t *testing.T) {
		cfg := &Config{CommandPrefix: "!", RequiredPermission: "Administrator"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "administrator", cfg.RequiredPermission)
	})

	t.Run("rejects empty prefix", func(t *testing.T) {
		cfg := &Config{CommandPrefix: " ", RequiredPermission: "administrator"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects slash prefix", func(t *testing.T) {
		cfg := &Config{CommandPrefix: "/", RequiredPermission: "administrator"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown permission", func(t *testing.T) {
		cfg := &Config{CommandPrefix: "!", RequiredPermission: "kick_everyone"}
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"BOT_TOKEN", "STAFF_CHANNEL_ID", "PORT", "LOG_LEVEL", "COMMAND_PREFIX",
		"REQUIRED_PERMISSION", "BANNED_WORDS", "DEBUG",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("BOT_TOKEN", "token")
		os.Setenv("STAFF_CHANNEL_ID", "1444571528921481246")
		os.Unsetenv("PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("COMMAND_PREFIX")
		os.Unsetenv("REQUIRED_PERMISSION")
		os.Unsetenv("BANNED_WORDS")
		os.Unsetenv("DEBUG")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "token", cfg.BotToken)
		assert.Equal(t, "1444571528921481246", cfg.StaffChannelID)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "!", cfg.CommandPrefix)
		assert.Equal(t, "administrator", cfg.RequiredPermission)
		assert.Equal(t, "DM me for any help", cfg.PresenceText)
		assert.Empty(t, cfg.BannedWords)
		assert.False(t, cfg.Debug)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("BOT_TOKEN", "token")
		os.Setenv("STAFF_CHANNEL_ID", "42")
		os.Setenv("PORT", "8081")
		os.Setenv("BANNED_WORDS", "foo,bar")
		os.Setenv("DEBUG", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8081, cfg.Port)
		assert.Equal(t, []string{"foo", "bar"}, cfg.BannedWords)
		assert.True(t, cfg.Debug)
	})

	t.Run("fails without required BOT_TOKEN", func(t *testing.T) {
		os.Unsetenv("BOT_TOKEN")
		os.Setenv("STAFF_CHANNEL_ID", "42")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required STAFF_CHANNEL_ID", func(t *testing.T) {
		os.Setenv("BOT_TOKEN", "token")
		os.Unsetenv("STAFF_CHANNEL_ID")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadRegistration(t *testing.T) {
	t.Run("does not need the staff channel", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "token")
		t.Setenv("CLIENT_ID", "1234")
		t.Setenv("STAFF_CHANNEL_ID", "")
		t.Setenv("REQUIRED_PERMISSION", "Manage_Threads")

		cfg, err := LoadRegistration()
		require.NoError(t, err)
		assert.Equal(t, "1234", cfg.ClientID)
		assert.Empty(t, cfg.GuildID)
		assert.Equal(t, "manage_threads", cfg.RequiredPermission)
	})

	t.Run("requires CLIENT_ID", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "token")
		t.Setenv("CLIENT_ID", "")
		os.Unsetenv("CLIENT_ID")

		_, err := LoadRegistration()
		assert.Error(t, err)
	})

	t.Run("rejects unknown permission", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "token")
		t.Setenv("CLIENT_ID", "1234")
		t.Setenv("REQUIRED_PERMISSION", "owner")

		_, err := LoadRegistration()
		assert.Error(t, err)
	})
}
