package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/config"
	"github.com/openclaw/modmail-relay-go/internal/platform/discord"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadRegistration()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	permission, err := discord.ParsePermission(cfg.RequiredPermission)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid required permission")
	}

	scope := "global"
	if cfg.GuildID != "" {
		scope = "guild " + cfg.GuildID
	}
	log.Info().Str("scope", scope).Msg("registering slash commands")

	registered, err := discord.RegisterCommands(cfg.BotToken, cfg.ClientID, cfg.GuildID, permission)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register slash commands")
	}

	for _, cmd := range registered {
		log.Info().Str("name", cmd.Name).Str("id", cmd.ID).Msg("registered command")
	}
	log.Info().Int("count", len(registered)).Msg("slash commands registered")
}
