package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/audit"
	"github.com/openclaw/modmail-relay-go/internal/config"
	"github.com/openclaw/modmail-relay-go/internal/database"
	"github.com/openclaw/modmail-relay-go/internal/events"
	"github.com/openclaw/modmail-relay-go/internal/handler"
	"github.com/openclaw/modmail-relay-go/internal/jobs"
	"github.com/openclaw/modmail-relay-go/internal/metrics"
	"github.com/openclaw/modmail-relay-go/internal/platform/discord"
	"github.com/openclaw/modmail-relay-go/internal/redis"
	"github.com/openclaw/modmail-relay-go/internal/repository"
	"github.com/openclaw/modmail-relay-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.EffectiveLogLevel())

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	permission, err := discord.ParsePermission(cfg.RequiredPermission)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid required permission")
	}

	// The audit store and publisher stay untyped nil when their backend is
	// not configured.
	var (
		auditStore     audit.Store
		auditPublisher audit.Publisher
		history        handler.TicketHistory
	)

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		cancel()
		log.Info().Msg("database connected")

		ticketEventRepo := repository.NewTicketEventRepository(db.DB)
		auditStore = ticketEventRepo
		history = ticketEventRepo
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		auditPublisher = events.NewBroker(redisClient)
	}

	bannedTerms := cfg.BannedWords
	if len(bannedTerms) == 0 {
		bannedTerms = service.DefaultBannedTerms
	}

	discordClient, err := discord.New(discord.Options{
		Token:          cfg.BotToken,
		StaffChannelID: cfg.StaffChannelID,
		PresenceText:   cfg.PresenceText,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord client")
	}

	appMetrics := metrics.New()
	convService := service.NewConversationService(repository.NewConversationRepository(), discordClient)
	rateLimiter := service.NewRateLimiter(service.RateLimiterOptions{
		Window:          config.RateWindow,
		Threshold:       config.RateThreshold,
		Cooldown:        config.RateCooldown,
		StaffReplyGrace: config.StaffReplyGrace,
	})

	router := handler.NewRouter(handler.RouterDeps{
		Platform:           discordClient,
		Conversations:      convService,
		RateLimiter:        rateLimiter,
		Filter:             service.NewContentFilter(bannedTerms),
		Dedup:              service.NewDeduper(config.DedupCapacity),
		Metrics:            appMetrics,
		Audit:              audit.NewRecorder(auditStore, auditPublisher),
		History:            history,
		StaffChannelID:     cfg.StaffChannelID,
		Prefix:             cfg.CommandPrefix,
		RequiredPermission: permission,
		PermissionLabel:    discord.PermissionLabel(cfg.RequiredPermission),
		EventTimeout:       cfg.EventTimeout(),
	})

	dispatcher := handler.NewDispatcher(router)
	if err := discordClient.Start(dispatcher); err != nil {
		log.Fatal().Err(err).Msg("failed to start discord bot")
	}

	cleanupJob := jobs.NewCleanupJob(rateLimiter, convService, appMetrics, config.RateSweepPeriod)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	healthHandler := handler.NewHealthHandler(convService, appMetrics.Handler())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      healthHandler.Routes(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerRequestTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	log.Info().
		Str("staffChannelId", cfg.StaffChannelID).
		Str("prefix", cfg.CommandPrefix).
		Str("requiredPermission", cfg.RequiredPermission).
		Int("bannedTerms", len(bannedTerms)).
		Bool("auditStore", auditStore != nil).
		Bool("eventPublisher", auditPublisher != nil).
		Msg("modmail relay ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := discordClient.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to close discord session")
	}
	dispatcher.Wait()

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
