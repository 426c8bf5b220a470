package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"ctfbot/internal/adapters/handler"
	"ctfbot/internal/adapters/sender"
	"ctfbot/internal/adapters/storage/sqlite"
	"ctfbot/internal/core/domain"
	"ctfbot/internal/core/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	log.Info().Msg("starting ctfbot...")

	viper.AddConfigPath(".")
	viper.SetConfigType("toml")

	log.Info().Msg("reading config file...")
	err := viper.ReadInConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not read config file")
	}

	var logLevel zerolog.Level

	switch viper.GetString("bot.log_level") {
	case "info":
		logLevel = zerolog.InfoLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store, err := sqlite.Open(viper.GetString("storage.path"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed opening storage")
	}
	defer store.Close()

	if err := seedSettings(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed seeding settings")
	}

	if err := seedChallenges(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed seeding challenges")
	}

	executor := service.NewExecutor(store, nil, nil)

	token := viper.GetString("telegram.bot_token")
	incoming := handler.NewIncoming(executor, store)
	opts := []bot.Option{
		bot.WithDefaultHandler(incoming.Handle),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Panic().Err(err).Msg("failed initializing telegram bot")
	}

	flushInterval, err := time.ParseDuration(viper.GetString("outbox.flush_interval"))
	if err != nil {
		log.Panic().Err(err).Msg("invalid flush interval for outbox in config")
	}

	dispatcher := service.NewDispatcher(store, store, sender.NewTelegramSender(b))

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Panic().Err(err).Msg("failed initializing scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(flushInterval),
		gocron.NewTask(func() {
			if err := dispatcher.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("failed to flush outbox")
			}
		}),
	)
	if err != nil {
		log.Panic().Err(err).Msg("failed scheduling outbox flush")
	}

	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	log.Info().Msg("bot listening")
	b.Start(ctx)
}

type challengeSeed struct {
	Name      string   `mapstructure:"name"`
	OpenDate  string   `mapstructure:"open_date"`
	CloseDate string   `mapstructure:"close_date"`
	URL       string   `mapstructure:"url"`
	Solutions []string `mapstructure:"solutions"`
}

func seedChallenges(ctx context.Context, store *sqlite.Store) error {
	var seeds []challengeSeed

	err := viper.UnmarshalKey("challenges", &seeds)
	if err != nil {
		return fmt.Errorf("failed to load challenge list: %w", err)
	}

	for _, seed := range seeds {
		openDate, err := time.ParseInLocation("2006-01-02", seed.OpenDate, time.UTC)
		if err != nil {
			return fmt.Errorf("challenge %s open date: %w", seed.Name, err)
		}
		closeDate, err := time.ParseInLocation("2006-01-02", seed.CloseDate, time.UTC)
		if err != nil {
			return fmt.Errorf("challenge %s close date: %w", seed.Name, err)
		}

		solutions, err := json.Marshal(seed.Solutions)
		if err != nil {
			return fmt.Errorf("challenge %s solutions: %w", seed.Name, err)
		}

		err = store.UpsertChallenge(ctx, domain.Challenge{
			Name:      seed.Name,
			OpenDate:  openDate,
			CloseDate: closeDate,
			URL:       seed.URL,
			Solutions: string(solutions),
		})
		if err != nil {
			return err
		}

		log.Info().Str("challenge", seed.Name).Msg("seeded challenge")
	}

	return nil
}

func seedSettings(ctx context.Context, store *sqlite.Store) error {
	if secret := viper.GetString("bot.secret"); secret != "" {
		if err := store.SetSecret(ctx, secret); err != nil {
			return err
		}
	}

	if helpText := viper.GetString("bot.help_text"); helpText != "" {
		if err := store.SetHelpText(ctx, helpText); err != nil {
			return err
		}
	}

	return nil
}
