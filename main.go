package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm/logger"

	"puregym-bot/booking"
	"puregym-bot/bot"
	"puregym-bot/config"
	"puregym-bot/puregym"
	"puregym-bot/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default: config.yaml in . or ./config)")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logrus.SetLevel(cfg.LogLevel())

	dbLog := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
		LogLevel:                  logger.Warn,
	})
	store, err := storage.Open(cfg.DatabasePath, dbLog)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}

	registry, err := buildRegistry(context.Background(), cfg, store)
	if err != nil {
		logrus.Fatalf("Failed to set up accounts: %v", err)
	}

	b, err := bot.NewBot(bot.Options{
		Settings: telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		},
		Whitelist:        cfg.Whitelist(),
		Location:         cfg.Location(),
		MaxDaysInAdvance: cfg.MaxDaysInAdvance,
	}, store, registry)
	if err != nil {
		logrus.Fatalf("Failed to start telegram bot: %v", err)
	}

	service := booking.NewService(store, b, booking.Settings{
		Location:         cfg.Location(),
		MaxDaysInAdvance: cfg.MaxDaysInAdvance,
		MaxBookings:      cfg.MaxBookings,
	})
	b.SetDecider(service)
	runner := booking.NewRunner(store, registry, service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cronLog := cron.VerbosePrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)
	if _, err := c.AddFunc("@every "+cfg.CycleInterval.String(), func() { runner.RunAll(ctx) }); err != nil {
		logrus.Fatalf("Failed to schedule booking cycles: %v", err)
	}
	c.Start()

	// First cycle right away instead of one interval from now.
	go runner.RunAll(ctx)
	go b.Start()

	logrus.Infof("Bot started with %d users, cycle every %s", len(cfg.Users), cfg.CycleInterval)
	<-ctx.Done()

	logrus.Info("Shutting down...")
	b.Stop()
	<-c.Stop().Done()
	if err := store.Close(); err != nil {
		logrus.Errorf("Failed to close database: %v", err)
	}
}

// buildRegistry seeds configured users into the database and pairs every
// stored user with a PureGym client.
func buildRegistry(ctx context.Context, cfg *config.Config, store *storage.Store) (*booking.Registry, error) {
	accounts := make(map[int64]booking.Account, len(cfg.Users))
	for _, u := range cfg.Users {
		if _, err := store.EnsureUser(ctx, u.TelegramID, u.Name); err != nil {
			return nil, err
		}
		client, err := puregym.NewClient(u.PuregymUsername, u.PuregymPassword, puregym.Options{
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		accounts[u.TelegramID] = booking.Account{
			Name:        u.Name,
			Portal:      client,
			Preferences: cfg.Preferences(u.TelegramID),
		}
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return booking.NewRegistry(users, accounts)
}
