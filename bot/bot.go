package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/middleware"

	"puregym-bot/booking"
	"puregym-bot/model"
)

// Store is the part of the repository the chat handlers read and write.
type Store interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	SetUserActive(ctx context.Context, user *model.User, active bool) error
	ActiveBookings(ctx context.Context, userID uint) ([]model.ManagedBooking, error)
}

// Decider applies accept/reject answers.
type Decider interface {
	HandleDecision(ctx context.Context, user *model.User, portal booking.Portal, action booking.Action, participationID string) (booking.Outcome, error)
}

type Options struct {
	Settings         telebot.Settings
	Whitelist        []int64 // Telegram ids allowed to talk to the bot
	Location         *time.Location
	MaxDaysInAdvance int
	HandlerTimeout   time.Duration
}

type Bot struct {
	B        *telebot.Bot
	store    Store
	registry *booking.Registry
	decider  Decider
	opts     Options
}

// Inline buttons of a booking prompt. Data carries the participation id.
var (
	btnAccept = telebot.Btn{Text: "✅ Keep", Unique: string(booking.ActionAccept)}
	btnReject = telebot.Btn{Text: "❌ Cancel", Unique: string(booking.ActionReject)}
)

var commands = []telebot.Command{
	{Text: "start", Description: "Start booking classes for me"},
	{Text: "stop", Description: "Stop booking classes for me"},
	{Text: "booked_classes", Description: "Classes currently booked in PureGym"},
	{Text: "bookings", Description: "Bookings managed by the bot"},
	{Text: "class_ids", Description: "Class types and their ids"},
	{Text: "center_ids", Description: "Centers and their ids"},
	{Text: "help", Description: "Show the command list"},
}

func NewBot(opts Options, store Store, registry *booking.Registry) (*Bot, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxDaysInAdvance <= 0 {
		opts.MaxDaysInAdvance = 28
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 30 * time.Second
	}
	if opts.Settings.OnError == nil {
		opts.Settings.OnError = func(err error, c telebot.Context) {
			if c != nil && c.Sender() != nil {
				logrus.WithField("user", c.Sender().ID).Errorf("Telegram handler failed: %v", err)
				return
			}
			logrus.Errorf("Telegram error: %v", err)
		}
	}

	b, err := telebot.NewBot(opts.Settings)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := &Bot{
		B:        b,
		store:    store,
		registry: registry,
		opts:     opts,
	}
	bot.registerHandlers()
	return bot, nil
}

// SetDecider wires the accept/reject handler. It must be called before Start.
func (bot *Bot) SetDecider(d Decider) {
	bot.decider = d
}

// Start publishes the command list and blocks polling for updates.
func (bot *Bot) Start() {
	if err := bot.B.SetCommands(commands); err != nil {
		logrus.Warnf("Failed to register bot commands: %v", err)
	}
	bot.B.Start()
}

func (bot *Bot) Stop() {
	bot.B.Stop()
}

func (bot *Bot) registerHandlers() {
	// Updates from anyone else are dropped silently.
	bot.B.Use(middleware.Whitelist(bot.opts.Whitelist...))

	bot.B.Handle("/start", bot.withSession(bot.handleStart))
	bot.B.Handle("/stop", bot.withSession(bot.handleStop))
	bot.B.Handle("/help", bot.handleHelp)
	bot.B.Handle("/booked_classes", bot.requireActive(bot.handleBookedClasses))
	bot.B.Handle("/bookings", bot.requireActive(bot.handleBookings))
	bot.B.Handle("/class_ids", bot.requireActive(bot.handleClassIDs))
	bot.B.Handle("/center_ids", bot.requireActive(bot.handleCenterIDs))

	bot.B.Handle(&btnAccept, bot.handleDecision(booking.ActionAccept))
	bot.B.Handle(&btnReject, bot.handleDecision(booking.ActionReject))
}

// session is what a handler knows about the sender of one update.
type session struct {
	ctx     context.Context
	user    *model.User
	account booking.Account
}

type sessionHandler func(c telebot.Context, s *session) error

// withSession resolves the sender and calls h. Senders without a stored
// user or account are ignored.
func (bot *Bot) withSession(h sessionHandler) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), bot.opts.HandlerTimeout)
		defer cancel()

		id := c.Sender().ID
		user, err := bot.store.UserByTelegramID(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			logrus.WithField("user", id).Warn("Update from unknown user ignored")
			return nil
		}
		if err != nil {
			return err
		}
		acc, ok := bot.registry.Lookup(id)
		if !ok {
			logrus.WithField("user", id).Warn("Update from user without account ignored")
			return nil
		}
		return h(c, &session{ctx: ctx, user: user, account: acc})
	}
}

func (bot *Bot) requireActive(h sessionHandler) telebot.HandlerFunc {
	return bot.withSession(func(c telebot.Context, s *session) error {
		if !s.user.IsActive {
			return c.Send("You are inactive. Send /start to let me book classes for you.")
		}
		return h(c, s)
	})
}
