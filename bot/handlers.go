package bot

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"puregym-bot/booking"
	"puregym-bot/puregym"
)

// Catalog is implemented by portals that can list class types and centers.
type Catalog interface {
	ClassTypes(ctx context.Context) ([]puregym.ClassTypeGroup, error)
	Centers(ctx context.Context) ([]puregym.CenterGroup, error)
}

func (bot *Bot) handleStart(c telebot.Context, s *session) error {
	if err := bot.store.SetUserActive(s.ctx, s.user, true); err != nil {
		return err
	}
	logrus.WithField("user", s.user.TelegramID).Info("User activated")
	return c.Send("Hi " + s.user.Name + "! I will book classes for you from now on. Send /help to see what I can do.")
}

func (bot *Bot) handleStop(c telebot.Context, s *session) error {
	if err := bot.store.SetUserActive(s.ctx, s.user, false); err != nil {
		return err
	}
	logrus.WithField("user", s.user.TelegramID).Info("User deactivated")
	return c.Send("Stopped. I will not book classes for you until you send /start again.")
}

func (bot *Bot) handleHelp(c telebot.Context) error {
	return c.Send(helpText)
}

func (bot *Bot) handleBookedClasses(c telebot.Context, s *session) error {
	from := time.Now().In(bot.opts.Location)
	to := from.AddDate(0, 0, bot.opts.MaxDaysInAdvance)
	prefs := s.account.Preferences

	classes, err := s.account.Portal.AvailableClasses(s.ctx, prefs.ClassIDs, prefs.CenterIDs, from, to)
	if err != nil {
		logrus.WithField("user", s.user.TelegramID).Warnf("Failed to fetch booked classes: %v", err)
		return c.Send(portalUnavailableText)
	}
	classes = puregym.FilterByBooked(classes, true)
	puregym.SortByStart(classes, bot.opts.Location)
	return c.Send(formatBookedClasses(classes), telebot.ModeMarkdownV2)
}

func (bot *Bot) handleBookings(c telebot.Context, s *session) error {
	bookings, err := bot.store.ActiveBookings(s.ctx, s.user.ID)
	if err != nil {
		return err
	}
	return c.Send(formatBookings(bookings, bot.opts.Location), telebot.ModeMarkdownV2)
}

func (bot *Bot) handleClassIDs(c telebot.Context, s *session) error {
	catalog, ok := s.account.Portal.(Catalog)
	if !ok {
		return c.Send("The class catalog is not available.")
	}
	groups, err := catalog.ClassTypes(s.ctx)
	if err != nil {
		logrus.WithField("user", s.user.TelegramID).Warnf("Failed to fetch class types: %v", err)
		return c.Send(portalUnavailableText)
	}
	return c.Send(formatClassTypes(groups), telebot.ModeMarkdownV2)
}

func (bot *Bot) handleCenterIDs(c telebot.Context, s *session) error {
	catalog, ok := s.account.Portal.(Catalog)
	if !ok {
		return c.Send("The center catalog is not available.")
	}
	groups, err := catalog.Centers(s.ctx)
	if err != nil {
		logrus.WithField("user", s.user.TelegramID).Warnf("Failed to fetch centers: %v", err)
		return c.Send(portalUnavailableText)
	}
	return c.Send(formatCenters(groups), telebot.ModeMarkdownV2)
}

// handleDecision answers a keep/cancel button press.
func (bot *Bot) handleDecision(action booking.Action) telebot.HandlerFunc {
	return bot.withSession(func(c telebot.Context, s *session) error {
		if bot.decider == nil {
			return errors.New("no decision handler configured")
		}
		pid := c.Callback().Data
		outcome, err := bot.decider.HandleDecision(s.ctx, s.user, s.account.Portal, action, pid)
		if err != nil {
			_ = c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, please try again."})
			return err
		}
		return c.Respond(&telebot.CallbackResponse{Text: "Booking " + outcome.String()})
	})
}
