package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"puregym-bot/model"
	"puregym-bot/puregym"
)

// RunCycle brings the managed bookings of user in line with the portal and
// moves undecided bookings towards their deadline. now is the cycle's
// reference instant; every deadline is measured against it.
//
// Steps run in a fixed order: vanished bookings are archived or cancelled,
// untracked remote bookings are adopted, new bookings are attempted, then
// reminders and auto-cancellation run over the reconciled set. Failures on
// a single class or booking are logged and skipped.
func (s *Service) RunCycle(ctx context.Context, user *model.User, portal Portal, prefs model.Preferences, now time.Time) error {
	log := logrus.WithFields(logrus.Fields{
		"user":  user.TelegramID,
		"cycle": uuid.NewString(),
	})
	log.Debug("Running booking cycle")

	loc := s.settings.Location
	from := now.In(loc)
	to := from.AddDate(0, 0, s.settings.MaxDaysInAdvance)

	classes, err := portal.AvailableClasses(ctx, prefs.ClassIDs, prefs.CenterIDs, from, to)
	if err != nil {
		return fmt.Errorf("fetch classes for user %d: %w", user.TelegramID, err)
	}
	classes = puregym.FilterByTimeSlots(classes, prefs.TimeSlots)
	puregym.SortByStart(classes, loc)

	booked := puregym.FilterByBooked(classes, true)
	bookable := puregym.FilterByBooked(classes, false)

	bookedByPID := make(map[string]puregym.GymClass, len(booked))
	var pids []string
	for _, c := range booked {
		pid := *c.ParticipationID
		if _, seen := bookedByPID[pid]; !seen {
			pids = append(pids, pid)
		}
		bookedByPID[pid] = c
	}

	if err := s.reconcileVanished(ctx, log, user, bookedByPID, now); err != nil {
		return err
	}
	if err := s.adoptUntracked(ctx, log, user, pids, bookedByPID); err != nil {
		return err
	}
	if err := s.attemptBookings(ctx, log, user, portal, bookable, now); err != nil {
		return err
	}
	return s.remindAndEnforce(ctx, log, user, portal, now)
}

// reconcileVanished closes active bookings that no longer exist remotely.
func (s *Service) reconcileVanished(ctx context.Context, log *logrus.Entry, user *model.User, bookedByPID map[string]puregym.GymClass, now time.Time) error {
	active, err := s.repo.ActiveBookings(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list active bookings: %w", err)
	}

	for i := range active {
		b := &active[i]
		if b.HasParticipation() {
			if _, ok := bookedByPID[b.Participation()]; ok {
				continue
			}
		}

		var (
			to   model.BookingStatus
			text string
		)
		if !b.ClassDateTime.After(now) {
			to = model.StatusExpired
			if b.Status == model.StatusConfirmed {
				to = model.StatusAttended
			}
			text = s.archivedText(b)
		} else {
			to = model.StatusCancelled
			text = s.missingText(b)
		}

		blog := log.WithFields(logrus.Fields{"booking_id": b.BookingID, "participation_id": b.Participation()})
		from := b.Status
		if err := s.repo.TransitionStatus(ctx, b, to); err != nil {
			logTransitionError(blog, err)
			continue
		}
		blog.Infof("Booking vanished remotely: %s -> %s", from, to)
		s.send(blog, user, text)
	}
	return nil
}

// adoptUntracked starts tracking remote bookings the bot does not know
// about, e.g. ones made directly on the website.
func (s *Service) adoptUntracked(ctx context.Context, log *logrus.Entry, user *model.User, pids []string, bookedByPID map[string]puregym.GymClass) error {
	for _, pid := range pids {
		c := bookedByPID[pid]
		blog := log.WithFields(logrus.Fields{"booking_id": c.BookingID, "participation_id": pid})

		_, err := s.repo.BookingByParticipationID(ctx, pid)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			blog.Errorf("Failed to look up booking: %v", err)
			continue
		}

		b, err := s.track(ctx, user, c, pid)
		if err != nil {
			blog.Errorf("Failed to adopt booking: %v", err)
			continue
		}
		blog.Info("Adopted untracked booking")
		s.prompt(ctx, blog, user, b, s.adoptedText(c, b))
	}
	return nil
}

// attemptBookings books bookable classes in start order. A slot is only
// ever attempted while the bot has no record of it, and never once it
// starts inside the cancel window.
func (s *Service) attemptBookings(ctx context.Context, log *logrus.Entry, user *model.User, portal Portal, bookable []puregym.GymClass, now time.Time) error {
	count, err := s.repo.CountActiveBookings(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("count active bookings: %w", err)
	}

	attempted := make(map[string]bool)
	for _, c := range bookable {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempted[c.BookingID] {
			continue
		}
		blog := log.WithField("booking_id", c.BookingID)

		start, err := c.StartsAt(s.settings.Location)
		if err != nil {
			blog.Warnf("Skipping class with unreadable start: %v", err)
			continue
		}
		if start.Sub(now) <= s.settings.CancelBefore {
			blog.Debugf("Skipping %s, it starts inside the cancel window", c.Summary())
			continue
		}

		_, err = s.repo.BookingByBookingID(ctx, user.ID, c.BookingID)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			blog.Errorf("Failed to look up booking: %v", err)
			continue
		}
		if s.settings.MaxBookings > 0 && count >= s.settings.MaxBookings {
			log.Infof("Booking cap of %d reached, not booking more", s.settings.MaxBookings)
			break
		}

		attempted[c.BookingID] = true
		blog.Infof("Attempting to book %s", c.Summary())
		res, err := portal.Book(ctx, c.BookingID, c.ActivityID, c.PaymentType)
		if err != nil {
			logPortalError(blog, "Booking", err)
			if errors.Is(err, puregym.ErrAuthentication) {
				blog.Warn("Halting bookings for this cycle")
				break
			}
			continue
		}
		if res.ParticipationID == "" {
			blog.Warn("Booking response missing participationId, halting bookings for this cycle")
			break
		}

		blog = blog.WithField("participation_id", res.ParticipationID)
		b, err := s.track(ctx, user, c, res.ParticipationID)
		if err != nil {
			blog.Errorf("Booked but failed to store booking: %v", err)
			continue
		}
		count++
		blog.Info("Booked class")
		s.prompt(ctx, blog, user, b, s.bookedText(c, b))
	}
	return nil
}

// remindAndEnforce reminds about undecided bookings and cancels those
// that reach the cancellation deadline undecided.
func (s *Service) remindAndEnforce(ctx context.Context, log *logrus.Entry, user *model.User, portal Portal, now time.Time) error {
	pending, err := s.repo.PendingBookings(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list pending bookings: %w", err)
	}

	for i := range pending {
		b := &pending[i]
		blog := log.WithFields(logrus.Fields{"booking_id": b.BookingID, "participation_id": b.Participation()})
		timeToClass := b.ClassDateTime.Sub(now)

		// Inside the cancel window the cancellation notice replaces the reminder.
		if timeToClass <= s.settings.ReminderBefore && timeToClass > s.settings.CancelBefore && !b.ReminderSent {
			if err := s.notifier.SendMessage(user.TelegramID, s.reminderText(b, timeToClass)); err != nil {
				blog.Warnf("Failed to send reminder: %v", err)
			} else if err := s.repo.MarkReminderSent(ctx, b); err != nil {
				blog.Errorf("Failed to mark reminder sent: %v", err)
			} else {
				blog.Info("Sent reminder")
			}
		}

		if timeToClass > s.settings.CancelBefore || !b.HasParticipation() {
			continue
		}
		if err := portal.Cancel(ctx, b.Participation()); err != nil {
			logPortalError(blog, "Auto-cancel", err)
			continue
		}
		if err := s.repo.TransitionStatus(ctx, b, model.StatusCancelled); err != nil {
			logTransitionError(blog, err)
			continue
		}
		blog.Info("Auto-cancelled undecided booking")
		s.send(blog, user, s.autoCancelledText(b))
	}
	return nil
}

// track stores a new pending booking for class c booked as participationID.
func (s *Service) track(ctx context.Context, user *model.User, c puregym.GymClass, participationID string) (*model.ManagedBooking, error) {
	start, err := c.StartsAt(s.settings.Location)
	if err != nil {
		return nil, err
	}
	pid := participationID
	b := &model.ManagedBooking{
		UserID:          user.ID,
		BookingID:       c.BookingID,
		ActivityID:      c.ActivityID,
		PaymentType:     c.PaymentType,
		ParticipationID: &pid,
		ClassDateTime:   start,
		Title:           c.Title,
		Location:        c.Location,
		Status:          model.StatusPending,
	}
	if err := s.repo.InsertBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) prompt(ctx context.Context, log *logrus.Entry, user *model.User, b *model.ManagedBooking, text string) {
	messageID, err := s.notifier.SendPrompt(user.TelegramID, text, b.Participation())
	if err != nil {
		log.Warnf("Failed to send prompt: %v", err)
		return
	}
	if err := s.repo.SetMessageID(ctx, b, messageID); err != nil {
		log.Errorf("Failed to store prompt message id: %v", err)
	}
}

func (s *Service) send(log *logrus.Entry, user *model.User, text string) {
	if err := s.notifier.SendMessage(user.TelegramID, text); err != nil {
		log.Warnf("Failed to notify user: %v", err)
	}
}

// logPortalError logs a failed portal call at a level matching its cause.
// Nothing is recorded for the call, so every failure is retried next cycle.
func logPortalError(log *logrus.Entry, action string, err error) {
	switch {
	case errors.Is(err, puregym.ErrRejected):
		log.Infof("%s refused: %v", action, err)
	case puregym.IsTransient(err):
		log.Warnf("%s failed, retrying next cycle: %v", action, err)
	default:
		log.Errorf("%s failed: %v", action, err)
	}
}

func logTransitionError(log *logrus.Entry, err error) {
	if errors.Is(err, model.ErrStaleStatus) {
		log.Infof("Booking changed concurrently, leaving it: %v", err)
		return
	}
	log.Errorf("Failed to update booking status: %v", err)
}
