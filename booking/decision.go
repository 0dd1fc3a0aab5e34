package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"puregym-bot/model"
)

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

type Outcome int

const (
	// OutcomeIgnored: unknown booking, someone else's booking, or unknown action.
	OutcomeIgnored Outcome = iota
	OutcomeAlreadyHandled
	OutcomeConfirmed
	OutcomeCancelled
	OutcomeCancelFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyHandled:
		return "already handled"
	case OutcomeConfirmed:
		return "kept"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeCancelFailed:
		return "cancellation failed"
	}
	return "ignored"
}

// HandleDecision applies a user's accept or reject answer to the pending
// booking identified by participationID. Callbacks for bookings that do not
// exist or belong to another user are dropped without a reply.
func (s *Service) HandleDecision(ctx context.Context, user *model.User, portal Portal, action Action, participationID string) (Outcome, error) {
	log := logrus.WithFields(logrus.Fields{
		"user":             user.TelegramID,
		"participation_id": participationID,
		"action":           action,
	})

	if action != ActionAccept && action != ActionReject {
		log.Warn("Unknown decision action")
		return OutcomeIgnored, nil
	}

	b, err := s.repo.BookingByParticipationID(ctx, participationID)
	if errors.Is(err, model.ErrNotFound) {
		log.Info("Decision for unknown booking ignored")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("look up booking: %w", err)
	}
	if b.UserID != user.ID {
		log.Warn("Decision for another user's booking ignored")
		return OutcomeIgnored, nil
	}
	if b.Status != model.StatusPending {
		s.alreadyHandled(log, user, b)
		return OutcomeAlreadyHandled, nil
	}

	if action == ActionAccept {
		if err := s.repo.TransitionStatus(ctx, b, model.StatusConfirmed); err != nil {
			return s.transitionFailed(log, user, b, err)
		}
		log.Info("Booking confirmed by user")
		s.closePrompt(log, user, b, fmt.Sprintf("✅ Keeping %s.", s.describeBooking(b)))
		return OutcomeConfirmed, nil
	}

	if err := portal.Cancel(ctx, participationID); err != nil {
		logPortalError(log, "Cancel of rejected booking", err)
		s.send(log, user, fmt.Sprintf("Could not cancel %s right now. I will try again before the deadline.", s.describeBooking(b)))
		return OutcomeCancelFailed, nil
	}
	if err := s.repo.TransitionStatus(ctx, b, model.StatusCancelled); err != nil {
		return s.transitionFailed(log, user, b, err)
	}
	log.Info("Booking cancelled by user")
	s.closePrompt(log, user, b, fmt.Sprintf("❌ Cancelled %s.", s.describeBooking(b)))
	return OutcomeCancelled, nil
}

func (s *Service) transitionFailed(log *logrus.Entry, user *model.User, b *model.ManagedBooking, err error) (Outcome, error) {
	if errors.Is(err, model.ErrStaleStatus) {
		s.alreadyHandled(log, user, b)
		return OutcomeAlreadyHandled, nil
	}
	return OutcomeIgnored, fmt.Errorf("update booking: %w", err)
}

func (s *Service) alreadyHandled(log *logrus.Entry, user *model.User, b *model.ManagedBooking) {
	log.Infof("Decision for booking in status %s ignored", b.Status)
	s.send(log, user, fmt.Sprintf("This booking was already handled: %s.", s.describeBooking(b)))
}

// closePrompt replaces the accept/reject prompt with the final answer.
func (s *Service) closePrompt(log *logrus.Entry, user *model.User, b *model.ManagedBooking, text string) {
	if b.MessageID == 0 {
		s.send(log, user, text)
		return
	}
	if err := s.notifier.EditMessage(user.TelegramID, b.MessageID, text); err != nil {
		log.Warnf("Failed to edit prompt: %v", err)
	}
}
