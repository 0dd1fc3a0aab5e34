package booking

import (
	"fmt"
	"time"

	"puregym-bot/model"
	"puregym-bot/puregym"
)

const timeLayout = "Mon 2 Jan 15:04"

func (s *Service) describeBooking(b *model.ManagedBooking) string {
	when := b.ClassDateTime.In(s.settings.Location).Format(timeLayout)
	if b.Title == "" {
		return fmt.Sprintf("class on %s", when)
	}
	return fmt.Sprintf("%s on %s (%s)", b.Title, when, b.Location)
}

func (s *Service) cancelDeadline(b *model.ManagedBooking) string {
	return b.ClassDateTime.Add(-s.settings.CancelBefore).In(s.settings.Location).Format(timeLayout)
}

func (s *Service) adoptedText(c puregym.GymClass, b *model.ManagedBooking) string {
	return fmt.Sprintf("Found a booking not tracked by the bot:\n- %s\nDo you want to keep it? Undecided bookings are cancelled at %s.",
		c.Summary(), s.cancelDeadline(b))
}

func (s *Service) bookedText(c puregym.GymClass, b *model.ManagedBooking) string {
	return fmt.Sprintf("Booked: %s.\nDo you want to keep it? Undecided bookings are cancelled at %s.",
		c.Summary(), s.cancelDeadline(b))
}

func (s *Service) archivedText(b *model.ManagedBooking) string {
	return fmt.Sprintf("A booking has passed and is now archived: %s.", s.describeBooking(b))
}

func (s *Service) missingText(b *model.ManagedBooking) string {
	return fmt.Sprintf("A booking was missing in PureGym and has been cancelled: %s.", s.describeBooking(b))
}

func (s *Service) reminderText(b *model.ManagedBooking, left time.Duration) string {
	return fmt.Sprintf("Reminder: your pending booking %s starts in %s.\nPlease accept or reject it before %s.",
		s.describeBooking(b), humanDuration(left), s.cancelDeadline(b))
}

func (s *Service) autoCancelledText(b *model.ManagedBooking) string {
	return fmt.Sprintf("Pending booking was cancelled %s before class time: %s.",
		humanDuration(s.settings.CancelBefore), s.describeBooking(b))
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h, m := int(d.Hours()), int(d.Minutes())%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
