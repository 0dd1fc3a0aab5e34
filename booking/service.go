package booking

import (
	"context"
	"time"

	"puregym-bot/model"
	"puregym-bot/puregym"
)

// Portal is the part of the PureGym client the engine drives.
type Portal interface {
	AvailableClasses(ctx context.Context, classIDs, centerIDs []int, from, to time.Time) ([]puregym.GymClass, error)
	Book(ctx context.Context, bookingID string, activityID int, paymentType string) (puregym.BookResult, error)
	Cancel(ctx context.Context, participationID string) error
}

type Repository interface {
	BookingByBookingID(ctx context.Context, userID uint, bookingID string) (*model.ManagedBooking, error)
	BookingByParticipationID(ctx context.Context, participationID string) (*model.ManagedBooking, error)
	ActiveBookings(ctx context.Context, userID uint) ([]model.ManagedBooking, error)
	PendingBookings(ctx context.Context, userID uint) ([]model.ManagedBooking, error)
	CountActiveBookings(ctx context.Context, userID uint) (int, error)
	InsertBooking(ctx context.Context, b *model.ManagedBooking) error
	TransitionStatus(ctx context.Context, b *model.ManagedBooking, to model.BookingStatus) error
	MarkReminderSent(ctx context.Context, b *model.ManagedBooking) error
	SetMessageID(ctx context.Context, b *model.ManagedBooking, messageID int) error
}

// Notifier delivers chat messages. SendPrompt attaches accept/reject
// buttons bound to participationID and returns the message id.
type Notifier interface {
	SendMessage(chatID int64, text string) error
	SendPrompt(chatID int64, text, participationID string) (int, error)
	EditMessage(chatID int64, messageID int, text string) error
}

type Settings struct {
	Location         *time.Location
	MaxDaysInAdvance int
	MaxBookings      int           // 0 means no cap
	ReminderBefore   time.Duration // Remind about undecided bookings this long before class
	CancelBefore     time.Duration // Auto-cancel undecided bookings this long before class
}

func (s Settings) withDefaults() Settings {
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.MaxDaysInAdvance <= 0 {
		s.MaxDaysInAdvance = 28
	}
	if s.ReminderBefore <= 0 {
		s.ReminderBefore = 24 * time.Hour
	}
	if s.CancelBefore <= 0 {
		s.CancelBefore = puregym.CancelWindow
	}
	return s
}

// Service reconciles managed bookings with the portal and applies user
// decisions. It holds no per-user state.
type Service struct {
	repo     Repository
	notifier Notifier
	settings Settings
}

func NewService(repo Repository, notifier Notifier, settings Settings) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		settings: settings.withDefaults(),
	}
}
