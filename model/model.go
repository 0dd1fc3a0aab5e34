package model

import (
	"time"
)

type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Name       string
	IsActive   bool `gorm:"default:false;index"` // Book on the user's behalf
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Bookings []ManagedBooking `gorm:"foreignKey:UserID"`
}

// ManagedBooking is the bot's record of one class it tracks for a user.
// Rows are never deleted; terminal statuses keep the history.
type ManagedBooking struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"index"`

	// PureGym identifiers
	BookingID       string `gorm:"index"`
	ActivityID      int
	PaymentType     string
	ParticipationID *string `gorm:"index"` // Set once a remote booking is known to exist

	// Class info
	ClassDateTime time.Time `gorm:"index"`
	Title         string
	Location      string

	// Bot state
	Status       BookingStatus `gorm:"index;default:pending"`
	ReminderSent bool          `gorm:"default:false"`
	MessageID    int           // Telegram message holding the accept/reject prompt

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParticipation reports whether the booking references a remote participation.
func (b *ManagedBooking) HasParticipation() bool {
	return b.ParticipationID != nil && *b.ParticipationID != ""
}

// Participation returns the participation id or "" when absent.
func (b *ManagedBooking) Participation() string {
	if b.ParticipationID == nil {
		return ""
	}
	return *b.ParticipationID
}
