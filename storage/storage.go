package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"puregym-bot/model"
)

// Store is the gorm backed repository over users and managed bookings.
// Every mutation touches a single row.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates it.
func Open(path string, log logger.Interface) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   log,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&model.User{}, &model.ManagedBooking{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Users ---

// EnsureUser returns the user with telegramID, creating an inactive one
// named name if it does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, telegramID int64, name string) (*model.User, error) {
	user := model.User{TelegramID: telegramID, Name: name}
	err := s.db.WithContext(ctx).
		Where(model.User{TelegramID: telegramID}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", telegramID, err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user %d", telegramID)
	}
	return &user, nil
}

func (s *Store) SetUserActive(ctx context.Context, user *model.User, active bool) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).
		Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("set user %d active=%v: %w", user.TelegramID, active, err)
	}
	user.IsActive = active
	return nil
}

// --- Managed bookings ---

// BookingByBookingID returns the latest booking of userID for the remote
// slot bookingID, whatever its status.
func (s *Store) BookingByBookingID(ctx context.Context, userID uint, bookingID string) (*model.ManagedBooking, error) {
	var b model.ManagedBooking
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND booking_id = ?", userID, bookingID).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "booking %s", bookingID)
	}
	return &b, nil
}

// BookingByParticipationID returns the latest booking referencing participationID.
func (s *Store) BookingByParticipationID(ctx context.Context, participationID string) (*model.ManagedBooking, error) {
	var b model.ManagedBooking
	err := s.db.WithContext(ctx).
		Where("participation_id = ?", participationID).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, notFound(err, "participation %s", participationID)
	}
	return &b, nil
}

// ActiveBookings lists the pending and confirmed bookings of userID.
func (s *Store) ActiveBookings(ctx context.Context, userID uint) ([]model.ManagedBooking, error) {
	return s.bookingsWithStatus(ctx, userID, model.ActiveStatuses...)
}

func (s *Store) PendingBookings(ctx context.Context, userID uint) ([]model.ManagedBooking, error) {
	return s.bookingsWithStatus(ctx, userID, model.StatusPending)
}

func (s *Store) bookingsWithStatus(ctx context.Context, userID uint, statuses ...model.BookingStatus) ([]model.ManagedBooking, error) {
	var bookings []model.ManagedBooking
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Order("class_date_time, id").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %d: %w", userID, err)
	}
	return bookings, nil
}

func (s *Store) CountActiveBookings(ctx context.Context, userID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.ManagedBooking{}).
		Where("user_id = ? AND status IN ?", userID, model.ActiveStatuses).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count bookings of user %d: %w", userID, err)
	}
	return int(n), nil
}

func (s *Store) InsertBooking(ctx context.Context, b *model.ManagedBooking) error {
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("insert booking %s: %w", b.BookingID, err)
	}
	return nil
}

// TransitionStatus moves b to status to, provided the stored status is
// still b.Status. A concurrent writer having moved it first yields
// model.ErrStaleStatus.
func (s *Store) TransitionStatus(ctx context.Context, b *model.ManagedBooking, to model.BookingStatus) error {
	if !model.CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, b.Status, to)
	}
	res := s.db.WithContext(ctx).Model(&model.ManagedBooking{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("set booking %d status %s: %w", b.ID, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("booking %d: %w", b.ID, model.ErrStaleStatus)
	}
	b.Status = to
	return nil
}

// MarkReminderSent sets the reminder flag once; a second call is a no-op.
func (s *Store) MarkReminderSent(ctx context.Context, b *model.ManagedBooking) error {
	err := s.db.WithContext(ctx).Model(&model.ManagedBooking{}).
		Where("id = ? AND reminder_sent = ?", b.ID, false).
		Update("reminder_sent", true).Error
	if err != nil {
		return fmt.Errorf("mark reminder of booking %d: %w", b.ID, err)
	}
	b.ReminderSent = true
	return nil
}

func (s *Store) SetMessageID(ctx context.Context, b *model.ManagedBooking, messageID int) error {
	err := s.db.WithContext(ctx).Model(&model.ManagedBooking{}).
		Where("id = ?", b.ID).
		Update("message_id", messageID).Error
	if err != nil {
		return fmt.Errorf("set message of booking %d: %w", b.ID, err)
	}
	b.MessageID = messageID
	return nil
}

func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
