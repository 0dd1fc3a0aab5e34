package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"puregym-bot/model"
)

// ErrIntegrity reports stored users that the configuration does not know.
var ErrIntegrity = errors.New("data integrity")

// Account is everything needed to act for one user.
type Account struct {
	Name        string
	Portal      Portal
	Preferences model.Preferences
}

// Registry maps telegram ids to accounts. It is built once at startup and
// read-only afterwards.
type Registry struct {
	accounts map[int64]Account
}

// NewRegistry joins the stored users with the configured accounts. Every
// stored user must have an account.
func NewRegistry(users []model.User, accounts map[int64]Account) (*Registry, error) {
	r := &Registry{accounts: make(map[int64]Account, len(users))}
	for _, u := range users {
		acc, ok := accounts[u.TelegramID]
		if !ok {
			return nil, fmt.Errorf("%w: user %d (%s) exists in the database but not in the configuration",
				ErrIntegrity, u.TelegramID, u.Name)
		}
		r.accounts[u.TelegramID] = acc
	}
	return r, nil
}

func (r *Registry) Lookup(telegramID int64) (Account, bool) {
	acc, ok := r.accounts[telegramID]
	return acc, ok
}

type UserLister interface {
	ListActiveUsers(ctx context.Context) ([]model.User, error)
}

// Runner runs booking cycles for all active users. Cycles of the same user
// never overlap; a caller arriving while one is in flight shares its result.
type Runner struct {
	users    UserLister
	registry *Registry
	service  *Service
	flight   singleflight.Group
	now      func() time.Time
}

func NewRunner(users UserLister, registry *Registry, service *Service) *Runner {
	return &Runner{
		users:    users,
		registry: registry,
		service:  service,
		now:      time.Now,
	}
}

// RunAll runs one cycle per active user, one user after the other. A
// failing user does not stop the others.
func (r *Runner) RunAll(ctx context.Context) {
	users, err := r.users.ListActiveUsers(ctx)
	if err != nil {
		logrus.Errorf("Failed to list active users: %v", err)
		return
	}

	failed := 0
	for i := range users {
		if ctx.Err() != nil {
			logrus.Info("Booking cycles interrupted by shutdown")
			return
		}
		if err := r.RunUser(ctx, &users[i]); err != nil {
			failed++
			logrus.WithField("user", users[i].TelegramID).Warnf("Booking cycle failed: %v", err)
		}
	}
	logrus.Debugf("Booking cycles completed: %d users, %d failed", len(users), failed)
}

// RunUser runs one cycle for user unless one is already running.
func (r *Runner) RunUser(ctx context.Context, user *model.User) error {
	acc, ok := r.registry.Lookup(user.TelegramID)
	if !ok {
		logrus.WithField("user", user.TelegramID).Info("No PureGym account for user, skipping")
		return nil
	}

	key := strconv.FormatInt(user.TelegramID, 10)
	_, err, shared := r.flight.Do(key, func() (any, error) {
		return nil, r.service.RunCycle(ctx, user, acc.Portal, acc.Preferences, r.now())
	})
	if shared {
		logrus.WithField("user", user.TelegramID).Debug("Joined booking cycle already in flight")
	}
	return err
}
