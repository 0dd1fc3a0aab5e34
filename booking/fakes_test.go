package booking

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"puregym-bot/model"
	"puregym-bot/puregym"
	"puregym-bot/storage"
)

// Monday noon.
var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakePortal struct {
	mu        sync.Mutex
	classes   []puregym.GymClass
	fetchErr  error
	bookErr   map[string]error
	noPID     map[string]bool
	cancelErr map[string]error
	booked    []string
	cancelled []string
}

func newFakePortal(classes ...puregym.GymClass) *fakePortal {
	return &fakePortal{
		classes:   classes,
		bookErr:   map[string]error{},
		noPID:     map[string]bool{},
		cancelErr: map[string]error{},
	}
}

func (p *fakePortal) AvailableClasses(ctx context.Context, classIDs, centerIDs []int, from, to time.Time) ([]puregym.GymClass, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	out := make([]puregym.GymClass, len(p.classes))
	copy(out, p.classes)
	return out, nil
}

func (p *fakePortal) Book(ctx context.Context, bookingID string, activityID int, paymentType string) (puregym.BookResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booked = append(p.booked, bookingID)
	if err := p.bookErr[bookingID]; err != nil {
		return puregym.BookResult{}, err
	}
	if p.noPID[bookingID] {
		return puregym.BookResult{}, nil
	}
	pid := "P-" + bookingID
	for i := range p.classes {
		if p.classes[i].BookingID == bookingID {
			p.classes[i].ParticipationID = &pid
		}
	}
	return puregym.BookResult{ParticipationID: pid}, nil
}

func (p *fakePortal) Cancel(ctx context.Context, participationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, participationID)
	if err := p.cancelErr[participationID]; err != nil {
		return err
	}
	for i := range p.classes {
		if p.classes[i].Booked() && *p.classes[i].ParticipationID == participationID {
			p.classes[i].ParticipationID = nil
		}
	}
	return nil
}

type sentPrompt struct {
	chatID          int64
	text            string
	participationID string
	messageID       int
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	prompts  []sentPrompt
	edits    map[int]string
	nextID   int
	fail     bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{edits: map[int]string{}, nextID: 100}
}

func (n *fakeNotifier) SendMessage(chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("telegram down")
	}
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) SendPrompt(chatID int64, text, participationID string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return 0, errors.New("telegram down")
	}
	n.nextID++
	n.prompts = append(n.prompts, sentPrompt{chatID: chatID, text: text, participationID: participationID, messageID: n.nextID})
	return n.nextID, nil
}

func (n *fakeNotifier) EditMessage(chatID int64, messageID int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits[messageID] = text
	return nil
}

func (n *fakeNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages) + len(n.prompts)
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
	n.prompts = nil
	n.edits = map[int]string{}
}

type fixture struct {
	t        *testing.T
	store    *storage.Store
	portal   *fakePortal
	notifier *fakeNotifier
	service  *Service
	user     *model.User
	prefs    model.Preferences
}

func newFixture(t *testing.T, settings Settings, classes ...puregym.GymClass) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "bot.db"), logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	user, err := store.EnsureUser(context.Background(), 555, "Alice")
	require.NoError(t, err)
	require.NoError(t, store.SetUserActive(context.Background(), user, true))

	if settings.Location == nil {
		settings.Location = time.UTC
	}
	notifier := newFakeNotifier()
	return &fixture{
		t:        t,
		store:    store,
		portal:   newFakePortal(classes...),
		notifier: notifier,
		service:  NewService(store, notifier, settings),
		user:     user,
		prefs:    model.Preferences{ClassIDs: []int{34941}, CenterIDs: []int{172}, TimeSlots: allWeek()},
	}
}

func (f *fixture) run(now time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.service.RunCycle(context.Background(), f.user, f.portal, f.prefs, now))
}

func (f *fixture) insert(b *model.ManagedBooking) *model.ManagedBooking {
	f.t.Helper()
	b.UserID = f.user.ID
	require.NoError(f.t, f.store.InsertBooking(context.Background(), b))
	return b
}

func (f *fixture) byBookingID(bookingID string) *model.ManagedBooking {
	f.t.Helper()
	b, err := f.store.BookingByBookingID(context.Background(), f.user.ID, bookingID)
	require.NoError(f.t, err)
	return b
}

func allWeek() []model.TimeSlot {
	var slots []model.TimeSlot
	for d := time.Sunday; d <= time.Saturday; d++ {
		slots = append(slots, model.TimeSlot{DayOfWeek: d, Start: 0, End: model.NewClockTime(23, 59, 59)})
	}
	return slots
}

func class(bookingID string, start time.Time) puregym.GymClass {
	return puregym.GymClass{
		Date:        start.Format("2006-01-02"),
		StartTime:   start.Format("15:04:05"),
		EndTime:     start.Add(45 * time.Minute).Format("15:04:05"),
		Title:       "Bike power " + bookingID,
		ActivityID:  34941,
		BookingID:   bookingID,
		PaymentType: "free",
		Location:    "Strandvejen",
	}
}

func bookedClass(bookingID, participationID string, start time.Time) puregym.GymClass {
	c := class(bookingID, start)
	c.ParticipationID = &participationID
	return c
}

func pidPtr(s string) *string { return &s }

func (f *fixture) String() string {
	return fmt.Sprintf("messages=%v prompts=%v", f.notifier.messages, f.notifier.prompts)
}
