package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"puregym-bot/model"
)

func pendingWithPrompt(f *fixture, bookingID, pid string) *model.ManagedBooking {
	b := f.insert(&model.ManagedBooking{
		BookingID:       bookingID,
		ParticipationID: pidPtr(pid),
		ClassDateTime:   testNow.Add(3 * 24 * time.Hour),
		Title:           "Spinning",
		Location:        "Amager",
	})
	require.NoError(f.t, f.store.SetMessageID(context.Background(), b, 42))
	return b
}

func TestHandleDecisionAccept(t *testing.T) {
	f := newFixture(t, Settings{})
	pendingWithPrompt(f, "B1", "P1")

	out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, ActionAccept, "P1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out)
	assert.Equal(t, model.StatusConfirmed, f.byBookingID("B1").Status)
	assert.Contains(t, f.notifier.edits[42], "Keeping Spinning")
	assert.Empty(t, f.notifier.messages)
	assert.Empty(t, f.portal.cancelled)
}

func TestHandleDecisionReject(t *testing.T) {
	f := newFixture(t, Settings{})
	pendingWithPrompt(f, "B1", "P1")

	out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, ActionReject, "P1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out)
	assert.Equal(t, []string{"P1"}, f.portal.cancelled)
	assert.Equal(t, model.StatusCancelled, f.byBookingID("B1").Status)
	assert.Contains(t, f.notifier.edits[42], "Cancelled Spinning")
}

func TestHandleDecisionRejectCancelFails(t *testing.T) {
	f := newFixture(t, Settings{})
	pendingWithPrompt(f, "B1", "P1")
	f.portal.cancelErr["P1"] = errors.New("connection reset")

	out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, ActionReject, "P1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelFailed, out)
	assert.Equal(t, model.StatusPending, f.byBookingID("B1").Status)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Could not cancel")
	assert.Empty(t, f.notifier.edits)
}

func TestHandleDecisionOnHandledBooking(t *testing.T) {
	f := newFixture(t, Settings{})
	f.insert(&model.ManagedBooking{
		BookingID:       "B1",
		ParticipationID: pidPtr("P1"),
		ClassDateTime:   testNow.Add(time.Hour),
		Status:          model.StatusCancelled,
	})

	for _, action := range []Action{ActionAccept, ActionReject} {
		out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, action, "P1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyHandled, out)
	}

	assert.Equal(t, model.StatusCancelled, f.byBookingID("B1").Status)
	assert.Empty(t, f.portal.cancelled)
	require.Len(t, f.notifier.messages, 2)
	assert.Contains(t, f.notifier.messages[0], "This booking was already handled")
}

func TestHandleDecisionIgnoresUnknownAndForeignBookings(t *testing.T) {
	f := newFixture(t, Settings{})
	other, err := f.store.EnsureUser(context.Background(), 777, "Bob")
	require.NoError(t, err)
	require.NoError(t, f.store.InsertBooking(context.Background(), &model.ManagedBooking{
		UserID:          other.ID,
		BookingID:       "B9",
		ParticipationID: pidPtr("P9"),
		ClassDateTime:   testNow.Add(48 * time.Hour),
	}))

	tests := []struct {
		name   string
		action Action
		pid    string
	}{
		{"unknown participation", ActionAccept, "nope"},
		{"other user's booking", ActionReject, "P9"},
		{"unknown action", Action("maybe"), "P9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, tt.action, tt.pid)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, out)
		})
	}

	assert.Zero(t, f.notifier.total())
	assert.Empty(t, f.portal.cancelled)
	b, err := f.store.BookingByParticipationID(context.Background(), "P9")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status)
}

func TestHandleDecisionWithoutPromptSendsMessage(t *testing.T) {
	f := newFixture(t, Settings{})
	f.insert(&model.ManagedBooking{BookingID: "B1", ParticipationID: pidPtr("P1"), ClassDateTime: testNow.Add(48 * time.Hour)})

	out, err := f.service.HandleDecision(context.Background(), f.user, f.portal, ActionAccept, "P1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "Keeping class on")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "kept", OutcomeConfirmed.String())
	assert.Equal(t, "ignored", OutcomeIgnored.String())
	assert.Equal(t, "cancellation failed", OutcomeCancelFailed.String())
}
