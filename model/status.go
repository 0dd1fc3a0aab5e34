package model

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusExpired   BookingStatus = "expired"
	StatusAttended  BookingStatus = "attended"
)

// ActiveStatuses are the statuses a booking can still leave.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCancelled, StatusAttended},
}

// IsTerminal reports whether no transition leaves s.
func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusExpired, StatusAttended:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the booking lifecycle.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Label is the user facing name of the status.
func (s BookingStatus) Label() string {
	switch s {
	case StatusPending:
		return "⏳ pending"
	case StatusConfirmed:
		return "✅ confirmed"
	case StatusCancelled:
		return "❌ cancelled"
	case StatusExpired:
		return "⌛ expired"
	case StatusAttended:
		return "🏁 attended"
	}
	return string(s)
}
