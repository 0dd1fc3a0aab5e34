package puregym

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"puregym-bot/model"
)

// CancelWindow is how long before class start a booking can still be
// cancelled without penalty.
const CancelWindow = 3 * time.Hour

// GymClass is one bookable class occurrence as returned by search_activities.
type GymClass struct {
	Date            string  `json:"date"` // Injected from the enclosing day
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Title           string  `json:"title"`
	ActivityID      int     `json:"activityId"`
	BookingID       string  `json:"bookingId"`
	PaymentType     string  `json:"payment_type"`
	ParticipationID *string `json:"participationId"` // Present only when booked by us
	Instructor      string  `json:"instructor"`
	Location        string  `json:"location"`
	CenterName      string  `json:"centerName"`
	CenterURL       string  `json:"centerUrl"`
	Duration        int     `json:"duration"`
	ActivityURL     string  `json:"activityUrl"`
}

func (c GymClass) Booked() bool {
	return c.ParticipationID != nil && *c.ParticipationID != ""
}

func (c GymClass) Day() (time.Time, error) {
	d := c.Date
	if len(d) > len("2006-01-02") {
		d = d[:len("2006-01-02")]
	}
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		return time.Time{}, fmt.Errorf("class %s: invalid date %q", c.BookingID, c.Date)
	}
	return t, nil
}

func (c GymClass) Start() (model.ClockTime, error) {
	return model.ParseClockTime(c.StartTime)
}

func (c GymClass) End() (model.ClockTime, error) {
	return model.ParseClockTime(c.EndTime)
}

// StartsAt is the class start instant, interpreting the portal's wall clock in loc.
func (c GymClass) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := c.Day()
	if err != nil {
		return time.Time{}, err
	}
	start, err := c.Start()
	if err != nil {
		return time.Time{}, fmt.Errorf("class %s: %w", c.BookingID, err)
	}
	return start.On(day, loc), nil
}

func (c GymClass) Summary() string {
	return fmt.Sprintf("%s on %s at %s (%s)", c.Title, c.Date, c.StartTime, c.Location)
}

// ClassType is one entry of the class catalog.
type ClassType struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Type  string `json:"type"`
}

type ClassTypeGroup struct {
	Title   string      `json:"title"`
	Options []ClassType `json:"options"`
}

type Center struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Type  string `json:"type"`
}

type CenterGroup struct {
	Label   string   `json:"label"`
	Weight  int      `json:"weight"`
	Options []Center `json:"options"`
}

// BookResult is the outcome of a successful book_activity call.
// ParticipationID may be empty when the portal did not return one.
type BookResult struct {
	ParticipationID string
}

type searchDay struct {
	Date  string     `json:"date"`
	Items []GymClass `json:"items"`
}

type activitiesResponse struct {
	Classes []ClassTypeGroup `json:"classes"`
	Centers []CenterGroup    `json:"centers"`
}

type statusResponse struct {
	Status          string     `json:"status"`
	Message         string     `json:"message"`
	ParticipationID flexString `json:"participationId"`
}

// flexString decodes JSON strings, numbers and null into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null" || s == "":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}
