package model

import (
	"fmt"
	"strings"
	"time"
)

// ClockTime is a wall clock time of day, in seconds after midnight.
type ClockTime int

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*3600 + minute*60 + second)
}

// ParseClockTime accepts "15:04" and "15:04:05".
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewClockTime(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

func (c ClockTime) Hour() int   { return int(c) / 3600 }
func (c ClockTime) Minute() int { return int(c) % 3600 / 60 }

// On returns c on the calendar day of d, in loc.
func (c ClockTime) On(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, int(c), 0, loc)
}

func (c ClockTime) String() string {
	if sec := int(c) % 60; sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), sec)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// TimeSlot is a weekly recurring window in which classes are acceptable.
type TimeSlot struct {
	DayOfWeek time.Weekday
	Start     ClockTime
	End       ClockTime
}

// Contains reports whether [start, end] on day lies inside the slot, bounds inclusive.
func (s TimeSlot) Contains(day time.Weekday, start, end ClockTime) bool {
	return day == s.DayOfWeek && s.Start <= start && start <= end && end <= s.End
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.DayOfWeek, s.Start, s.End)
}

// ParseWeekday accepts english day names ("tuesday", "Tue").
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || (len(name) >= 3 && strings.HasPrefix(full, name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// Preferences selects which classes get booked for a user.
type Preferences struct {
	ClassIDs  []int
	CenterIDs []int
	TimeSlots []TimeSlot
}
