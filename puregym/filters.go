package puregym

import (
	"sort"
	"time"

	"puregym-bot/model"
)

// FilterByBooked keeps the classes whose booked state equals booked.
func FilterByBooked(classes []GymClass, booked bool) []GymClass {
	var out []GymClass
	for _, c := range classes {
		if c.Booked() == booked {
			out = append(out, c)
		}
	}
	return out
}

// FilterByTimeSlot keeps the classes that fall on the slot's weekday and lie
// entirely within its window. Classes with unparsable times are dropped.
func FilterByTimeSlot(classes []GymClass, slot model.TimeSlot) []GymClass {
	var out []GymClass
	for _, c := range classes {
		day, err := c.Day()
		if err != nil {
			continue
		}
		start, err := c.Start()
		if err != nil {
			continue
		}
		end, err := c.End()
		if err != nil {
			continue
		}
		if slot.Contains(day.Weekday(), start, end) {
			out = append(out, c)
		}
	}
	return out
}

// FilterByTimeSlots concatenates FilterByTimeSlot over every slot. A class
// matching several slots appears once per slot.
func FilterByTimeSlots(classes []GymClass, slots []model.TimeSlot) []GymClass {
	var out []GymClass
	for _, slot := range slots {
		out = append(out, FilterByTimeSlot(classes, slot)...)
	}
	return out
}

// SortByStart orders classes by start instant, keeping input order for ties.
// Classes without a parsable start sort last.
func SortByStart(classes []GymClass, loc *time.Location) {
	starts := make(map[int]time.Time, len(classes))
	for i, c := range classes {
		if t, err := c.StartsAt(loc); err == nil {
			starts[i] = t
		}
	}

	idx := make([]int, len(classes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, okA := starts[idx[a]]
		tb, okB := starts[idx[b]]
		if okA != okB {
			return okA
		}
		return ta.Before(tb)
	})

	sorted := make([]GymClass, len(classes))
	for i, j := range idx {
		sorted[i] = classes[j]
	}
	copy(classes, sorted)
}
