package scheduling

import (
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// Day returns the calendar day [00:00, next 00:00) in loc for the
// year, month and day of date.  The wall-clock date of the argument is
// used as is, regardless of its own location, so "2024-03-14" parsed in
// UTC names the same day in every room.
func Day(date time.Time, loc *time.Location) Interval {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: time.Date(y, m, d+1, 0, 0, 0, 0, loc)}
}

// DefaultIntervals returns the default weekly hours of a room that apply
// to the given day, clipped to the day and merged.
func DefaultIntervals(hours []model.WorkingHours, day Interval) []Interval {
	y, m, d := day.Start.Date()
	loc := day.Start.Location()
	weekday := day.Start.Weekday()

	var out []Interval
	for _, h := range hours {
		if h.Weekday != weekday {
			continue
		}
		iv := Interval{
			Start: time.Date(y, m, d, 0, h.OpenMinute, 0, 0, loc),
			End:   time.Date(y, m, d, 0, h.CloseMinute, 0, 0, loc),
		}
		if clipped, ok := iv.Intersect(day); ok {
			out = append(out, clipped)
		}
	}
	return Merge(out)
}

// ResolveOpenIntervals computes the open intervals of a room for a
// calendar date.
//
// Default hours for the weekday form the base.  Extra-opening exceptions
// overlapping the day are added, closures are removed (a closure covering
// the whole day closes the room for that date), and finally every
// maintenance period is cut out.  The result is sorted, pairwise disjoint
// and free of zero-length intervals; an empty result means the room is
// closed.
func ResolveOpenIntervals(room model.Room, loc *time.Location, date time.Time, maintenance []model.MaintenancePeriod) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	day := Day(date, loc)

	var closures, openings []Interval
	for _, ex := range room.Exceptions {
		overlap, ok := NewInterval(ex.Start, ex.End).Intersect(day)
		if !ok {
			continue
		}
		if ex.OutOfService {
			if overlap.Contains(day) {
				return nil
			}
			closures = append(closures, overlap)
			continue
		}
		openings = append(openings, overlap)
	}

	open := DefaultIntervals(room.DefaultHours, day)
	open = Merge(append(open, openings...))
	open = SubtractAll(open, closures)

	cuts := make([]Interval, 0, len(maintenance))
	for _, mp := range maintenance {
		cuts = append(cuts, NewInterval(mp.Start, mp.End))
	}
	open = SubtractAll(open, cuts)

	return Merge(open)
}
