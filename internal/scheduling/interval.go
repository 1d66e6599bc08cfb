// Package scheduling computes bookable exam slots for a room.  Everything
// here is pure: callers load rooms, machines, maintenance periods and
// reservations and pass them in, so the same functions serve both the
// read path (listing slots) and the commit-time re-validation done by the
// reservation service.
//
// All intervals are half-open: [Start, End).
package scheduling

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end).
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Duration returns the length of the interval; empty or inverted
// intervals have a non-positive duration.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Empty reports whether the interval has no length.
func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether the two intervals share at least one instant.
// Touching intervals ([9,10) and [10,11)) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	if i.Empty() || o.Empty() {
		return false
	}
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// ContainsTime reports whether t lies within i.
func (i Interval) ContainsTime(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Intersect returns the common part of two intervals and whether it is
// non-empty.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	start := i.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := i.End
	if o.End.Before(end) {
		end = o.End
	}
	out := Interval{Start: start, End: end}
	return out, !out.Empty()
}

// Subtract removes cut from i and returns what is left, in order.  The
// result has zero, one or two intervals; zero-length remainders are
// dropped.
func (i Interval) Subtract(cut Interval) []Interval {
	if !i.Overlaps(cut) {
		if i.Empty() {
			return nil
		}
		return []Interval{i}
	}
	var out []Interval
	if cut.Start.After(i.Start) {
		out = append(out, Interval{Start: i.Start, End: cut.Start})
	}
	if cut.End.Before(i.End) {
		out = append(out, Interval{Start: cut.End, End: i.End})
	}
	return out
}

// Sort orders intervals by start, then by end.  The slice is sorted in
// place and returned for convenience.
func Sort(intervals []Interval) []Interval {
	sort.SliceStable(intervals, func(a, b int) bool {
		if intervals[a].Start.Equal(intervals[b].Start) {
			return intervals[a].End.Before(intervals[b].End)
		}
		return intervals[a].Start.Before(intervals[b].Start)
	})
	return intervals
}

// Merge returns the union of the given intervals as a sorted sequence of
// pairwise disjoint intervals.  Overlapping and touching intervals are
// coalesced; empty ones are discarded.  The input is not modified.
func Merge(intervals []Interval) []Interval {
	work := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			work = append(work, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}
	Sort(work)
	out := []Interval{work[0]}
	for _, iv := range work[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// SubtractAll removes every cut from every interval.  The result is
// sorted and disjoint when the input was.
func SubtractAll(intervals []Interval, cuts []Interval) []Interval {
	out := intervals
	for _, cut := range cuts {
		next := make([]Interval, 0, len(out)+1)
		for _, iv := range out {
			next = append(next, iv.Subtract(cut)...)
		}
		out = next
	}
	return out
}

// Gaps returns the parts of outer not covered by busy, in order.
func Gaps(outer Interval, busy []Interval) []Interval {
	if outer.Empty() {
		return nil
	}
	return SubtractAll([]Interval{outer}, Merge(busy))
}

// AnyOverlap reports whether iv overlaps any of the others.
func AnyOverlap(iv Interval, others []Interval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
