package scheduling

import "time"

// GenerateSlots slices each open interval into consecutive windows of
// exactly duration, starting at the interval start.  A trailing remainder
// shorter than duration is not emitted.  Slots of different open
// intervals are independent; the output follows the order of open,
// which ResolveOpenIntervals guarantees to be ascending.
func GenerateSlots(open []Interval, duration time.Duration) []Interval {
	if duration <= 0 {
		return nil
	}
	var out []Interval
	for _, iv := range open {
		for start := iv.Start; !start.Add(duration).After(iv.End); start = start.Add(duration) {
			out = append(out, Interval{Start: start, End: start.Add(duration)})
		}
	}
	return out
}

// Window drops slots that start before from or end after until.  A zero
// until means no upper bound.
func Window(slots []Interval, from, until time.Time) []Interval {
	out := make([]Interval, 0, len(slots))
	for _, s := range slots {
		if s.Start.Before(from) {
			continue
		}
		if !until.IsZero() && s.End.After(until) {
			continue
		}
		out = append(out, s)
	}
	return out
}
