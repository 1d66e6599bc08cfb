package scheduling

import (
	"sort"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// TimeSlot is a candidate window annotated with the number of machines
// still free for it.  It is never stored.
type TimeSlot struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	AvailableMachines int       `json:"available_machines"`
}

// Interval returns the window of the slot.
func (s TimeSlot) Interval() Interval { return Interval{Start: s.Start, End: s.End} }

// Eligible reports whether a machine can host an exam that needs the
// given software.
func Eligible(m model.Machine, requiredSoftware []uint64) bool {
	return !m.OutOfService && !m.Archived && m.HasSoftware(requiredSoftware)
}

// EligibleMachines filters machines down to the eligible ones, ordered
// by ID.
func EligibleMachines(machines []model.Machine, requiredSoftware []uint64) []model.Machine {
	out := make([]model.Machine, 0, len(machines))
	for _, m := range machines {
		if Eligible(m, requiredSoftware) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// BusyByMachine groups the intervals of local reservations by machine.
// External reservations (no machine) are ignored.
func BusyByMachine(reservations []model.Reservation) map[uint64][]Interval {
	busy := make(map[uint64][]Interval)
	for _, r := range reservations {
		if r.MachineID == nil {
			continue
		}
		busy[*r.MachineID] = append(busy[*r.MachineID], NewInterval(r.Start, r.End))
	}
	return busy
}

// Annotate counts, for every candidate slot, the eligible machines with
// no reservation overlapping the slot.  Slots with zero free machines
// are kept so callers can tell "no capacity" from "no slot".  The output
// follows the order of slots and does not depend on the order of
// machines or reservations.
func Annotate(slots []Interval, machines []model.Machine, reservations []model.Reservation, requiredSoftware []uint64) []TimeSlot {
	eligible := EligibleMachines(machines, requiredSoftware)
	busy := BusyByMachine(reservations)

	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		free := 0
		for _, m := range eligible {
			if !AnyOverlap(s, busy[m.ID]) {
				free++
			}
		}
		out = append(out, TimeSlot{Start: s.Start, End: s.End, AvailableMachines: free})
	}
	return out
}

// FreeMachines returns the eligible machines with no reservation
// overlapping slot, ordered by ID.  Reservations whose ID is in ignore
// are not counted; this lets a reservation that is about to be replaced
// free its own machine.
func FreeMachines(slot Interval, machines []model.Machine, reservations []model.Reservation, requiredSoftware []uint64, ignore ...uint64) []model.Machine {
	skip := make(map[uint64]struct{}, len(ignore))
	for _, id := range ignore {
		skip[id] = struct{}{}
	}
	kept := make([]model.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if _, ok := skip[r.ID]; ok {
			continue
		}
		kept = append(kept, r)
	}
	busy := BusyByMachine(kept)

	var out []model.Machine
	for _, m := range EligibleMachines(machines, requiredSoftware) {
		if !AnyOverlap(slot, busy[m.ID]) {
			out = append(out, m)
		}
	}
	return out
}

// FindSuitableSlot looks for a window on a single machine that can take
// over an existing reservation.  Slots are generated from the open
// intervals of the machine's room; the first slot that starts no earlier
// than the current reservation, ends no earlier than it, and is free on
// the machine is returned.  Comparing start and end separately lets a
// reservation move between rooms whose slot grids are offset from each
// other.
func FindSuitableSlot(machine model.Machine, current model.Reservation, duration time.Duration, open []Interval, reservations []model.Reservation, requiredSoftware []uint64) (Interval, bool) {
	if !Eligible(machine, requiredSoftware) {
		return Interval{}, false
	}
	var busy []Interval
	for _, r := range reservations {
		if r.ID == current.ID || r.MachineID == nil || *r.MachineID != machine.ID {
			continue
		}
		busy = append(busy, NewInterval(r.Start, r.End))
	}
	for _, s := range GenerateSlots(open, duration) {
		if s.Start.Before(current.Start) || s.End.Before(current.End) {
			continue
		}
		if AnyOverlap(s, busy) {
			continue
		}
		return s, true
	}
	return Interval{}, false
}
