package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
)

// enrolmentView is an enrolment with the reservation or examination
// event it points to.
type enrolmentView struct {
	enrolment   model.ExamEnrolment
	reservation *model.Reservation
	event       *model.ExaminationEventConfiguration
}

// finished reports whether the booked reservation or event has ended.
// A finished enrolment is terminal and no longer takes part in booking
// decisions.
func (v enrolmentView) finished(now time.Time) bool {
	switch {
	case v.reservation != nil:
		return !v.reservation.End.After(now)
	case v.event != nil:
		return !v.event.End.After(now)
	default:
		return false
	}
}

func (v enrolmentView) state() model.EnrolmentState {
	switch {
	case v.reservation != nil:
		return model.StateReserved
	case v.event != nil:
		return model.StateExaminationEventBooked
	default:
		return model.StateEnrolledNoReservation
	}
}

// loadEnrolments returns the user's unfinished enrolments for the exam
// and its parent, ordered by ID.
func loadEnrolments(ctx context.Context, r repository.Reader, userID uint64, exam model.Exam, now time.Time) ([]enrolmentView, error) {
	rows, err := r.ListEnrolments(ctx, userID, exam.FamilyIDs())
	if err != nil {
		return nil, err
	}
	views := make([]enrolmentView, 0, len(rows))
	for _, e := range rows {
		v := enrolmentView{enrolment: e}
		if e.ReservationID != nil && e.EventConfigurationID != nil {
			return nil, invariant(fmt.Sprintf("enrolment %d holds both a reservation and an examination event", e.ID))
		}
		if e.ReservationID != nil {
			res, err := r.GetReservation(ctx, *e.ReservationID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, invariant(fmt.Sprintf("enrolment %d references missing reservation %d", e.ID, *e.ReservationID))
			}
			if err != nil {
				return nil, err
			}
			v.reservation = &res
		}
		if e.EventConfigurationID != nil {
			ev, err := r.GetEventConfiguration(ctx, *e.EventConfigurationID)
			if err != nil {
				return nil, storeErr(err, "examination event")
			}
			v.event = &ev
		}
		if v.finished(now) {
			continue
		}
		views = append(views, v)
	}
	sort.Slice(views, func(a, b int) bool { return views[a].enrolment.ID < views[b].enrolment.ID })
	return views, nil
}

// bookingState is the outcome of inspecting a user's enrolments before a
// reservation is made.
type bookingState struct {
	views []enrolmentView
	// target is the enrolment that will own the new reservation.
	target int
	// replaced is the index of the enrolment holding the future
	// reservation that the new one supersedes, or -1.
	replaced int
}

func (b bookingState) existing() *model.Reservation {
	if b.replaced < 0 {
		return nil
	}
	return b.views[b.replaced].reservation
}

// inspectForReservation decides whether a new reservation may be made
// for exam and which reservation it supersedes.  Reservations and events
// in effect block the change; at most one future reservation may exist.
func inspectForReservation(views []enrolmentView, exam model.Exam, now time.Time) (bookingState, error) {
	st := bookingState{views: views, target: -1, replaced: -1}
	if len(views) == 0 {
		return st, notFound("enrolment")
	}
	future := 0
	for i, v := range views {
		if st.target < 0 && v.enrolment.ExamID == exam.ID {
			st.target = i
		}
		if v.event != nil {
			if !v.event.Start.After(now) {
				return st, conflict("examination event in progress")
			}
			return st, conflict("an examination event is already booked for this exam")
		}
		if v.reservation == nil {
			continue
		}
		if v.reservation.InEffect(now) {
			return st, conflict("reservation already in effect")
		}
		future++
		st.replaced = i
	}
	if future > 1 {
		return st, invariant(fmt.Sprintf("user has %d future reservations for exam %d", future, exam.ID))
	}
	if st.target < 0 {
		st.target = 0
	}
	return st, nil
}
