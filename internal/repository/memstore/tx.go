package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
)

// tx is the overlay seen by a lease body.  A nil map value marks a
// deleted row.
type tx struct {
	store        *Store
	enrolments   map[uint64]*model.ExamEnrolment
	reservations map[uint64]*model.Reservation
}

var _ repository.Tx = (*tx)(nil)

func (t *tx) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	return t.store.GetRoom(ctx, id)
}

func (t *tx) GetExam(ctx context.Context, id uint64) (model.Exam, error) {
	return t.store.GetExam(ctx, id)
}

func (t *tx) GetMachine(ctx context.Context, id uint64) (model.Machine, error) {
	return t.store.GetMachine(ctx, id)
}

func (t *tx) ListMachines(ctx context.Context, roomID uint64) ([]model.Machine, error) {
	return t.store.ListMachines(ctx, roomID)
}

func (t *tx) ListMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenancePeriod, error) {
	return t.store.ListMaintenance(ctx, from, to)
}

func (t *tx) GetEventConfiguration(ctx context.Context, id uint64) (model.ExaminationEventConfiguration, error) {
	return t.store.GetEventConfiguration(ctx, id)
}

func (t *tx) GetReservation(_ context.Context, id uint64) (model.Reservation, error) {
	return getReservation(t.allReservations(), id)
}

func (t *tx) ListMachineReservations(_ context.Context, machineIDs []uint64, from, to time.Time) ([]model.Reservation, error) {
	return filterMachineReservations(t.allReservations(), machineIDs, from, to), nil
}

func (t *tx) ListUserReservations(_ context.Context, userID uint64) ([]model.Reservation, error) {
	return filterUserReservations(t.allReservations(), userID), nil
}

func (t *tx) ListEnrolments(_ context.Context, userID uint64, examIDs []uint64) ([]model.ExamEnrolment, error) {
	return filterEnrolments(t.allEnrolments(), userID, examIDs), nil
}

func (t *tx) GetEnrolmentByReservation(_ context.Context, reservationID uint64) (model.ExamEnrolment, error) {
	return enrolmentByReservation(t.allEnrolments(), reservationID)
}

func (t *tx) CountEventEnrolments(_ context.Context, configurationID uint64) (int, error) {
	n := 0
	for _, e := range t.allEnrolments() {
		if e.EventConfigurationID != nil && *e.EventConfigurationID == configurationID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateEnrolment(_ context.Context, e *model.ExamEnrolment) error {
	e.ID = t.store.id(0)
	c := cloneEnrolment(*e)
	t.enrolments[e.ID] = &c
	return nil
}

func (t *tx) UpdateEnrolment(_ context.Context, e model.ExamEnrolment) error {
	if !t.hasEnrolment(e.ID) {
		return repository.ErrNotFound
	}
	c := cloneEnrolment(e)
	t.enrolments[e.ID] = &c
	return nil
}

func (t *tx) DeleteEnrolment(_ context.Context, id uint64) error {
	if !t.hasEnrolment(id) {
		return repository.ErrNotFound
	}
	t.enrolments[id] = nil
	return nil
}

func (t *tx) CreateReservation(_ context.Context, r *model.Reservation) error {
	r.ID = t.store.id(0)
	c := cloneReservation(*r)
	t.reservations[r.ID] = &c
	return nil
}

func (t *tx) UpdateReservation(ctx context.Context, r model.Reservation) error {
	if _, err := t.GetReservation(ctx, r.ID); err != nil {
		return err
	}
	c := cloneReservation(r)
	t.reservations[r.ID] = &c
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, id uint64) error {
	if _, err := t.GetReservation(ctx, id); err != nil {
		return err
	}
	t.reservations[id] = nil
	return nil
}

func (t *tx) hasEnrolment(id uint64) bool {
	_, err := enrolmentByID(t.allEnrolments(), id)
	return err == nil
}

func (t *tx) allReservations() []model.Reservation {
	committed := t.store.committedReservations()
	out := make([]model.Reservation, 0, len(committed)+len(t.reservations))
	for _, r := range committed {
		if _, touched := t.reservations[r.ID]; !touched {
			out = append(out, r)
		}
	}
	for _, r := range t.reservations {
		if r != nil {
			out = append(out, cloneReservation(*r))
		}
	}
	return out
}

func (t *tx) allEnrolments() []model.ExamEnrolment {
	committed := t.store.committedEnrolments()
	out := make([]model.ExamEnrolment, 0, len(committed)+len(t.enrolments))
	for _, e := range committed {
		if _, touched := t.enrolments[e.ID]; !touched {
			out = append(out, e)
		}
	}
	for _, e := range t.enrolments {
		if e != nil {
			out = append(out, cloneEnrolment(*e))
		}
	}
	return out
}

// ---- shared filters ----

func getReservation(all []model.Reservation, id uint64) (model.Reservation, error) {
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, repository.ErrNotFound
}

func filterMachineReservations(all []model.Reservation, machineIDs []uint64, from, to time.Time) []model.Reservation {
	wanted := make(map[uint64]struct{}, len(machineIDs))
	for _, id := range machineIDs {
		wanted[id] = struct{}{}
	}
	var out []model.Reservation
	for _, r := range all {
		if r.MachineID == nil {
			continue
		}
		if _, ok := wanted[*r.MachineID]; !ok {
			continue
		}
		if r.Start.Before(to) && r.End.After(from) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out
}

func filterUserReservations(all []model.Reservation, userID uint64) []model.Reservation {
	var out []model.Reservation
	for _, r := range all {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out
}

func filterEnrolments(all []model.ExamEnrolment, userID uint64, examIDs []uint64) []model.ExamEnrolment {
	var out []model.ExamEnrolment
	for _, e := range all {
		if e.UserID != userID {
			continue
		}
		for _, id := range examIDs {
			if e.ExamID == id {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func enrolmentByReservation(all []model.ExamEnrolment, reservationID uint64) (model.ExamEnrolment, error) {
	for _, e := range all {
		if e.ReservationID != nil && *e.ReservationID == reservationID {
			return e, nil
		}
	}
	return model.ExamEnrolment{}, repository.ErrNotFound
}

func enrolmentByID(all []model.ExamEnrolment, id uint64) (model.ExamEnrolment, error) {
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return model.ExamEnrolment{}, repository.ErrNotFound
}

func countEvent(enrolments map[uint64]model.ExamEnrolment, configurationID uint64) int {
	n := 0
	for _, e := range enrolments {
		if e.EventConfigurationID != nil && *e.EventConfigurationID == configurationID {
			n++
		}
	}
	return n
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(a, b int) bool {
		if !rs[a].Start.Equal(rs[b].Start) {
			return rs[a].Start.Before(rs[b].Start)
		}
		return rs[a].ID < rs[b].ID
	})
}

func cloneReservation(r model.Reservation) model.Reservation {
	if r.MachineID != nil {
		id := *r.MachineID
		r.MachineID = &id
	}
	if r.External != nil {
		ext := *r.External
		r.External = &ext
	}
	return r
}

func cloneEnrolment(e model.ExamEnrolment) model.ExamEnrolment {
	if e.ReservationID != nil {
		id := *e.ReservationID
		e.ReservationID = &id
	}
	if e.EventConfigurationID != nil {
		id := *e.EventConfigurationID
		e.EventConfigurationID = &id
	}
	return e
}
