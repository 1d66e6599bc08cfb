package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository"
)

func TestCreateEnrolmentRejectsDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, model.StateUnenrolled, f.state(t, f.user.ID))
	f.enrol(t, f.user.ID)
	assert.Equal(t, model.StateEnrolledNoReservation, f.state(t, f.user.ID))

	_, err := f.svc.CreateEnrolment(context.Background(), f.user.ID, f.exam.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.CreateEnrolment(context.Background(), f.user.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookReservationRequiresEnrolment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.book(f.user.ID, 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeNotFound, Code(err))
}

func TestBookReservationPicksLowestFreeMachine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	other := f.addStudent(t, "other@example.org")
	f.enrol(t, f.user.ID)
	f.enrol(t, other.ID)

	first, err := f.book(f.user.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, first.MachineID)
	assert.Equal(t, f.machines[0].ID, *first.MachineID)

	second, err := f.book(other.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, f.machines[1].ID, *second.MachineID)

	third := f.addStudent(t, "third@example.org")
	f.enrol(t, third.ID)
	_, err = f.book(third.ID, 10)
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, model.StateReserved, f.state(t, f.user.ID))
	ev := f.notes.next(t)
	assert.Equal(t, queue.EventReservationConfirmed, ev.Type)
}

func TestBookReservationReplacesFutureReservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e := f.enrol(t, f.user.ID)

	r1, err := f.book(f.user.ID, 10)
	require.NoError(t, err)
	f.notes.next(t)

	r2, err := f.book(f.user.ID, 13)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	_, err = f.store.GetReservation(context.Background(), r1.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	mine := f.reservations(t, f.user.ID)
	require.Len(t, mine, 1)
	assert.Equal(t, at(14, 13, 0), mine[0].Start)

	owner, err := f.store.GetEnrolmentByReservation(context.Background(), r2.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, owner.ID)

	ev := f.notes.next(t)
	assert.Equal(t, r2.ID, ev.ReservationID)
	assert.Equal(t, r1.ID, ev.ReplacedReservationID)
}

func TestBookReservationBlockedWhileInEffect(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)

	f.now = at(14, 10, 30)
	_, err = f.book(f.user.ID, 13)
	assert.ErrorIs(t, err, ErrConflict)

	mine := f.reservations(t, f.user.ID)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)
}

func TestBookReservationIdenticalSlotConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)

	_, err := f.book(f.user.ID, 10)
	require.NoError(t, err)
	_, err = f.book(f.user.ID, 10)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookReservationValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	ctx := context.Background()

	cases := []struct {
		name  string
		start int
		end   int
		day   int
		want  error
	}{
		{"wrong duration", 10, 12, 14, ErrInvalidInput},
		{"empty", 10, 10, 14, ErrInvalidInput},
		{"already started", 7, 8, 11, ErrForbidden},
		{"after exam period", 10, 11, 31, ErrForbidden},
		{"outside opening hours", 7, 8, 14, ErrConflict},
		{"weekend", 10, 11, 16, ErrConflict},
	}
	for _, tc := range cases {
		_, err := f.svc.BookReservation(ctx, BookRequest{
			UserID: f.user.ID,
			ExamID: f.exam.ID,
			RoomID: f.room.ID,
			Start:  at(tc.day, tc.start, 0),
			End:    at(tc.day, tc.end, 0),
		})
		assert.ErrorIs(t, err, tc.want, tc.name)
	}
	assert.Equal(t, model.StateEnrolledNoReservation, f.state(t, f.user.ID))
}

func TestBookReservationSkipsMaintenance(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	ms := NewMaintenanceService(f.store, f.svc.logger)
	_, err := ms.Create(context.Background(), at(14, 12, 0), at(14, 13, 0), "patching")
	require.NoError(t, err)

	_, err = f.book(f.user.ID, 12)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.book(f.user.ID, 13)
	assert.NoError(t, err)
}

func TestBookReservationRequiresSoftware(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.exam = f.store.AddExam(model.Exam{Name: "CAD", DurationMinutes: 60, RequiredSoftware: []uint64{7}})
	f.enrol(t, f.user.ID)

	_, err := f.book(f.user.ID, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	f.store.AddMachine(model.Machine{RoomID: f.room.ID, Name: "cad", Software: []uint64{7, 8}})
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)
	m, err := f.store.GetMachine(context.Background(), *r.MachineID)
	require.NoError(t, err)
	assert.Equal(t, "cad", m.Name)
}

func TestBookReservationRejectsUserOverlapAcrossExams(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	_, err := f.book(f.user.ID, 10)
	require.NoError(t, err)

	first := f.exam
	f.exam = f.store.AddExam(model.Exam{Name: "Geometry", DurationMinutes: 60})
	f.enrol(t, f.user.ID)
	_, err = f.book(f.user.ID, 10)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.book(f.user.ID, 11)
	assert.NoError(t, err)

	f.exam = first
	assert.Equal(t, model.StateReserved, f.state(t, f.user.ID))
}

func TestBookReservationMultipleFutureReservationsIsInvariantViolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	parent := f.exam
	child := f.store.AddExam(model.Exam{Name: "Algebra (retake)", ParentID: &parent.ID, DurationMinutes: 60})

	m := f.machines[0].ID
	r1 := f.store.AddReservation(model.Reservation{UserID: f.user.ID, MachineID: &m, Start: at(14, 9, 0), End: at(14, 10, 0)})
	r2 := f.store.AddReservation(model.Reservation{UserID: f.user.ID, MachineID: &m, Start: at(15, 9, 0), End: at(15, 10, 0)})
	f.store.AddEnrolment(model.ExamEnrolment{UserID: f.user.ID, ExamID: parent.ID, ReservationID: &r1.ID})
	f.store.AddEnrolment(model.ExamEnrolment{UserID: f.user.ID, ExamID: child.ID, ReservationID: &r2.ID})

	f.exam = child
	_, err := f.book(f.user.ID, 13)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, CodeInvariantViolation, Code(err))
	assert.Len(t, f.reservations(t, f.user.ID), 2)
}

func TestConcurrentIdenticalBookingsHaveOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.book(f.user.ID, 10)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.reservations(t, f.user.ID), 1)
	assert.Equal(t, model.StateReserved, f.state(t, f.user.ID))
}

func TestConcurrentBookingsNeverDoubleBookAMachine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	users := make([]model.User, 6)
	for i := range users {
		users[i] = f.addStudent(t, fmt.Sprintf("s%d@example.org", i))
		f.enrol(t, users[i].ID)
	}

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(seed int64, userID uint64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for k := 0; k < 10; k++ {
				_, err := f.book(userID, 9+rnd.Intn(3))
				if err != nil && !errors.Is(err, ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(int64(i), u.ID)
	}
	wg.Wait()

	var all []model.Reservation
	for _, u := range users {
		mine := f.reservations(t, u.ID)
		assert.LessOrEqual(t, len(mine), 1)
		all = append(all, mine...)
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if *a.MachineID != *b.MachineID {
				continue
			}
			overlap := a.Start.Before(b.End) && b.Start.Before(a.End)
			assert.False(t, overlap, "reservations %d and %d overlap on machine %d", a.ID, b.ID, *a.MachineID)
		}
	}
}

func TestCancelReservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)
	f.notes.next(t)

	other := f.addStudent(t, "other@example.org")
	err = f.svc.CancelReservation(context.Background(), other.ID, r.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.CancelReservation(context.Background(), f.user.ID, r.ID, false))
	assert.Equal(t, model.StateEnrolledNoReservation, f.state(t, f.user.ID))
	assert.Empty(t, f.reservations(t, f.user.ID))
	assert.Equal(t, queue.EventReservationCancelled, f.notes.next(t).Type)

	err = f.svc.CancelReservation(context.Background(), f.user.ID, r.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelReservationRemovingEnrolment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(context.Background(), f.user.ID, r.ID, true))
	assert.Equal(t, model.StateUnenrolled, f.state(t, f.user.ID))
}

func TestCancelReservationInEffectConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)

	f.now = at(14, 10, 30)
	err = f.svc.CancelReservation(context.Background(), f.user.ID, r.ID, false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.StateReserved, f.state(t, f.user.ID))

	f.now = at(14, 11, 0)
	err = f.svc.CancelReservation(context.Background(), f.user.ID, r.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, model.StateUnenrolled, f.state(t, f.user.ID), "finished enrolments are terminal")
}

func TestRelocateReservationAcrossOffsetGrid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 10)
	require.NoError(t, err)

	annex := f.store.AddRoom(model.Room{Name: "Annex", Timezone: "UTC", DefaultHours: weekdayHours(9*60+10, 17*60+10), Active: true})
	target := f.store.AddMachine(model.Machine{RoomID: annex.ID, Name: "annex-1"})

	moved, err := f.svc.RelocateReservation(context.Background(), r.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, moved.ID)
	assert.Equal(t, target.ID, *moved.MachineID)
	assert.Equal(t, at(14, 10, 10), moved.Start)
	assert.Equal(t, at(14, 11, 10), moved.End)

	_, err = f.svc.RelocateReservation(context.Background(), r.ID, target.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRelocateReservationWithoutSuitableSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	r, err := f.book(f.user.ID, 16)
	require.NoError(t, err)

	early := f.store.AddRoom(model.Room{Name: "Early", Timezone: "UTC", DefaultHours: weekdayHours(8*60, 16*60), Active: true})
	target := f.store.AddMachine(model.Machine{RoomID: early.ID})

	_, err = f.svc.RelocateReservation(context.Background(), r.ID, target.ID)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.store.GetReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, *r.MachineID, *got.MachineID)
}

func TestBookReservationRejectsOffGridSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enrol(t, f.user.ID)
	ctx := context.Background()

	_, err := f.svc.BookReservation(ctx, BookRequest{
		UserID: f.user.ID,
		ExamID: f.exam.ID,
		RoomID: f.room.ID,
		Start:  at(14, 9, 30),
		End:    at(14, 10, 30),
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.StateEnrolledNoReservation, f.state(t, f.user.ID))

	slots, err := f.slots.OpenSlots(ctx, f.room.ID, f.exam.ID, at(14, 0, 0))
	require.NoError(t, err)
	require.Len(t, slots, 8)
	for _, s := range slots {
		assert.Equal(t, 2, s.AvailableMachines, s.Start.String())
	}
}
