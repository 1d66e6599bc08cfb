package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/scheduling"
)

// RelocateReservation moves a future local reservation to another
// machine, possibly in another room.  The new window is the first slot
// on the target machine that starts and ends no earlier than the current
// one; if there is none the reservation is left untouched.
func (s *ReservationService) RelocateReservation(ctx context.Context, reservationID, machineID uint64) (model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "reservation")
	}
	if current.External != nil {
		return model.Reservation{}, invalidInput("external reservations cannot be relocated")
	}
	machine, err := s.store.GetMachine(ctx, machineID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "machine")
	}
	room, err := s.store.GetRoom(ctx, machine.RoomID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "room")
	}
	if !room.Active || room.OutOfService {
		return model.Reservation{}, forbidden("target room is not in service")
	}
	enrolment, err := s.store.GetEnrolmentByReservation(ctx, current.ID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "enrolment")
	}
	exam, err := s.store.GetExam(ctx, enrolment.ExamID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "exam")
	}
	loc := s.cfg.Location(room.Timezone)

	var moved model.Reservation
	err = s.lease.run(ctx, opRelocate, current.UserID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return storeErr(err, "reservation")
		}
		if r.InEffect(now) {
			return conflict("reservation is in effect")
		}
		if !r.IsFuture(now) {
			return forbidden("reservation has already taken place")
		}
		if r.MachineID != nil && *r.MachineID == machine.ID {
			return conflict("reservation is already on this machine")
		}

		day := scheduling.Day(r.Start.In(loc), loc)
		maintenance, err := tx.ListMaintenance(ctx, day.Start, day.End)
		if err != nil {
			return err
		}
		open := scheduling.ResolveOpenIntervals(room, loc, day.Start, maintenance)
		booked, err := tx.ListMachineReservations(ctx, []uint64{machine.ID}, day.Start, day.End)
		if err != nil {
			return err
		}
		slot, ok := scheduling.FindSuitableSlot(machine, r, exam.Duration(), open, booked, exam.RequiredSoftware)
		if !ok {
			return conflict("no suitable slot on the target machine")
		}
		mine, err := tx.ListUserReservations(ctx, r.UserID)
		if err != nil {
			return err
		}
		for _, other := range mine {
			if other.ID != r.ID && slot.Overlaps(scheduling.NewInterval(other.Start, other.End)) {
				return conflict("new window overlaps another reservation of the user")
			}
		}

		moved = r
		moved.MachineID = &machine.ID
		moved.Start = slot.Start
		moved.End = slot.End
		return tx.UpdateReservation(ctx, moved)
	})
	if err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("reservation relocated",
		append(opFields(opRelocate, moved.UserID, exam.ID),
			zap.Uint64("reservation_id", moved.ID),
			zap.Uint64("machine_id", machine.ID),
			zap.Time("start", moved.Start))...)
	dispatch(s.notifier, s.logger, reservationEvent(queue.EventReservationRelocated, moved, exam.ID, nil, s.now()))
	return moved, nil
}
