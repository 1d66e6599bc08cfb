package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/scheduling"
)

// ReservationService owns every change to enrolments and reservations.
// Each operation validates its input against committed state first,
// then takes the user's lease, re-reads and re-validates, and commits
// its writes as one unit.  Notifications go out after commit.
type ReservationService struct {
	store    repository.Store
	partner  Partner
	notifier Notifier
	cfg      config.SchedulerConfig
	now      func() time.Time
	logger   *zap.Logger
	lease    leaser
}

// NewReservationService wires a ReservationService.  partner and
// notifier may be nil; now defaults to time.Now and logger to a no-op
// logger.
func NewReservationService(store repository.Store, p Partner, n Notifier, cfg config.SchedulerConfig, now func() time.Time, logger *zap.Logger) *ReservationService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		store:    store,
		partner:  p,
		notifier: n,
		cfg:      cfg,
		now:      now,
		logger:   logger,
		lease:    leaser{store: store, timeout: cfg.LeaseTimeout, logger: logger},
	}
}

// BookRequest asks for a local reservation of one slot in a room.
type BookRequest struct {
	UserID uint64
	ExamID uint64
	RoomID uint64
	Start  time.Time
	End    time.Time
}

// CreateEnrolment enrols the user to an exam.  A user can hold at most
// one unfinished enrolment per exam family.
func (s *ReservationService) CreateEnrolment(ctx context.Context, userID, examID uint64) (model.ExamEnrolment, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.ExamEnrolment{}, storeErr(err, "exam")
	}
	if !exam.PeriodEnd.IsZero() && !exam.PeriodEnd.After(s.now()) {
		return model.ExamEnrolment{}, forbidden("exam period has ended")
	}

	var created model.ExamEnrolment
	err = s.lease.run(ctx, opCreateEnrolment, userID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		views, err := loadEnrolments(ctx, tx, userID, exam, now)
		if err != nil {
			return err
		}
		if len(views) > 0 {
			return conflict("already enrolled to this exam")
		}
		created = model.ExamEnrolment{UserID: userID, ExamID: exam.ID, CreatedAt: now}
		return tx.CreateEnrolment(ctx, &created)
	})
	if err != nil {
		return model.ExamEnrolment{}, err
	}
	s.logger.Info("enrolment created", append(opFields(opCreateEnrolment, userID, exam.ID), zap.Uint64("enrolment_id", created.ID))...)
	return created, nil
}

// EnrolmentState reports where the user is in the booking lifecycle of
// an exam.  Finished enrolments count as unenrolled.
func (s *ReservationService) EnrolmentState(ctx context.Context, userID, examID uint64) (model.EnrolmentState, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return "", storeErr(err, "exam")
	}
	views, err := loadEnrolments(ctx, s.store, userID, exam, s.now())
	if err != nil {
		return "", err
	}
	if len(views) == 0 {
		return model.StateUnenrolled, nil
	}
	for _, v := range views {
		if v.enrolment.ExamID == exam.ID {
			return v.state(), nil
		}
	}
	return views[0].state(), nil
}

// ListReservations returns all reservations of a user.
func (s *ReservationService) ListReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.store.ListUserReservations(ctx, userID)
}

// BookReservation reserves a machine in a local room.  A future
// reservation the user already holds for the exam is replaced in the
// same commit; a reservation in effect blocks the request.
func (s *ReservationService) BookReservation(ctx context.Context, req BookRequest) (model.Reservation, error) {
	slot := scheduling.NewInterval(req.Start.UTC(), req.End.UTC())
	exam, err := s.store.GetExam(ctx, req.ExamID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "exam")
	}
	if err := s.validateSlot(exam, slot); err != nil {
		return model.Reservation{}, err
	}
	room, err := s.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "room")
	}
	if room.IsExternal() {
		return model.Reservation{}, invalidInput("room belongs to a partner institution, book it as an external reservation")
	}
	if !room.Active || room.OutOfService {
		return model.Reservation{}, forbidden("room is not in service")
	}
	loc := s.cfg.Location(room.Timezone)

	var (
		created  model.Reservation
		replaced *model.Reservation
		sg       *saga
	)
	err = s.lease.run(ctx, opBookReservation, req.UserID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		if !slot.Start.After(now) {
			return forbidden("slot has already started")
		}
		views, err := loadEnrolments(ctx, tx, req.UserID, exam, now)
		if err != nil {
			return err
		}
		st, err := inspectForReservation(views, exam, now)
		if err != nil {
			return err
		}
		existing := st.existing()
		if existing != nil && existing.MachineID != nil && slot.Start.Equal(existing.Start) && slot.End.Equal(existing.End) {
			m, err := tx.GetMachine(ctx, *existing.MachineID)
			if err != nil {
				return storeErr(err, "machine")
			}
			if m.RoomID == room.ID {
				return conflict("identical reservation already exists")
			}
		}
		if err := s.checkUserOverlap(ctx, tx, req.UserID, slot, existing); err != nil {
			return err
		}

		day := scheduling.Day(slot.Start.In(loc), loc)
		maintenance, err := tx.ListMaintenance(ctx, day.Start, day.End)
		if err != nil {
			return err
		}
		open := scheduling.ResolveOpenIntervals(room, loc, day.Start, maintenance)
		if !onGrid(slot, scheduling.GenerateSlots(open, exam.Duration())) {
			return conflict("slot is not open")
		}

		machines, err := tx.ListMachines(ctx, room.ID)
		if err != nil {
			return err
		}
		if len(scheduling.EligibleMachines(machines, exam.RequiredSoftware)) == 0 {
			return forbidden("no machine in the room can host this exam")
		}
		ids := make([]uint64, 0, len(machines))
		for _, m := range machines {
			ids = append(ids, m.ID)
		}
		booked, err := tx.ListMachineReservations(ctx, ids, slot.Start, slot.End)
		if err != nil {
			return err
		}
		var ignore []uint64
		if existing != nil {
			ignore = append(ignore, existing.ID)
		}
		free := scheduling.FreeMachines(slot, machines, booked, exam.RequiredSoftware, ignore...)
		if len(free) == 0 {
			return conflict("no machine available for the slot")
		}

		if existing != nil && existing.External != nil {
			sg = newSaga(s.logger)
			s.addReleaseStep(sg, *existing)
			if err := sg.execute(ctx); err != nil {
				return remoteFailure(err)
			}
		}

		machineID := free[0].ID
		created = model.Reservation{
			UserID:    req.UserID,
			MachineID: &machineID,
			Start:     slot.Start,
			End:       slot.End,
			CreatedAt: now,
		}
		if err := s.replaceReservation(ctx, tx, st, &created); err != nil {
			return err
		}
		replaced = existing
		return nil
	})
	if err != nil {
		if sg.pending() {
			s.logger.Error("local commit failed after releasing partner booking",
				zap.Uint64("user_id", req.UserID), zap.Error(err))
		}
		return model.Reservation{}, err
	}

	s.logger.Info("reservation booked",
		append(opFields(opBookReservation, req.UserID, exam.ID),
			zap.Uint64("reservation_id", created.ID),
			zap.Uint64("machine_id", *created.MachineID))...)
	dispatch(s.notifier, s.logger, reservationEvent(queue.EventReservationConfirmed, created, exam.ID, replaced, s.now()))
	return created, nil
}

// CancelReservation removes a future reservation owned by the user.
// With removeEnrolment the owning enrolment is deleted too; otherwise it
// returns to the enrolled state.
func (s *ReservationService) CancelReservation(ctx context.Context, userID, reservationID uint64, removeEnrolment bool) error {
	var (
		cancelled model.Reservation
		examID    uint64
	)
	// The exam is only needed for the log fields; the lease re-reads it.
	if e, err := s.store.GetEnrolmentByReservation(ctx, reservationID); err == nil {
		examID = e.ExamID
	}
	err := s.lease.run(ctx, opCancelReservation, userID, examID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return storeErr(err, "reservation")
		}
		if r.UserID != userID {
			return forbidden("reservation belongs to another user")
		}
		if r.InEffect(now) {
			return conflict("reservation is in effect")
		}
		if !r.IsFuture(now) {
			return forbidden("reservation has already taken place")
		}

		if r.External != nil {
			sg := newSaga(s.logger)
			s.addReleaseStep(sg, r)
			if err := sg.execute(ctx); err != nil {
				return remoteFailure(err)
			}
		}

		e, err := tx.GetEnrolmentByReservation(ctx, r.ID)
		switch {
		case err == nil:
			examID = e.ExamID
			if removeEnrolment {
				err = tx.DeleteEnrolment(ctx, e.ID)
			} else {
				e.ReservationID = nil
				err = tx.UpdateEnrolment(ctx, e)
			}
			if err != nil {
				return err
			}
		case errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("reservation without enrolment", zap.Uint64("reservation_id", r.ID))
		default:
			return err
		}
		cancelled = r
		return tx.DeleteReservation(ctx, r.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("reservation cancelled",
		append(opFields(opCancelReservation, userID, examID),
			zap.Uint64("reservation_id", reservationID),
			zap.Bool("enrolment_removed", removeEnrolment))...)
	dispatch(s.notifier, s.logger, reservationEvent(queue.EventReservationCancelled, cancelled, examID, nil, s.now()))
	return nil
}

// validateSlot checks a requested slot against the exam and the
// reservation window.
func (s *ReservationService) validateSlot(exam model.Exam, slot scheduling.Interval) error {
	if slot.Empty() {
		return invalidInput("end must be after start")
	}
	if slot.Duration() != exam.Duration() {
		return invalidInput(fmt.Sprintf("slot must last exactly %d minutes", exam.DurationMinutes))
	}
	now := s.now()
	if !slot.Start.After(now) {
		return forbidden("slot has already started")
	}
	from, until := slotBounds(now, s.cfg, exam)
	if slot.Start.Before(from) || slot.End.After(until) {
		return forbidden("slot is outside the reservation window or the exam period")
	}
	return nil
}

// checkUserOverlap rejects a slot that overlaps another reservation of
// the same user.  The reservation being replaced does not count.
func (s *ReservationService) checkUserOverlap(ctx context.Context, tx repository.Tx, userID uint64, slot scheduling.Interval, existing *model.Reservation) error {
	mine, err := tx.ListUserReservations(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range mine {
		if existing != nil && r.ID == existing.ID {
			continue
		}
		if slot.Overlaps(scheduling.NewInterval(r.Start, r.End)) {
			return conflict("overlaps another reservation of the user")
		}
	}
	return nil
}

// replaceReservation detaches and deletes the superseded reservation,
// inserts the new one and points the target enrolment at it.
func (s *ReservationService) replaceReservation(ctx context.Context, tx repository.Tx, st bookingState, created *model.Reservation) error {
	if existing := st.existing(); existing != nil {
		owner := st.views[st.replaced].enrolment
		owner.ReservationID = nil
		if err := tx.UpdateEnrolment(ctx, owner); err != nil {
			return err
		}
		st.views[st.replaced].enrolment = owner
		if err := tx.DeleteReservation(ctx, existing.ID); err != nil {
			return err
		}
	}
	if err := tx.CreateReservation(ctx, created); err != nil {
		return err
	}
	target := st.views[st.target].enrolment
	target.ReservationID = &created.ID
	target.EventConfigurationID = nil
	return tx.UpdateEnrolment(ctx, target)
}

// addReleaseStep adds a saga step that deletes the partner booking of an
// external reservation.  A released booking cannot be restored, so the
// step has no compensation.
func (s *ReservationService) addReleaseStep(sg *saga, r model.Reservation) {
	ref := r.External.Ref
	sg.add(sagaStep{
		name: "release partner booking " + ref,
		run: func(ctx context.Context) error {
			if s.partner == nil {
				return errPartnerDisabled
			}
			return s.partner.DeleteReservation(ctx, ref)
		},
	})
}

// onGrid reports whether slot is one of the generated slots.
func onGrid(slot scheduling.Interval, slots []scheduling.Interval) bool {
	for _, g := range slots {
		if g.Start.Equal(slot.Start) && g.End.Equal(slot.End) {
			return true
		}
	}
	return false
}

func reservationEvent(typ string, r model.Reservation, examID uint64, replaced *model.Reservation, now time.Time) queue.ReservationEvent {
	ev := queue.ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ExamID:        examID,
		StartsAt:      r.Start,
		EndsAt:        r.End,
		OccurredAt:    now.UTC(),
	}
	if r.MachineID != nil {
		ev.MachineID = *r.MachineID
	}
	if r.External != nil {
		ev.ExternalRef = r.External.Ref
	}
	if replaced != nil {
		ev.ReplacedReservationID = replaced.ID
	}
	return ev
}
