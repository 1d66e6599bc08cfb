package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/partner"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/scheduling"
)

var errPartnerDisabled = errors.New("partner api not configured")

// ExternalBookRequest asks for a seat in a partner institution's room.
type ExternalBookRequest struct {
	UserID  uint64
	ExamID  uint64
	OrgRef  string
	RoomRef string
	Start   time.Time
	End     time.Time
}

// BookExternalReservation reserves a seat in a partner room.  The
// partner booking is created first, then the superseded partner booking
// (if any) is released, then the local state is committed.  When a later
// step fails the new partner booking is deleted again, so a failed
// request leaves neither a local reservation nor a remote orphan.
func (s *ReservationService) BookExternalReservation(ctx context.Context, req ExternalBookRequest) (model.Reservation, error) {
	if req.OrgRef == "" || req.RoomRef == "" {
		return model.Reservation{}, invalidInput("organisation and room references are required")
	}
	if s.partner == nil {
		return model.Reservation{}, remoteFailure(errPartnerDisabled)
	}
	slot := scheduling.NewInterval(req.Start.UTC(), req.End.UTC())
	exam, err := s.store.GetExam(ctx, req.ExamID)
	if err != nil {
		return model.Reservation{}, storeErr(err, "exam")
	}
	if err := s.validateSlot(exam, slot); err != nil {
		return model.Reservation{}, err
	}

	var (
		created  model.Reservation
		replaced *model.Reservation
		sg       *saga
	)
	err = s.lease.run(ctx, opBookExternal, req.UserID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
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
		if existing != nil && existing.External != nil &&
			existing.External.OrgRef == req.OrgRef && existing.External.RoomRef == req.RoomRef &&
			slot.Start.Equal(existing.Start) && slot.End.Equal(existing.End) {
			return conflict("identical reservation already exists")
		}
		if err := s.checkUserOverlap(ctx, tx, req.UserID, slot, existing); err != nil {
			return err
		}

		var booking partner.Booking
		sg = newSaga(s.logger)
		sg.add(sagaStep{
			name: "create partner booking",
			run: func(ctx context.Context) error {
				b, err := s.partner.CreateReservation(ctx, partner.ReservationRequest{
					OrgRef:  req.OrgRef,
					RoomRef: req.RoomRef,
					UserID:  req.UserID,
					ExamID:  exam.ID,
					Start:   slot.Start,
					End:     slot.End,
				})
				booking = b
				return err
			},
			compensate: func(ctx context.Context) error {
				return s.partner.DeleteReservation(ctx, booking.Ref)
			},
		})
		if existing != nil && existing.External != nil {
			s.addReleaseStep(sg, *existing)
		}
		if err := sg.execute(ctx); err != nil {
			return remoteFailure(err)
		}

		created = model.Reservation{
			UserID: req.UserID,
			Start:  slot.Start,
			End:    slot.End,
			External: &model.ExternalReservation{
				OrgRef:  req.OrgRef,
				RoomRef: req.RoomRef,
				Ref:     booking.Ref,
			},
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
			s.logger.Warn("local commit failed, compensating partner booking",
				zap.Uint64("user_id", req.UserID), zap.Error(err))
			sg.compensate(ctx)
		}
		return model.Reservation{}, err
	}

	s.logger.Info("external reservation booked",
		append(opFields(opBookExternal, req.UserID, exam.ID),
			zap.Uint64("reservation_id", created.ID),
			zap.String("external_ref", created.External.Ref))...)
	dispatch(s.notifier, s.logger, reservationEvent(queue.EventReservationConfirmed, created, exam.ID, replaced, s.now()))
	return created, nil
}
