package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository"
)

// BookExaminationEvent joins the user's enrolment to a fixed examination
// event instead of a machine reservation.  A different future event the
// user already joined is replaced; reservations must be cancelled first.
func (s *ReservationService) BookExaminationEvent(ctx context.Context, userID, examID, configurationID uint64) (model.ExamEnrolment, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return model.ExamEnrolment{}, storeErr(err, "exam")
	}
	event, err := s.store.GetEventConfiguration(ctx, configurationID)
	if err != nil {
		return model.ExamEnrolment{}, storeErr(err, "examination event")
	}
	if !inFamily(exam, event.ExamID) {
		return model.ExamEnrolment{}, invalidInput("examination event belongs to another exam")
	}
	if !event.Start.After(s.now()) {
		return model.ExamEnrolment{}, forbidden("examination event has already started")
	}

	var updated model.ExamEnrolment
	err = s.lease.run(ctx, opBookEvent, userID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		views, err := loadEnrolments(ctx, tx, userID, exam, now)
		if err != nil {
			return err
		}
		if len(views) == 0 {
			return notFound("enrolment")
		}
		target := -1
		for i, v := range views {
			if v.reservation != nil {
				if v.reservation.InEffect(now) {
					return conflict("reservation already in effect")
				}
				return conflict("a reservation is booked for this exam, cancel it first")
			}
			if v.event != nil {
				if v.event.ID == event.ID {
					return conflict("examination event already booked")
				}
				if !v.event.Start.After(now) {
					return conflict("examination event in progress")
				}
				target = i
			}
		}
		if target < 0 {
			target = 0
			for i, v := range views {
				if v.enrolment.ExamID == exam.ID {
					target = i
					break
				}
			}
		}

		// Locks the event row so bookings by different users count seats
		// one at a time.
		locked, err := tx.GetEventConfiguration(ctx, event.ID)
		if err != nil {
			return storeErr(err, "examination event")
		}
		taken, err := tx.CountEventEnrolments(ctx, event.ID)
		if err != nil {
			return err
		}
		if locked.Capacity > 0 && taken >= locked.Capacity {
			return conflict("examination event is full")
		}

		updated = views[target].enrolment
		updated.EventConfigurationID = &event.ID
		updated.ReservationID = nil
		return tx.UpdateEnrolment(ctx, updated)
	})
	if err != nil {
		return model.ExamEnrolment{}, err
	}

	s.logger.Info("examination event booked",
		append(opFields(opBookEvent, userID, exam.ID), zap.Uint64("event_configuration_id", event.ID))...)
	dispatch(s.notifier, s.logger, queue.ReservationEvent{
		Type:                 queue.EventExaminationBooked,
		EventConfigurationID: event.ID,
		UserID:               userID,
		ExamID:               exam.ID,
		StartsAt:             event.Start,
		EndsAt:               event.End,
		OccurredAt:           s.now().UTC(),
	})
	return updated, nil
}

// CancelExaminationEvent releases the user's seat in the examination
// event booked for the exam.  The enrolment stays.
func (s *ReservationService) CancelExaminationEvent(ctx context.Context, userID, examID uint64) error {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return storeErr(err, "exam")
	}

	var event model.ExaminationEventConfiguration
	err = s.lease.run(ctx, opCancelEvent, userID, exam.ID, func(ctx context.Context, tx repository.Tx) error {
		now := s.now()
		views, err := loadEnrolments(ctx, tx, userID, exam, now)
		if err != nil {
			return err
		}
		for _, v := range views {
			if v.event == nil {
				continue
			}
			if !v.event.Start.After(now) {
				return conflict("examination event in progress")
			}
			event = *v.event
			e := v.enrolment
			e.EventConfigurationID = nil
			return tx.UpdateEnrolment(ctx, e)
		}
		return notFound("examination event booking")
	})
	if err != nil {
		return err
	}

	s.logger.Info("examination event cancelled",
		append(opFields(opCancelEvent, userID, exam.ID), zap.Uint64("event_configuration_id", event.ID))...)
	dispatch(s.notifier, s.logger, queue.ReservationEvent{
		Type:                 queue.EventExaminationCancelled,
		EventConfigurationID: event.ID,
		UserID:               userID,
		ExamID:               exam.ID,
		StartsAt:             event.Start,
		EndsAt:               event.End,
		OccurredAt:           s.now().UTC(),
	})
	return nil
}

func inFamily(exam model.Exam, id uint64) bool {
	for _, f := range exam.FamilyIDs() {
		if f == id {
			return true
		}
	}
	return false
}
