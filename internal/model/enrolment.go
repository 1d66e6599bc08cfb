package model

import "time"

// ExamEnrolment links a user to an exam.  At most one of ReservationID
// and EventConfigurationID is set at any time.
type ExamEnrolment struct {
	ID                   uint64    // exam_enrolments.id
	UserID               uint64    // exam_enrolments.user_id
	ExamID               uint64    // exam_enrolments.exam_id
	ReservationID        *uint64   // exam_enrolments.reservation_id (nullable)
	EventConfigurationID *uint64   // exam_enrolments.event_configuration_id (nullable)
	CreatedAt            time.Time // exam_enrolments.created_at
}

// EnrolmentState enumerates the states of the per-(user, exam) booking
// state machine.
type EnrolmentState string

const (
	StateUnenrolled             EnrolmentState = "UNENROLLED"
	StateEnrolledNoReservation  EnrolmentState = "ENROLLED_NO_RESERVATION"
	StateReserved               EnrolmentState = "RESERVED"
	StateExaminationEventBooked EnrolmentState = "EXAMINATION_EVENT_BOOKED"
)
