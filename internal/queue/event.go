// Package queue defines the notification messages exchanged over the
// message broker together with their publisher and consumer.
package queue

import "time"

// Event types carried in ReservationEvent.Type.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationRelocated = "reservation.relocated"
	EventExaminationBooked    = "examination_event.booked"
	EventExaminationCancelled = "examination_event.cancelled"
)

// ReservationEvent is published after a booking change has been
// committed.  It contains enough information for downstream consumers to
// notify the student without querying the primary database.
type ReservationEvent struct {
	Type                  string    `json:"type"`
	ReservationID         uint64    `json:"reservation_id,omitempty"`
	ReplacedReservationID uint64    `json:"replaced_reservation_id,omitempty"`
	EventConfigurationID  uint64    `json:"event_configuration_id,omitempty"`
	UserID                uint64    `json:"user_id"`
	ExamID                uint64    `json:"exam_id,omitempty"`
	MachineID             uint64    `json:"machine_id,omitempty"`
	ExternalRef           string    `json:"external_ref,omitempty"`
	StartsAt              time.Time `json:"starts_at"`
	EndsAt                time.Time `json:"ends_at"`
	OccurredAt            time.Time `json:"occurred_at"`
}
