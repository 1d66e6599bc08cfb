package model

import "time"

// Reservation is a booked interval on one machine for one user.  For
// partner rooms MachineID is nil and External carries the references
// of the booking held by the partner system.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who owns the reservation.
//  MachineID – booked machine (nullable for external reservations).
//  Start     – inclusive start instant (UTC).
//  End       – exclusive end instant (UTC).
//  External  – partner booking references (nil for local reservations).
//  CreatedAt – creation timestamp.
type Reservation struct {
	ID        uint64               // reservations.id
	UserID    uint64               // reservations.user_id
	MachineID *uint64              // reservations.machine_id (nullable)
	Start     time.Time            // reservations.start_at
	End       time.Time            // reservations.end_at
	External  *ExternalReservation // reservations.external_* (nullable)
	CreatedAt time.Time            // reservations.created_at
}

// InEffect reports whether now falls inside the reservation.
func (r Reservation) InEffect(now time.Time) bool {
	return !now.Before(r.Start) && now.Before(r.End)
}

// IsFuture reports whether the reservation has not started yet.
func (r Reservation) IsFuture(now time.Time) bool {
	return r.Start.After(now)
}

// ExternalReservation holds the partner-side references of a booking
// made in another institution's room.
type ExternalReservation struct {
	OrgRef  string // reservations.external_org_ref
	RoomRef string // reservations.external_room_ref
	Ref     string // reservations.external_ref
}
