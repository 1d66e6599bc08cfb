package handler

import (
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// ----- responses -----

type externalResp struct {
	OrgRef  string `json:"org_ref"`
	RoomRef string `json:"room_ref"`
	Ref     string `json:"ref"`
}

type reservationResp struct {
	ID        uint64        `json:"id"`
	UserID    uint64        `json:"user_id"`
	MachineID *uint64       `json:"machine_id,omitempty"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	External  *externalResp `json:"external,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func toReservation(r model.Reservation) reservationResp {
	out := reservationResp{
		ID:        r.ID,
		UserID:    r.UserID,
		MachineID: r.MachineID,
		Start:     r.Start,
		End:       r.End,
		CreatedAt: r.CreatedAt,
	}
	if r.External != nil {
		out.External = &externalResp{OrgRef: r.External.OrgRef, RoomRef: r.External.RoomRef, Ref: r.External.Ref}
	}
	return out
}

type enrolmentResp struct {
	ID                   uint64    `json:"id"`
	UserID               uint64    `json:"user_id"`
	ExamID               uint64    `json:"exam_id"`
	ReservationID        *uint64   `json:"reservation_id,omitempty"`
	EventConfigurationID *uint64   `json:"event_configuration_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

func toEnrolment(e model.ExamEnrolment) enrolmentResp {
	return enrolmentResp{
		ID:                   e.ID,
		UserID:               e.UserID,
		ExamID:               e.ExamID,
		ReservationID:        e.ReservationID,
		EventConfigurationID: e.EventConfigurationID,
		CreatedAt:            e.CreatedAt,
	}
}

type maintenanceResp struct {
	ID          uint64    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

func toMaintenance(m model.MaintenancePeriod) maintenanceResp {
	return maintenanceResp{ID: m.ID, Start: m.Start, End: m.End, Description: m.Description}
}

// ----- requests -----

type enrolReq struct {
	ExamID uint64 `json:"exam_id"`
}

type bookReq struct {
	ExamID uint64    `json:"exam_id"`
	RoomID uint64    `json:"room_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type externalBookReq struct {
	ExamID  uint64    `json:"exam_id"`
	OrgRef  string    `json:"org_ref"`
	RoomRef string    `json:"room_ref"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type eventReq struct {
	ConfigurationID uint64 `json:"configuration_id"`
}

type relocateReq struct {
	MachineID uint64 `json:"machine_id"`
}

type maintenanceReq struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}
