package repository

import (
	"context"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// Reader exposes the lookups the scheduler performs.  Outside a lease
// they read committed state without locks; inside a lease (through Tx)
// the same calls read the state the lease holder is about to change.
type Reader interface {
	GetRoom(ctx context.Context, id uint64) (model.Room, error)
	GetExam(ctx context.Context, id uint64) (model.Exam, error)
	GetMachine(ctx context.Context, id uint64) (model.Machine, error)
	ListMachines(ctx context.Context, roomID uint64) ([]model.Machine, error)
	ListMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenancePeriod, error)
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	// ListMachineReservations returns reservations on any of the machines
	// that overlap [from, to).  Inside a lease the rows are locked.
	ListMachineReservations(ctx context.Context, machineIDs []uint64, from, to time.Time) ([]model.Reservation, error)
	ListUserReservations(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListEnrolments(ctx context.Context, userID uint64, examIDs []uint64) ([]model.ExamEnrolment, error)
	GetEnrolmentByReservation(ctx context.Context, reservationID uint64) (model.ExamEnrolment, error)
	GetEventConfiguration(ctx context.Context, id uint64) (model.ExaminationEventConfiguration, error)
}

// Tx is the view of the store handed to the body of a user lease.  All
// writes become visible atomically when the body returns nil and are
// discarded otherwise.
type Tx interface {
	Reader
	CreateEnrolment(ctx context.Context, e *model.ExamEnrolment) error
	UpdateEnrolment(ctx context.Context, e model.ExamEnrolment) error
	DeleteEnrolment(ctx context.Context, id uint64) error
	CountEventEnrolments(ctx context.Context, configurationID uint64) (int, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r model.Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error
}

// LeaseFunc is the body executed while a user lease is held.
type LeaseFunc func(ctx context.Context, tx Tx) error

// Store is the persistence collaborator of the scheduler.
type Store interface {
	Reader
	// WithUserLease locks the user row, runs fn inside one transaction and
	// commits when fn returns nil.  The lock is released and the
	// transaction rolled back on every other exit path, panics included.
	// ErrNotFound is returned when the user does not exist.
	WithUserLease(ctx context.Context, userID uint64, fn LeaseFunc) error

	CreateMaintenance(ctx context.Context, m *model.MaintenancePeriod) error
	DeleteMaintenance(ctx context.Context, id uint64) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}
