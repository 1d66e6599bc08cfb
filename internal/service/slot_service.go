package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/partner"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/scheduling"
)

// Partner is the remote API of partner institutions.
type Partner interface {
	CreateReservation(ctx context.Context, req partner.ReservationRequest) (partner.Booking, error)
	DeleteReservation(ctx context.Context, ref string) error
	ListSlots(ctx context.Context, q partner.SlotQuery) ([]partner.Slot, error)
}

// SlotService lists bookable slots.  Listings are advisory: they read
// committed state without a lease and booking re-validates everything.
type SlotService struct {
	store   repository.Reader
	partner Partner
	cfg     config.SchedulerConfig
	now     func() time.Time
	logger  *zap.Logger
}

// NewSlotService wires a SlotService.  partner may be nil when external
// rooms are not configured; now defaults to time.Now.
func NewSlotService(store repository.Reader, p Partner, cfg config.SchedulerConfig, now func() time.Time, logger *zap.Logger) *SlotService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{store: store, partner: p, cfg: cfg, now: now, logger: logger}
}

// OpenSlots returns the slots of a room on the given date for an exam,
// each annotated with the number of free eligible machines.  Only slots
// inside the reservation window and the exam period are returned.
// External rooms are answered by the partner.
func (s *SlotService) OpenSlots(ctx context.Context, roomID, examID uint64, date time.Time) ([]scheduling.TimeSlot, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeErr(err, "room")
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, storeErr(err, "exam")
	}
	if !room.Active || room.OutOfService {
		return nil, forbidden("room is not in service")
	}
	if room.IsExternal() {
		return s.externalSlots(ctx, room.ExternalOrgRef, room.ExternalRoomRef, exam, date)
	}

	loc := s.cfg.Location(room.Timezone)
	day := scheduling.Day(date, loc)
	maintenance, err := s.store.ListMaintenance(ctx, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	open := scheduling.ResolveOpenIntervals(room, loc, date, maintenance)
	from, until := s.bounds(exam)
	candidates := scheduling.Window(scheduling.GenerateSlots(open, exam.Duration()), from, until)
	if len(candidates) == 0 {
		return []scheduling.TimeSlot{}, nil
	}

	machines, err := s.store.ListMachines(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(machines))
	for _, m := range machines {
		ids = append(ids, m.ID)
	}
	reservations, err := s.store.ListMachineReservations(ctx, ids, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	return scheduling.Annotate(candidates, machines, reservations, exam.RequiredSoftware), nil
}

// ExternalSlots lists the slots of a partner room for an exam.
func (s *SlotService) ExternalSlots(ctx context.Context, orgRef, roomRef string, examID uint64, date time.Time) ([]scheduling.TimeSlot, error) {
	if orgRef == "" || roomRef == "" {
		return nil, invalidInput("organisation and room references are required")
	}
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, storeErr(err, "exam")
	}
	return s.externalSlots(ctx, orgRef, roomRef, exam, date)
}

func (s *SlotService) externalSlots(ctx context.Context, orgRef, roomRef string, exam model.Exam, date time.Time) ([]scheduling.TimeSlot, error) {
	if s.partner == nil {
		return nil, remoteFailure(errPartnerDisabled)
	}
	remote, err := s.partner.ListSlots(ctx, partner.SlotQuery{
		OrgRef:   orgRef,
		RoomRef:  roomRef,
		Date:     date,
		Duration: exam.Duration(),
	})
	if err != nil {
		s.logger.Warn("partner slot listing failed", zap.String("org", orgRef), zap.String("room", roomRef), zap.Error(err))
		return nil, remoteFailure(err)
	}
	from, until := s.bounds(exam)
	out := make([]scheduling.TimeSlot, 0, len(remote))
	for _, r := range remote {
		iv := scheduling.NewInterval(r.Start, r.End)
		if iv.Duration() != exam.Duration() || len(scheduling.Window([]scheduling.Interval{iv}, from, until)) == 0 {
			continue
		}
		out = append(out, scheduling.TimeSlot{Start: iv.Start, End: iv.End, AvailableMachines: max(r.AvailableMachines, 0)})
	}
	return out, nil
}

// bounds returns the earliest start and latest end a bookable slot may
// have: the reservation window intersected with the exam period.
func (s *SlotService) bounds(exam model.Exam) (time.Time, time.Time) {
	return slotBounds(s.now(), s.cfg, exam)
}

func slotBounds(now time.Time, cfg config.SchedulerConfig, exam model.Exam) (time.Time, time.Time) {
	from := now
	until := now.Add(cfg.Window())
	if !exam.PeriodStart.IsZero() && exam.PeriodStart.After(from) {
		from = exam.PeriodStart
	}
	if !exam.PeriodEnd.IsZero() && exam.PeriodEnd.Before(until) {
		until = exam.PeriodEnd
	}
	return from, until
}
