package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/partner"
	"github.com/cscfi/exam-reservation/internal/queue"
	"github.com/cscfi/exam-reservation/internal/repository/memstore"
)

// at returns an instant on 2024-03-<day> in UTC.  The 14th is a Thursday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func weekdayHours(openMinute, closeMinute int) []model.WorkingHours {
	var hours []model.WorkingHours
	for d := time.Monday; d <= time.Friday; d++ {
		hours = append(hours, model.WorkingHours{Weekday: d, OpenMinute: openMinute, CloseMinute: closeMinute})
	}
	return hours
}

type fakePartner struct {
	mu        sync.Mutex
	createErr error
	deleteErr map[string]error
	created   []partner.ReservationRequest
	deleted   []string
	slots     []partner.Slot
	refs      []string
}

func newFakePartner() *fakePartner { return &fakePartner{deleteErr: map[string]error{}} }

func (p *fakePartner) CreateReservation(_ context.Context, req partner.ReservationRequest) (partner.Booking, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return partner.Booking{}, p.createErr
	}
	p.created = append(p.created, req)
	ref := "ext-new"
	if len(p.refs) > 0 {
		ref, p.refs = p.refs[0], p.refs[1:]
	}
	return partner.Booking{Ref: ref, Start: req.Start, End: req.End}, nil
}

func (p *fakePartner) DeleteReservation(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.deleteErr[ref]; err != nil {
		return err
	}
	p.deleted = append(p.deleted, ref)
	return nil
}

func (p *fakePartner) ListSlots(context.Context, partner.SlotQuery) ([]partner.Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots, nil
}

func (p *fakePartner) deletedRefs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

type recordingNotifier struct {
	events chan queue.ReservationEvent
}

func newRecorder() *recordingNotifier {
	return &recordingNotifier{events: make(chan queue.ReservationEvent, 64)}
}

func (r *recordingNotifier) Notify(_ context.Context, ev queue.ReservationEvent) error {
	r.events <- ev
	return errors.New("broker down")
}

func (r *recordingNotifier) next(t *testing.T) queue.ReservationEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
		return queue.ReservationEvent{}
	}
}

type fixture struct {
	store    *memstore.Store
	svc      *ReservationService
	slots    *SlotService
	partner  *fakePartner
	notes    *recordingNotifier
	now      time.Time
	user     model.User
	room     model.Room
	machines []model.Machine
	exam     model.Exam
}

// newFixture builds a room open 09:00-17:00 UTC on weekdays with two
// machines, a one-hour exam and a student.  The clock starts on Monday
// 2024-03-11 08:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	f := &fixture{store: st, partner: newFakePartner(), notes: newRecorder(), now: at(11, 8, 0)}
	f.user = st.AddUser(model.User{Email: "student@example.org", Role: model.RoleStudent, IsActive: true})
	f.room = st.AddRoom(model.Room{Name: "Aquarium", Timezone: "UTC", DefaultHours: weekdayHours(9*60, 17*60), Active: true})
	f.machines = []model.Machine{
		st.AddMachine(model.Machine{RoomID: f.room.ID, Name: "ws-1"}),
		st.AddMachine(model.Machine{RoomID: f.room.ID, Name: "ws-2"}),
	}
	f.exam = st.AddExam(model.Exam{Name: "Algebra", DurationMinutes: 60, PeriodStart: at(1, 0, 0), PeriodEnd: at(31, 0, 0)})

	cfg := config.DefaultScheduler()
	cfg.DefaultTimezone = "UTC"
	cfg.LeaseTimeout = 5 * time.Second
	clock := func() time.Time { return f.now }
	f.svc = NewReservationService(st, f.partner, f.notes, cfg, clock, zap.NewNop())
	f.slots = NewSlotService(st, f.partner, cfg, clock, zap.NewNop())
	return f
}

func (f *fixture) addStudent(t *testing.T, email string) model.User {
	t.Helper()
	return f.store.AddUser(model.User{Email: email, Role: model.RoleStudent, IsActive: true})
}

func (f *fixture) enrol(t *testing.T, userID uint64) model.ExamEnrolment {
	t.Helper()
	e, err := f.svc.CreateEnrolment(context.Background(), userID, f.exam.ID)
	require.NoError(t, err)
	return e
}

// book reserves hour:00-hour+1:00 on 2024-03-14.
func (f *fixture) book(userID uint64, hour int) (model.Reservation, error) {
	return f.svc.BookReservation(context.Background(), BookRequest{
		UserID: userID,
		ExamID: f.exam.ID,
		RoomID: f.room.ID,
		Start:  at(14, hour, 0),
		End:    at(14, hour+1, 0),
	})
}

func (f *fixture) state(t *testing.T, userID uint64) model.EnrolmentState {
	t.Helper()
	st, err := f.svc.EnrolmentState(context.Background(), userID, f.exam.ID)
	require.NoError(t, err)
	return st
}

func (f *fixture) reservations(t *testing.T, userID uint64) []model.Reservation {
	t.Helper()
	rs, err := f.svc.ListReservations(context.Background(), userID)
	require.NoError(t, err)
	return rs
}
