// Package memstore is an in-memory implementation of repository.Store.
// It backs the "memory" storage driver and the service tests.
//
// User leases are per-user channels, so leases of different users run
// concurrently.  A lease body works on a private overlay of enrolments
// and reservations; commit builds the next committed maps from the
// overlay under the write lock and swaps them in, after checking that no
// machine is double booked and no examination event is over capacity.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
)

// Store holds all data in maps guarded by mu.
type Store struct {
	mu           sync.RWMutex
	users        map[uint64]model.User
	rooms        map[uint64]model.Room
	machines     map[uint64]model.Machine
	exams        map[uint64]model.Exam
	events       map[uint64]model.ExaminationEventConfiguration
	maintenance  map[uint64]model.MaintenancePeriod
	enrolments   map[uint64]model.ExamEnrolment
	reservations map[uint64]model.Reservation

	nextID atomic.Uint64

	leaseMu sync.Mutex
	leases  map[uint64]chan struct{}
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:        make(map[uint64]model.User),
		rooms:        make(map[uint64]model.Room),
		machines:     make(map[uint64]model.Machine),
		exams:        make(map[uint64]model.Exam),
		events:       make(map[uint64]model.ExaminationEventConfiguration),
		maintenance:  make(map[uint64]model.MaintenancePeriod),
		enrolments:   make(map[uint64]model.ExamEnrolment),
		reservations: make(map[uint64]model.Reservation),
		leases:       make(map[uint64]chan struct{}),
	}
}

func (s *Store) id(requested uint64) uint64 {
	if requested == 0 {
		return s.nextID.Add(1)
	}
	for {
		cur := s.nextID.Load()
		if requested <= cur || s.nextID.CompareAndSwap(cur, requested) {
			return requested
		}
	}
}

// AddUser inserts a user, assigning an ID when u.ID is zero.
func (s *Store) AddUser(u model.User) model.User {
	u.ID = s.id(u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// AddRoom inserts a room, assigning an ID when r.ID is zero.
func (s *Store) AddRoom(r model.Room) model.Room {
	r.ID = s.id(r.ID)
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()
	return r
}

// AddMachine inserts a machine, assigning an ID when m.ID is zero.
func (s *Store) AddMachine(m model.Machine) model.Machine {
	m.ID = s.id(m.ID)
	s.mu.Lock()
	s.machines[m.ID] = m
	s.mu.Unlock()
	return m
}

// AddExam inserts an exam, assigning an ID when e.ID is zero.
func (s *Store) AddExam(e model.Exam) model.Exam {
	e.ID = s.id(e.ID)
	s.mu.Lock()
	s.exams[e.ID] = e
	s.mu.Unlock()
	return e
}

// AddEventConfiguration inserts an examination event.
func (s *Store) AddEventConfiguration(c model.ExaminationEventConfiguration) model.ExaminationEventConfiguration {
	c.ID = s.id(c.ID)
	s.mu.Lock()
	s.events[c.ID] = c
	s.mu.Unlock()
	return c
}

// AddEnrolment inserts an enrolment without any checks.
func (s *Store) AddEnrolment(e model.ExamEnrolment) model.ExamEnrolment {
	e.ID = s.id(e.ID)
	s.mu.Lock()
	s.enrolments[e.ID] = cloneEnrolment(e)
	s.mu.Unlock()
	return e
}

// AddReservation inserts a reservation without any checks.
func (s *Store) AddReservation(r model.Reservation) model.Reservation {
	r.ID = s.id(r.ID)
	s.mu.Lock()
	s.reservations[r.ID] = cloneReservation(r)
	s.mu.Unlock()
	return r
}

// Fixture is the JSON document accepted by Load.
type Fixture struct {
	Users        []model.User                          `json:"users"`
	Rooms        []model.Room                          `json:"rooms"`
	Machines     []model.Machine                       `json:"machines"`
	Exams        []model.Exam                          `json:"exams"`
	Events       []model.ExaminationEventConfiguration `json:"examination_events"`
	Maintenance  []model.MaintenancePeriod             `json:"maintenance_periods"`
	Enrolments   []model.ExamEnrolment                 `json:"enrolments"`
	Reservations []model.Reservation                   `json:"reservations"`
}

// Load seeds the store from a JSON fixture.
func (s *Store) Load(r io.Reader) error {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	for _, u := range f.Users {
		s.AddUser(u)
	}
	for _, x := range f.Rooms {
		s.AddRoom(x)
	}
	for _, x := range f.Machines {
		s.AddMachine(x)
	}
	for _, x := range f.Exams {
		s.AddExam(x)
	}
	for _, x := range f.Events {
		s.AddEventConfiguration(x)
	}
	for _, x := range f.Maintenance {
		x.ID = s.id(x.ID)
		s.mu.Lock()
		s.maintenance[x.ID] = x
		s.mu.Unlock()
	}
	for _, x := range f.Enrolments {
		s.AddEnrolment(x)
	}
	for _, x := range f.Reservations {
		s.AddReservation(x)
	}
	return nil
}

// ---- Reader on committed state ----

func (s *Store) GetRoom(_ context.Context, id uint64) (model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return model.Room{}, repository.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetExam(_ context.Context, id uint64) (model.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exams[id]
	if !ok {
		return model.Exam{}, repository.ErrNotFound
	}
	return e, nil
}

func (s *Store) GetMachine(_ context.Context, id uint64) (model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[id]
	if !ok {
		return model.Machine{}, repository.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMachines(_ context.Context, roomID uint64) ([]model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Machine
	for _, m := range s.machines {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *Store) ListMaintenance(_ context.Context, from, to time.Time) ([]model.MaintenancePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.MaintenancePeriod
	for _, m := range s.maintenance {
		if m.Start.Before(to) && m.End.After(from) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start) })
	return out, nil
}

func (s *Store) GetEventConfiguration(_ context.Context, id uint64) (model.ExaminationEventConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.events[id]
	if !ok {
		return model.ExaminationEventConfiguration{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return getReservation(s.committedReservations(), id)
}

func (s *Store) ListMachineReservations(_ context.Context, machineIDs []uint64, from, to time.Time) ([]model.Reservation, error) {
	return filterMachineReservations(s.committedReservations(), machineIDs, from, to), nil
}

func (s *Store) ListUserReservations(_ context.Context, userID uint64) ([]model.Reservation, error) {
	return filterUserReservations(s.committedReservations(), userID), nil
}

func (s *Store) ListEnrolments(_ context.Context, userID uint64, examIDs []uint64) ([]model.ExamEnrolment, error) {
	return filterEnrolments(s.committedEnrolments(), userID, examIDs), nil
}

func (s *Store) GetEnrolmentByReservation(_ context.Context, reservationID uint64) (model.ExamEnrolment, error) {
	return enrolmentByReservation(s.committedEnrolments(), reservationID)
}

// ---- maintenance admin ----

func (s *Store) CreateMaintenance(_ context.Context, m *model.MaintenancePeriod) error {
	m.ID = s.id(0)
	s.mu.Lock()
	s.maintenance[m.ID] = *m
	s.mu.Unlock()
	return nil
}

func (s *Store) DeleteMaintenance(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.maintenance[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.maintenance, id)
	return nil
}

// ---- leases ----

// WithUserLease implements repository.Store.
func (s *Store) WithUserLease(ctx context.Context, userID uint64, fn repository.LeaseFunc) error {
	s.mu.RLock()
	_, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	t := &tx{
		store:        s,
		enrolments:   make(map[uint64]*model.ExamEnrolment),
		reservations: make(map[uint64]*model.Reservation),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) acquire(ctx context.Context, userID uint64) (func(), error) {
	s.leaseMu.Lock()
	ch, ok := s.leases[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.leases[userID] = ch
	}
	s.leaseMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := make(map[uint64]model.Reservation, len(s.reservations)+len(t.reservations))
	for id, r := range s.reservations {
		reservations[id] = r
	}
	for id, r := range t.reservations {
		if r == nil {
			delete(reservations, id)
			continue
		}
		reservations[id] = *r
	}
	enrolments := make(map[uint64]model.ExamEnrolment, len(s.enrolments)+len(t.enrolments))
	for id, e := range s.enrolments {
		enrolments[id] = e
	}
	for id, e := range t.enrolments {
		if e == nil {
			delete(enrolments, id)
			continue
		}
		enrolments[id] = *e
	}

	for id, r := range t.reservations {
		if r == nil || r.MachineID == nil {
			continue
		}
		for oid, o := range reservations {
			if oid == id || o.MachineID == nil || *o.MachineID != *r.MachineID {
				continue
			}
			if r.Start.Before(o.End) && o.Start.Before(r.End) {
				return fmt.Errorf("%w: machine %d already booked by reservation %d", repository.ErrConflict, *r.MachineID, oid)
			}
		}
	}
	for _, e := range t.enrolments {
		if e == nil || e.EventConfigurationID == nil {
			continue
		}
		cfg, ok := s.events[*e.EventConfigurationID]
		if !ok || cfg.Capacity <= 0 {
			continue
		}
		if countEvent(enrolments, cfg.ID) > cfg.Capacity {
			return fmt.Errorf("%w: examination event %d is full", repository.ErrConflict, cfg.ID)
		}
	}

	s.reservations = reservations
	s.enrolments = enrolments
	return nil
}

func (s *Store) committedReservations() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, cloneReservation(r))
	}
	return out
}

func (s *Store) committedEnrolments() []model.ExamEnrolment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ExamEnrolment, 0, len(s.enrolments))
	for _, e := range s.enrolments {
		out = append(out, cloneEnrolment(e))
	}
	return out
}
