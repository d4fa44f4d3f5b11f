// Package memory holds mutex-guarded in-memory implementations of the
// storage contracts, used by tests and local development. InTransaction
// serializes callers on one lock, which trivially satisfies the per-actor
// atomicity the engine requires.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/medicab/scheduler/internal/domain/schedule"
)

type Store struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*appointment.Appointment
}

func NewStore() *Store {
	return &Store{appointments: make(map[uuid.UUID]*appointment.Appointment)}
}

func (s *Store) Create(ctx context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(a)
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByID(id)
}

func (s *Store) Update(ctx context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(a)
}

func (s *Store) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(a)
}

func (s *Store) List(ctx context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(q)
}

func (s *Store) list(q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	var matches []*appointment.Appointment
	for _, a := range s.appointments {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		if q.DateFrom != nil && a.StartAt.Before(*q.DateFrom) {
			continue
		}
		if q.DateTo != nil && !a.StartAt.Before(*q.DateTo) {
			continue
		}
		matches = append(matches, clone(a))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartAt.Before(matches[j].StartAt) })

	total := int64(len(matches))
	start := (q.Page - 1) * q.PageSize
	if start > len(matches) {
		start = len(matches)
	}
	end := start + q.PageSize
	if end > len(matches) {
		end = len(matches)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &appointment.PagedAppointments{
		Appointments: matches[start:end],
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages,
	}, nil
}

func (s *Store) FindActiveByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(func(a *appointment.Appointment) bool { return a.DoctorID == doctorID }, from, to), nil
}

func (s *Store) FindActiveByPatient(ctx context.Context, patientID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(func(a *appointment.Appointment) bool { return a.PatientID == patientID }, from, to), nil
}

func (s *Store) FindUpcoming(ctx context.Context, within time.Duration) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUpcoming(within)
}

func (s *Store) findUpcoming(within time.Duration) ([]*appointment.Appointment, error) {
	now := time.Now()
	horizon := now.Add(within)
	var upcoming []*appointment.Appointment
	for _, a := range s.appointments {
		if !a.StartAt.After(now) || a.StartAt.After(horizon) {
			continue
		}
		switch a.Status {
		case appointment.StatusPending, appointment.StatusConfirmed, appointment.StatusRescheduled:
			upcoming = append(upcoming, clone(a))
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartAt.Before(upcoming[j].StartAt) })
	return upcoming, nil
}

// InTransaction holds the store lock across fn: the conflict read and the
// write cannot interleave with another booking. On error every mutation
// made inside fn is rolled back.
func (s *Store) InTransaction(ctx context.Context, doctorID, patientID int64, fn func(tx appointment.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[uuid.UUID]*appointment.Appointment, len(s.appointments))
	for id, a := range s.appointments {
		snapshot[id] = a
	}

	if err := fn(&txStore{store: s}); err != nil {
		s.appointments = snapshot
		return err
	}
	return nil
}

// txStore is the transaction-bound view handed to InTransaction callbacks.
// The outer lock is already held, so it calls the unlocked internals.
type txStore struct {
	store *Store
}

func (t *txStore) Create(ctx context.Context, a *appointment.Appointment) error {
	return t.store.create(a)
}

func (t *txStore) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return t.store.getByID(id)
}

func (t *txStore) Update(ctx context.Context, a *appointment.Appointment) error {
	return t.store.update(a)
}

func (t *txStore) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	return t.store.update(a)
}

func (t *txStore) List(ctx context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	return t.store.list(q)
}

func (t *txStore) FindActiveByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	return t.store.findActive(func(a *appointment.Appointment) bool { return a.DoctorID == doctorID }, from, to), nil
}

func (t *txStore) FindActiveByPatient(ctx context.Context, patientID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	return t.store.findActive(func(a *appointment.Appointment) bool { return a.PatientID == patientID }, from, to), nil
}

func (t *txStore) FindUpcoming(ctx context.Context, within time.Duration) ([]*appointment.Appointment, error) {
	return t.store.findUpcoming(within)
}

func (t *txStore) InTransaction(ctx context.Context, doctorID, patientID int64, fn func(tx appointment.Store) error) error {
	return fn(t)
}

func (s *Store) create(a *appointment.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.appointments[a.ID] = clone(a)
	return nil
}

func (s *Store) getByID(id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	return clone(a), nil
}

func (s *Store) update(a *appointment.Appointment) error {
	if _, ok := s.appointments[a.ID]; !ok {
		return appointment.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	s.appointments[a.ID] = clone(a)
	return nil
}

func (s *Store) findActive(match func(*appointment.Appointment) bool, from, to time.Time) []*appointment.Appointment {
	window := appointment.Interval{Start: from, End: to}
	var active []*appointment.Appointment
	for _, a := range s.appointments {
		if !match(a) || a.Status == appointment.StatusCancelled {
			continue
		}
		if a.Interval().Overlaps(window) {
			active = append(active, clone(a))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].StartAt.Before(active[j].StartAt) })
	return active
}

func clone(a *appointment.Appointment) *appointment.Appointment {
	cp := *a
	return &cp
}

// TimeOffStore is the in-memory counterpart of schedule.TimeOffStore.
type TimeOffStore struct {
	mu      sync.Mutex
	records []*schedule.TimeOff
}

func NewTimeOffStore() *TimeOffStore {
	return &TimeOffStore{}
}

func (s *TimeOffStore) Add(ctx context.Context, t *schedule.TimeOff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	s.records = append(s.records, &cp)
	return nil
}

func (s *TimeOffStore) FindForDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*schedule.TimeOff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := appointment.Interval{Start: from, End: to}
	var matches []*schedule.TimeOff
	for _, t := range s.records {
		if t.DoctorID == doctorID && t.Interval().Overlaps(window) {
			cp := *t
			matches = append(matches, &cp)
		}
	}
	return matches, nil
}
