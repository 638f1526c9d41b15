// Package memstore is an in-process implementation of the storage contracts,
// used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

type Store struct {
	now func() time.Time

	// locks serializes check-and-insert per practitioner.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu            sync.RWMutex
	practitioners map[string]bool
	patients      map[string]model.Patient
	locations     map[string]bool
	hours         map[string][]model.WorkingHours
	blackouts     map[string][]model.Blackout
	appointments  map[string]model.Appointment
	events        []outbox.Event
}

func New() *Store {
	return &Store{
		now:           time.Now,
		locks:         map[string]*sync.Mutex{},
		practitioners: map[string]bool{},
		patients:      map[string]model.Patient{},
		locations:     map[string]bool{},
		hours:         map[string][]model.WorkingHours{},
		blackouts:     map[string][]model.Blackout{},
		appointments:  map[string]model.Appointment{},
	}
}

var (
	_ storage.ScheduleStore    = (*Store)(nil)
	_ storage.AppointmentStore = (*Store)(nil)
	_ storage.Directory        = (*Store)(nil)
	_ storage.PatientStore     = (*Store)(nil)
)

func (s *Store) AddPractitioner(id string) {
	s.mu.Lock()
	s.practitioners[id] = true
	s.mu.Unlock()
}

func (s *Store) AddLocation(id string) {
	s.mu.Lock()
	s.locations[id] = true
	s.mu.Unlock()
}

func (s *Store) AddPatient(p model.Patient) {
	s.mu.Lock()
	if p.RowVersion == 0 {
		p.RowVersion = 1
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	s.patients[p.ID] = p
	s.mu.Unlock()
}

// Events returns a copy of every event committed so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) practitionerLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) PractitionerExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.practitioners[id], nil
}

func (s *Store) PatientExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.patients[id]
	return ok, nil
}

func (s *Store) LocationExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locations[id], nil
}

func (s *Store) WorkingHours(_ context.Context, practitionerID string) ([]model.WorkingHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.WorkingHours(nil), s.hours[practitionerID]...), nil
}

func (s *Store) Blackouts(_ context.Context, practitionerID string, from, to time.Time) ([]model.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window := model.Interval{Start: from, End: to}
	var out []model.Blackout
	for _, b := range s.blackouts[practitionerID] {
		if b.Interval().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ReplaceWorkingHours(ctx context.Context, practitionerID string, hours []model.WorkingHours, events []outbox.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.practitioners[practitionerID] {
		return storage.ErrNotFound
	}
	cp := make([]model.WorkingHours, len(hours))
	for i, wh := range hours {
		wh.PractitionerID = practitionerID
		cp[i] = wh
	}
	sort.SliceStable(cp, func(i, j int) bool {
		if cp[i].Weekday != cp[j].Weekday {
			return cp[i].Weekday < cp[j].Weekday
		}
		return cp[i].Start < cp[j].Start
	})
	s.hours[practitionerID] = cp
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) AddBlackout(ctx context.Context, b model.Blackout, events []outbox.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.practitioners[b.PractitionerID] {
		return storage.ErrNotFound
	}
	s.blackouts[b.PractitionerID] = append(s.blackouts[b.PractitionerID], b)
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) ListScheduled(_ context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window := model.Interval{Start: from, End: to}
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.PractitionerID == practitionerID && a.Status == model.StatusScheduled && a.Interval().Overlaps(window) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

func (s *Store) InsertIfFree(ctx context.Context, appt model.Appointment, events []outbox.Event) error {
	l := s.practitionerLock(appt.PractitionerID)
	l.Lock()
	defer l.Unlock()

	// A request whose deadline passed while queued on the lock must not commit.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.PractitionerID == appt.PractitionerID && a.Status == model.StatusScheduled && a.Interval().Overlaps(appt.Interval()) {
			return storage.ErrSlotTaken
		}
	}
	if _, dup := s.appointments[appt.ID]; dup {
		return storage.ErrSlotTaken
	}
	s.appointments[appt.ID] = appt
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) Transition(ctx context.Context, id string, fn storage.TransitionFunc) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	next, events, err := fn(cur)
	if err != nil {
		return model.Appointment{}, err
	}
	s.appointments[id] = next
	s.events = append(s.events, events...)
	return next, nil
}

func (s *Store) ListByPractitioner(_ context.Context, practitionerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.PractitionerID == practitionerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.After(out[j].ScheduledStart) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetPatient(_ context.Context, id string) (model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return model.Patient{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdatePatient(_ context.Context, id string, u model.PatientUpdate) (model.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return model.Patient{}, storage.ErrNotFound
	}
	if p.RowVersion != u.RowVersion {
		return model.Patient{}, storage.ErrStaleVersion
	}
	p = u.Apply(p)
	p.RowVersion++
	p.UpdatedAt = s.now().UTC()
	s.patients[id] = p
	return p, nil
}
