package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const DefaultMaxDays = 62

type Query struct {
	PractitionerID string
	From           model.Date
	To             model.Date
	SlotMinutes    int
	// PerWindow slices each window by its own slot_minutes; SlotMinutes then
	// only covers windows without one.
	PerWindow bool
	// Now overrides the service clock when set.
	Now time.Time
}

type Service struct {
	schedule storage.ScheduleSource
	appts    storage.AppointmentStore
	dir      storage.Directory
	clock    clock.Clock
	loc      *time.Location
	maxDays  int
}

type Config struct {
	Location *time.Location
	MaxDays  int
}

func NewService(schedule storage.ScheduleSource, appts storage.AppointmentStore, dir storage.Directory, clk clock.Clock, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = DefaultMaxDays
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Service{schedule: schedule, appts: appts, dir: dir, clock: clk, loc: cfg.Location, maxDays: cfg.MaxDays}
}

func (s *Service) Location() *time.Location { return s.loc }

// Compute returns one entry per date in [q.From, q.To], ascending, each listing
// the free slots that have not started yet.
func (s *Service) Compute(ctx context.Context, q Query) ([]model.DayAvailability, error) {
	switch {
	case q.PractitionerID == "":
		return nil, apperr.New(apperr.InvalidRequest, "practitioner_id is required")
	case q.From.IsZero() || q.To.IsZero():
		return nil, apperr.New(apperr.InvalidRequest, "date_from and date_to are required")
	case q.From.After(q.To):
		return nil, apperr.New(apperr.InvalidRequest, "invalid range: date_from %s is after date_to %s", q.From, q.To)
	case q.SlotMinutes <= 0:
		return nil, apperr.New(apperr.InvalidRequest, "invalid configuration: slot duration must be positive (got %d)", q.SlotMinutes)
	case q.SlotMinutes > model.MinutesPerDay:
		return nil, apperr.New(apperr.InvalidRequest, "invalid configuration: slot duration exceeds a day")
	case q.From.DaysUntil(q.To)+1 > s.maxDays:
		return nil, apperr.New(apperr.InvalidRequest, "invalid range: at most %d days per request", s.maxDays)
	}

	ok, err := s.dir.PractitionerExists(ctx, q.PractitionerID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, "practitioner %s not found", q.PractitionerID)
	}

	hours, err := s.schedule.WorkingHours(ctx, q.PractitionerID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}

	rangeStart := q.From.At(s.loc, 0)
	rangeEnd := q.To.AddDays(1).At(s.loc, 0)
	busy, err := s.busy(ctx, q.PractitionerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	now := q.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	now = now.In(s.loc)

	days := make([]model.DayAvailability, 0, q.From.DaysUntil(q.To)+1)
	for d := q.From; !d.After(q.To); d = d.AddDays(1) {
		var slots []model.TimeSlot
		if q.PerWindow {
			slots = GenerateWindowSlots(d, WindowsOn(hours, d), q.SlotMinutes)
		} else {
			slots = GenerateSlots(d, WindowsOn(hours, d), q.SlotMinutes)
		}
		slots = DropSkippedTimes(slots, s.loc)
		slots = removeBusy(slots, s.loc, busy)
		slots = FilterPastSlots(d, slots, now)
		days = append(days, model.DayAvailability{Date: d, Slots: slots, AvailableCount: len(slots)})
	}
	return days, nil
}

func (s *Service) busy(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Interval, error) {
	appts, err := s.appts.ListScheduled(ctx, practitionerID, from, to)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	blackouts, err := s.schedule.Blackouts(ctx, practitionerID, from, to)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	busy := make([]model.Interval, 0, len(appts)+len(blackouts))
	for _, a := range appts {
		busy = append(busy, a.Interval())
	}
	for _, b := range blackouts {
		busy = append(busy, b.Interval())
	}
	return busy, nil
}
