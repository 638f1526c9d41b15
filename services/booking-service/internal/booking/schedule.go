package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

// Invalidator drops cached calendar data for one practitioner.
type Invalidator interface {
	Invalidate(ctx context.Context, practitionerID string) error
}

// Schedules is the admin side of practitioner calendars.
type Schedules struct {
	store  storage.ScheduleStore
	reader storage.ScheduleSource
	dir    storage.Directory
	cache  Invalidator
	clock  clock.Clock
	logger *slog.Logger
}

// NewSchedules writes through store and reads through reader, which may be a
// cache in front of store. cache may be nil.
func NewSchedules(store storage.ScheduleStore, reader storage.ScheduleSource, dir storage.Directory, cache Invalidator, clk clock.Clock, logger *slog.Logger) *Schedules {
	if reader == nil {
		reader = store
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Schedules{store: store, reader: reader, dir: dir, cache: cache, clock: clk, logger: logger}
}

func (s *Schedules) WorkingHours(ctx context.Context, practitionerID string) ([]model.WorkingHours, error) {
	if err := s.requirePractitioner(ctx, practitionerID); err != nil {
		return nil, err
	}
	hours, err := s.reader.WorkingHours(ctx, practitionerID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if hours == nil {
		hours = []model.WorkingHours{}
	}
	return hours, nil
}

// ReplaceWorkingHours swaps the whole weekly calendar of a practitioner.
// Windows on the same weekday must not overlap.
func (s *Schedules) ReplaceWorkingHours(ctx context.Context, practitionerID string, hours []model.WorkingHours) ([]model.WorkingHours, error) {
	if strings.TrimSpace(practitionerID) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "practitioner id is required")
	}
	if err := validateWindows(hours); err != nil {
		return nil, err
	}

	evt, err := outbox.NewEvent(aggregatePractitioner, practitionerID, TopicWorkingHoursChanged, WorkingHoursChanged{
		PractitionerID: practitionerID,
		Windows:        len(hours),
		ChangedAt:      rfc3339(s.clock.Now()),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, err, "build event")
	}
	if err := s.store.ReplaceWorkingHours(ctx, practitionerID, hours, []outbox.Event{evt}); err != nil {
		return nil, apperr.FromStore(err, "practitioner "+practitionerID)
	}
	s.invalidate(ctx, practitionerID)

	out, err := s.store.WorkingHours(ctx, practitionerID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return out, nil
}

// AddBlackout blocks [b.Start, b.End) for bookings.
func (s *Schedules) AddBlackout(ctx context.Context, b model.Blackout) (model.Blackout, error) {
	if strings.TrimSpace(b.PractitionerID) == "" {
		return model.Blackout{}, apperr.New(apperr.InvalidRequest, "practitioner id is required")
	}
	if b.Start.IsZero() || b.End.IsZero() || !b.Start.Before(b.End) {
		return model.Blackout{}, apperr.New(apperr.InvalidRequest, "blackout start must be before end")
	}
	b.Start, b.End = b.Start.UTC(), b.End.UTC()
	b.Reason = strings.TrimSpace(b.Reason)
	if err := s.store.AddBlackout(ctx, b, nil); err != nil {
		return model.Blackout{}, apperr.FromStore(err, "practitioner "+b.PractitionerID)
	}
	return b, nil
}

func (s *Schedules) invalidate(ctx context.Context, practitionerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, practitionerID); err != nil {
		s.logger.Warn("schedule cache invalidation failed", "practitioner_id", practitionerID, "err", err)
	}
}

func (s *Schedules) requirePractitioner(ctx context.Context, id string) error {
	ok, err := s.dir.PractitionerExists(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "")
	}
	if !ok {
		return apperr.New(apperr.NotFound, "practitioner %s not found", id)
	}
	return nil
}

func validateWindows(hours []model.WorkingHours) error {
	byDay := map[time.Weekday][]model.WorkingHours{}
	for i, w := range hours {
		if err := w.Validate(); err != nil {
			return apperr.New(apperr.InvalidRequest, "window %d: %v", i, err)
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w)
	}
	for day, ws := range byDay {
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
		for i := 1; i < len(ws); i++ {
			if ws[i].Start < ws[i-1].End {
				return apperr.New(apperr.InvalidRequest, "overlapping windows on %s: %s-%s and %s-%s",
					day, ws[i-1].Start, ws[i-1].End, ws[i].Start, ws[i].End)
			}
		}
	}
	return nil
}
