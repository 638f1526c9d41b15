// Package booking commits bookings atomically and drives the appointment
// lifecycle. Every error it returns is an *apperr.Error.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Deps struct {
	Schedule     storage.ScheduleSource
	Appointments storage.AppointmentStore
	Directory    storage.Directory
	Policy       policy.Provider
	Clock        clock.Clock
	Metrics      *metrics.BookingMetrics
	Logger       *slog.Logger
	Location     *time.Location
}

type Service struct {
	schedule storage.ScheduleSource
	appts    storage.AppointmentStore
	dir      storage.Directory
	policy   policy.Provider
	clock    clock.Clock
	metrics  *metrics.BookingMetrics
	logger   *slog.Logger
	loc      *time.Location
	newID    func() string
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Policy == nil {
		d.Policy = policy.NewStaticProvider(nil)
	}
	return &Service{
		schedule: d.Schedule,
		appts:    d.Appointments,
		dir:      d.Directory,
		policy:   d.Policy,
		clock:    d.Clock,
		metrics:  d.Metrics,
		logger:   d.Logger,
		loc:      d.Location,
		newID:    uuid.NewString,
	}
}

// Create books req if the slot is still free. Nothing is persisted unless the
// appointment and its events commit together.
func (s *Service) Create(ctx context.Context, req model.BookingRequest) (model.Appointment, error) {
	appt, err := s.create(ctx, req)
	if err != nil {
		s.metrics.ObserveBooking(apperr.KindOf(err).String())
		return model.Appointment{}, err
	}
	s.metrics.ObserveBooking("created")
	return appt, nil
}

func (s *Service) create(ctx context.Context, req model.BookingRequest) (model.Appointment, error) {
	if err := validateRequest(req); err != nil {
		return model.Appointment{}, err
	}

	if !req.Date.Exists(s.loc, req.Start) || !req.Date.Exists(s.loc, req.End) {
		return model.Appointment{}, apperr.New(apperr.InvalidRequest,
			"%s %s-%s falls in a daylight-saving gap in %s", req.Date, req.Start, req.End, s.loc)
	}

	now := s.clock.Now().In(s.loc)
	if availability.HasStarted(req.Date, req.Start, now) {
		return model.Appointment{}, apperr.New(apperr.SlotAlreadyStarted, "slot %s %s has already started", req.Date, req.Start)
	}

	if err := s.resolve(ctx, req); err != nil {
		return model.Appointment{}, err
	}

	start := req.Date.At(s.loc, req.Start)
	end := req.Date.At(s.loc, req.End)

	hours, err := s.schedule.WorkingHours(ctx, req.PractitionerID)
	if err != nil {
		return model.Appointment{}, apperr.FromStore(err, "")
	}
	if !availability.FitsWorkingHours(hours, req.Date, req.Start, req.End) {
		return model.Appointment{}, apperr.New(apperr.SlotConflict, "%s %s-%s is outside the practitioner's working hours", req.Date, req.Start, req.End)
	}
	blackouts, err := s.schedule.Blackouts(ctx, req.PractitionerID, start, end)
	if err != nil {
		return model.Appointment{}, apperr.FromStore(err, "")
	}
	if len(blackouts) > 0 {
		detail := "practitioner is unavailable at that time"
		if r := blackouts[0].Reason; r != "" {
			detail += " (" + r + ")"
		}
		return model.Appointment{}, apperr.New(apperr.SlotConflict, "%s", detail)
	}

	appt := model.Appointment{
		ID:             s.newID(),
		PractitionerID: req.PractitionerID,
		PatientID:      req.PatientID,
		LocationID:     req.LocationID,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         model.StatusScheduled,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now.UTC(),
	}

	offsets, err := s.policy.ReminderOffsets(ctx, req.PractitionerID)
	if err != nil {
		s.logger.Warn("reminder policy unavailable; booking without reminders", "practitioner_id", req.PractitionerID, "err", err)
		offsets = nil
	}
	events, err := bookedEvents(appt, policy.Due(start, now, offsets))
	if err != nil {
		return model.Appointment{}, apperr.Wrap(apperr.StoreFailure, err, "build events")
	}

	began := time.Now()
	err = s.appts.InsertIfFree(ctx, appt, events)
	s.metrics.ObserveCommit(time.Since(began))
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			return model.Appointment{}, apperr.Wrap(apperr.SlotConflict, err,
				"slot "+req.Date.String()+" "+req.Start.String()+" was just booked by someone else")
		}
		return model.Appointment{}, apperr.FromStore(err, "")
	}

	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID,
		"practitioner_id", appt.PractitionerID,
		"start", appt.ScheduledStart.Format(time.RFC3339),
		"reminders", len(events)-1,
	)
	return appt, nil
}

func validateRequest(req model.BookingRequest) error {
	var missing []string
	if strings.TrimSpace(req.PractitionerID) == "" {
		missing = append(missing, "practitioner_id")
	}
	if strings.TrimSpace(req.PatientID) == "" {
		missing = append(missing, "patient_id")
	}
	if strings.TrimSpace(req.LocationID) == "" {
		missing = append(missing, "location_id")
	}
	if req.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.InvalidRequest, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !req.Start.Valid() || !req.End.Valid() {
		return apperr.New(apperr.InvalidRequest, "start and end must be within the day")
	}
	if req.Start >= req.End {
		return apperr.New(apperr.InvalidRequest, "start %s must be before end %s", req.Start, req.End)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, req model.BookingRequest) error {
	checks := []struct {
		what   string
		id     string
		exists func(context.Context, string) (bool, error)
	}{
		{"practitioner", req.PractitionerID, s.dir.PractitionerExists},
		{"patient", req.PatientID, s.dir.PatientExists},
		{"location", req.LocationID, s.dir.LocationExists},
	}
	for _, c := range checks {
		ok, err := c.exists(ctx, c.id)
		if err != nil {
			return apperr.FromStore(err, "")
		}
		if !ok {
			return apperr.New(apperr.NotFound, "%s %s not found", c.what, c.id)
		}
	}
	return nil
}

// Cancel moves a scheduled appointment to cancelled. Cancelling an already
// cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Appointment{}, apperr.New(apperr.InvalidRequest, "appointment_id is required")
	}
	reason = strings.TrimSpace(reason)
	appt, err := s.appts.Transition(ctx, id, func(cur model.Appointment) (model.Appointment, []outbox.Event, error) {
		switch cur.Status {
		case model.StatusCancelled:
			return cur, nil, nil
		case model.StatusCompleted:
			return cur, nil, apperr.New(apperr.InvalidRequest, "appointment %s is completed and cannot be cancelled", id)
		}
		at := s.clock.Now().UTC()
		cur.Status = model.StatusCancelled
		cur.CancelledAt = &at
		cur.CancelReason = reason
		evt, err := cancelledEvent(cur)
		if err != nil {
			return cur, nil, err
		}
		return cur, []outbox.Event{evt}, nil
	})
	if err != nil {
		return model.Appointment{}, apperr.FromStore(err, "appointment "+id)
	}
	return appt, nil
}

// Complete marks a scheduled appointment as attended.
func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Appointment{}, apperr.New(apperr.InvalidRequest, "appointment_id is required")
	}
	appt, err := s.appts.Transition(ctx, id, func(cur model.Appointment) (model.Appointment, []outbox.Event, error) {
		switch cur.Status {
		case model.StatusCompleted:
			return cur, nil, nil
		case model.StatusCancelled:
			return cur, nil, apperr.New(apperr.InvalidRequest, "appointment %s is cancelled and cannot be completed", id)
		}
		cur.Status = model.StatusCompleted
		evt, err := completedEvent(cur, s.clock.Now())
		if err != nil {
			return cur, nil, err
		}
		return cur, []outbox.Event{evt}, nil
	})
	if err != nil {
		return model.Appointment{}, apperr.FromStore(err, "appointment "+id)
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.appts.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, apperr.FromStore(err, "appointment "+id)
	}
	return appt, nil
}

// List returns the practitioner's most recent appointments, newest first.
func (s *Service) List(ctx context.Context, practitionerID string, limit int) ([]model.Appointment, error) {
	if strings.TrimSpace(practitionerID) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "practitioner_id is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	ok, err := s.dir.PractitionerExists(ctx, practitionerID)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, "practitioner %s not found", practitionerID)
	}
	appts, err := s.appts.ListByPractitioner(ctx, practitionerID, limit)
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return appts, nil
}
