// Package storage defines the persistence contracts of the booking core and
// their Postgres implementation.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrSlotTaken    = errors.New("storage: interval overlaps a scheduled appointment")
	ErrStaleVersion = errors.New("storage: stale row version")
)

// ScheduleSource is the read side of practitioner calendars.
type ScheduleSource interface {
	// WorkingHours returns every window of the practitioner, all weekdays,
	// ordered by weekday then start.
	WorkingHours(ctx context.Context, practitionerID string) ([]model.WorkingHours, error)
	// Blackouts returns blackouts intersecting [from, to).
	Blackouts(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Blackout, error)
}

// ScheduleStore adds the admin write side.
type ScheduleStore interface {
	ScheduleSource
	ReplaceWorkingHours(ctx context.Context, practitionerID string, hours []model.WorkingHours, events []outbox.Event) error
	AddBlackout(ctx context.Context, b model.Blackout, events []outbox.Event) error
}

// TransitionFunc inspects the locked current row and returns the row to store
// plus events to emit. Returning the row unchanged with no events is a no-op.
type TransitionFunc func(current model.Appointment) (model.Appointment, []outbox.Event, error)

type AppointmentStore interface {
	// ListScheduled returns scheduled appointments intersecting [from, to), by start.
	ListScheduled(ctx context.Context, practitionerID string, from, to time.Time) ([]model.Appointment, error)
	// InsertIfFree atomically checks that no scheduled appointment of the same
	// practitioner overlaps appt and inserts it with its events. ErrSlotTaken otherwise.
	InsertIfFree(ctx context.Context, appt model.Appointment, events []outbox.Event) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	// Transition applies fn to the row under a row lock.
	Transition(ctx context.Context, id string, fn TransitionFunc) (model.Appointment, error)
	// ListByPractitioner returns the most recent appointments first.
	ListByPractitioner(ctx context.Context, practitionerID string, limit int) ([]model.Appointment, error)
}

// Directory answers existence questions about the wider clinic records.
type Directory interface {
	PractitionerExists(ctx context.Context, id string) (bool, error)
	PatientExists(ctx context.Context, id string) (bool, error)
	LocationExists(ctx context.Context, id string) (bool, error)
}

type PatientStore interface {
	GetPatient(ctx context.Context, id string) (model.Patient, error)
	// UpdatePatient is a compare-and-swap on RowVersion. ErrStaleVersion when
	// the stored version differs, ErrNotFound when the row is gone.
	UpdatePatient(ctx context.Context, id string, u model.PatientUpdate) (model.Patient, error)
}
