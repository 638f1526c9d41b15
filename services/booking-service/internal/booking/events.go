package booking

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
)

const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicAppointmentCompleted = "booking.appointment.completed.v1"
	TopicReminderRequested    = "booking.reminder.requested.v1"
	TopicWorkingHoursChanged  = "schedule.working_hours.changed.v1"
)

const (
	aggregateAppointment  = "appointment"
	aggregatePractitioner = "practitioner"
)

type AppointmentBooked struct {
	AppointmentID  string `json:"appointment_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	LocationID     string `json:"location_id"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	Notes          string `json:"notes,omitempty"`
}

type AppointmentCancelled struct {
	AppointmentID  string `json:"appointment_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	CancelledAt    string `json:"cancelled_at"`
	Reason         string `json:"reason,omitempty"`
}

type AppointmentCompleted struct {
	AppointmentID  string `json:"appointment_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	CompletedAt    string `json:"completed_at"`
}

type ReminderRequested struct {
	AppointmentID  string `json:"appointment_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	RemindAt       string `json:"remind_at"`
	ScheduledStart string `json:"scheduled_start"`
}

// WorkingHoursChanged tells other instances to drop cached calendars.
type WorkingHoursChanged struct {
	PractitionerID string `json:"practitioner_id"`
	Windows        int    `json:"windows"`
	ChangedAt      string `json:"changed_at"`
}

func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func bookedEvents(a model.Appointment, reminders []time.Time) ([]outbox.Event, error) {
	evt, err := outbox.NewEvent(aggregateAppointment, a.ID, TopicAppointmentBooked, AppointmentBooked{
		AppointmentID:  a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		LocationID:     a.LocationID,
		ScheduledStart: rfc3339(a.ScheduledStart),
		ScheduledEnd:   rfc3339(a.ScheduledEnd),
		Notes:          a.Notes,
	})
	if err != nil {
		return nil, err
	}
	events := []outbox.Event{evt}
	for _, at := range reminders {
		r, err := outbox.NewEvent(aggregateAppointment, a.ID, TopicReminderRequested, ReminderRequested{
			AppointmentID:  a.ID,
			PractitionerID: a.PractitionerID,
			PatientID:      a.PatientID,
			RemindAt:       rfc3339(at),
			ScheduledStart: rfc3339(a.ScheduledStart),
		})
		if err != nil {
			return nil, err
		}
		events = append(events, r)
	}
	return events, nil
}

func cancelledEvent(a model.Appointment) (outbox.Event, error) {
	return outbox.NewEvent(aggregateAppointment, a.ID, TopicAppointmentCancelled, AppointmentCancelled{
		AppointmentID:  a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		ScheduledStart: rfc3339(a.ScheduledStart),
		ScheduledEnd:   rfc3339(a.ScheduledEnd),
		CancelledAt:    rfc3339(*a.CancelledAt),
		Reason:         a.CancelReason,
	})
}

func completedEvent(a model.Appointment, at time.Time) (outbox.Event, error) {
	return outbox.NewEvent(aggregateAppointment, a.ID, TopicAppointmentCompleted, AppointmentCompleted{
		AppointmentID:  a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		CompletedAt:    rfc3339(at),
	})
}
