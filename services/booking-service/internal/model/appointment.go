package model

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type Appointment struct {
	ID             string
	PractitionerID string
	PatientID      string
	LocationID     string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Status         Status
	Notes          string
	CancelledAt    *time.Time
	CancelReason   string
	CreatedAt      time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.ScheduledStart, End: a.ScheduledEnd}
}

// BookingRequest is an unvalidated request to book one slot.
type BookingRequest struct {
	PractitionerID string
	PatientID      string
	LocationID     string
	Date           Date
	Start          TimeOfDay
	End            TimeOfDay
	Notes          string
}
