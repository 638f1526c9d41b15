package model

import (
	"errors"
	"fmt"
	"time"
)

// WorkingHours is one bookable window on a weekday. A practitioner may have
// several windows on the same day.
type WorkingHours struct {
	PractitionerID string       `json:"practitioner_id"`
	Weekday        time.Weekday `json:"weekday"`
	Start          TimeOfDay    `json:"start"`
	End            TimeOfDay    `json:"end"`
	SlotMinutes    int          `json:"slot_minutes"`
}

func (w WorkingHours) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range 0-6", w.Weekday)
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return errors.New("start and end must be within the day")
	}
	if w.Start >= w.End {
		return fmt.Errorf("start %s must be before end %s", w.Start, w.End)
	}
	if w.SlotMinutes <= 0 {
		return errors.New("slot_minutes must be positive")
	}
	return nil
}

// Contains reports whether [start,end) lies inside the window.
func (w WorkingHours) Contains(start, end TimeOfDay) bool {
	return start >= w.Start && end <= w.End && start < end
}

// Blackout is a period when the practitioner cannot be booked (leave, training).
type Blackout struct {
	PractitionerID string    `json:"practitioner_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason,omitempty"`
}

func (b Blackout) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}
