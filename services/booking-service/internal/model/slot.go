package model

// TimeSlot is a derived bookable interval on Date. It is never persisted.
type TimeSlot struct {
	Date  Date      `json:"-"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// DayAvailability lists the free slots for one date. Slots is never nil so days
// without availability still render as an empty list.
type DayAvailability struct {
	Date           Date       `json:"date"`
	Slots          []TimeSlot `json:"slots"`
	AvailableCount int        `json:"available_count"`
}
