package model

import "time"

// Interval is a half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [i.Start,i.End) and [o.Start,o.End) share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func OverlapsAny(i Interval, busy []Interval) bool {
	for _, b := range busy {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}
