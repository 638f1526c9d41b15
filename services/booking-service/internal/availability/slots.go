package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// GenerateSlots partitions each window into back-to-back slots of slotMinutes.
// A remainder shorter than slotMinutes at the end of a window is dropped.
// windows must already be filtered to date's weekday.
func GenerateSlots(date model.Date, windows []model.WorkingHours, slotMinutes int) []model.TimeSlot {
	if slotMinutes <= 0 {
		return nil
	}
	var slots []model.TimeSlot
	for _, w := range windows {
		for start := w.Start; start.Add(slotMinutes) <= w.End; start = start.Add(slotMinutes) {
			slots = append(slots, model.TimeSlot{Date: date, Start: start, End: start.Add(slotMinutes)})
		}
	}
	return slots
}

// GenerateWindowSlots is GenerateSlots with each window's own slot length.
// fallback applies to windows that carry none.
func GenerateWindowSlots(date model.Date, windows []model.WorkingHours, fallback int) []model.TimeSlot {
	var slots []model.TimeSlot
	for _, w := range windows {
		n := w.SlotMinutes
		if n <= 0 {
			n = fallback
		}
		slots = append(slots, GenerateSlots(date, []model.WorkingHours{w}, n)...)
	}
	return slots
}

// DropSkippedTimes removes slots whose start or end falls in a daylight-saving
// gap of loc.
func DropSkippedTimes(slots []model.TimeSlot, loc *time.Location) []model.TimeSlot {
	out := slots[:0]
	for _, s := range slots {
		if s.Date.Exists(loc, s.Start) && s.Date.Exists(loc, s.End) {
			out = append(out, s)
		}
	}
	return out
}

// FilterPastSlots drops slots that have already started relative to now, which
// must be expressed in the clinic's location. On now's own date a slot survives
// only if it starts after the current minute; a slot starting this minute is
// already started. The result is never nil.
func FilterPastSlots(date model.Date, slots []model.TimeSlot, now time.Time) []model.TimeSlot {
	today := model.DateOf(now)
	switch {
	case date.After(today):
		return append([]model.TimeSlot{}, slots...)
	case date.Before(today):
		return []model.TimeSlot{}
	}
	current := model.ClockOf(now)
	out := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Start > current {
			out = append(out, s)
		}
	}
	return out
}

// HasStarted applies the same rule to a single slot start.
func HasStarted(date model.Date, start model.TimeOfDay, now time.Time) bool {
	return len(FilterPastSlots(date, []model.TimeSlot{{Date: date, Start: start}}, now)) == 0
}

// WindowsOn returns the windows for date's weekday ordered by start.
func WindowsOn(hours []model.WorkingHours, date model.Date) []model.WorkingHours {
	var out []model.WorkingHours
	for _, w := range hours {
		if w.Weekday == date.Weekday() {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out
}

// FitsWorkingHours reports whether [start,end) on date lies inside one window.
func FitsWorkingHours(hours []model.WorkingHours, date model.Date, start, end model.TimeOfDay) bool {
	for _, w := range WindowsOn(hours, date) {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

func removeBusy(slots []model.TimeSlot, loc *time.Location, busy []model.Interval) []model.TimeSlot {
	if len(busy) == 0 {
		return slots
	}
	out := slots[:0]
	for _, s := range slots {
		iv := model.Interval{Start: s.Date.At(loc, s.Start), End: s.Date.At(loc, s.End)}
		if !model.OverlapsAny(iv, busy) {
			out = append(out, s)
		}
	}
	return out
}

func sortWindows(ws []model.WorkingHours) {
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
}
