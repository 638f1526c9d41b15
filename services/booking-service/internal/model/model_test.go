package model

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2026, time.March, 2), d)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2026-03-02", d.String())

	for _, bad := range []string{"", "2026-3-2", "2026-02-30", "02/03/2026"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.February, 27)
	assert.Equal(t, NewDate(2026, time.March, 1), d.AddDays(2))
	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
	assert.Equal(t, -1, d.DaysUntil(d.AddDays(-1)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(NewDate(2026, time.February, 27)))
}

func TestDateAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("clinic", 2*60*60)
	at := NewDate(2026, time.March, 2).At(loc, NewTimeOfDay(9, 30))
	assert.Equal(t, time.Date(2026, time.March, 2, 7, 30, 0, 0, time.UTC), at.UTC())

	// 24:00 rolls over to the next midnight.
	end := NewDate(2026, time.March, 2).At(time.UTC, EndOfDay)
	assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), end)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	end, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, end)

	for _, bad := range []string{"9:30", "09:60", "24:01", "ab:cd", "09:3x", "0930"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockOfTruncatesSeconds(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 45, 59, 999, time.UTC)
	assert.Equal(t, NewTimeOfDay(9, 45), ClockOf(now))
}

func TestDateExists(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	springForward := NewDate(2026, time.March, 8)

	assert.True(t, springForward.Exists(ny, NewTimeOfDay(1, 59)))
	assert.False(t, springForward.Exists(ny, NewTimeOfDay(2, 0)))
	assert.False(t, springForward.Exists(ny, NewTimeOfDay(2, 30)))
	assert.True(t, springForward.Exists(ny, NewTimeOfDay(3, 0)))
	assert.True(t, springForward.Exists(ny, EndOfDay))
	assert.True(t, springForward.Exists(time.UTC, NewTimeOfDay(2, 30)))
}

func TestJSONShapes(t *testing.T) {
	day := DayAvailability{
		Date:           NewDate(2026, time.March, 2),
		Slots:          []TimeSlot{{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(9, 30)}},
		AvailableCount: 1,
	}
	b, err := json.Marshal(day)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2026-03-02","slots":[{"start":"09:00","end":"09:30"}],"available_count":1}`, string(b))

	var wh WorkingHours
	require.NoError(t, json.Unmarshal([]byte(`{"weekday":1,"start":"09:00","end":"12:00","slot_minutes":30}`), &wh))
	assert.Equal(t, NewTimeOfDay(12, 0), wh.End)
	assert.NoError(t, wh.Validate())
}

func TestWorkingHoursValidate(t *testing.T) {
	base := WorkingHours{Weekday: time.Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(12, 0), SlotMinutes: 30}
	assert.NoError(t, base.Validate())

	inverted := base
	inverted.Start, inverted.End = inverted.End, inverted.Start
	assert.Error(t, inverted.Validate())

	noSlot := base
	noSlot.SlotMinutes = 0
	assert.Error(t, noSlot.Validate())

	badDay := base
	badDay.Weekday = 7
	assert.Error(t, badDay.Validate())

	assert.True(t, base.Contains(NewTimeOfDay(11, 30), NewTimeOfDay(12, 0)))
	assert.False(t, base.Contains(NewTimeOfDay(11, 45), NewTimeOfDay(12, 15)))
}

func TestIntervalOverlapIsHalfOpen(t *testing.T) {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	a := Interval{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}
	touching := Interval{Start: a.End, End: a.End.Add(30 * time.Minute)}
	inside := Interval{Start: a.Start.Add(10 * time.Minute), End: a.Start.Add(20 * time.Minute)}

	assert.False(t, a.Overlaps(touching))
	assert.False(t, touching.Overlaps(a))
	assert.True(t, a.Overlaps(inside))
	assert.True(t, OverlapsAny(inside, []Interval{touching, a}))
}

func TestPatientUpdateApply(t *testing.T) {
	phone := "+8801700000000"
	p := Patient{ID: "p1", FirstName: "Ayesha", LastName: "Rahman", RowVersion: 3}
	u := PatientUpdate{Phone: &phone, RowVersion: 3}

	got := u.Apply(p)
	assert.Equal(t, phone, got.Phone)
	assert.Equal(t, "Ayesha", got.FirstName)
	assert.False(t, u.Empty())
	assert.True(t, PatientUpdate{}.Empty())
}
