package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dhaka  = time.FixedZone("Asia/Dhaka", 6*60*60)
	monday = model.NewDate(2026, time.March, 2)
)

type fixture struct {
	store *memstore.Store
	clock *clock.Manual
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.SeedDemo()
	clk := clock.NewManual(time.Date(2026, time.March, 1, 8, 0, 0, 0, dhaka))
	svc := NewService(Deps{
		Schedule:     store,
		Appointments: store,
		Directory:    store,
		Policy:       policy.NewStaticProvider([]time.Duration{24 * time.Hour, time.Hour}),
		Clock:        clk,
		Location:     dhaka,
	})
	return &fixture{store: store, clock: clk, svc: svc}
}

func request(start, end model.TimeOfDay) model.BookingRequest {
	return model.BookingRequest{
		PractitionerID: "prac-derm",
		PatientID:      "pat-1",
		LocationID:     "loc-main",
		Date:           monday,
		Start:          start,
		End:            end,
	}
}

func TestCreateBooksFreeSlot(t *testing.T) {
	f := newFixture(t)
	appt, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.NoError(t, err)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, model.StatusScheduled, appt.Status)
	assert.True(t, appt.ScheduledStart.Equal(time.Date(2026, time.March, 2, 10, 0, 0, 0, dhaka)))
	assert.True(t, appt.ScheduledEnd.Equal(time.Date(2026, time.March, 2, 10, 30, 0, 0, dhaka)))

	stored, err := f.svc.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, stored.ID)

	var types []string
	for _, e := range f.store.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{TopicAppointmentBooked, TopicReminderRequested, TopicReminderRequested}, types)
}

func TestCreateSkipsRemindersAlreadyDue(t *testing.T) {
	f := newFixture(t)
	// 23 hours before: the 24h reminder is already in the past.
	f.clock.Set(time.Date(2026, time.March, 1, 11, 0, 0, 0, dhaka))
	_, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.NoError(t, err)

	reminders := 0
	for _, e := range f.store.Events() {
		if e.EventType == TopicReminderRequested {
			reminders++
		}
	}
	assert.Equal(t, 1, reminders)
}

func TestCreateConcurrentSameSlotExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	const n = 40

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Create(context.Background(), request(model.NewTimeOfDay(11, 0), model.NewTimeOfDay(11, 30)))
		}(i)
	}
	close(start)
	wg.Wait()

	created, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case apperr.KindOf(err) == apperr.SlotConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)

	appts, err := f.svc.List(context.Background(), "prac-derm", 0)
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}

func TestCreateRoundTripFromAvailability(t *testing.T) {
	f := newFixture(t)
	avail := availability.NewService(f.store, f.store, f.store, f.clock, availability.Config{Location: dhaka})

	days, err := avail.Compute(context.Background(), availability.Query{PractitionerID: "prac-derm", From: monday, To: monday, SlotMinutes: 30})
	require.NoError(t, err)
	require.NotEmpty(t, days[0].Slots)
	slot := days[0].Slots[3]

	appt, err := f.svc.Create(context.Background(), request(slot.Start, slot.End))
	require.NoError(t, err)
	assert.Equal(t, slot.Start, model.ClockOf(appt.ScheduledStart.In(dhaka)))
	assert.Equal(t, slot.End, model.ClockOf(appt.ScheduledEnd.In(dhaka)))

	after, err := avail.Compute(context.Background(), availability.Query{PractitionerID: "prac-derm", From: monday, To: monday, SlotMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, days[0].AvailableCount-1, after[0].AvailableCount)
	for _, s := range after[0].Slots {
		assert.NotEqual(t, slot.Start, s.Start)
	}
}

func TestCreateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.BookingRequest)
		now    time.Time
		want   apperr.Kind
	}{
		{
			name:   "missing patient",
			mutate: func(r *model.BookingRequest) { r.PatientID = "" },
			want:   apperr.InvalidRequest,
		},
		{
			name:   "end before start",
			mutate: func(r *model.BookingRequest) { r.End = model.NewTimeOfDay(9, 0) },
			want:   apperr.InvalidRequest,
		},
		{
			name: "already started",
			now:  time.Date(2026, time.March, 2, 10, 0, 30, 0, dhaka),
			want: apperr.SlotAlreadyStarted,
		},
		{
			name: "past date",
			now:  time.Date(2026, time.March, 5, 8, 0, 0, 0, dhaka),
			want: apperr.SlotAlreadyStarted,
		},
		{
			name:   "unknown practitioner",
			mutate: func(r *model.BookingRequest) { r.PractitionerID = "ghost" },
			want:   apperr.NotFound,
		},
		{
			name:   "unknown location",
			mutate: func(r *model.BookingRequest) { r.LocationID = "loc-ghost" },
			want:   apperr.NotFound,
		},
		{
			name:   "outside working hours",
			mutate: func(r *model.BookingRequest) { r.Start, r.End = model.NewTimeOfDay(13, 0), model.NewTimeOfDay(13, 30) },
			want:   apperr.SlotConflict,
		},
		{
			name:   "friday is a day off",
			mutate: func(r *model.BookingRequest) { r.Date = monday.AddDays(4) },
			want:   apperr.SlotConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if !tc.now.IsZero() {
				f.clock.Set(tc.now)
			}
			req := request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30))
			if tc.mutate != nil {
				tc.mutate(&req)
			}
			_, err := f.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.want, apperr.KindOf(err), "err: %v", err)
			assert.Empty(t, f.store.Events())
		})
	}
}

func TestCreateOverlappingConflictDetail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(11, 0)))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 30), model.NewTimeOfDay(11, 0)))
	require.Error(t, err)
	assert.Equal(t, apperr.SlotConflict, apperr.KindOf(err))
	assert.Contains(t, apperr.DetailOf(err), "10:30")

	// Adjacent is fine.
	_, err = f.svc.Create(context.Background(), request(model.NewTimeOfDay(11, 0), model.NewTimeOfDay(11, 30)))
	require.NoError(t, err)
}

func TestCreateRespectsBlackout(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddBlackout(context.Background(), model.Blackout{
		PractitionerID: "prac-derm",
		Start:          monday.At(dhaka, model.NewTimeOfDay(9, 0)),
		End:            monday.At(dhaka, model.NewTimeOfDay(12, 0)),
		Reason:         "conference",
	}, nil))

	_, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.Error(t, err)
	assert.Equal(t, apperr.SlotConflict, apperr.KindOf(err))
	assert.Contains(t, apperr.DetailOf(err), "conference")
}

func TestCreateCancelledContextPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Create(ctx, request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.Error(t, err)
	assert.Equal(t, apperr.StoreFailure, apperr.KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))

	appts, err := f.svc.List(context.Background(), "prac-derm", 0)
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	appt, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.NoError(t, err)
	before := len(f.store.Events())

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, " patient request ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "patient request", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := f.svc.Cancel(context.Background(), appt.ID, "other")
	require.NoError(t, err)
	assert.Equal(t, "patient request", again.CancelReason)
	assert.Len(t, f.store.Events(), before+1)

	// The slot is free again.
	_, err = f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.NoError(t, err)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	appt, err := f.svc.Create(context.Background(), request(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)))
	require.NoError(t, err)

	done, err := f.svc.Complete(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	_, err = f.svc.Cancel(context.Background(), appt.ID, "")
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = f.svc.Cancel(context.Background(), "missing", "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.svc.Complete(context.Background(), "")
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}

func TestListValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), "", 10)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
	_, err = f.svc.List(context.Background(), "ghost", 10)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	appts, err := f.svc.List(context.Background(), "prac-aesthetic", 10)
	require.NoError(t, err)
	assert.NotNil(t, appts)
}

func TestCreateRejectsTimesSkippedByDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	store := memstore.New()
	store.SeedDemo()
	require.NoError(t, store.ReplaceWorkingHours(context.Background(), "prac-derm", []model.WorkingHours{
		{PractitionerID: "prac-derm", Weekday: time.Sunday, Start: model.NewTimeOfDay(1, 0), End: model.NewTimeOfDay(4, 0), SlotMinutes: 30},
	}, nil))
	svc := NewService(Deps{
		Schedule:     store,
		Appointments: store,
		Directory:    store,
		Clock:        clock.NewManual(time.Date(2026, time.March, 1, 8, 0, 0, 0, ny)),
		Location:     ny,
	})
	springForward := model.NewDate(2026, time.March, 8)

	req := request(model.NewTimeOfDay(2, 30), model.NewTimeOfDay(3, 0))
	req.Date = springForward
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	req = request(model.NewTimeOfDay(1, 0), model.NewTimeOfDay(1, 30))
	req.Date = springForward
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)

	// The skipped hour cannot alias the booked one.
	req = request(model.NewTimeOfDay(2, 0), model.NewTimeOfDay(2, 30))
	req.Date = springForward
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}
