package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

var dhaka = time.FixedZone("Asia/Dhaka", 6*60*60)

type env struct {
	mux   *http.ServeMux
	store *memstore.Store
	clock *clock.Manual
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	store.SeedDemo()
	clk := clock.NewManual(time.Date(2026, time.March, 1, 8, 0, 0, 0, dhaka))

	avail := availability.NewService(store, store, store, clk, availability.Config{Location: dhaka})
	svc := booking.NewService(booking.Deps{
		Schedule:     store,
		Appointments: store,
		Directory:    store,
		Clock:        clk,
		Logger:       logger,
		Location:     dhaka,
	})
	mux := http.NewServeMux()
	Routes{
		Availability: NewAvailabilityHandler(avail, 30, nil, logger),
		Bookings:     NewBookingHandler(svc, dhaka, logger),
		Schedule:     NewScheduleHandler(booking.NewSchedules(store, nil, store, nil, clk, logger), logger),
		Patients:     NewPatientHandler(booking.NewPatients(store), logger),
		Verifier:     auth.NewVerifier(secret, nil),
	}.Register(mux)
	return &env{mux: mux, store: store, clock: clk}
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.SignHS256("user-1", role, time.Hour, secret)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestAvailabilityEndpoint(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/public/availability?practitioner_id=prac-derm&date_from=2026-03-02&date_to=2026-03-03&slot_duration=60", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var days []struct {
		Date           string `json:"date"`
		Slots          []struct{ Start, End string }
		AvailableCount int `json:"available_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-02", days[0].Date)
	assert.Equal(t, 8, days[0].AvailableCount)
	assert.Equal(t, "09:00", days[0].Slots[0].Start)
	assert.Equal(t, "10:00", days[0].Slots[0].End)
}

func TestAvailabilityDefaultsSlotDuration(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/public/availability?practitioner_id=prac-derm&date_from=2026-03-02&date_to=2026-03-02", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available_count":16`)
}

func TestAvailabilityUsesWindowSlotLength(t *testing.T) {
	e := newEnv(t)
	body := `{"windows":[{"weekday":1,"start":"09:00","end":"10:00","slot_minutes":20}]}`
	rec := e.do(t, http.MethodPut, "/api/v1/practitioners/prac-derm/working-hours", body, auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/public/availability?practitioner_id=prac-derm&date_from=2026-03-02&date_to=2026-03-02", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2026-03-02","slots":[{"start":"09:00","end":"09:20"},{"start":"09:20","end":"09:40"},{"start":"09:40","end":"10:00"}],"available_count":3}]`, rec.Body.String())

	// An explicit duration still wins.
	rec = e.do(t, http.MethodGet, "/api/v1/public/availability?practitioner_id=prac-derm&date_from=2026-03-02&date_to=2026-03-02&slot_duration=30", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available_count":2`)
}

func TestAvailabilityErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"inverted range", "practitioner_id=prac-derm&date_from=2026-03-05&date_to=2026-03-02", http.StatusBadRequest, "validation_error"},
		{"bad date", "practitioner_id=prac-derm&date_from=03/02/2026&date_to=2026-03-02", http.StatusBadRequest, "validation_error"},
		{"zero duration", "practitioner_id=prac-derm&date_from=2026-03-02&date_to=2026-03-02&slot_duration=0", http.StatusBadRequest, "validation_error"},
		{"unknown practitioner", "practitioner_id=ghost&date_from=2026-03-02&date_to=2026-03-02", http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/api/v1/public/availability?"+tc.query, "", "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec := e.do(t, http.MethodPost, "/api/v1/public/availability", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

const bookingBody = `{"practitioner_id":"prac-derm","patient_id":"pat-1","location_id":"loc-main","date":"2026-03-02","start":"10:00","end":"10:30"}`

func TestCreateBookingEndpoint(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/public/bookings", bookingBody, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AppointmentID)
	assert.Equal(t, "2026-03-02T10:00:00+06:00", resp.ScheduledStart)
	assert.Equal(t, "2026-03-02T10:30:00+06:00", resp.ScheduledEnd)
	assert.Equal(t, "scheduled", resp.Status)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", bookingBody, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_not_available", errorCode(t, rec))
}

func TestCreateBookingErrors(t *testing.T) {
	e := newEnv(t)
	e.clock.Set(time.Date(2026, time.March, 2, 10, 5, 0, 0, dhaka))

	rec := e.do(t, http.MethodPost, "/api/v1/public/bookings", bookingBody, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "slot_already_started", errorCode(t, rec))

	body := strings.Replace(bookingBody, "pat-1", "pat-ghost", 1)
	body = strings.Replace(body, "10:00", "11:00", 1)
	body = strings.Replace(body, "10:30", "11:30", 1)
	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", body, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", `{"practitioner_id":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", strings.Replace(bookingBody, `"10:00"`, `"10h"`, 1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", `{"unknown":1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointmentsRequireStaff(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/appointments?practitioner_id=prac-derm", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/appointments?practitioner_id=prac-derm", "", "patient")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = e.do(t, http.MethodGet, "/api/v1/appointments?practitioner_id=prac-derm", "", auth.RoleStaff)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCancelAndCompleteFlow(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/public/bookings", bookingBody, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = e.do(t, http.MethodPost, "/api/v1/appointments/cancel", `{"appointment_id":"`+created.AppointmentID+`","reason":"sick"}`, auth.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var item appointmentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "cancelled", item.Status)
	assert.Equal(t, "sick", item.CancelReason)
	assert.NotEmpty(t, item.CancelledAt)

	rec = e.do(t, http.MethodPost, "/api/v1/appointments/complete", `{"appointment_id":"`+created.AppointmentID+`"}`, auth.RoleStaff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/appointments/cancel", `{"appointment_id":"nope"}`, auth.RoleStaff)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/appointments?practitioner_id=prac-derm&limit=5", "", auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []appointmentItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, created.AppointmentID, items[0].AppointmentID)
}

func TestWorkingHoursEndpoints(t *testing.T) {
	e := newEnv(t)
	body := `{"windows":[{"weekday":1,"start":"08:00","end":"12:00","slot_minutes":20}]}`

	rec := e.do(t, http.MethodPut, "/api/v1/practitioners/prac-derm/working-hours", body, auth.RoleStaff)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/practitioners/prac-derm/working-hours", body, auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, body, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/practitioners/prac-derm/working-hours", "", auth.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, body, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/api/v1/practitioners/prac-derm/working-hours", `{"windows":[{"weekday":1,"start":"12:00","end":"08:00","slot_minutes":20}]}`, auth.RoleAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/practitioners/ghost/working-hours", "", auth.RoleStaff)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlackoutEndpointBlocksBooking(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/practitioners/prac-derm/blackouts",
		`{"start":"2026-03-02T09:00:00+06:00","end":"2026-03-02T13:00:00+06:00","reason":"training"}`, auth.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings", bookingBody, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_not_available", errorCode(t, rec))
}

func TestPatientEndpointsVersionConflict(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/patients/pat-1", "", auth.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.EqualValues(t, 1, p.RowVersion)

	rec = e.do(t, http.MethodPatch, "/api/v1/patients/pat-1", `{"phone":"+8801800000000","row_version":1}`, auth.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.EqualValues(t, 2, p.RowVersion)

	rec = e.do(t, http.MethodPatch, "/api/v1/patients/pat-1", `{"email":"x@example.com","row_version":1}`, auth.RoleStaff)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "version_conflict", errorCode(t, rec))

	rec = e.do(t, http.MethodGet, "/api/v1/patients/nobody", "", auth.RoleStaff)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   apperr.Kind
		status int
		code   string
	}{
		{apperr.InvalidRequest, 400, "validation_error"},
		{apperr.SlotAlreadyStarted, 422, "slot_already_started"},
		{apperr.SlotConflict, 409, "slot_not_available"},
		{apperr.NotFound, 404, "not_found"},
		{apperr.VersionConflict, 409, "version_conflict"},
		{apperr.StoreFailure, 500, "internal_error"},
	}
	for _, tc := range tests {
		status, code := StatusFor(tc.kind)
		assert.Equal(t, tc.status, status, tc.kind.String())
		assert.Equal(t, tc.code, code, tc.kind.String())
	}
}
