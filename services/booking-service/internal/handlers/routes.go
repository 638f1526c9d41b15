package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
)

type Routes struct {
	Availability *AvailabilityHandler
	Bookings     *BookingHandler
	Schedule     *ScheduleHandler
	Patients     *PatientHandler
	Verifier     *auth.Verifier
	// Public wraps the unauthenticated endpoints (CORS, rate limiting).
	Public []httpx.Middleware
}

func (rt Routes) Register(mux *http.ServeMux) {
	public := func(h http.HandlerFunc, methods ...string) http.Handler {
		return httpx.Chain(httpx.Methods(h, methods...), rt.Public...)
	}
	staff := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, auth.RequireAuth(rt.Verifier), auth.RequireRole(auth.RoleStaff))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, auth.RequireAuth(rt.Verifier), auth.RequireRole())
	}

	mux.Handle("/api/v1/public/availability", public(rt.Availability.Get, http.MethodGet))
	mux.Handle("/api/v1/public/bookings", public(rt.Bookings.Create, http.MethodPost))

	mux.Handle("/api/v1/appointments", staff(httpx.Methods(rt.Bookings.List, http.MethodGet)))
	mux.Handle("/api/v1/appointments/cancel", staff(httpx.Methods(rt.Bookings.Cancel, http.MethodPost)))
	mux.Handle("/api/v1/appointments/complete", staff(httpx.Methods(rt.Bookings.Complete, http.MethodPost)))

	mux.Handle("GET /api/v1/practitioners/{id}/working-hours", staff(rt.Schedule.GetWorkingHours))
	mux.Handle("PUT /api/v1/practitioners/{id}/working-hours", admin(rt.Schedule.PutWorkingHours))
	mux.Handle("POST /api/v1/practitioners/{id}/blackouts", admin(rt.Schedule.AddBlackout))

	mux.Handle("GET /api/v1/patients/{id}", staff(rt.Patients.Get))
	mux.Handle("PATCH /api/v1/patients/{id}", staff(rt.Patients.Patch))
}
