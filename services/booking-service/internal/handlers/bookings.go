package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	loc    *time.Location
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, loc *time.Location, logger *slog.Logger) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{svc: svc, loc: loc, logger: logger}
}

type createBookingRequest struct {
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	LocationID     string `json:"location_id"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Notes          string `json:"notes"`
}

type createBookingResponse struct {
	AppointmentID  string `json:"appointment_id"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	Status         string `json:"status"`
}

type appointmentItem struct {
	AppointmentID  string `json:"appointment_id"`
	PractitionerID string `json:"practitioner_id"`
	PatientID      string `json:"patient_id"`
	LocationID     string `json:"location_id,omitempty"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CancelReason   string `json:"cancel_reason,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type appointmentActionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) item(a model.Appointment) appointmentItem {
	it := appointmentItem{
		AppointmentID:  a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		LocationID:     a.LocationID,
		ScheduledStart: a.ScheduledStart.In(h.loc).Format(time.RFC3339),
		ScheduledEnd:   a.ScheduledEnd.In(h.loc).Format(time.RFC3339),
		Status:         string(a.Status),
		Notes:          a.Notes,
		CancelReason:   a.CancelReason,
	}
	if a.CancelledAt != nil {
		it.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		it.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return it
}

// Create serves POST /api/v1/public/bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	start, err := model.ParseTimeOfDay(strings.TrimSpace(req.Start))
	if err != nil {
		badRequest(w, "start must be HH:MM")
		return
	}
	end, err := model.ParseTimeOfDay(strings.TrimSpace(req.End))
	if err != nil {
		badRequest(w, "end must be HH:MM")
		return
	}

	appt, err := h.svc.Create(r.Context(), model.BookingRequest{
		PractitionerID: strings.TrimSpace(req.PractitionerID),
		PatientID:      strings.TrimSpace(req.PatientID),
		LocationID:     strings.TrimSpace(req.LocationID),
		Date:           date,
		Start:          start,
		End:            end,
		Notes:          req.Notes,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createBookingResponse{
		AppointmentID:  appt.ID,
		ScheduledStart: appt.ScheduledStart.In(h.loc).Format(time.RFC3339),
		ScheduledEnd:   appt.ScheduledEnd.In(h.loc).Format(time.RFC3339),
		Status:         string(appt.Status),
	})
}

// List serves GET /api/v1/appointments.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	practitionerID := strings.TrimSpace(r.URL.Query().Get("practitioner_id"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive number")
			return
		}
		limit = n
	}
	appts, err := h.svc.List(r.Context(), practitionerID, limit)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, h.item(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Cancel serves POST /api/v1/appointments/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req appointmentActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := h.svc.Cancel(r.Context(), strings.TrimSpace(req.AppointmentID), req.Reason)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.item(appt))
}

// Complete serves POST /api/v1/appointments/complete.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req appointmentActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	appt, err := h.svc.Complete(r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.item(appt))
}
