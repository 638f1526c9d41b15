package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type ScheduleHandler struct {
	svc    *booking.Schedules
	logger *slog.Logger
}

func NewScheduleHandler(svc *booking.Schedules, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

type windowBody struct {
	Weekday     time.Weekday    `json:"weekday"`
	Start       model.TimeOfDay `json:"start"`
	End         model.TimeOfDay `json:"end"`
	SlotMinutes int             `json:"slot_minutes"`
}

type workingHoursBody struct {
	Windows []windowBody `json:"windows"`
}

type blackoutBody struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

func toWindowBodies(hours []model.WorkingHours) []windowBody {
	out := make([]windowBody, 0, len(hours))
	for _, h := range hours {
		out = append(out, windowBody{Weekday: h.Weekday, Start: h.Start, End: h.End, SlotMinutes: h.SlotMinutes})
	}
	return out
}

// GetWorkingHours serves GET /api/v1/practitioners/{id}/working-hours.
func (h *ScheduleHandler) GetWorkingHours(w http.ResponseWriter, r *http.Request) {
	hours, err := h.svc.WorkingHours(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, workingHoursBody{Windows: toWindowBodies(hours)})
}

// PutWorkingHours serves PUT /api/v1/practitioners/{id}/working-hours.
func (h *ScheduleHandler) PutWorkingHours(w http.ResponseWriter, r *http.Request) {
	var body workingHoursBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	hours := make([]model.WorkingHours, 0, len(body.Windows))
	for _, wb := range body.Windows {
		hours = append(hours, model.WorkingHours{Weekday: wb.Weekday, Start: wb.Start, End: wb.End, SlotMinutes: wb.SlotMinutes})
	}
	saved, err := h.svc.ReplaceWorkingHours(r.Context(), r.PathValue("id"), hours)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, workingHoursBody{Windows: toWindowBodies(saved)})
}

// AddBlackout serves POST /api/v1/practitioners/{id}/blackouts.
func (h *ScheduleHandler) AddBlackout(w http.ResponseWriter, r *http.Request) {
	var body blackoutBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	b, err := h.svc.AddBlackout(r.Context(), model.Blackout{
		PractitionerID: r.PathValue("id"),
		Start:          body.Start,
		End:            body.End,
		Reason:         body.Reason,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}
