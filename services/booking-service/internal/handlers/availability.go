package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type AvailabilityHandler struct {
	svc         *availability.Service
	defaultSlot int
	metrics     *metrics.BookingMetrics
	logger      *slog.Logger
}

func NewAvailabilityHandler(svc *availability.Service, defaultSlotMinutes int, m *metrics.BookingMetrics, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, defaultSlot: defaultSlotMinutes, metrics: m, logger: logger}
}

// Get serves GET /api/v1/public/availability.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	practitionerID := strings.TrimSpace(q.Get("practitioner_id"))
	if practitionerID == "" {
		badRequest(w, "practitioner_id is required")
		return
	}
	from, err := model.ParseDate(strings.TrimSpace(q.Get("date_from")))
	if err != nil {
		badRequest(w, "date_from must be YYYY-MM-DD")
		return
	}
	to, err := model.ParseDate(strings.TrimSpace(q.Get("date_to")))
	if err != nil {
		badRequest(w, "date_to must be YYYY-MM-DD")
		return
	}
	slot, perWindow := h.defaultSlot, true
	if raw := strings.TrimSpace(q.Get("slot_duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "slot_duration must be a number of minutes")
			return
		}
		slot, perWindow = n, false
	}

	started := time.Now()
	days, err := h.svc.Compute(r.Context(), availability.Query{
		PractitionerID: practitionerID,
		From:           from,
		To:             to,
		SlotMinutes:    slot,
		PerWindow:      perWindow,
	})
	status := "ok"
	if err != nil {
		status = apperr.KindOf(err).String()
	}
	h.metrics.ObserveAvailability(status, time.Since(started))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, days)
}
