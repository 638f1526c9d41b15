package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type PatientHandler struct {
	svc    *booking.Patients
	logger *slog.Logger
}

func NewPatientHandler(svc *booking.Patients, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, logger: logger}
}

type patchPatientRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	RowVersion int64   `json:"row_version"`
}

// Get serves GET /api/v1/patients/{id}.
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Patch serves PATCH /api/v1/patients/{id}. The caller must echo the
// row_version it read; a stale version is rejected with 409.
func (h *PatientHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchPatientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := h.svc.Update(r.Context(), r.PathValue("id"), model.PatientUpdate{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Email:      req.Email,
		RowVersion: req.RowVersion,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
