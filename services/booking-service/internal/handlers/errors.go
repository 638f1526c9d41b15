package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/apperr"
)

// StatusFor maps an error kind to its HTTP status and error code.
func StatusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.InvalidRequest:
		return http.StatusBadRequest, "validation_error"
	case apperr.SlotAlreadyStarted:
		return http.StatusUnprocessableEntity, "slot_already_started"
	case apperr.SlotConflict:
		return http.StatusConflict, "slot_not_available"
	case apperr.NotFound:
		return http.StatusNotFound, "not_found"
	case apperr.VersionConflict:
		return http.StatusConflict, "version_conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status, code := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		httpx.LoggerFromContext(r.Context(), logger).Error("request failed", "err", err)
	}
	httpx.WriteError(w, status, code, apperr.DetailOf(err))
}

func badRequest(w http.ResponseWriter, detail string) {
	httpx.WriteError(w, http.StatusBadRequest, "validation_error", detail)
}
