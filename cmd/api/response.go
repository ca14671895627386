package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"cleanflow/dispute"
	"cleanflow/pii"
)

type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type listResponse struct {
	Items []dispute.View `json:"items"`
	Total int            `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Status: "error", Code: code, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": message})
}

// mapError turns a service error into a status, code and client-safe
// message. Authorization failures never say whether the dispute exists.
func mapError(err error) (int, string, string) {
	var (
		validation *dispute.ValidationError
		stale      *dispute.StaleStateError
		codecErr   *pii.CodecError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "VALIDATION_ERROR", validation.Error()
	case errors.Is(err, dispute.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, dispute.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "not permitted"
	case errors.As(err, &stale):
		return http.StatusConflict, "STALE_STATE", stale.Error()
	case errors.Is(err, dispute.ErrOpenDispute):
		return http.StatusConflict, "OPEN_DISPUTE", err.Error()
	case errors.Is(err, dispute.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "dispute not found"
	case errors.As(err, &codecErr):
		return http.StatusInternalServerError, "CODEC_ERROR", "could not process protected fields"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "dispute request failed",
			"request_id", requestIDFromContext(r.Context()),
			"code", code,
			"error", err,
		)
	}
	writeError(w, status, code, message)
}
